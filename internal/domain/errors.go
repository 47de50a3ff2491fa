package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidIndex indicates a placement outside the valid index range.
	ErrInvalidIndex = errors.New("invalid index")
	// ErrInvalidMove indicates the item to move is unknown in its source scope.
	ErrInvalidMove = errors.New("invalid move")
	// ErrPersistence indicates the durable write of a move failed.
	ErrPersistence = errors.New("persistence failure")
	// ErrStaleSnapshot indicates layout data older than one layout pass.
	ErrStaleSnapshot = errors.New("stale layout snapshot")
)

// ValidatePositions checks the dense position invariant for every scope of
// the board: columns within the board and cards within each column.
func ValidatePositions(b *Board) error {
	for i, col := range b.Columns {
		if col.Position != i {
			return fmt.Errorf("column %s at index %d has position %d", col.ID, i, col.Position)
		}
		for j, card := range col.Cards {
			if card.Position != j {
				return fmt.Errorf("card %s at index %d of column %s has position %d", card.ID, j, col.ID, card.Position)
			}
		}
	}
	return nil
}
