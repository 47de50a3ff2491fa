package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/robby/dragboard/internal/domain"
)

// AddColumn appends a column to a board.
func (r *Repo) AddColumn(ctx context.Context, boardID, name, color string) (*domain.Column, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("column name must not be empty")
	}

	col := &domain.Column{ID: uuid.New().String(), BoardID: boardID, Name: name, Color: color}
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		var exists int
		if err := tx.GetContext(ctx, &exists, "SELECT COUNT(*) FROM boards WHERE id = ?", boardID); err != nil {
			return fmt.Errorf("checking board %s: %w", boardID, err)
		}
		if exists == 0 {
			return fmt.Errorf("board %s: %w", boardID, ErrNotFound)
		}
		if err := tx.GetContext(ctx, &col.Position, "SELECT COUNT(*) FROM columns WHERE board_id = ?", boardID); err != nil {
			return fmt.Errorf("counting columns: %w", err)
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO columns (id, board_id, name, position, color) VALUES (?, ?, ?, ?, ?)",
			col.ID, col.BoardID, col.Name, col.Position, col.Color)
		if err != nil {
			return fmt.Errorf("creating column: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return col, nil
}

// RenameColumn changes a column's name.
func (r *Repo) RenameColumn(ctx context.Context, id, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("column name must not be empty")
	}
	res, err := r.db.ExecContext(ctx, "UPDATE columns SET name = ? WHERE id = ?", name, id)
	if err != nil {
		return fmt.Errorf("renaming column %s: %w", id, err)
	}
	return mustAffect(res, "column", id)
}

// DeleteColumn removes a column and its cards, then closes the gap.
func (r *Repo) DeleteColumn(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		var cur columnRow
		if err := tx.GetContext(ctx, &cur, "SELECT * FROM columns WHERE id = ?", id); err != nil {
			return notFound(err, "column", id)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM columns WHERE id = ?", id); err != nil {
			return fmt.Errorf("deleting column %s: %w", id, err)
		}
		_, err := tx.ExecContext(ctx,
			"UPDATE columns SET position = position - 1 WHERE board_id = ? AND position > ?",
			cur.BoardID, cur.Position)
		if err != nil {
			return fmt.Errorf("renumbering columns: %w", err)
		}
		return nil
	})
}

// MoveColumn moves a column to destIndex within its board. destIndex is the
// final index, in [0, columns-1]. Siblings are renumbered in the same
// transaction.
func (r *Repo) MoveColumn(ctx context.Context, columnID string, destIndex int) error {
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		var cur columnRow
		if err := tx.GetContext(ctx, &cur, "SELECT * FROM columns WHERE id = ?", columnID); err != nil {
			return moveNotFound(err, "column", columnID)
		}
		var n int
		if err := tx.GetContext(ctx, &n, "SELECT COUNT(*) FROM columns WHERE board_id = ?", cur.BoardID); err != nil {
			return fmt.Errorf("counting columns: %w", err)
		}
		if destIndex < 0 || destIndex > n-1 {
			return fmt.Errorf("%w: column to %d, size %d", domain.ErrInvalidIndex, destIndex, n-1)
		}
		return shiftWithin(ctx, tx, "columns", "board_id", cur.BoardID, columnID, cur.Position, destIndex)
	})
	if err != nil {
		return err
	}
	r.logger.WithField("column", columnID).WithField("index", destIndex).Debug("Column moved")
	return nil
}

// shiftWithin moves one row of a parent scope from position from to
// position to, shifting the rows in between by one.
func shiftWithin(ctx context.Context, tx *sqlx.Tx, table, parentCol, parentID, id string, from, to int) error {
	if from == to {
		return nil
	}
	var q string
	var lo, hi int
	if to > from {
		q = fmt.Sprintf("UPDATE %s SET position = position - 1 WHERE %s = ? AND position > ? AND position <= ?", table, parentCol)
		lo, hi = from, to
	} else {
		q = fmt.Sprintf("UPDATE %s SET position = position + 1 WHERE %s = ? AND position >= ? AND position < ?", table, parentCol)
		lo, hi = to, from
	}
	if _, err := tx.ExecContext(ctx, q, parentID, lo, hi); err != nil {
		return fmt.Errorf("shifting %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET position = ? WHERE id = ?", table), to, id); err != nil {
		return fmt.Errorf("placing %s %s: %w", table, id, err)
	}
	return nil
}

// moveNotFound reports an unknown move source as domain.ErrInvalidMove while
// keeping ErrNotFound matchable.
func moveNotFound(err error, what, id string) error {
	err = notFound(err, what, id)
	return fmt.Errorf("%w: %w", domain.ErrInvalidMove, err)
}
