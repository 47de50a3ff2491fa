package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/robby/dragboard/internal/domain"
)

// AddCard appends a card to a column. Only Title, Description and Color of
// card are used; the stored card is returned.
func (r *Repo) AddCard(ctx context.Context, columnID string, card domain.Card) (*domain.Card, error) {
	if strings.TrimSpace(card.Title) == "" {
		return nil, fmt.Errorf("card title must not be empty")
	}

	now := r.now()
	out := &domain.Card{
		ID:          uuid.New().String(),
		ColumnID:    columnID,
		Title:       card.Title,
		Description: card.Description,
		Color:       card.Color,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		var exists int
		if err := tx.GetContext(ctx, &exists, "SELECT COUNT(*) FROM columns WHERE id = ?", columnID); err != nil {
			return fmt.Errorf("checking column %s: %w", columnID, err)
		}
		if exists == 0 {
			return fmt.Errorf("column %s: %w", columnID, ErrNotFound)
		}
		if err := tx.GetContext(ctx, &out.Position, "SELECT COUNT(*) FROM cards WHERE column_id = ?", columnID); err != nil {
			return fmt.Errorf("counting cards: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cards (id, column_id, title, description, position, color, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			out.ID, out.ColumnID, out.Title, out.Description, out.Position, out.Color, out.CreatedAt, out.UpdatedAt)
		if err != nil {
			return fmt.Errorf("creating card: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetCard reads a single card without its children.
func (r *Repo) GetCard(ctx context.Context, id string) (*domain.Card, error) {
	var row cardRow
	if err := r.db.GetContext(ctx, &row, "SELECT * FROM cards WHERE id = ?", id); err != nil {
		return nil, notFound(err, "card", id)
	}
	return &domain.Card{
		ID: row.ID, ColumnID: row.ColumnID, Title: row.Title, Description: row.Description,
		Position: row.Position, Color: row.Color, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}, nil
}

// UpdateCard rewrites a card's title, description and color.
func (r *Repo) UpdateCard(ctx context.Context, card domain.Card) error {
	if strings.TrimSpace(card.Title) == "" {
		return fmt.Errorf("card title must not be empty")
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE cards SET title = ?, description = ?, color = ?, updated_at = ? WHERE id = ?",
		card.Title, card.Description, card.Color, r.now(), card.ID)
	if err != nil {
		return fmt.Errorf("updating card %s: %w", card.ID, err)
	}
	return mustAffect(res, "card", card.ID)
}

// DeleteCard removes a card and closes the gap in its column.
func (r *Repo) DeleteCard(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		var cur cardRow
		if err := tx.GetContext(ctx, &cur, "SELECT * FROM cards WHERE id = ?", id); err != nil {
			return notFound(err, "card", id)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM cards WHERE id = ?", id); err != nil {
			return fmt.Errorf("deleting card %s: %w", id, err)
		}
		_, err := tx.ExecContext(ctx,
			"UPDATE cards SET position = position - 1 WHERE column_id = ? AND position > ?",
			cur.ColumnID, cur.Position)
		if err != nil {
			return fmt.Errorf("renumbering cards: %w", err)
		}
		return nil
	})
}

// MoveCard moves a card to destIndex of destColumnID and renumbers both
// columns in one transaction. Within the same column destIndex is the final
// index, in [0, cards-1]; into another column it is in [0, cards].
func (r *Repo) MoveCard(ctx context.Context, cardID, destColumnID string, destIndex int) error {
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		var cur cardRow
		if err := tx.GetContext(ctx, &cur, "SELECT * FROM cards WHERE id = ?", cardID); err != nil {
			return moveNotFound(err, "card", cardID)
		}

		var srcBoard, dstBoard string
		if err := tx.GetContext(ctx, &srcBoard, "SELECT board_id FROM columns WHERE id = ?", cur.ColumnID); err != nil {
			return notFound(err, "column", cur.ColumnID)
		}
		if err := tx.GetContext(ctx, &dstBoard, "SELECT board_id FROM columns WHERE id = ?", destColumnID); err != nil {
			return moveNotFound(err, "column", destColumnID)
		}
		if srcBoard != dstBoard {
			return fmt.Errorf("%w: columns %s and %s are on different boards", domain.ErrInvalidMove, cur.ColumnID, destColumnID)
		}

		var n int
		if err := tx.GetContext(ctx, &n, "SELECT COUNT(*) FROM cards WHERE column_id = ?", destColumnID); err != nil {
			return fmt.Errorf("counting cards: %w", err)
		}

		if cur.ColumnID == destColumnID {
			if destIndex < 0 || destIndex > n-1 {
				return fmt.Errorf("%w: card to %d, size %d", domain.ErrInvalidIndex, destIndex, n-1)
			}
			return shiftWithin(ctx, tx, "cards", "column_id", destColumnID, cardID, cur.Position, destIndex)
		}

		if destIndex < 0 || destIndex > n {
			return fmt.Errorf("%w: card to %d, size %d", domain.ErrInvalidIndex, destIndex, n)
		}
		_, err := tx.ExecContext(ctx,
			"UPDATE cards SET position = position - 1 WHERE column_id = ? AND position > ?",
			cur.ColumnID, cur.Position)
		if err != nil {
			return fmt.Errorf("closing gap in column %s: %w", cur.ColumnID, err)
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE cards SET position = position + 1 WHERE column_id = ? AND position >= ?",
			destColumnID, destIndex)
		if err != nil {
			return fmt.Errorf("opening slot in column %s: %w", destColumnID, err)
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE cards SET column_id = ?, position = ?, updated_at = ? WHERE id = ?",
			destColumnID, destIndex, r.now(), cardID)
		if err != nil {
			return fmt.Errorf("placing card %s: %w", cardID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.logger.WithField("card", cardID).WithField("column", destColumnID).WithField("index", destIndex).Debug("Card moved")
	return nil
}
