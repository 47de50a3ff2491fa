package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/robby/dragboard/internal/domain"
)

type boardRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Position  int       `db:"position"`
	CreatedAt time.Time `db:"created_at"`
}

type columnRow struct {
	ID       string `db:"id"`
	BoardID  string `db:"board_id"`
	Name     string `db:"name"`
	Position int    `db:"position"`
	Color    string `db:"color"`
}

type cardRow struct {
	ID          string    `db:"id"`
	ColumnID    string    `db:"column_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Position    int       `db:"position"`
	Color       string    `db:"color"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type checklistRow struct {
	ID       string `db:"id"`
	CardID   string `db:"card_id"`
	Text     string `db:"text"`
	Checked  int    `db:"checked"`
	Position int    `db:"position"`
}

type attachmentRow struct {
	ID     string `db:"id"`
	CardID string `db:"card_id"`
	Name   string `db:"name"`
	URL    string `db:"url"`
}

type cardLabelRow struct {
	CardID string `db:"card_id"`
	ID     string `db:"id"`
	Name   string `db:"name"`
	Color  string `db:"color"`
}

// CreateBoard inserts a new board at the end of the board list.
func (r *Repo) CreateBoard(ctx context.Context, name string) (*domain.Board, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("board name must not be empty")
	}

	b := &domain.Board{ID: uuid.New().String(), Name: name, CreatedAt: r.now()}
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &b.Position, "SELECT COUNT(*) FROM boards"); err != nil {
			return fmt.Errorf("counting boards: %w", err)
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO boards (id, name, position, created_at) VALUES (?, ?, ?, ?)",
			b.ID, b.Name, b.Position, b.CreatedAt)
		if err != nil {
			return fmt.Errorf("creating board: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ListBoards returns every board without columns, ordered by position.
func (r *Repo) ListBoards(ctx context.Context) ([]*domain.Board, error) {
	var rows []boardRow
	if err := r.db.SelectContext(ctx, &rows, "SELECT * FROM boards ORDER BY position"); err != nil {
		return nil, fmt.Errorf("querying boards: %w", err)
	}
	boards := make([]*domain.Board, 0, len(rows))
	for _, row := range rows {
		boards = append(boards, &domain.Board{ID: row.ID, Name: row.Name, Position: row.Position, CreatedAt: row.CreatedAt})
	}
	return boards, nil
}

// FindBoard resolves a board by ID or, failing that, by exact name.
func (r *Repo) FindBoard(ctx context.Context, ref string) (*domain.Board, error) {
	var row boardRow
	err := r.db.GetContext(ctx, &row, "SELECT * FROM boards WHERE id = ? OR name = ? ORDER BY id = ? DESC LIMIT 1", ref, ref, ref)
	if err != nil {
		return nil, notFound(err, "board", ref)
	}
	return &domain.Board{ID: row.ID, Name: row.Name, Position: row.Position, CreatedAt: row.CreatedAt}, nil
}

// RenameBoard changes a board's name.
func (r *Repo) RenameBoard(ctx context.Context, id, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("board name must not be empty")
	}
	res, err := r.db.ExecContext(ctx, "UPDATE boards SET name = ? WHERE id = ?", name, id)
	if err != nil {
		return fmt.Errorf("renaming board %s: %w", id, err)
	}
	return mustAffect(res, "board", id)
}

// DeleteBoard removes a board with everything on it and closes the gap in
// board positions.
func (r *Repo) DeleteBoard(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		var pos int
		if err := tx.GetContext(ctx, &pos, "SELECT position FROM boards WHERE id = ?", id); err != nil {
			return notFound(err, "board", id)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM boards WHERE id = ?", id); err != nil {
			return fmt.Errorf("deleting board %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE boards SET position = position - 1 WHERE position > ?", pos); err != nil {
			return fmt.Errorf("renumbering boards: %w", err)
		}
		return nil
	})
}

// LoadBoard reads a complete board: columns, cards and card children, all
// in position order.
func (r *Repo) LoadBoard(ctx context.Context, id string) (*domain.Board, error) {
	var b *domain.Board
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		var row boardRow
		if err := tx.GetContext(ctx, &row, "SELECT * FROM boards WHERE id = ?", id); err != nil {
			return notFound(err, "board", id)
		}
		b = &domain.Board{ID: row.ID, Name: row.Name, Position: row.Position, CreatedAt: row.CreatedAt}

		var cols []columnRow
		if err := tx.SelectContext(ctx, &cols, "SELECT * FROM columns WHERE board_id = ? ORDER BY position", id); err != nil {
			return fmt.Errorf("querying columns: %w", err)
		}
		byColumn := make(map[string]*domain.Column, len(cols))
		for _, c := range cols {
			col := &domain.Column{ID: c.ID, BoardID: c.BoardID, Name: c.Name, Position: c.Position, Color: c.Color}
			b.Columns = append(b.Columns, col)
			byColumn[col.ID] = col
		}

		var cards []cardRow
		err := tx.SelectContext(ctx, &cards, `
			SELECT cards.* FROM cards
			JOIN columns ON columns.id = cards.column_id
			WHERE columns.board_id = ?
			ORDER BY columns.position, cards.position`, id)
		if err != nil {
			return fmt.Errorf("querying cards: %w", err)
		}
		byCard := make(map[string]*domain.Card, len(cards))
		for _, c := range cards {
			card := &domain.Card{
				ID: c.ID, ColumnID: c.ColumnID, Title: c.Title, Description: c.Description,
				Position: c.Position, Color: c.Color, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
			}
			if col := byColumn[c.ColumnID]; col != nil {
				col.Cards = append(col.Cards, card)
			}
			byCard[card.ID] = card
		}

		return loadCardChildren(ctx, tx, id, byCard)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func loadCardChildren(ctx context.Context, tx *sqlx.Tx, boardID string, byCard map[string]*domain.Card) error {
	const onBoard = `card_id IN (
		SELECT cards.id FROM cards JOIN columns ON columns.id = cards.column_id
		WHERE columns.board_id = ?)`

	var items []checklistRow
	if err := tx.SelectContext(ctx, &items, "SELECT * FROM checklist_items WHERE "+onBoard+" ORDER BY card_id, position", boardID); err != nil {
		return fmt.Errorf("querying checklist items: %w", err)
	}
	for _, it := range items {
		if card := byCard[it.CardID]; card != nil {
			card.Checklist = append(card.Checklist, domain.ChecklistItem{
				ID: it.ID, CardID: it.CardID, Text: it.Text, Checked: it.Checked != 0, Position: it.Position,
			})
		}
	}

	var atts []attachmentRow
	if err := tx.SelectContext(ctx, &atts, "SELECT * FROM attachments WHERE "+onBoard+" ORDER BY card_id, name", boardID); err != nil {
		return fmt.Errorf("querying attachments: %w", err)
	}
	for _, a := range atts {
		if card := byCard[a.CardID]; card != nil {
			card.Attachments = append(card.Attachments, domain.Attachment{ID: a.ID, CardID: a.CardID, Name: a.Name, URL: a.URL})
		}
	}

	var labels []cardLabelRow
	err := tx.SelectContext(ctx, &labels, `
		SELECT card_labels.card_id, labels.id, labels.name, labels.color
		FROM card_labels JOIN labels ON labels.id = card_labels.label_id
		WHERE card_labels.`+onBoard+`
		ORDER BY card_labels.card_id, labels.name`, boardID)
	if err != nil {
		return fmt.Errorf("querying labels: %w", err)
	}
	for _, l := range labels {
		if card := byCard[l.CardID]; card != nil {
			card.Labels = append(card.Labels, domain.Label{ID: l.ID, Name: l.Name, Color: l.Color})
		}
	}
	return nil
}
