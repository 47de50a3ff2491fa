package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/robby/dragboard/internal/domain"
)

// AddChecklistItem appends a checklist item to a card.
func (r *Repo) AddChecklistItem(ctx context.Context, cardID, text string) (*domain.ChecklistItem, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("checklist item text must not be empty")
	}

	item := &domain.ChecklistItem{ID: uuid.New().String(), CardID: cardID, Text: text}
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &item.Position, "SELECT COUNT(*) FROM checklist_items WHERE card_id = ?", cardID); err != nil {
			return fmt.Errorf("counting checklist items: %w", err)
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO checklist_items (id, card_id, text, checked, position) VALUES (?, ?, ?, ?, ?)",
			item.ID, item.CardID, item.Text, boolToInt(item.Checked), item.Position)
		if err != nil {
			return fmt.Errorf("adding checklist item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ToggleChecklistItem flips the checked state of a checklist item.
func (r *Repo) ToggleChecklistItem(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE checklist_items SET checked = CASE WHEN checked = 0 THEN 1 ELSE 0 END WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("toggling checklist item %s: %w", id, err)
	}
	return mustAffect(res, "checklist item", id)
}

// DeleteChecklistItem removes a checklist item and closes the gap.
func (r *Repo) DeleteChecklistItem(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		var cur checklistRow
		if err := tx.GetContext(ctx, &cur, "SELECT * FROM checklist_items WHERE id = ?", id); err != nil {
			return notFound(err, "checklist item", id)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM checklist_items WHERE id = ?", id); err != nil {
			return fmt.Errorf("deleting checklist item %s: %w", id, err)
		}
		_, err := tx.ExecContext(ctx,
			"UPDATE checklist_items SET position = position - 1 WHERE card_id = ? AND position > ?",
			cur.CardID, cur.Position)
		if err != nil {
			return fmt.Errorf("renumbering checklist: %w", err)
		}
		return nil
	})
}

// AddAttachment attaches a named link to a card.
func (r *Repo) AddAttachment(ctx context.Context, cardID, name, url string) (*domain.Attachment, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("attachment url must not be empty")
	}
	if name == "" {
		name = url
	}
	a := &domain.Attachment{ID: uuid.New().String(), CardID: cardID, Name: name, URL: url}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO attachments (id, card_id, name, url) VALUES (?, ?, ?, ?)",
		a.ID, a.CardID, a.Name, a.URL)
	if err != nil {
		return nil, fmt.Errorf("adding attachment: %w", err)
	}
	return a, nil
}

// DeleteAttachment removes an attachment by ID.
func (r *Repo) DeleteAttachment(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM attachments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting attachment %s: %w", id, err)
	}
	return mustAffect(res, "attachment", id)
}

// EnsureLabel returns the label with the given name, creating it when it
// does not exist yet. An existing label keeps its color.
func (r *Repo) EnsureLabel(ctx context.Context, name, color string) (*domain.Label, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("label name must not be empty")
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO labels (id, name, color) VALUES (?, ?, ?) ON CONFLICT(name) DO NOTHING",
		uuid.New().String(), name, color)
	if err != nil {
		return nil, fmt.Errorf("creating label %s: %w", name, err)
	}
	var l domain.Label
	if err := r.db.GetContext(ctx, &l, "SELECT id, name, color FROM labels WHERE name = ?", name); err != nil {
		return nil, notFound(err, "label", name)
	}
	return &l, nil
}

// ListLabels returns every label ordered by name.
func (r *Repo) ListLabels(ctx context.Context) ([]domain.Label, error) {
	var labels []domain.Label
	if err := r.db.SelectContext(ctx, &labels, "SELECT id, name, color FROM labels ORDER BY name"); err != nil {
		return nil, fmt.Errorf("querying labels: %w", err)
	}
	return labels, nil
}

// AttachLabel tags a card with a label. Attaching twice is a no-op.
func (r *Repo) AttachLabel(ctx context.Context, cardID, labelID string) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO card_labels (card_id, label_id) VALUES (?, ?)", cardID, labelID)
	if err != nil {
		return fmt.Errorf("attaching label %s to card %s: %w", labelID, cardID, err)
	}
	return nil
}

// DetachLabel removes a label from a card.
func (r *Repo) DetachLabel(ctx context.Context, cardID, labelID string) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM card_labels WHERE card_id = ? AND label_id = ?", cardID, labelID)
	if err != nil {
		return fmt.Errorf("detaching label %s from card %s: %w", labelID, cardID, err)
	}
	return mustAffect(res, "card label", cardID+"/"+labelID)
}
