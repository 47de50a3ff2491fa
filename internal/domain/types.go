// Package domain defines the board model shared by the reordering engine,
// the storage backends and the terminal UI.
package domain

import "time"

// Board is the top-level container. It owns its columns.
type Board struct {
	ID        string    // Board ID (UUID for local boards, project node ID for GitHub)
	Name      string    // Display name
	Position  int       // Rank among all boards
	Columns   []*Column // Columns in position order
	CreatedAt time.Time // Creation timestamp
}

// Column is an ordered lane on a board. It owns its cards.
type Column struct {
	ID       string  // Column ID
	BoardID  string  // Owning board ID (back-reference only)
	Name     string  // Display name
	Position int     // Dense rank within the board
	Color    string  // Color tag, opaque to the engine
	Cards    []*Card // Cards in position order
}

// Card is a single item on a column.
type Card struct {
	ID          string          // Card ID
	ColumnID    string          // Owning column ID
	Title       string          // Card title
	Description string          // Optional free-form body
	Position    int             // Dense rank within the column
	Color       string          // Optional color tag
	CreatedAt   time.Time       // Creation timestamp
	UpdatedAt   time.Time       // Last modification timestamp
	Checklist   []ChecklistItem // Checklist entries in order
	Attachments []Attachment    // Attached links or files
	Labels      []Label         // Labels attached to the card
}

// ChecklistItem is one entry of a card checklist.
type ChecklistItem struct {
	ID       string
	CardID   string
	Text     string
	Checked  bool
	Position int
}

// Attachment is a named link attached to a card.
type Attachment struct {
	ID     string
	CardID string
	Name   string
	URL    string
}

// Label is a colored tag that can be attached to many cards.
type Label struct {
	ID    string
	Name  string
	Color string
}

// Kind tells which entity a drag or a move refers to.
type Kind int

const (
	KindCard Kind = iota
	KindColumn
)

func (k Kind) String() string {
	switch k {
	case KindCard:
		return "card"
	case KindColumn:
		return "column"
	default:
		return "unknown"
	}
}

// Move describes a committed reorder request.
// For columns FromParent and ToParent are the board ID.
type Move struct {
	BoardID    string
	Kind       Kind
	ItemID     string
	FromParent string
	FromIndex  int
	ToParent   string
	ToIndex    int
}

// SameParent reports whether the move stays within one parent scope.
func (m Move) SameParent() bool {
	return m.FromParent == m.ToParent
}

// Key implements the ordered item contract for columns.
func (c *Column) Key() string { return c.ID }

// SetPosition implements the ordered item contract for columns.
func (c *Column) SetPosition(pos int) { c.Position = pos }

// GetPosition returns the stored position.
func (c *Column) GetPosition() int { return c.Position }

// Key implements the ordered item contract for cards.
func (c *Card) Key() string { return c.ID }

// SetPosition implements the ordered item contract for cards.
func (c *Card) SetPosition(pos int) { c.Position = pos }

// GetPosition returns the stored position.
func (c *Card) GetPosition() int { return c.Position }

// Column returns the column with the given ID and its index, or nil and -1.
func (b *Board) Column(id string) (*Column, int) {
	for i, col := range b.Columns {
		if col.ID == id {
			return col, i
		}
	}
	return nil, -1
}

// Card finds a card anywhere on the board.
// It returns the card, its column and its index within that column.
func (b *Board) Card(id string) (*Card, *Column, int) {
	for _, col := range b.Columns {
		for i, card := range col.Cards {
			if card.ID == id {
				return card, col, i
			}
		}
	}
	return nil, nil, -1
}

// CardCount returns the number of cards on the board.
func (b *Board) CardCount() int {
	n := 0
	for _, col := range b.Columns {
		n += len(col.Cards)
	}
	return n
}

// Clone deep-copies the board structure. Card children (checklist,
// attachments, labels) are shared because nothing in the engine mutates them.
func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}
	out := *b
	out.Columns = make([]*Column, len(b.Columns))
	for i, col := range b.Columns {
		c := *col
		c.Cards = make([]*Card, len(col.Cards))
		for j, card := range col.Cards {
			cc := *card
			c.Cards[j] = &cc
		}
		out.Columns[i] = &c
	}
	return &out
}
