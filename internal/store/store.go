// Package store holds the in-memory board model shared by the reorder
// executor and the rendering layer.
//
// Boards are published as immutable snapshots: every mutation clones the
// board, changes the clone and swaps it in. Readers may keep a snapshot for
// as long as they like without locking.
package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/robby/dragboard/internal/domain"
	"github.com/robby/dragboard/internal/ordered"
)

var (
	// ErrBoardNotFound indicates the requested board is not loaded.
	ErrBoardNotFound = errors.New("board not found")
	// ErrCardNotFound indicates the requested card does not exist.
	ErrCardNotFound = errors.New("card not found")
	// ErrColumnNotFound indicates the requested column does not exist.
	ErrColumnNotFound = errors.New("column not found")
)

// Reason tells subscribers why a board changed.
type Reason int

const (
	ReasonLoad    Reason = iota // board replaced from a backend
	ReasonApply                 // optimistic move applied
	ReasonRestore               // rolled back to a previous snapshot
	ReasonRemove                // board dropped from the store
)

func (r Reason) String() string {
	switch r {
	case ReasonLoad:
		return "load"
	case ReasonApply:
		return "apply"
	case ReasonRestore:
		return "restore"
	case ReasonRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Update is one entry of the board snapshot stream.
type Update struct {
	BoardID string
	Board   *domain.Board // nil for ReasonRemove
	Reason  Reason
	Move    *domain.Move // set for ReasonApply
}

// Store manages the current snapshot of every loaded board.
type Store struct {
	mu     sync.RWMutex
	boards map[string]*domain.Board // BoardID -> immutable snapshot

	subMu  sync.Mutex
	subs   map[int]chan Update
	nextID int
}

// New creates a new empty Store instance.
func New() *Store {
	return &Store{
		boards: make(map[string]*domain.Board),
		subs:   make(map[int]chan Update),
	}
}

// SetBoard loads or replaces a board. The store keeps its own copy and
// renumbers it so the stored snapshot always satisfies the position
// invariant.
func (s *Store) SetBoard(b *domain.Board) {
	snap := b.Clone()
	ordered.From(snap.Columns).Renumber()
	for _, col := range snap.Columns {
		col.BoardID = snap.ID
		ordered.From(col.Cards).Renumber()
		for _, card := range col.Cards {
			card.ColumnID = col.ID
		}
	}

	s.mu.Lock()
	s.boards[snap.ID] = snap
	s.mu.Unlock()

	s.publish(Update{BoardID: snap.ID, Board: snap, Reason: ReasonLoad})
}

// Board returns the current snapshot of a board. The returned value is
// shared and must not be modified.
func (s *Store) Board(id string) (*domain.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.boards[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBoardNotFound, id)
	}
	return b, nil
}

// Boards returns all loaded boards ordered by position, then name.
func (s *Store) Boards() []*domain.Board {
	s.mu.RLock()
	out := make([]*domain.Board, 0, len(s.boards))
	for _, b := range s.boards {
		out = append(out, b)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// GetCard retrieves a card by ID, returning ErrCardNotFound if not found.
func (s *Store) GetCard(boardID, cardID string) (*domain.Card, error) {
	b, err := s.Board(boardID)
	if err != nil {
		return nil, err
	}
	card, _, _ := b.Card(cardID)
	if card == nil {
		return nil, fmt.Errorf("%w: %s", ErrCardNotFound, cardID)
	}
	return card, nil
}

// Apply performs an optimistic move on the board named by m.BoardID.
// It returns the snapshot that was current before the move, so the caller
// can restore it, and whether anything changed. A move onto the item's own
// index reports changed=false and publishes nothing.
//
// The item is located by ID; m.FromParent and m.FromIndex are informational.
func (s *Store) Apply(m domain.Move) (prev *domain.Board, changed bool, err error) {
	s.mu.Lock()
	prev, ok := s.boards[m.BoardID]
	if !ok {
		s.mu.Unlock()
		return nil, false, fmt.Errorf("%w: %s", ErrBoardNotFound, m.BoardID)
	}

	next := prev.Clone()
	switch m.Kind {
	case domain.KindCard:
		changed, err = applyCardMove(next, m)
	case domain.KindColumn:
		changed, err = applyColumnMove(next, m)
	default:
		err = fmt.Errorf("%w: unknown kind %d", domain.ErrInvalidMove, m.Kind)
	}
	if err != nil || !changed {
		s.mu.Unlock()
		return prev, false, err
	}
	s.boards[m.BoardID] = next
	s.mu.Unlock()

	mv := m
	s.publish(Update{BoardID: m.BoardID, Board: next, Reason: ReasonApply, Move: &mv})
	return prev, true, nil
}

// Restore puts a previously captured snapshot back in place.
func (s *Store) Restore(b *domain.Board) {
	if b == nil {
		return
	}
	s.mu.Lock()
	s.boards[b.ID] = b
	s.mu.Unlock()

	s.publish(Update{BoardID: b.ID, Board: b, Reason: ReasonRestore})
}

// RemoveBoard drops a board from the store.
func (s *Store) RemoveBoard(id string) {
	s.mu.Lock()
	_, ok := s.boards[id]
	delete(s.boards, id)
	s.mu.Unlock()

	if ok {
		s.publish(Update{BoardID: id, Reason: ReasonRemove})
	}
}

// Subscribe returns a stream of board updates and a function that ends the
// subscription. Sends never block; a subscriber more than buffer updates
// behind misses the surplus and should re-read Board.
func (s *Store) Subscribe(buffer int) (<-chan Update, func()) {
	ch := make(chan Update, max(buffer, 1))

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
}

// Clear drops every board but keeps subscribers.
func (s *Store) Clear() {
	s.mu.Lock()
	s.boards = make(map[string]*domain.Board)
	s.mu.Unlock()
}

// Reset drops every board and closes every subscription.
func (s *Store) Reset() {
	s.Clear()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Store) publish(u Update) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

func applyCardMove(b *domain.Board, m domain.Move) (bool, error) {
	card, src, _ := b.Card(m.ItemID)
	if card == nil {
		return false, fmt.Errorf("%w: card %s not on board %s", domain.ErrInvalidMove, m.ItemID, b.ID)
	}
	dst, _ := b.Column(m.ToParent)
	if dst == nil {
		return false, fmt.Errorf("%w: column %s not on board %s", domain.ErrInvalidMove, m.ToParent, b.ID)
	}

	if src == dst {
		cards := ordered.From(src.Cards)
		changed, err := cards.MoveWithinParent(card.ID, m.ToIndex)
		if err != nil {
			return false, err
		}
		src.Cards = cards.Items()
		return changed, nil
	}

	from, to := ordered.From(src.Cards), ordered.From(dst.Cards)
	if err := ordered.MoveAcrossParents(from, to, card.ID, m.ToIndex); err != nil {
		return false, err
	}
	src.Cards, dst.Cards = from.Items(), to.Items()
	card.ColumnID = dst.ID
	return true, nil
}

func applyColumnMove(b *domain.Board, m domain.Move) (bool, error) {
	if m.ToParent != "" && m.ToParent != b.ID {
		return false, fmt.Errorf("%w: columns cannot leave board %s", domain.ErrInvalidMove, b.ID)
	}
	cols := ordered.From(b.Columns)
	changed, err := cols.MoveWithinParent(m.ItemID, m.ToIndex)
	if err != nil {
		return false, err
	}
	b.Columns = cols.Items()
	return changed, nil
}
