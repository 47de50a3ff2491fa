// Package ordered manages position-indexed siblings inside one parent scope.
//
// Every mutating call renumbers the affected scope(s) so that, afterwards,
// item i carries position i. Sibling counts are small (tens), so the O(n)
// renumbering per move is fine.
package ordered

import (
	"fmt"

	"github.com/robby/dragboard/internal/domain"
)

// Item is an element that can live in a Collection.
type Item interface {
	Key() string
	SetPosition(pos int)
}

// Positioned is an Item that also exposes its current position, which lets
// Validate check the invariant.
type Positioned interface {
	Item
	GetPosition() int
}

// Collection is an ordered sibling list. It operates on the slice it was
// built from; callers that need the result read it back with Items.
type Collection[T Item] struct {
	items []T
}

// From wraps items without renumbering them.
func From[T Item](items []T) *Collection[T] {
	return &Collection[T]{items: items}
}

// Items returns the underlying slice in order.
func (c *Collection[T]) Items() []T {
	return c.items
}

// Len returns the number of siblings.
func (c *Collection[T]) Len() int {
	return len(c.items)
}

// IndexOf returns the index of the item with the given key, or -1.
func (c *Collection[T]) IndexOf(id string) int {
	for i, it := range c.items {
		if it.Key() == id {
			return i
		}
	}
	return -1
}

// Insert places item at index at, shifting later siblings by one.
func (c *Collection[T]) Insert(item T, at int) error {
	if at < 0 || at > len(c.items) {
		return fmt.Errorf("%w: insert at %d, size %d", domain.ErrInvalidIndex, at, len(c.items))
	}
	var zero T
	c.items = append(c.items, zero)
	copy(c.items[at+1:], c.items[at:])
	c.items[at] = item
	c.renumber(at)
	return nil
}

// RemoveByID removes the item with the given key and closes the gap.
func (c *Collection[T]) RemoveByID(id string) (T, error) {
	var zero T
	idx := c.IndexOf(id)
	if idx < 0 {
		return zero, fmt.Errorf("%w: %s not found", domain.ErrInvalidMove, id)
	}
	item := c.items[idx]
	c.items = append(c.items[:idx], c.items[idx+1:]...)
	c.renumber(idx)
	return item, nil
}

// MoveWithinParent moves an item to newIndex, which is its index in the final
// order (equivalently, the insertion point once the item has been taken out).
// It reports whether anything changed; moving an item onto its own index
// leaves the collection untouched.
func (c *Collection[T]) MoveWithinParent(id string, newIndex int) (bool, error) {
	from := c.IndexOf(id)
	if from < 0 {
		return false, fmt.Errorf("%w: %s not found", domain.ErrInvalidMove, id)
	}
	if newIndex < 0 || newIndex > len(c.items)-1 {
		return false, fmt.Errorf("%w: move to %d, size %d", domain.ErrInvalidIndex, newIndex, len(c.items)-1)
	}
	if from == newIndex {
		return false, nil
	}

	item := c.items[from]
	if from < newIndex {
		copy(c.items[from:newIndex], c.items[from+1:newIndex+1])
	} else {
		copy(c.items[newIndex+1:from+1], c.items[newIndex:from])
	}
	c.items[newIndex] = item
	c.renumber(min(from, newIndex))
	return true, nil
}

// MoveAcrossParents moves the item with key id from one scope into another
// at newIndex. Both scopes are renumbered. The index is checked before
// anything is touched so a failed call leaves both scopes intact.
func MoveAcrossParents[T Item](from, to *Collection[T], id string, newIndex int) error {
	idx := from.IndexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s not found", domain.ErrInvalidMove, id)
	}
	if newIndex < 0 || newIndex > to.Len() {
		return fmt.Errorf("%w: insert at %d, size %d", domain.ErrInvalidIndex, newIndex, to.Len())
	}
	item, err := from.RemoveByID(id)
	if err != nil {
		return err
	}
	return to.Insert(item, newIndex)
}

// Renumber rewrites every position to match the current order.
func (c *Collection[T]) Renumber() {
	c.renumber(0)
}

func (c *Collection[T]) renumber(start int) {
	for i := start; i < len(c.items); i++ {
		c.items[i].SetPosition(i)
	}
}

// Validate reports the first sibling whose position differs from its index.
// Duplicate positions are caught by the same check.
func Validate[T Positioned](items []T) error {
	for i, it := range items {
		if it.GetPosition() != i {
			return fmt.Errorf("%s at index %d has position %d", it.Key(), i, it.GetPosition())
		}
	}
	return nil
}
