// Package layout keeps the latest on-screen geometry of every rendered
// column and card, keyed by element ID.
//
// The rendering layer pushes rectangles during a layout pass and commits the
// pass; readers only ever see committed, immutable snapshots.
package layout

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/robby/dragboard/internal/domain"
)

// ElementKind classifies tracked elements.
type ElementKind int

const (
	ColumnHeader ElementKind = iota
	ColumnBody
	Card
)

func (k ElementKind) String() string {
	switch k {
	case ColumnHeader:
		return "column-header"
	case ColumnBody:
		return "column-body"
	case Card:
		return "card"
	default:
		return "unknown"
	}
}

// Axis is the scrolling direction of a list.
type Axis int

const (
	Vertical Axis = iota
	Horizontal
)

// Key identifies a tracked element.
type Key struct {
	Kind ElementKind
	ID   string
}

// Element is one rendered element.
//
// Rect is expressed in the list's content space; the on-screen rectangle is
// Rect shifted by -Scroll. Parent is the owning column ID for cards and the
// board ID for column headers and bodies. List names the scrollable list the
// element belongs to; it is matched against registered viewports.
type Element struct {
	Key    Key
	Parent string
	List   string
	Rect   domain.Rect
	Scroll domain.Point
	seq    uint64
}

// Screen returns the scroll-adjusted rectangle.
func (e Element) Screen() domain.Rect {
	return e.Rect.Translate(-e.Scroll.X, -e.Scroll.Y)
}

// Seq returns the update sequence number. Higher means more recent.
func (e Element) Seq() uint64 { return e.seq }

// Viewport is the visible window of a scrollable list, in screen space.
type Viewport struct {
	List   string
	Axis   Axis
	Rect   domain.Rect
	Scroll domain.Point
}

// Tracker collects layout pushes. Writers call Update/SetViewport/Forget
// during a layout pass and Commit at the end of it.
type Tracker struct {
	mu        sync.Mutex
	elements  map[Key]Element
	viewports map[string]Viewport
	seq       uint64
	gen       uint64

	current atomic.Pointer[Snapshot]
	now     func() time.Time
}

// NewTracker creates an empty tracker with an empty committed snapshot.
func NewTracker() *Tracker {
	t := &Tracker{
		elements:  make(map[Key]Element),
		viewports: make(map[string]Viewport),
		now:       time.Now,
	}
	t.current.Store(&Snapshot{
		elements:  map[Key]Element{},
		viewports: map[string]Viewport{},
		takenAt:   t.now(),
	})
	return t
}

// Update overwrites the pending entry for e.Key.
func (t *Tracker) Update(e Element) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	e.seq = t.seq
	t.elements[e.Key] = e
}

// SetViewport records the visible window of a list.
func (t *Tracker) SetViewport(v Viewport) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.viewports[v.List] = v
}

// Forget drops an element that is no longer rendered.
func (t *Tracker) Forget(k Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.elements, k)
}

// Reset drops every pending element and viewport. A layout pass that redraws
// everything calls Reset first so vanished elements do not linger.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.elements = make(map[Key]Element, len(t.elements))
	t.viewports = make(map[string]Viewport, len(t.viewports))
}

// Commit publishes the pending state as the current snapshot.
func (t *Tracker) Commit() *Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gen++
	snap := &Snapshot{
		elements:   make(map[Key]Element, len(t.elements)),
		viewports:  make(map[string]Viewport, len(t.viewports)),
		generation: t.gen,
		takenAt:    t.now(),
	}
	for k, e := range t.elements {
		snap.elements[k] = e
	}
	for k, v := range t.viewports {
		snap.viewports[k] = v
	}
	t.current.Store(snap)
	return snap
}

// Snapshot returns the last committed snapshot. It never returns nil.
func (t *Tracker) Snapshot() *Snapshot {
	return t.current.Load()
}
