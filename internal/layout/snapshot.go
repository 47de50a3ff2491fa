package layout

import (
	"sort"
	"time"

	"github.com/robby/dragboard/internal/domain"
)

// Snapshot is an immutable copy of one committed layout pass.
type Snapshot struct {
	elements   map[Key]Element
	viewports  map[string]Viewport
	generation uint64
	takenAt    time.Time
}

// Generation returns the commit counter of the pass this snapshot captured.
func (s *Snapshot) Generation() uint64 { return s.generation }

// TakenAt returns the commit time.
func (s *Snapshot) TakenAt() time.Time { return s.takenAt }

// Len returns the number of tracked elements.
func (s *Snapshot) Len() int { return len(s.elements) }

// Element looks up a single element.
func (s *Snapshot) Element(k Key) (Element, bool) {
	e, ok := s.elements[k]
	return e, ok
}

// Viewport looks up the viewport of a list.
func (s *Snapshot) Viewport(list string) (Viewport, bool) {
	v, ok := s.viewports[list]
	return v, ok
}

// Viewports returns all viewports ordered by list name.
func (s *Snapshot) Viewports() []Viewport {
	out := make([]Viewport, 0, len(s.viewports))
	for _, v := range s.viewports {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].List < out[j].List })
	return out
}

// Elements returns all elements of a kind, optionally restricted to one
// parent (empty parent matches all). Cards are ordered top to bottom and
// columns left to right, on screen.
func (s *Snapshot) Elements(kind ElementKind, parent string) []Element {
	var out []Element
	for _, e := range s.elements {
		if e.Key.Kind != kind {
			continue
		}
		if parent != "" && e.Parent != parent {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Screen(), out[j].Screen()
		if kind == Card {
			if a.Y != b.Y {
				return a.Y < b.Y
			}
		} else if a.X != b.X {
			return a.X < b.X
		}
		return out[i].Key.ID < out[j].Key.ID
	})
	return out
}

// Hit reports whether p falls inside the element's on-screen rectangle and,
// when its list has a registered viewport, inside that viewport too.
func (s *Snapshot) Hit(e Element, p domain.Point) bool {
	if !e.Screen().Contains(p) {
		return false
	}
	if v, ok := s.viewports[e.List]; ok && !v.Rect.Contains(p) {
		return false
	}
	return true
}

// ContainingElement returns the innermost element under p: a card, else a
// column body, else a column header. When several elements of the same kind
// overlap, the most recently updated one wins.
func (s *Snapshot) ContainingElement(p domain.Point) (Element, bool) {
	for _, kind := range []ElementKind{Card, ColumnBody, ColumnHeader} {
		var (
			best  Element
			found bool
		)
		for _, e := range s.elements {
			if e.Key.Kind != kind || !s.Hit(e, p) {
				continue
			}
			if !found || e.seq > best.seq {
				best, found = e, true
			}
		}
		if found {
			return best, true
		}
	}
	return Element{}, false
}
