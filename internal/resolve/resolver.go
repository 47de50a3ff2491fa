// Package resolve maps a pointer position and a layout snapshot to a drop
// target. Everything here is pure and cheap enough to run on every pointer
// motion event.
package resolve

import (
	"time"

	"github.com/robby/dragboard/internal/domain"
	"github.com/robby/dragboard/internal/layout"
)

// Config holds the tunable constants of target resolution.
type Config struct {
	// EdgeBand is the width of the auto-scroll band along each viewport
	// edge, in layout units.
	EdgeBand float64
	// MaxScrollStep is the scroll delta reported at full band penetration.
	MaxScrollStep float64
	// StaleAfter flags snapshots older than this. Zero disables the check.
	StaleAfter time.Duration
}

// DefaultConfig returns values suited to a terminal grid.
func DefaultConfig() Config {
	return Config{
		EdgeBand:      2,
		MaxScrollStep: 1,
		StaleAfter:    250 * time.Millisecond,
	}
}

// Request describes what is being dragged and where the pointer is.
type Request struct {
	Kind         domain.Kind
	ItemID       string
	BoardID      string
	SourceParent string
	Pointer      domain.Point
	Now          time.Time
}

// Target is a resolved drop location. For cards Parent is a column ID, for
// columns it is the board ID. Index is the final index of the dragged item
// within Parent once the move is applied.
type Target struct {
	Parent string
	Index  int
}

// ScrollIntent asks the scrolling collaborator to scroll List by Delta along
// Axis. Negative deltas scroll towards the start of the list.
type ScrollIntent struct {
	List  string
	Axis  layout.Axis
	Delta float64
}

// Resolution is the outcome of one resolution call.
type Resolution struct {
	Target Target
	OK     bool // false means "no target"; a drop then cancels
	Scroll []ScrollIntent
	Stale  bool
}

// Resolve computes the drop target for req against snap.
func Resolve(cfg Config, req Request, snap *layout.Snapshot) Resolution {
	var res Resolution
	if snap == nil {
		return res
	}

	if cfg.StaleAfter > 0 && !req.Now.IsZero() && req.Now.Sub(snap.TakenAt()) > cfg.StaleAfter {
		res.Stale = true
	}

	switch req.Kind {
	case domain.KindCard:
		res.Target, res.OK = resolveCard(req, snap)
	case domain.KindColumn:
		res.Target, res.OK = resolveColumn(req, snap)
	}
	res.Scroll = scrollIntents(cfg, req, snap)
	return res
}

// resolveCard finds the column under the pointer, then counts the cards of
// that column, other than the dragged one, whose vertical midpoint lies
// strictly above the pointer.
func resolveCard(req Request, snap *layout.Snapshot) (Target, bool) {
	hit, ok := snap.ContainingElement(req.Pointer)
	if !ok {
		return Target{}, false
	}

	var columnID string
	switch hit.Key.Kind {
	case layout.Card:
		columnID = hit.Parent
	case layout.ColumnBody:
		columnID = hit.Key.ID
	case layout.ColumnHeader:
		// Dropping on a header puts the card on top of that column.
		return Target{Parent: hit.Key.ID, Index: 0}, true
	}
	if columnID == "" {
		return Target{}, false
	}

	index := 0
	for _, e := range snap.Elements(layout.Card, columnID) {
		if e.Key.ID == req.ItemID {
			continue
		}
		if e.Screen().MidY() < req.Pointer.Y {
			index++
		}
	}
	return Target{Parent: columnID, Index: index}, true
}

// resolveColumn applies the same midpoint rule horizontally over the column
// headers of the board row, ignoring the dragged column itself.
func resolveColumn(req Request, snap *layout.Snapshot) (Target, bool) {
	if !insideBoard(req, snap) {
		return Target{}, false
	}

	index := 0
	for _, e := range snap.Elements(layout.ColumnHeader, req.BoardID) {
		if e.Key.ID == req.ItemID {
			continue
		}
		if e.Screen().MidX() < req.Pointer.X {
			index++
		}
	}
	return Target{Parent: req.BoardID, Index: index}, true
}

// insideBoard reports whether the pointer is over any tracked element or
// inside the viewport of the board's column row.
func insideBoard(req Request, snap *layout.Snapshot) bool {
	if _, ok := snap.ContainingElement(req.Pointer); ok {
		return true
	}
	for _, e := range snap.Elements(layout.ColumnHeader, req.BoardID) {
		if v, ok := snap.Viewport(e.List); ok && v.Rect.Contains(req.Pointer) {
			return true
		}
	}
	return false
}

// scrollIntents reports one intent per viewport whose edge band holds the
// pointer. The magnitude grows linearly with how deep the pointer sits in
// the band.
func scrollIntents(cfg Config, req Request, snap *layout.Snapshot) []ScrollIntent {
	if cfg.EdgeBand <= 0 || cfg.MaxScrollStep <= 0 {
		return nil
	}

	var out []ScrollIntent
	for _, v := range snap.Viewports() {
		if !v.Rect.Contains(req.Pointer) {
			continue
		}
		if req.Kind == domain.KindColumn && v.Axis != layout.Horizontal {
			continue
		}

		var lead, trail float64
		if v.Axis == layout.Vertical {
			lead = req.Pointer.Y - v.Rect.Y
			trail = v.Rect.Bottom() - req.Pointer.Y
		} else {
			lead = req.Pointer.X - v.Rect.X
			trail = v.Rect.Right() - req.Pointer.X
		}

		var delta float64
		switch {
		case lead < cfg.EdgeBand && lead <= trail:
			delta = -cfg.MaxScrollStep * (cfg.EdgeBand - lead) / cfg.EdgeBand
		case trail < cfg.EdgeBand:
			delta = cfg.MaxScrollStep * (cfg.EdgeBand - trail) / cfg.EdgeBand
		}
		if delta != 0 {
			out = append(out, ScrollIntent{List: v.List, Axis: v.Axis, Delta: delta})
		}
	}
	return out
}
