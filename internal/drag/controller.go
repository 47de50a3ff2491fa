// Package drag implements the pointer-driven drag state machine.
//
// A Controller is driven from a single interaction loop (the Bubble Tea
// Update function) and is not safe for concurrent use. Observers on other
// goroutines follow it through Subscribe.
package drag

import (
	"errors"
	"fmt"
	"time"

	"github.com/robby/dragboard/internal/domain"
	"github.com/robby/dragboard/internal/layout"
	"github.com/robby/dragboard/internal/resolve"
)

// State of the drag session.
type State int

const (
	Idle State = iota
	Armed
	Dragging
	Dropped
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Dragging:
		return "dragging"
	case Dropped:
		return "dropped"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is what a Release amounted to.
type Outcome int

const (
	OutcomeNone Outcome = iota // release without a session
	OutcomeTap                 // press and release under the threshold
	OutcomeDropped
	OutcomeCancelled
)

// Config holds the interaction constants.
type Config struct {
	// Threshold is the pointer travel, in layout units, that turns a press
	// into a drag.
	Threshold float64
	Resolver  resolve.Config
}

// DefaultConfig returns values suited to a terminal grid.
func DefaultConfig() Config {
	return Config{
		Threshold: 1,
		Resolver:  resolve.DefaultConfig(),
	}
}

// Grab describes what a press landed on.
type Grab struct {
	Kind         domain.Kind
	ItemID       string
	BoardID      string
	SourceParent string // column ID for cards, board ID for columns
	SourceIndex  int
	Origin       domain.Point
}

// Session is the transient record of an in-progress drag.
type Session struct {
	Grab
	Pointer domain.Point
	Target  *resolve.Target // nil while no target is resolved
	Scroll  []resolve.ScrollIntent
	Stale   bool
}

// Move converts the session into a committed move. It returns false when
// no target is resolved.
func (s Session) Move() (domain.Move, bool) {
	if s.Target == nil {
		return domain.Move{}, false
	}
	return domain.Move{
		BoardID:    s.BoardID,
		Kind:       s.Kind,
		ItemID:     s.ItemID,
		FromParent: s.SourceParent,
		FromIndex:  s.SourceIndex,
		ToParent:   s.Target.Parent,
		ToIndex:    s.Target.Index,
	}, true
}

// Event is one entry of the drag-state stream.
type Event struct {
	State   State
	Session Session
	Err     error // set on a Dropped event whose move was refused
	At      time.Time
}

// Committer receives dropped moves.
type Committer interface {
	Submit(move domain.Move) error
}

// CommitterFunc adapts a function to Committer.
type CommitterFunc func(domain.Move) error

// Submit calls f.
func (f CommitterFunc) Submit(m domain.Move) error { return f(m) }

// SnapshotSource provides the latest committed layout.
type SnapshotSource interface {
	Snapshot() *layout.Snapshot
}

// ErrBusy is returned by Press while another session is active.
var ErrBusy = errors.New("drag session already active")

// Controller is the drag state machine.
type Controller struct {
	cfg       Config
	layout    SnapshotSource
	committer Committer
	now       func() time.Time

	state   State
	session Session
	last    Event

	subs   map[int]chan Event
	nextID int
}

// NewController creates an idle controller.
func NewController(cfg Config, src SnapshotSource, committer Committer) *Controller {
	return &Controller{
		cfg:       cfg,
		layout:    src,
		committer: committer,
		now:       time.Now,
		subs:      make(map[int]chan Event),
		last:      Event{State: Idle},
	}
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Active reports whether a session exists.
func (c *Controller) Active() bool {
	return c.state == Armed || c.state == Dragging
}

// Current returns the latest published event.
func (c *Controller) Current() Event { return c.last }

// Press arms a new session. Presses while a session is active are ignored.
func (c *Controller) Press(g Grab) error {
	if c.state != Idle {
		return fmt.Errorf("%w: %s %s", ErrBusy, c.session.Kind, c.session.ItemID)
	}
	c.session = Session{Grab: g, Pointer: g.Origin}
	c.state = Armed
	c.publish(nil)
	return nil
}

// Motion feeds a pointer move. In Dragging it re-resolves the target and
// returns the resolution so the caller can act on scroll intents.
func (c *Controller) Motion(p domain.Point) resolve.Resolution {
	switch c.state {
	case Armed:
		c.session.Pointer = p
		if p.Distance(c.session.Origin) <= c.cfg.Threshold {
			return resolve.Resolution{}
		}
		c.state = Dragging
	case Dragging:
		c.session.Pointer = p
	default:
		return resolve.Resolution{}
	}

	res := c.resolve(p)
	c.publish(nil)
	return res
}

// Refresh re-resolves at the current pointer, typically after the layout
// changed underneath a stationary pointer (auto-scroll).
func (c *Controller) Refresh() resolve.Resolution {
	if c.state != Dragging {
		return resolve.Resolution{}
	}
	res := c.resolve(c.session.Pointer)
	c.publish(nil)
	return res
}

// Release ends the session. A drop with a resolved target is handed to the
// committer exactly once; the committer's error is returned and published.
func (c *Controller) Release(p domain.Point) (Outcome, error) {
	switch c.state {
	case Armed:
		c.finish(Idle, nil)
		return OutcomeTap, nil
	case Dragging:
	default:
		return OutcomeNone, nil
	}

	c.session.Pointer = p
	c.resolve(p)
	move, ok := c.session.Move()
	if !ok {
		c.finish(Cancelled, nil)
		return OutcomeCancelled, nil
	}

	var err error
	if c.committer != nil {
		err = c.committer.Submit(move)
	}
	c.finish(Dropped, err)
	return OutcomeDropped, err
}

// Cancel aborts any active session without committing anything.
func (c *Controller) Cancel() {
	if !c.Active() {
		return
	}
	c.finish(Cancelled, nil)
}

// Subscribe returns a stream of drag events and a function that ends the
// subscription. Sends never block: a subscriber that falls behind by more
// than buffer events misses the surplus.
func (c *Controller) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, max(buffer, 1))
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	return ch, func() {
		if _, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(ch)
		}
	}
}

func (c *Controller) resolve(p domain.Point) resolve.Resolution {
	var snap *layout.Snapshot
	if c.layout != nil {
		snap = c.layout.Snapshot()
	}
	res := resolve.Resolve(c.cfg.Resolver, resolve.Request{
		Kind:         c.session.Kind,
		ItemID:       c.session.ItemID,
		BoardID:      c.session.BoardID,
		SourceParent: c.session.SourceParent,
		Pointer:      p,
		Now:          c.now(),
	}, snap)

	c.session.Scroll = res.Scroll
	c.session.Stale = res.Stale
	if res.OK {
		t := res.Target
		c.session.Target = &t
	} else {
		c.session.Target = nil
	}
	return res
}

// finish publishes the terminal state and returns to Idle.
func (c *Controller) finish(terminal State, err error) {
	if terminal != Idle {
		c.state = terminal
		c.publish(err)
	}
	c.state = Idle
	c.session = Session{}
	c.publish(nil)
}

func (c *Controller) publish(err error) {
	ev := Event{State: c.state, Session: c.session, Err: err, At: c.now()}
	if c.session.Target != nil {
		t := *c.session.Target
		ev.Session.Target = &t
	}
	c.last = ev
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
