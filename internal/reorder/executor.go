// Package reorder applies committed moves optimistically and persists them
// in order, one board at a time.
package reorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/robby/dragboard/internal/domain"
	"github.com/robby/dragboard/internal/store"
)

var (
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("executor closed")
	// ErrPending is returned by Load while moves of the board are queued.
	ErrPending = errors.New("board has unsaved moves")
)

// DefaultTimeout bounds a single gateway call.
const DefaultTimeout = 10 * time.Second

// Gateway persists moves. Each call must renumber the affected siblings on
// the storage side so that positions stay dense.
type Gateway interface {
	MoveCard(ctx context.Context, cardID, destColumnID string, destIndex int) error
	MoveColumn(ctx context.Context, columnID string, destIndex int) error
}

type job struct {
	move domain.Move
	prev *domain.Board // snapshot before the optimistic apply
}

// boardQueue is the FIFO of one board. jobs[0] is in flight while running.
type boardQueue struct {
	mu      sync.Mutex
	jobs    []job
	running bool
}

// Executor is the reorder pipeline. It is safe for concurrent use.
type Executor struct {
	ctx     context.Context
	cancel  context.CancelFunc
	store   *store.Store
	gateway Gateway
	sink    FailureSink
	logger  *log.Logger
	timeout time.Duration

	mu      sync.Mutex
	idle    *sync.Cond
	queues  map[string]*boardQueue
	workers int
	closed  bool
}

// Options configure an Executor. Zero values pick defaults.
type Options struct {
	Sink    FailureSink
	Logger  *log.Logger
	Timeout time.Duration
}

// New creates an executor writing to st and persisting through gw.
// Cancelling ctx aborts in-flight gateway calls, which then roll back.
func New(ctx context.Context, st *store.Store, gw Gateway, opts Options) *Executor {
	if opts.Logger == nil {
		opts.Logger = log.New()
	}
	if opts.Sink == nil {
		opts.Sink = LogSink{Logger: opts.Logger}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	ctx, cancel := context.WithCancel(ctx)
	e := &Executor{
		ctx:     ctx,
		cancel:  cancel,
		store:   st,
		gateway: gw,
		sink:    opts.Sink,
		logger:  opts.Logger,
		timeout: opts.Timeout,
		queues:  make(map[string]*boardQueue),
	}
	e.idle = sync.NewCond(&e.mu)
	return e
}

// Submit applies m to the store and schedules its durable write. It never
// blocks on the gateway. Moves onto the item's own index return nil without
// scheduling anything.
//
// Errors are domain.ErrInvalidIndex, domain.ErrInvalidMove,
// store.ErrBoardNotFound or ErrClosed; in every case the store is untouched.
func (e *Executor) Submit(m domain.Move) error {
	q, err := e.queue(m.BoardID)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	// Close must not slip in between the apply and the worker taking the job.
	spawn := !q.running
	if err := e.admit(spawn); err != nil {
		return err
	}

	prev, changed, err := e.store.Apply(m)
	if err != nil || !changed {
		if spawn {
			e.release()
		}
		if err != nil {
			e.logger.WithFields(moveFields(m)).WithError(err).Warn("Rejected move")
			return err
		}
		e.logger.WithFields(moveFields(m)).Debug("Move is a no-op")
		return nil
	}

	q.jobs = append(q.jobs, job{move: m, prev: prev})
	e.logger.WithFields(moveFields(m)).WithField("queued", len(q.jobs)).Debug("Move applied")
	if spawn {
		q.running = true
		go e.run(q, m.BoardID)
	}
	return nil
}

// Load puts a freshly fetched board into the store. It refuses while moves
// of that board are queued, since their rollback snapshots predate b and
// restoring one would bring back the replaced board.
func (e *Executor) Load(b *domain.Board) error {
	e.mu.Lock()
	q := e.queueLocked(b.ID)
	e.mu.Unlock()

	q.mu.Lock()
	defer q.mu.Unlock()
	if n := len(q.jobs); n > 0 {
		return fmt.Errorf("%w: %s has %d", ErrPending, b.ID, n)
	}
	e.store.SetBoard(b)
	return nil
}

// Pending returns the number of moves of a board not yet persisted,
// including the one in flight.
func (e *Executor) Pending(boardID string) int {
	e.mu.Lock()
	q, ok := e.queues[boardID]
	e.mu.Unlock()
	if !ok {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Wait blocks until every queue has drained.
func (e *Executor) Wait() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.workers > 0 {
		e.idle.Wait()
	}
}

// Close stops accepting moves and waits for queued ones to settle.
func (e *Executor) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.Wait()
	e.cancel()
}

func (e *Executor) queue(boardID string) (*boardQueue, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	return e.queueLocked(boardID), nil
}

func (e *Executor) queueLocked(boardID string) *boardQueue {
	q, ok := e.queues[boardID]
	if !ok {
		q = &boardQueue{}
		e.queues[boardID] = q
	}
	return q
}

// admit fails with ErrClosed once Close has begun. With spawn it also counts
// a new worker, so Wait cannot return before that worker exits.
func (e *Executor) admit(spawn bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if spawn {
		e.workers++
	}
	return nil
}

// release gives back a worker slot taken by admit that was never used.
func (e *Executor) release() {
	e.mu.Lock()
	e.workers--
	e.idle.Broadcast()
	e.mu.Unlock()
}

// run drains one board queue. The head job stays queued while its gateway
// call is in flight so a concurrent Submit only appends behind it.
func (e *Executor) run(q *boardQueue, boardID string) {
	defer func() {
		e.mu.Lock()
		e.workers--
		e.idle.Broadcast()
		e.mu.Unlock()
	}()

	for {
		q.mu.Lock()
		if len(q.jobs) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		head := q.jobs[0]
		q.mu.Unlock()

		start := time.Now()
		err := e.persist(head.move)

		q.mu.Lock()
		q.jobs = q.jobs[1:]
		if err == nil {
			q.mu.Unlock()
			e.logger.WithFields(moveFields(head.move)).WithField("took", time.Since(start)).Debug("Move persisted")
			continue
		}

		// The pre-move snapshot of the failed job predates every move queued
		// behind it, so restoring it undoes those as well.
		discarded := make([]domain.Move, 0, len(q.jobs))
		for _, j := range q.jobs {
			discarded = append(discarded, j.move)
		}
		q.jobs = nil
		e.store.Restore(head.prev)
		q.mu.Unlock()

		f := Failure{
			BoardID:   boardID,
			Move:      head.move,
			Discarded: discarded,
			Err:       err,
			At:        time.Now(),
		}
		e.logger.WithFields(moveFields(head.move)).WithError(err).WithField("discarded", len(discarded)).Error("Move rolled back")
		e.sink.ReportFailure(f)
	}
}

func (e *Executor) persist(m domain.Move) error {
	ctx, cancel := context.WithTimeout(e.ctx, e.timeout)
	defer cancel()

	var err error
	switch m.Kind {
	case domain.KindCard:
		err = e.gateway.MoveCard(ctx, m.ItemID, m.ToParent, m.ToIndex)
	case domain.KindColumn:
		err = e.gateway.MoveColumn(ctx, m.ItemID, m.ToIndex)
	default:
		err = fmt.Errorf("unknown move kind %d", m.Kind)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	return nil
}

func moveFields(m domain.Move) log.Fields {
	return log.Fields{
		"board": m.BoardID,
		"kind":  m.Kind.String(),
		"item":  m.ItemID,
		"to":    m.ToParent,
		"index": m.ToIndex,
	}
}
