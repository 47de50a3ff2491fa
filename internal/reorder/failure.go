package reorder

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/robby/dragboard/internal/domain"
)

// Failure reports a move whose durable write failed and was rolled back.
type Failure struct {
	BoardID   string
	Move      domain.Move
	Discarded []domain.Move // later moves undone by the same rollback
	Err       error         // wraps domain.ErrPersistence
	At        time.Time
}

func (f Failure) Error() string {
	return fmt.Sprintf("move %s %s: %v", f.Move.Kind, f.Move.ItemID, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// FailureSink receives reorder failures. Implementations are called from
// executor goroutines and must not block for long.
type FailureSink interface {
	ReportFailure(f Failure)
}

// SinkFunc adapts a function to FailureSink.
type SinkFunc func(Failure)

// ReportFailure calls fn.
func (fn SinkFunc) ReportFailure(f Failure) { fn(f) }

// ChanSink forwards failures to a channel without blocking. Failures that do
// not fit are logged by Fallback when set and dropped otherwise.
type ChanSink struct {
	C        chan<- Failure
	Fallback FailureSink
}

// ReportFailure implements FailureSink.
func (s ChanSink) ReportFailure(f Failure) {
	select {
	case s.C <- f:
	default:
		if s.Fallback != nil {
			s.Fallback.ReportFailure(f)
		}
	}
}

// LogSink writes failures to a logger.
type LogSink struct {
	Logger *log.Logger
}

// ReportFailure implements FailureSink.
func (s LogSink) ReportFailure(f Failure) {
	s.Logger.WithFields(log.Fields{
		"board":     f.BoardID,
		"kind":      f.Move.Kind.String(),
		"item":      f.Move.ItemID,
		"discarded": len(f.Discarded),
	}).WithError(f.Err).Warn("Reorder failed")
}

// MultiSink fans a failure out to several sinks in order.
type MultiSink []FailureSink

// ReportFailure implements FailureSink.
func (m MultiSink) ReportFailure(f Failure) {
	for _, s := range m {
		s.ReportFailure(f)
	}
}

// Recorder keeps every failure it receives. It is handy for CLI runs that
// report at the end.
type Recorder struct {
	mu       sync.Mutex
	failures []Failure
}

// ReportFailure implements FailureSink.
func (r *Recorder) ReportFailure(f Failure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, f)
}

// Failures returns a copy of the recorded failures.
func (r *Recorder) Failures() []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Failure, len(r.failures))
	copy(out, r.failures)
	return out
}
