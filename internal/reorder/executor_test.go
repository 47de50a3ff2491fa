package reorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robby/dragboard/internal/domain"
	"github.com/robby/dragboard/internal/drag"
	"github.com/robby/dragboard/internal/layout"
	"github.com/robby/dragboard/internal/store"
)

var errDisk = errors.New("disk I/O error")

// fakeGateway records calls and can hold them open until released.
type fakeGateway struct {
	mu      sync.Mutex
	calls   []string
	fail    map[string]error
	block   chan struct{} // when set, calls wait for a receive or ctx.Done
	started chan string   // when set, receives each call key as it starts
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{fail: make(map[string]error)}
}

func (g *fakeGateway) MoveCard(ctx context.Context, cardID, destColumnID string, destIndex int) error {
	return g.call(ctx, fmt.Sprintf("card %s -> %s@%d", cardID, destColumnID, destIndex), cardID)
}

func (g *fakeGateway) MoveColumn(ctx context.Context, columnID string, destIndex int) error {
	return g.call(ctx, fmt.Sprintf("column %s -> %d", columnID, destIndex), columnID)
}

func (g *fakeGateway) call(ctx context.Context, key, item string) error {
	g.mu.Lock()
	g.calls = append(g.calls, key)
	err := g.fail[item]
	g.mu.Unlock()

	if g.started != nil {
		g.started <- key
	}
	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (g *fakeGateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.calls))
	copy(out, g.calls)
	return out
}

// createTestBoard returns A=[c1,c2], B=[c3].
func createTestBoard(id string) *domain.Board {
	return &domain.Board{
		ID:   id,
		Name: "Board " + id,
		Columns: []*domain.Column{
			{ID: id + "-A", Name: "A", Cards: []*domain.Card{{ID: id + "-c1"}, {ID: id + "-c2"}}},
			{ID: id + "-B", Name: "B", Cards: []*domain.Card{{ID: id + "-c3"}}},
		},
	}
}

func createTestExecutor(t *testing.T, gw Gateway, sink FailureSink) (*Executor, *store.Store) {
	t.Helper()
	st := store.New()
	st.SetBoard(createTestBoard("b1"))
	logger, _ := test.NewNullLogger()
	e := New(context.Background(), st, gw, Options{Sink: sink, Logger: logger, Timeout: time.Second})
	t.Cleanup(e.Close)
	return e, st
}

func layoutOf(b *domain.Board) map[string][]string {
	out := make(map[string][]string)
	for _, col := range b.Columns {
		ids := []string{}
		for _, c := range col.Cards {
			ids = append(ids, c.ID)
		}
		out[col.Name] = ids
	}
	return out
}

func cardMove(board, item, from string, fromIdx int, to string, toIdx int) domain.Move {
	return domain.Move{BoardID: board, Kind: domain.KindCard, ItemID: item, FromParent: from, FromIndex: fromIdx, ToParent: to, ToIndex: toIdx}
}

func TestExecutor_CrossColumnMovePersists(t *testing.T) {
	gw := newFakeGateway()
	rec := &Recorder{}
	e, st := createTestExecutor(t, gw, rec)

	require.NoError(t, e.Submit(cardMove("b1", "b1-c1", "b1-A", 0, "b1-B", 1)))
	e.Wait()

	b, err := st.Board("b1")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"A": {"b1-c2"}, "B": {"b1-c3", "b1-c1"}}, layoutOf(b))
	assert.Equal(t, 0, b.Columns[0].Cards[0].Position)
	assert.Equal(t, 0, b.Columns[1].Cards[0].Position)
	assert.Equal(t, 1, b.Columns[1].Cards[1].Position)
	require.NoError(t, domain.ValidatePositions(b))

	assert.Equal(t, []string{"card b1-c1 -> b1-B@1"}, gw.Calls())
	assert.Empty(t, rec.Failures())
}

func TestExecutor_FailureRollsBackAndReportsOnce(t *testing.T) {
	gw := newFakeGateway()
	gw.fail["b1-c1"] = errDisk
	rec := &Recorder{}
	e, st := createTestExecutor(t, gw, rec)
	original, _ := st.Board("b1")

	require.NoError(t, e.Submit(cardMove("b1", "b1-c1", "b1-A", 0, "b1-B", 1)))
	e.Wait()

	b, _ := st.Board("b1")
	assert.Equal(t, map[string][]string{"A": {"b1-c1", "b1-c2"}, "B": {"b1-c3"}}, layoutOf(b))
	assert.Same(t, original, b)
	require.NoError(t, domain.ValidatePositions(b))

	failures := rec.Failures()
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0].Err, domain.ErrPersistence)
	assert.ErrorIs(t, failures[0].Err, errDisk)
	assert.ErrorIs(t, failures[0], errDisk)
	assert.Equal(t, "b1-c1", failures[0].Move.ItemID)
	assert.Empty(t, failures[0].Discarded)
	assert.Len(t, gw.Calls(), 1, "no automatic retry")
}

func TestExecutor_OptimisticApplyIsImmediate(t *testing.T) {
	gw := newFakeGateway()
	gw.block = make(chan struct{})
	e, st := createTestExecutor(t, gw, nil)

	require.NoError(t, e.Submit(cardMove("b1", "b1-c2", "b1-A", 1, "b1-A", 0)))

	b, _ := st.Board("b1")
	assert.Equal(t, []string{"b1-c2", "b1-c1"}, layoutOf(b)["A"])
	assert.Equal(t, 1, e.Pending("b1"))

	close(gw.block)
	e.Wait()
	assert.Equal(t, 0, e.Pending("b1"))
}

func TestExecutor_SerializesPerBoard(t *testing.T) {
	gw := newFakeGateway()
	gw.block = make(chan struct{})
	gw.started = make(chan string, 8)
	e, st := createTestExecutor(t, gw, nil)

	require.NoError(t, e.Submit(cardMove("b1", "b1-c1", "b1-A", 0, "b1-B", 0)))
	require.NoError(t, e.Submit(cardMove("b1", "b1-c2", "b1-A", 0, "b1-B", 2)))

	assert.Equal(t, "card b1-c1 -> b1-B@0", <-gw.started)
	select {
	case key := <-gw.started:
		t.Fatalf("second call %q started while the first was in flight", key)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 2, e.Pending("b1"))

	gw.block <- struct{}{}
	assert.Equal(t, "card b1-c2 -> b1-B@2", <-gw.started)
	gw.block <- struct{}{}
	e.Wait()

	b, _ := st.Board("b1")
	assert.Equal(t, map[string][]string{"A": {}, "B": {"b1-c1", "b1-c3", "b1-c2"}}, layoutOf(b))
}

func TestExecutor_BoardsAreIndependent(t *testing.T) {
	gw := newFakeGateway()
	gw.block = make(chan struct{})
	gw.started = make(chan string, 8)
	e, st := createTestExecutor(t, gw, nil)
	st.SetBoard(createTestBoard("b2"))

	require.NoError(t, e.Submit(cardMove("b1", "b1-c1", "b1-A", 0, "b1-B", 0)))
	require.NoError(t, e.Submit(cardMove("b2", "b2-c1", "b2-A", 0, "b2-B", 0)))

	got := []string{<-gw.started, <-gw.started}
	assert.ElementsMatch(t, []string{"card b1-c1 -> b1-B@0", "card b2-c1 -> b2-B@0"}, got)

	close(gw.block)
	e.Wait()
}

func TestExecutor_FailureDiscardsQueuedMoves(t *testing.T) {
	gw := newFakeGateway()
	gw.block = make(chan struct{})
	gw.started = make(chan string, 8)
	gw.fail["b1-c1"] = errDisk
	rec := &Recorder{}
	e, st := createTestExecutor(t, gw, rec)
	original, _ := st.Board("b1")

	require.NoError(t, e.Submit(cardMove("b1", "b1-c1", "b1-A", 0, "b1-B", 1)))
	<-gw.started
	require.NoError(t, e.Submit(cardMove("b1", "b1-c3", "b1-B", 0, "b1-A", 0)))

	b, _ := st.Board("b1")
	assert.Equal(t, map[string][]string{"A": {"b1-c3", "b1-c2"}, "B": {"b1-c1"}}, layoutOf(b))

	gw.block <- struct{}{}
	e.Wait()

	b, _ = st.Board("b1")
	assert.Same(t, original, b)

	failures := rec.Failures()
	require.Len(t, failures, 1)
	require.Len(t, failures[0].Discarded, 1)
	assert.Equal(t, "b1-c3", failures[0].Discarded[0].ItemID)
	assert.Len(t, gw.Calls(), 1, "discarded moves are never persisted")
}

func TestExecutor_NoOpAndInvalidMoves(t *testing.T) {
	gw := newFakeGateway()
	e, st := createTestExecutor(t, gw, nil)
	original, _ := st.Board("b1")

	tests := []struct {
		name string
		move domain.Move
		want error
	}{
		{"own index", cardMove("b1", "b1-c2", "b1-A", 1, "b1-A", 1), nil},
		{"own column index", domain.Move{BoardID: "b1", Kind: domain.KindColumn, ItemID: "b1-B", ToParent: "b1", ToIndex: 1}, nil},
		{"index out of range", cardMove("b1", "b1-c1", "b1-A", 0, "b1-B", 5), domain.ErrInvalidIndex},
		{"unknown card", cardMove("b1", "ghost", "b1-A", 0, "b1-B", 0), domain.ErrInvalidMove},
		{"unknown board", cardMove("nope", "b1-c1", "b1-A", 0, "b1-B", 0), store.ErrBoardNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.Submit(tt.move)
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}

	e.Wait()
	assert.Empty(t, gw.Calls())
	b, _ := st.Board("b1")
	assert.Same(t, original, b)
}

func TestExecutor_ColumnMove(t *testing.T) {
	gw := newFakeGateway()
	e, st := createTestExecutor(t, gw, nil)

	require.NoError(t, e.Submit(domain.Move{BoardID: "b1", Kind: domain.KindColumn, ItemID: "b1-B", FromParent: "b1", FromIndex: 1, ToParent: "b1", ToIndex: 0}))
	e.Wait()

	b, _ := st.Board("b1")
	assert.Equal(t, "b1-B", b.Columns[0].ID)
	assert.Equal(t, []string{"column b1-B -> 0"}, gw.Calls())
}

func TestExecutor_TimeoutRollsBack(t *testing.T) {
	gw := newFakeGateway()
	gw.block = make(chan struct{})
	rec := &Recorder{}
	st := store.New()
	st.SetBoard(createTestBoard("b1"))
	logger, _ := test.NewNullLogger()
	e := New(context.Background(), st, gw, Options{Sink: rec, Logger: logger, Timeout: 20 * time.Millisecond})
	defer e.Close()

	require.NoError(t, e.Submit(cardMove("b1", "b1-c1", "b1-A", 0, "b1-B", 0)))
	e.Wait()

	failures := rec.Failures()
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0].Err, context.DeadlineExceeded)
	b, _ := st.Board("b1")
	assert.Equal(t, []string{"b1-c1", "b1-c2"}, layoutOf(b)["A"])
}

func TestExecutor_Closed(t *testing.T) {
	gw := newFakeGateway()
	e, _ := createTestExecutor(t, gw, nil)
	e.Close()

	err := e.Submit(cardMove("b1", "b1-c1", "b1-A", 0, "b1-B", 0))
	assert.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, gw.Calls())
}

func TestExecutor_SubmitRacingClose(t *testing.T) {
	const boards = 16
	gw := newFakeGateway()
	e, st := createTestExecutor(t, gw, nil)
	for i := 0; i < boards; i++ {
		st.SetBoard(createTestBoard(fmt.Sprintf("r%d", i)))
	}

	errs := make([]error, boards)
	var wg sync.WaitGroup
	for i := 0; i < boards; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("r%d", i)
			errs[i] = e.Submit(cardMove(id, id+"-c1", id+"-A", 0, id+"-B", 1))
		}(i)
	}
	e.Close()
	wg.Wait()

	// Close returned, so every accepted move has been saved and every
	// rejected one left its board alone.
	calls := gw.Calls()
	for i, err := range errs {
		id := fmt.Sprintf("r%d", i)
		b, berr := st.Board(id)
		require.NoError(t, berr)
		if err != nil {
			assert.ErrorIs(t, err, ErrClosed)
			assert.Equal(t, []string{id + "-c1", id + "-c2"}, layoutOf(b)["A"], id)
			assert.NotContains(t, calls, "card "+id+"-c1 -> "+id+"-B@1")
			continue
		}
		assert.Equal(t, []string{id + "-c3", id + "-c1"}, layoutOf(b)["B"], id)
		assert.Contains(t, calls, "card "+id+"-c1 -> "+id+"-B@1")
	}
}

func TestExecutor_LoadRefusedWhileMovesQueued(t *testing.T) {
	gw := newFakeGateway()
	gw.block = make(chan struct{})
	gw.started = make(chan string, 8)
	gw.fail["b1-c1"] = errDisk
	rec := &Recorder{}
	e, st := createTestExecutor(t, gw, rec)

	require.NoError(t, e.Submit(cardMove("b1", "b1-c1", "b1-A", 0, "b1-B", 1)))
	<-gw.started

	fresh := createTestBoard("b1")
	fresh.Columns[0].Name = "Renamed"
	err := e.Load(fresh)
	assert.ErrorIs(t, err, ErrPending)

	b, _ := st.Board("b1")
	assert.Equal(t, "A", b.Columns[0].Name, "optimistic board kept")

	gw.block <- struct{}{}
	e.Wait()
	require.Len(t, rec.Failures(), 1)

	require.NoError(t, e.Load(fresh))
	b, _ = st.Board("b1")
	assert.Equal(t, "Renamed", b.Columns[0].Name)
	assert.Equal(t, 0, e.Pending("b1"))
}

func TestExecutor_LoadNewBoard(t *testing.T) {
	e, st := createTestExecutor(t, newFakeGateway(), nil)
	require.NoError(t, e.Load(createTestBoard("b9")))
	_, err := st.Board("b9")
	assert.NoError(t, err)
}

func TestExecutor_LogsRollback(t *testing.T) {
	gw := newFakeGateway()
	gw.fail["b1-c1"] = errDisk
	st := store.New()
	st.SetBoard(createTestBoard("b1"))
	logger, hook := test.NewNullLogger()

	e := New(context.Background(), st, gw, Options{Logger: logger})
	require.NoError(t, e.Submit(cardMove("b1", "b1-c1", "b1-A", 0, "b1-B", 0)))
	e.Close()

	var rolledBack, reported int
	for _, entry := range hook.AllEntries() {
		switch entry.Message {
		case "Move rolled back":
			rolledBack++
			assert.Equal(t, log.ErrorLevel, entry.Level)
			assert.Equal(t, "b1-c1", entry.Data["item"])
		case "Reorder failed":
			reported++
			assert.Equal(t, log.WarnLevel, entry.Level)
		}
	}
	assert.Equal(t, 1, rolledBack)
	assert.Equal(t, 1, reported, "default sink logs the failure")
}

// A column dragged past the threshold and released outside every rectangle
// must leave the board alone and never reach the gateway.
func TestExecutor_CancelledColumnDragDoesNothing(t *testing.T) {
	gw := newFakeGateway()
	e, st := createTestExecutor(t, gw, nil)
	original, _ := st.Board("b1")

	tr := layout.NewTracker()
	for i, col := range original.Columns {
		tr.Update(layout.Element{Key: layout.Key{Kind: layout.ColumnHeader, ID: col.ID}, Parent: "b1", List: "board", Rect: domain.Rect{X: float64(i) * 20, Y: 0, W: 20, H: 1}})
	}
	tr.Commit()

	ctl := drag.NewController(drag.Config{Threshold: 1}, tr, e)
	require.NoError(t, ctl.Press(drag.Grab{Kind: domain.KindColumn, ItemID: "b1-A", BoardID: "b1", SourceParent: "b1", Origin: domain.Point{X: 5, Y: 0.5}}))
	ctl.Motion(domain.Point{X: 30, Y: 0.5})
	require.Equal(t, drag.Dragging, ctl.State())

	out, err := ctl.Release(domain.Point{X: 500, Y: 500})
	require.NoError(t, err)
	assert.Equal(t, drag.OutcomeCancelled, out)

	e.Wait()
	assert.Empty(t, gw.Calls())
	b, _ := st.Board("b1")
	assert.Same(t, original, b)
}

func TestExecutor_DragDropEndToEnd(t *testing.T) {
	gw := newFakeGateway()
	gw.fail["b1-c1"] = errDisk
	failures := make(chan Failure, 4)
	e, st := createTestExecutor(t, gw, ChanSink{C: failures})
	original, _ := st.Board("b1")

	tr := layout.NewTracker()
	tr.Update(layout.Element{Key: layout.Key{Kind: layout.ColumnBody, ID: "b1-A"}, Parent: "b1", List: "board", Rect: domain.Rect{X: 0, Y: 1, W: 20, H: 20}})
	tr.Update(layout.Element{Key: layout.Key{Kind: layout.ColumnBody, ID: "b1-B"}, Parent: "b1", List: "board", Rect: domain.Rect{X: 20, Y: 1, W: 20, H: 20}})
	tr.Update(layout.Element{Key: layout.Key{Kind: layout.Card, ID: "b1-c1"}, Parent: "b1-A", List: "b1-A", Rect: domain.Rect{X: 0, Y: 1, W: 20, H: 2}})
	tr.Update(layout.Element{Key: layout.Key{Kind: layout.Card, ID: "b1-c2"}, Parent: "b1-A", List: "b1-A", Rect: domain.Rect{X: 0, Y: 3, W: 20, H: 2}})
	tr.Update(layout.Element{Key: layout.Key{Kind: layout.Card, ID: "b1-c3"}, Parent: "b1-B", List: "b1-B", Rect: domain.Rect{X: 20, Y: 1, W: 20, H: 2}})
	tr.Commit()

	ctl := drag.NewController(drag.Config{Threshold: 1}, tr, e)
	require.NoError(t, ctl.Press(drag.Grab{Kind: domain.KindCard, ItemID: "b1-c1", BoardID: "b1", SourceParent: "b1-A", SourceIndex: 0, Origin: domain.Point{X: 5, Y: 1.5}}))
	ctl.Motion(domain.Point{X: 25, Y: 8})
	out, err := ctl.Release(domain.Point{X: 25, Y: 8})
	require.NoError(t, err)
	require.Equal(t, drag.OutcomeDropped, out)

	e.Wait()
	require.Len(t, failures, 1)
	f := <-failures
	assert.ErrorIs(t, f, domain.ErrPersistence)
	assert.Equal(t, "b1-B", f.Move.ToParent)
	assert.Equal(t, 1, f.Move.ToIndex)

	b, _ := st.Board("b1")
	assert.Same(t, original, b)
	assert.Equal(t, []string{"card b1-c1 -> b1-B@1"}, gw.Calls())
}

func TestSinks(t *testing.T) {
	f := Failure{BoardID: "b1", Move: cardMove("b1", "x", "a", 0, "b", 0), Err: fmt.Errorf("%w: %w", domain.ErrPersistence, errDisk)}

	t.Run("chan sink falls back when full", func(t *testing.T) {
		ch := make(chan Failure, 1)
		rec := &Recorder{}
		s := ChanSink{C: ch, Fallback: rec}
		s.ReportFailure(f)
		s.ReportFailure(f)
		assert.Len(t, ch, 1)
		assert.Len(t, rec.Failures(), 1)
	})

	t.Run("multi sink and func", func(t *testing.T) {
		var n int
		rec := &Recorder{}
		MultiSink{SinkFunc(func(Failure) { n++ }), rec}.ReportFailure(f)
		assert.Equal(t, 1, n)
		assert.Len(t, rec.Failures(), 1)
	})

	t.Run("error text", func(t *testing.T) {
		assert.Contains(t, f.Error(), "card x")
		assert.Contains(t, f.Error(), "disk I/O error")
	})
}
