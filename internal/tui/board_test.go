package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robby/dragboard/internal/domain"
	"github.com/robby/dragboard/internal/drag"
	"github.com/robby/dragboard/internal/layout"
	"github.com/robby/dragboard/internal/reorder"
	"github.com/robby/dragboard/internal/store"
)

// mockGateway records persisted moves and fails the items listed in fail.
// When hold is set each call waits for a receive before returning.
type mockGateway struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
	hold  chan struct{}
}

func (g *mockGateway) MoveCard(ctx context.Context, cardID, destColumnID string, destIndex int) error {
	return g.record(ctx, fmt.Sprintf("card %s -> %s@%d", cardID, destColumnID, destIndex), cardID)
}

func (g *mockGateway) MoveColumn(ctx context.Context, columnID string, destIndex int) error {
	return g.record(ctx, fmt.Sprintf("column %s -> %d", columnID, destIndex), columnID)
}

func (g *mockGateway) record(ctx context.Context, call, item string) error {
	g.mu.Lock()
	g.calls = append(g.calls, call)
	err := g.fail[item]
	g.mu.Unlock()

	if g.hold != nil {
		select {
		case <-g.hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (g *mockGateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

// createTestBoard returns todo=[c1,c2], doing=[c3], done=[c4,c5,c6].
func createTestBoard() *domain.Board {
	return &domain.Board{
		ID:   "b1",
		Name: "Test Board",
		Columns: []*domain.Column{
			{ID: "todo", BoardID: "b1", Name: "Todo", Position: 0, Cards: []*domain.Card{
				{ID: "c1", ColumnID: "todo", Title: "Task 1", Position: 0, Labels: []domain.Label{{Name: "bug"}}},
				{ID: "c2", ColumnID: "todo", Title: "Task 2", Position: 1},
			}},
			{ID: "doing", BoardID: "b1", Name: "In Progress", Position: 1, Cards: []*domain.Card{
				{ID: "c3", ColumnID: "doing", Title: "Task 3", Position: 0},
			}},
			{ID: "done", BoardID: "b1", Name: "Done", Position: 2, Cards: []*domain.Card{
				{ID: "c4", ColumnID: "done", Title: "Task 4", Position: 0},
				{ID: "c5", ColumnID: "done", Title: "Task 5", Position: 1},
				{ID: "c6", ColumnID: "done", Title: "Task 6", Position: 2, Checklist: []domain.ChecklistItem{
					{ID: "i1", Text: "write", Checked: true},
					{ID: "i2", Text: "review"},
				}},
			}},
		},
	}
}

type testEnv struct {
	store    *store.Store
	exec     *reorder.Executor
	gateway  *mockGateway
	failures chan reorder.Failure
}

func newTestEnv(t *testing.T, b *domain.Board) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    store.New(),
		gateway:  &mockGateway{fail: make(map[string]error)},
		failures: make(chan reorder.Failure, 4),
	}
	env.store.SetBoard(b)
	logger, _ := test.NewNullLogger()
	env.exec = reorder.New(context.Background(), env.store, env.gateway, reorder.Options{
		Sink:    reorder.ChanSink{C: env.failures},
		Logger:  logger,
		Timeout: time.Second,
	})
	t.Cleanup(env.exec.Close)
	return env
}

// newTestBoard builds a sized board model: at 120x40 the three columns are
// 35 cells wide starting at x=0, headers occupy rows 2-3 and card j of a
// column occupies rows 4+2j and 5+2j.
func newTestBoard(t *testing.T, env *testEnv, width, height int) BoardModel {
	t.Helper()
	logger, _ := test.NewNullLogger()
	board := NewBoardModel(env.store, env.exec, drag.DefaultConfig(), logger, "b1")
	return send(t, board, tea.WindowSizeMsg{Width: width, Height: height})
}

func send(t *testing.T, board BoardModel, msg tea.Msg) BoardModel {
	t.Helper()
	model, _ := board.Update(msg)
	return model.(BoardModel)
}

func keyPress(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func press(x, y int) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft}
}

func motion(x, y int) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft}
}

func release(x, y int) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Action: tea.MouseActionRelease, Button: tea.MouseButtonNone}
}

func cardIDs(cards []*domain.Card) []string {
	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	return ids
}

func TestBoardModel_RebuildColumns(t *testing.T) {
	env := newTestEnv(t, createTestBoard())
	board := newTestBoard(t, env, 120, 40)

	assert.Equal(t, []string{"todo", "doing", "done"}, board.columns)
	assert.Equal(t, "In Progress", board.columnName("doing"))
}

func TestBoardModel_ApplyFilter(t *testing.T) {
	env := newTestEnv(t, createTestBoard())
	board := newTestBoard(t, env, 120, 40)

	assert.Equal(t, 2, len(board.filteredCards["todo"]), "Todo should have 2 cards")
	assert.Equal(t, 1, len(board.filteredCards["doing"]), "In Progress should have 1 card")
	assert.Equal(t, 3, len(board.filteredCards["done"]), "Done should have 3 cards")
}

func TestBoardModel_ApplyFilterWithText(t *testing.T) {
	env := newTestEnv(t, createTestBoard())
	board := newTestBoard(t, env, 120, 40)

	board.filterText = "task 1"
	board.applyFilter()
	assert.Equal(t, []string{"c1"}, cardIDs(board.filteredCards["todo"]))
	assert.Empty(t, board.filteredCards["doing"])

	// Labels match too
	board.filterText = "bug"
	board.applyFilter()
	assert.Equal(t, []string{"c1"}, cardIDs(board.filteredCards["todo"]))
}

func TestBoardModel_FilterInput(t *testing.T) {
	env := newTestEnv(t, createTestBoard())
	board := newTestBoard(t, env, 120, 40)

	board = send(t, board, keyPress('/'))
	require.True(t, board.filterMode)
	for _, r := range "Task 5" {
		board = send(t, board, keyPress(r))
	}
	board = send(t, board, tea.KeyMsg{Type: tea.KeyEnter})

	assert.False(t, board.filterMode)
	assert.Equal(t, "Task 5", board.filterText)
	assert.Equal(t, []string{"c5"}, cardIDs(board.filteredCards["done"]))

	board = send(t, board, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Empty(t, board.filterText)
	assert.Len(t, board.filteredCards["done"], 3)
}

func TestBoardModel_Navigation(t *testing.T) {
	env := newTestEnv(t, createTestBoard())
	board := newTestBoard(t, env, 120, 40)

	assert.Equal(t, 0, board.selectedColumn)

	board = send(t, board, keyPress('l'))
	assert.Equal(t, 1, board.selectedColumn)

	board = send(t, board, keyPress('l'))
	assert.Equal(t, 2, board.selectedColumn)

	// Past the last column stays put
	board = send(t, board, keyPress('l'))
	assert.Equal(t, 2, board.selectedColumn)

	board = send(t, board, keyPress('h'))
	assert.Equal(t, 1, board.selectedColumn)
}

func TestBoardModel_CardNavigation(t *testing.T) {
	env := newTestEnv(t, createTestBoard())
	board := newTestBoard(t, env, 120, 40)

	assert.Equal(t, 0, board.selectedCard["todo"])

	board = send(t, board, keyPress('j'))
	assert.Equal(t, 1, board.selectedCard["todo"])

	board = send(t, board, keyPress('k'))
	assert.Equal(t, 0, board.selectedCard["todo"])

	// Try to move up past top (should stay at 0)
	board = send(t, board, keyPress('k'))
	assert.Equal(t, 0, board.selectedCard["todo"])

	board = send(t, board, keyPress('G'))
	assert.Equal(t, 1, board.selectedCard["todo"])
}

func TestBoardModel_DragCardAcrossColumns(t *testing.T) {
	env := newTestEnv(t, createTestBoard())
	board := newTestBoard(t, env, 120, 40)

	// Grab c1 and drop it in the body of In Progress, below c3.
	board = send(t, board, press(5, 4))
	assert.Equal(t, drag.Armed, board.ctrl.State())
	board = send(t, board, motion(40, 7))
	require.Equal(t, drag.Dragging, board.ctrl.State())

	target := board.ctrl.Current().Session.Target
	require.NotNil(t, target)
	assert.Equal(t, "doing", target.Parent)
	assert.Equal(t, 1, target.Index)
	assert.Contains(t, board.View(), "dragging Task 1")

	board = send(t, board, release(40, 7))
	assert.Equal(t, drag.Idle, board.ctrl.State())

	// Applied optimistically before the write completes
	assert.Equal(t, []string{"c2"}, cardIDs(board.filteredCards["todo"]))
	assert.Equal(t, []string{"c3", "c1"}, cardIDs(board.filteredCards["doing"]))
	assert.Equal(t, 1, board.selectedColumn)
	assert.Equal(t, 1, board.selectedCard["doing"])

	env.exec.Wait()
	assert.Equal(t, []string{"card c1 -> doing@1"}, env.gateway.Calls())
}

func TestBoardModel_DragCardOntoHeader(t *testing.T) {
	env := newTestEnv(t, createTestBoard())
	board := newTestBoard(t, env, 120, 40)

	board = send(t, board, press(75, 4)) // c4
	board = send(t, board, motion(40, 2))
	board = send(t, board, release(40, 2))

	assert.Equal(t, []string{"c4", "c3"}, cardIDs(board.filteredCards["doing"]))
	env.exec.Wait()
	assert.Equal(t, []string{"card c4 -> doing@0"}, env.gateway.Calls())
}

func TestBoardModel_DragWithinColumn(t *testing.T) {
	env := newTestEnv(t, createTestBoard())
	board := newTestBoard(t, env, 120, 40)

	// c4 below c6: both other midpoints (7 and 9) lie above row 9.5.
	board = send(t, board, press(75, 4))
	board = send(t, board, motion(75, 9))
	board = send(t, board, release(75, 9))

	assert.Equal(t, []string{"c5", "c6", "c4"}, cardIDs(board.filteredCards["done"]))
	env.exec.Wait()
	assert.Equal(t, []string{"card c4 -> done@2"}, env.gateway.Calls())
}

func TestBoardModel_DragColumn(t *testing.T) {
	env := newTestEnv(t, createTestBoard())
	board := newTestBoard(t, env, 120, 40)

	// Header of Todo past the midpoints of both other headers.
	board = send(t, board, press(5, 2))
	board = send(t, board, motion(100, 3))
	target := board.ctrl.Current().Session.Target
	require.NotNil(t, target)
	assert.Equal(t, "b1", target.Parent)
	assert.Equal(t, 2, target.Index)

	board = send(t, board, release(100, 3))
	assert.Equal(t, []string{"doing", "done", "todo"}, board.columns)
	assert.Equal(t, 2, board.selectedColumn)

	env.exec.Wait()
	assert.Equal(t, []string{"column todo -> 2"}, env.gateway.Calls())
}

func TestBoardModel_DragColumnWhileScrolled(t *testing.T) {
	env := newTestEnv(t, createTestBoard())
	board := newTestBoard(t, env, 45, 30) // two 22-cell columns

	board = send(t, board, keyPress('l'))
	board = send(t, board, keyPress('l'))
	require.Equal(t, 1, board.columnOffset)

	// In Progress is drawn first at x=2..23, Done at x=24..45, Todo is
	// scrolled out to the left and still counts.
	board = send(t, board, press(5, 2))
	board = send(t, board, motion(40, 2))
	target := board.ctrl.Current().Session.Target
	require.NotNil(t, target)
	assert.Equal(t, 2, target.Index)

	board = send(t, board, release(40, 2))
	assert.Equal(t, []string{"todo", "done", "doing"}, board.columns)

	env.exec.Wait()
	assert.Equal(t, []string{"column doing -> 2"}, env.gateway.Calls())
}

func TestPublishLayout_ScrolledOutColumnsAreNotHit(t *testing.T) {
	env := newTestEnv(t, createTestBoard())
	board := newTestBoard(t, env, 45, 30)
	board = send(t, board, keyPress('l'))
	board = send(t, board, keyPress('l'))

	snap := board.tracker.Snapshot()
	todo, ok := snap.Element(layout.Key{Kind: layout.ColumnHeader, ID: "todo"})
	require.True(t, ok, "headers of hidden columns are tracked")
	assert.Less(t, todo.Screen().Right(), 3.0)

	// The ◀ indicator sits over the scrolled-out column.
	_, ok = snap.ContainingElement(cellPoint(0, 2))
	assert.False(t, ok)

	hit, ok := snap.ContainingElement(cellPoint(2, 2))
	require.True(t, ok)
	assert.Equal(t, "doing", hit.Key.ID)
}

func TestBoardModel_TapSelectsCard(t *testing.T) {
	env := newTestEnv(t, createTestBoard())
	board := newTestBoard(t, env, 120, 40)

	board = send(t, board, press(75, 6)) // c5
	board = send(t, board, release(75, 6))

	assert.Equal(t, 2, board.selectedColumn)
	assert.Equal(t, 1, board.selectedCard["done"])
	assert.Equal(t, "c5", board.getSelectedCard().ID)
	env.exec.Wait()
	assert.Empty(t, env.gateway.Calls())
}

func TestBoardModel_DropOutsideCancels(t *testing.T) {
	env := newTestEnv(t, createTestBoard())
	board := newTestBoard(t, env, 120, 40)
	before, _ := env.store.Board("b1")

	board = send(t, board, press(5, 4))
	board = send(t, board, motion(5, 0)) // title row, nothing tracked there
	assert.Nil(t, board.ctrl.Current().Session.Target)
	board = send(t, board, release(5, 0))

	after, _ := env.store.Board("b1")
	assert.Same(t, before, after)
	assert.Equal(t, drag.Idle, board.ctrl.State())
	env.exec.Wait()
	assert.Empty(t, env.gateway.Calls())
}

func TestBoardModel_EscCancelsDrag(t *testing.T) {
	env := newTestEnv(t, createTestBoard())
	board := newTestBoard(t, env, 120, 40)

	board = send(t, board, press(5, 4))
	board = send(t, board, motion(40, 7))
	board = send(t, board, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, drag.Idle, board.ctrl.State())

	board = send(t, board, release(40, 7))
	assert.Equal(t, []string{"c1", "c2"}, cardIDs(board.filteredCards["todo"]))
	env.exec.Wait()
	assert.Empty(t, env.gateway.Calls())
}

func TestBoardModel_FilterDisablesDrag(t *testing.T) {
	env := newTestEnv(t, createTestBoard())
	board := newTestBoard(t, env, 120, 40)
	board.filterText = "task"
	board.applyFilter()

	board = send(t, board, press(5, 4))
	assert.Equal(t, drag.Idle, board.ctrl.State())
	board = send(t, board, motion(40, 7))
	board = send(t, board, release(40, 7))

	assert.Equal(t, []string{"c1", "c2"}, cardIDs(board.filteredCards["todo"]))
	env.exec.Wait()
	assert.Empty(t, env.gateway.Calls())
}

func TestBoardModel_FailedMoveRollsBackWithToast(t *testing.T) {
	env := newTestEnv(t, createTestBoard())
	env.gateway.fail["c1"] = errors.New("disk full")
	board := newTestBoard(t, env, 120, 40)

	board = send(t, board, press(5, 4))
	board = send(t, board, motion(40, 7))
	board = send(t, board, release(40, 7))
	env.exec.Wait()

	var failure reorder.Failure
	select {
	case failure = <-env.failures:
	case <-time.After(time.Second):
		t.Fatal("no failure reported")
	}
	board = send(t, board, failureMsg{failure: failure})

	assert.Equal(t, []string{"c1", "c2"}, cardIDs(board.filteredCards["todo"]))
	assert.Equal(t, []string{"c3"}, cardIDs(board.filteredCards["doing"]))
	assert.Contains(t, board.errorToast, "rolled back")
	assert.Contains(t, board.errorToast, "disk full")

	// Any key dismisses the toast
	board = send(t, board, keyPress('j'))
	assert.Empty(t, board.errorToast)
}

func TestBoardModel_AutoScrollNearEdge(t *testing.T) {
	b := &domain.Board{ID: "b1", Name: "Long", Columns: []*domain.Column{{ID: "todo", BoardID: "b1", Name: "Todo"}}}
	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("c%d", i)
		b.Columns[0].Cards = append(b.Columns[0].Cards, &domain.Card{ID: id, ColumnID: "todo", Title: "Card " + id, Position: i})
	}
	env := newTestEnv(t, b)

	// At height 20, seven cards fit: the card viewport spans rows 4-17.
	board := newTestBoard(t, env, 120, 20)
	require.Equal(t, 7, board.geometry().visibleCards)

	board = send(t, board, press(5, 4))
	model, cmd := board.Update(motion(5, 17))
	board = model.(BoardModel)
	require.NotNil(t, cmd, "pointer in the edge band starts the ticker")
	require.NotEmpty(t, board.scrollIntents)
	assert.Equal(t, "todo", board.scrollIntents[0].List)
	assert.Greater(t, board.scrollIntents[0].Delta, 0.0)

	// 0.75 cards per tick: the first tick only accumulates.
	board = send(t, board, autoScrollMsg{})
	assert.Equal(t, 0, board.scrollOffset["todo"])
	board = send(t, board, autoScrollMsg{})
	assert.Equal(t, 1, board.scrollOffset["todo"])

	// The target follows the scrolled content under the stationary pointer.
	target := board.ctrl.Current().Session.Target
	require.NotNil(t, target)
	assert.Equal(t, 7, target.Index)

	board = send(t, board, release(5, 17))
	assert.Equal(t, "c0", board.filteredCards["todo"][7].ID)

	// Ticks after the drag ended stop the ticker.
	model, cmd = board.Update(autoScrollMsg{})
	board = model.(BoardModel)
	assert.Nil(t, cmd)
	assert.False(t, board.autoScrolling)
}

func TestBoardModel_WheelScrollsColumn(t *testing.T) {
	b := &domain.Board{ID: "b1", Name: "Long", Columns: []*domain.Column{{ID: "todo", BoardID: "b1", Name: "Todo"}}}
	for i := 0; i < 10; i++ {
		b.Columns[0].Cards = append(b.Columns[0].Cards, &domain.Card{ID: fmt.Sprintf("c%d", i), ColumnID: "todo", Position: i})
	}
	env := newTestEnv(t, b)
	board := newTestBoard(t, env, 120, 20)

	board = send(t, board, tea.MouseMsg{X: 5, Y: 6, Action: tea.MouseActionPress, Button: tea.MouseButtonWheelDown})
	assert.Equal(t, 1, board.scrollOffset["todo"])

	// Clamped to the last full page
	for i := 0; i < 10; i++ {
		board = send(t, board, tea.MouseMsg{X: 5, Y: 6, Action: tea.MouseActionPress, Button: tea.MouseButtonWheelDown})
	}
	assert.Equal(t, 3, board.scrollOffset["todo"])
}

func TestBoardModel_KeyboardMoves(t *testing.T) {
	t.Run("J moves the card down", func(t *testing.T) {
		env := newTestEnv(t, createTestBoard())
		board := newTestBoard(t, env, 120, 40)

		board = send(t, board, keyPress('J'))
		assert.Equal(t, []string{"c2", "c1"}, cardIDs(board.filteredCards["todo"]))
		assert.Equal(t, 1, board.selectedCard["todo"], "selection follows the card")

		// Already last: no move
		board = send(t, board, keyPress('J'))
		env.exec.Wait()
		assert.Equal(t, []string{"card c1 -> todo@1"}, env.gateway.Calls())
	})

	t.Run("m then digit moves to the end of a column", func(t *testing.T) {
		env := newTestEnv(t, createTestBoard())
		board := newTestBoard(t, env, 120, 40)

		board = send(t, board, keyPress('m'))
		require.True(t, board.moveMode)
		assert.Contains(t, board.View(), "MOVE")
		board = send(t, board, keyPress('3'))

		assert.False(t, board.moveMode)
		assert.Equal(t, []string{"c4", "c5", "c6", "c1"}, cardIDs(board.filteredCards["done"]))
		assert.Equal(t, 2, board.selectedColumn)
		env.exec.Wait()
		assert.Equal(t, []string{"card c1 -> done@3"}, env.gateway.Calls())
	})

	t.Run("m then own column moves to its end", func(t *testing.T) {
		env := newTestEnv(t, createTestBoard())
		board := newTestBoard(t, env, 120, 40)

		board = send(t, board, keyPress('m'))
		board = send(t, board, keyPress('1'))
		assert.Equal(t, []string{"c2", "c1"}, cardIDs(board.filteredCards["todo"]))
		env.exec.Wait()
		assert.Equal(t, []string{"card c1 -> todo@1"}, env.gateway.Calls())
	})

	t.Run("L moves the column right", func(t *testing.T) {
		env := newTestEnv(t, createTestBoard())
		board := newTestBoard(t, env, 120, 40)

		board = send(t, board, keyPress('L'))
		assert.Equal(t, []string{"doing", "todo", "done"}, board.columns)
		assert.Equal(t, 1, board.selectedColumn)

		board = send(t, board, keyPress('H'))
		assert.Equal(t, []string{"todo", "doing", "done"}, board.columns)
		env.exec.Wait()
		assert.Equal(t, []string{"column todo -> 1", "column todo -> 0"}, env.gateway.Calls())
	})

	t.Run("reorder is refused under a filter", func(t *testing.T) {
		env := newTestEnv(t, createTestBoard())
		board := newTestBoard(t, env, 120, 40)
		board.filterText = "task"
		board.applyFilter()

		board = send(t, board, keyPress('J'))
		assert.Contains(t, board.errorToast, "filter")
		env.exec.Wait()
		assert.Empty(t, env.gateway.Calls())
	})
}

func TestBoardModel_StoreUpdateRefreshes(t *testing.T) {
	env := newTestEnv(t, createTestBoard())
	board := newTestBoard(t, env, 120, 40)

	updated := createTestBoard()
	updated.Columns[1].Cards = append(updated.Columns[1].Cards, &domain.Card{ID: "c7", ColumnID: "doing", Title: "Task 7", Position: 1})
	env.store.SetBoard(updated)
	board = send(t, board, storeUpdateMsg{update: store.Update{BoardID: "b1", Board: updated, Reason: store.ReasonLoad}})
	assert.Equal(t, []string{"c3", "c7"}, cardIDs(board.filteredCards["doing"]))

	// Updates of other boards are ignored
	board = send(t, board, storeUpdateMsg{update: store.Update{BoardID: "other", Reason: store.ReasonLoad}})
	assert.Len(t, board.filteredCards["doing"], 2)
}

func TestBoardModel_RefreshRequestsReload(t *testing.T) {
	env := newTestEnv(t, createTestBoard())
	board := newTestBoard(t, env, 120, 40)

	_, cmd := board.Update(keyPress('r'))
	require.NotNil(t, cmd)
	_, ok := cmd().(reloadBoardMsg)
	assert.True(t, ok)
}

func TestBoardModel_EnterOpensDetail(t *testing.T) {
	env := newTestEnv(t, createTestBoard())
	board := newTestBoard(t, env, 120, 40)

	_, cmd := board.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg, ok := cmd().(openDetailMsg)
	require.True(t, ok)
	assert.Equal(t, "c1", msg.card.ID)
	assert.Equal(t, "Todo", msg.column)
}

func TestBoardModel_EmptyColumn(t *testing.T) {
	b := &domain.Board{ID: "b1", Name: "Test", Columns: []*domain.Column{
		{ID: "c-1", BoardID: "b1", Name: "Todo", Cards: []*domain.Card{{ID: "card-1", ColumnID: "c-1", Title: "Task 1"}}},
		{ID: "c-2", BoardID: "b1", Name: "Done", Position: 1},
	}}
	env := newTestEnv(t, b)
	board := newTestBoard(t, env, 100, 20)

	assert.Equal(t, 2, len(board.columns))
	assert.Equal(t, 1, len(board.filteredCards["c-1"]))
	assert.Equal(t, 0, len(board.filteredCards["c-2"]))

	view := board.View()
	assert.Contains(t, view, "Todo")
	assert.Contains(t, view, "Done")
	assert.Contains(t, view, "(empty)")

	// Dropping into the empty column lands at index 0
	board = send(t, board, press(5, 4))
	board = send(t, board, motion(40, 10))
	board = send(t, board, release(40, 10))
	assert.Equal(t, []string{"card-1"}, cardIDs(board.filteredCards["c-2"]))
}

func TestBoardModel_WindowResize(t *testing.T) {
	env := newTestEnv(t, createTestBoard())
	board := newTestBoard(t, env, 80, 24)

	board = send(t, board, tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 120, board.width)
	assert.Equal(t, 40, board.height)
}

func TestBoardModel_View_NotPanic(t *testing.T) {
	env := newTestEnv(t, createTestBoard())
	logger, _ := test.NewNullLogger()
	board := NewBoardModel(env.store, env.exec, drag.DefaultConfig(), logger, "b1")

	// Before any size is known, View should not panic
	require.NotPanics(t, func() {
		board.View()
	})

	// A board missing from the store renders the spinner
	missing := NewBoardModel(env.store, env.exec, drag.DefaultConfig(), logger, "nope")
	require.NotPanics(t, func() {
		assert.Contains(t, missing.View(), "Loading")
	})
}

func TestBoardModel_AllColumnsRendered(t *testing.T) {
	env := newTestEnv(t, createTestBoard())
	board := newTestBoard(t, env, 200, 30)

	view := board.View()
	assert.Contains(t, view, "Todo")
	assert.Contains(t, view, "In Progress")
	assert.Contains(t, view, "Done")
	assert.Contains(t, view, "[1/2]", "checklist progress on the meta line")
	assert.Contains(t, view, "#bug")
}

func TestBoardModel_HorizontalScroll(t *testing.T) {
	env := newTestEnv(t, createTestBoard())
	board := newTestBoard(t, env, 45, 30) // room for two columns

	g := board.geometry()
	require.Equal(t, 2, g.visibleCols)
	assert.NotContains(t, board.View(), "Done")

	board = send(t, board, keyPress('l'))
	board = send(t, board, keyPress('l'))
	assert.Equal(t, 1, board.columnOffset)
	view := board.View()
	assert.Contains(t, view, "Done")
	assert.Contains(t, view, "◀")
}

func TestBoardModel_Truncation(t *testing.T) {
	b := createTestBoard()
	b.Columns[0].Cards[0].Title = "This is a very long title that should be truncated to fit the column width properly"
	env := newTestEnv(t, b)
	board := newTestBoard(t, env, 120, 40)

	view := board.View()
	assert.Contains(t, view, "…")
	assert.NotContains(t, view, "properly")
}

func TestCardMeta(t *testing.T) {
	card := &domain.Card{
		Checklist:   []domain.ChecklistItem{{Checked: true}, {}, {Checked: true}},
		Attachments: []domain.Attachment{{URL: "https://example.com"}},
		Labels:      []domain.Label{{Name: "bug"}, {Name: "ui"}},
	}
	assert.Equal(t, "[2/3] @1 #bug #ui", cardMeta(card))
	assert.Empty(t, cardMeta(&domain.Card{}))
}

func TestPublishLayout_MatchesRenderedRows(t *testing.T) {
	env := newTestEnv(t, createTestBoard())
	board := newTestBoard(t, env, 120, 40)

	lines := strings.Split(board.View(), "\n")
	snap := board.tracker.Snapshot()

	// Each card's first row carries its title at the published Y.
	for _, id := range []string{"c1", "c3", "c5"} {
		card, _ := env.store.GetCard("b1", id)
		el, ok := snap.Element(layout.Key{Kind: layout.Card, ID: id})
		require.True(t, ok, id)
		row := int(el.Screen().Y)
		require.Less(t, row, len(lines))
		assert.Contains(t, lines[row], card.Title, "card %s at row %d", id, row)
	}
}

func TestHelpOverlay(t *testing.T) {
	env := newTestEnv(t, createTestBoard())
	board := newTestBoard(t, env, 120, 40)

	board = send(t, board, keyPress('?'))
	require.True(t, board.showHelp)
	view := board.View()
	assert.Contains(t, view, "previous column")
	assert.Contains(t, view, "drag header")

	board = send(t, board, keyPress('?'))
	assert.False(t, board.showHelp)
	assert.Contains(t, board.View(), "Task 1")
}
