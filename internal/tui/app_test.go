package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robby/dragboard/internal/domain"
	"github.com/robby/dragboard/internal/drag"
)

// mockBackend serves boards from memory.
type mockBackend struct {
	boards  map[string]*domain.Board
	listErr error
}

func (b *mockBackend) ListBoards(ctx context.Context) ([]*domain.Board, error) {
	if b.listErr != nil {
		return nil, b.listErr
	}
	var out []*domain.Board
	for _, board := range b.boards {
		out = append(out, &domain.Board{ID: board.ID, Name: board.Name})
	}
	return out, nil
}

func (b *mockBackend) LoadBoard(ctx context.Context, id string) (*domain.Board, error) {
	board, ok := b.boards[id]
	if !ok {
		return nil, errors.New("no such board")
	}
	return board.Clone(), nil
}

func newTestApp(t *testing.T, backend Backend, ref string) (AppModel, *testEnv) {
	t.Helper()
	env := newTestEnv(t, &domain.Board{ID: "placeholder"})
	logger, _ := test.NewNullLogger()
	app := NewAppModel(Deps{
		Backend:  backend,
		Store:    env.store,
		Executor: env.exec,
		Failures: env.failures,
		Drag:     drag.DefaultConfig(),
		Logger:   logger,
	}, ref)
	return app, env
}

func step(t *testing.T, app AppModel, msg tea.Msg) (AppModel, tea.Cmd) {
	t.Helper()
	model, cmd := app.Update(msg)
	return model.(AppModel), cmd
}

func TestAppModel_BoardRefSkipsPicker(t *testing.T) {
	backend := &mockBackend{boards: map[string]*domain.Board{"b1": createTestBoard()}}
	app, env := newTestApp(t, backend, "test board")

	app, cmd := step(t, app, app.loadBoards()())
	require.NotNil(t, cmd)
	msg := cmd()
	require.IsType(t, boardLoadedMsg{}, msg)

	app, _ = step(t, app, msg)
	assert.Equal(t, ScreenBoard, app.currentScreen)
	require.NotNil(t, app.boardModel)
	assert.Equal(t, "b1", app.boardModel.boardID)

	loaded, err := env.store.Board("b1")
	require.NoError(t, err)
	assert.Len(t, loaded.Columns, 3)
	assert.Contains(t, app.View(), "In Progress")
}

func TestAppModel_UnknownBoardRef(t *testing.T) {
	backend := &mockBackend{boards: map[string]*domain.Board{"b1": createTestBoard()}}
	app, _ := newTestApp(t, backend, "nope")

	app, _ = step(t, app, app.loadBoards()())
	require.Error(t, app.err)
	assert.Contains(t, app.View(), `board "nope" not found`)
}

func TestAppModel_PickerFlow(t *testing.T) {
	backend := &mockBackend{boards: map[string]*domain.Board{"b1": createTestBoard()}}
	app, _ := newTestApp(t, backend, "")

	app, _ = step(t, app, app.loadBoards()())
	assert.Equal(t, ScreenBoardPicker, app.currentScreen)
	assert.Contains(t, app.View(), "Test Board")

	app, cmd := step(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	selected, ok := cmd().(BoardSelectedMsg)
	require.True(t, ok)
	assert.Equal(t, "b1", selected.Board.ID)

	app, cmd = step(t, app, selected)
	assert.Equal(t, ScreenLoading, app.currentScreen)
	app, _ = step(t, app, cmd())
	assert.Equal(t, ScreenBoard, app.currentScreen)
}

func TestAppModel_ListError(t *testing.T) {
	app, _ := newTestApp(t, &mockBackend{listErr: errors.New("offline")}, "")

	app, _ = step(t, app, app.loadBoards()())
	assert.Contains(t, app.View(), "offline")
}

func TestAppModel_DetailRoundTrip(t *testing.T) {
	backend := &mockBackend{boards: map[string]*domain.Board{"b1": createTestBoard()}}
	app, _ := newTestApp(t, backend, "b1")

	app, cmd := step(t, app, app.loadBoards()())
	app, _ = step(t, app, cmd())

	app, cmd = step(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	app, _ = step(t, app, cmd())
	assert.Equal(t, ScreenDetail, app.currentScreen)
	assert.Contains(t, app.View(), "Task 1")

	app, _ = step(t, app, closeDetailMsg{})
	assert.Equal(t, ScreenBoard, app.currentScreen)
}

func TestAppModel_FailureReachesBoardBehindDetail(t *testing.T) {
	backend := &mockBackend{boards: map[string]*domain.Board{"b1": createTestBoard()}}
	app, env := newTestApp(t, backend, "b1")

	app, cmd := step(t, app, app.loadBoards()())
	app, _ = step(t, app, cmd())
	app, cmd = step(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	app, _ = step(t, app, cmd())
	require.Equal(t, ScreenDetail, app.currentScreen)

	env.gateway.fail["c1"] = errors.New("disk full")
	require.NoError(t, env.exec.Submit(domain.Move{
		BoardID: "b1", Kind: domain.KindCard, ItemID: "c1",
		FromParent: "todo", FromIndex: 0, ToParent: "doing", ToIndex: 0,
	}))
	env.exec.Wait()

	app, cmd = step(t, app, waitForFailure(env.failures)())
	assert.NotNil(t, cmd, "keeps listening for failures")
	assert.Contains(t, app.boardModel.errorToast, "disk full")
	assert.Equal(t, []string{"c1", "c2"}, cardIDs(app.boardModel.filteredCards["todo"]))
}

func TestAppModel_ReloadKeepsBoardWhileMovesSave(t *testing.T) {
	backend := &mockBackend{boards: map[string]*domain.Board{"b1": createTestBoard()}}
	app, env := newTestApp(t, backend, "b1")

	app, cmd := step(t, app, app.loadBoards()())
	app, _ = step(t, app, cmd())
	require.Equal(t, ScreenBoard, app.currentScreen)

	env.gateway.hold = make(chan struct{})
	require.NoError(t, env.exec.Submit(domain.Move{
		BoardID: "b1", Kind: domain.KindCard, ItemID: "c1",
		FromParent: "todo", FromIndex: 0, ToParent: "doing", ToIndex: 0,
	}))
	backend.boards["b1"].Name = "Reloaded"

	msg := app.loadBoard("b1")()
	assert.Equal(t, boardLoadedMsg{boardID: "b1"}, msg)
	b, err := env.store.Board("b1")
	require.NoError(t, err)
	assert.Equal(t, "Test Board", b.Name, "queued move keeps its board")
	assert.Equal(t, "c1", b.Columns[1].Cards[0].ID)

	env.gateway.hold <- struct{}{}
	env.exec.Wait()

	app.loadBoard("b1")()
	b, _ = env.store.Board("b1")
	assert.Equal(t, "Reloaded", b.Name)
}

func TestFindBoard(t *testing.T) {
	boards := []*domain.Board{
		{ID: "b1", Name: "Work"},
		{ID: "b2", Name: "Home"},
	}
	assert.Equal(t, "b2", findBoard(boards, "b2").ID)
	assert.Equal(t, "b1", findBoard(boards, "WORK").ID)
	assert.Nil(t, findBoard(boards, "garden"))
}
