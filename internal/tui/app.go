package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"

	"github.com/robby/dragboard/internal/domain"
	"github.com/robby/dragboard/internal/drag"
	"github.com/robby/dragboard/internal/reorder"
	"github.com/robby/dragboard/internal/store"
)

// AppScreen represents the different screens in the application flow.
type AppScreen int

const (
	ScreenLoading AppScreen = iota
	ScreenBoardPicker
	ScreenBoard
	ScreenDetail
)

// Backend lists and loads boards.
type Backend interface {
	ListBoards(ctx context.Context) ([]*domain.Board, error)
	LoadBoard(ctx context.Context, id string) (*domain.Board, error)
}

// Deps are the collaborators of the app model.
type Deps struct {
	Ctx      context.Context
	Backend  Backend
	Store    *store.Store
	Executor *reorder.Executor
	Updates  <-chan store.Update    // store subscription, owned by the caller
	Failures <-chan reorder.Failure // reorder failures, may be nil
	Drag     drag.Config
	Logger   *log.Logger
}

// AppModel is the root Bubble Tea model that manages screen transitions:
// board picker -> board view <-> card detail.
type AppModel struct {
	deps Deps

	// boardRef pre-selects a board by ID or name
	boardRef string

	// Current state
	currentScreen AppScreen
	currentModel  tea.Model
	err           error
	loadingMsg    string
	width         int
	height        int

	// Cached models to preserve state across screen transitions
	boardModel *BoardModel
}

// NewAppModel creates the app model. An empty boardRef shows the picker.
func NewAppModel(deps Deps, boardRef string) AppModel {
	if deps.Ctx == nil {
		deps.Ctx = context.Background()
	}
	if deps.Logger == nil {
		deps.Logger = log.New()
	}
	return AppModel{
		deps:          deps,
		boardRef:      boardRef,
		currentScreen: ScreenLoading,
		loadingMsg:    "Loading boards...",
	}
}

// Init initializes the app model.
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(
		m.loadBoards(),
		waitForUpdate(m.deps.Updates),
		waitForFailure(m.deps.Failures),
	)
}

// Update handles messages and transitions between screens.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Global quit handler
		if msg.String() == "ctrl+c" && m.currentScreen != ScreenBoard {
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case ErrorMsg:
		m.err = msg.Err
		return m, nil

	case QuitMsg:
		return m, tea.Quit

	case boardsLoadedMsg:
		if m.boardRef != "" {
			ref := m.boardRef
			m.boardRef = ""
			b := findBoard(msg.boards, ref)
			if b == nil {
				m.err = fmt.Errorf("board %q not found", ref)
				return m, nil
			}
			m.loadingMsg = fmt.Sprintf("Loading %s...", b.Name)
			return m, m.loadBoard(b.ID)
		}

		m.currentScreen = ScreenBoardPicker
		picker := NewBoardPickerModel(msg.boards)
		m.currentModel = picker
		return m, picker.Init()

	case BoardSelectedMsg:
		m.loadingMsg = fmt.Sprintf("Loading %s...", msg.Board.Name)
		m.currentScreen = ScreenLoading
		m.currentModel = nil
		return m, m.loadBoard(msg.Board.ID)

	case boardLoadedMsg:
		if m.boardModel == nil || m.boardModel.boardID != msg.boardID {
			bm := NewBoardModel(m.deps.Store, m.deps.Executor, m.deps.Drag, m.deps.Logger, msg.boardID)
			if m.width > 0 {
				next, _ := bm.Update(tea.WindowSizeMsg{Width: m.width, Height: m.height})
				bm = next.(BoardModel)
			}
			m.boardModel = &bm
		}
		m.boardModel.loading = false
		m.boardModel.refresh()
		m.boardModel.publishLayout()
		if m.currentScreen != ScreenDetail {
			m.currentScreen = ScreenBoard
			m.currentModel = *m.boardModel
		}
		return m, m.boardModel.Init()

	case storeUpdateMsg:
		m.routeToBoard(msg)
		return m, waitForUpdate(m.deps.Updates)

	case failureMsg:
		m.routeToBoard(msg)
		return m, waitForFailure(m.deps.Failures)

	case reloadBoardMsg:
		if m.boardModel == nil {
			return m, nil
		}
		return m, m.loadBoard(m.boardModel.boardID)

	case showPickerMsg:
		m.currentScreen = ScreenLoading
		m.currentModel = nil
		m.loadingMsg = "Loading boards..."
		return m, m.loadBoards()

	case openDetailMsg:
		m.currentScreen = ScreenDetail
		editor, _ := m.deps.Backend.(ChecklistEditor)
		detail := NewDetailModel(m.deps.Ctx, msg.card, msg.column, editor)
		m.currentModel = detail
		return m, detail.Init()

	case closeDetailMsg:
		m.currentScreen = ScreenBoard
		m.currentModel = *m.boardModel
		cmds := []tea.Cmd{tea.WindowSize()}
		if msg.changed {
			cmds = append(cmds, m.loadBoard(m.boardModel.boardID))
		}
		return m, tea.Batch(cmds...)
	}

	// Delegate to current screen's model
	if m.currentModel != nil {
		var cmd tea.Cmd
		m.currentModel, cmd = m.currentModel.Update(msg)
		// Keep boardModel in sync when on board screen
		if m.currentScreen == ScreenBoard {
			if bm, ok := m.currentModel.(BoardModel); ok {
				m.boardModel = &bm
			}
		}
		return m, cmd
	}

	return m, nil
}

// routeToBoard delivers snapshot and failure messages to the board model
// whatever screen is showing, so it is current when the user returns.
func (m *AppModel) routeToBoard(msg tea.Msg) {
	if m.boardModel == nil {
		return
	}
	next, _ := m.boardModel.Update(msg)
	bm := next.(BoardModel)
	m.boardModel = &bm
	if m.currentScreen == ScreenBoard {
		m.currentModel = bm
	}
}

// View renders the current screen.
func (m AppModel) View() string {
	if m.err != nil {
		return ErrorStyle.Render(fmt.Sprintf("Error: %v\n\nPress Ctrl+C to quit", m.err))
	}

	if m.currentModel != nil {
		return m.currentModel.View()
	}

	return m.loadingMsg + "\n\nPress Ctrl+C to quit"
}

// loadBoards creates a command listing the backend's boards.
func (m AppModel) loadBoards() tea.Cmd {
	backend, ctx := m.deps.Backend, m.deps.Ctx
	return func() tea.Msg {
		boards, err := backend.ListBoards(ctx)
		if err != nil {
			return ErrorMsg{Err: fmt.Errorf("failed to list boards: %w", err)}
		}
		return boardsLoadedMsg{boards: boards}
	}
}

// loadBoard creates a command that fetches a board into the store.
func (m AppModel) loadBoard(id string) tea.Cmd {
	backend, ctx, st, exec, logger := m.deps.Backend, m.deps.Ctx, m.deps.Store, m.deps.Executor, m.deps.Logger
	return func() tea.Msg {
		b, err := backend.LoadBoard(ctx, id)
		if err != nil {
			return ErrorMsg{Err: fmt.Errorf("failed to load board: %w", err)}
		}
		if exec == nil {
			st.SetBoard(b)
			return boardLoadedMsg{boardID: b.ID}
		}
		// Moves still saving keep the board on screen; the user can reload
		// once they settle.
		if err := exec.Load(b); err != nil {
			if !errors.Is(err, reorder.ErrPending) {
				return ErrorMsg{Err: fmt.Errorf("failed to load board: %w", err)}
			}
			logger.WithError(err).Warn("Skipped board reload")
		}
		return boardLoadedMsg{boardID: b.ID}
	}
}

func waitForUpdate(ch <-chan store.Update) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return storeUpdateMsg{update: u}
	}
}

func waitForFailure(ch <-chan reorder.Failure) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		f, ok := <-ch
		if !ok {
			return nil
		}
		return failureMsg{failure: f}
	}
}

// findBoard matches ref against board IDs, then names case-insensitively.
func findBoard(boards []*domain.Board, ref string) *domain.Board {
	for _, b := range boards {
		if b.ID == ref {
			return b
		}
	}
	for _, b := range boards {
		if strings.EqualFold(b.Name, ref) {
			return b
		}
	}
	return nil
}
