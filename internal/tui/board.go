package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/pkg/browser"
	log "github.com/sirupsen/logrus"

	"github.com/robby/dragboard/internal/domain"
	"github.com/robby/dragboard/internal/drag"
	"github.com/robby/dragboard/internal/layout"
	"github.com/robby/dragboard/internal/reorder"
	"github.com/robby/dragboard/internal/resolve"
	"github.com/robby/dragboard/internal/store"
)

// Layout constants
const (
	minColumnWidth     = 20
	maxColumnWidth     = 35
	cardHeight         = 2  // title line + meta line
	pageJumpSize       = 10 // Number of items to jump with Ctrl+D/U
	boardList          = "board"
	autoScrollInterval = 60 * time.Millisecond
)

// Styles for the board view - base styles without width/height (set dynamically)
var (
	columnHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205"))

	cardStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	selectedCardStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("205")).
				Bold(true)

	draggedCardStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241")).
				Italic(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	titleStyle = lipgloss.NewStyle().
			Bold(true)

	moveModeStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("205")).
			Foreground(lipgloss.Color("0")).
			Padding(0, 1)

	dragStatusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212"))
)

// Column border colors
const (
	borderNormal   = lipgloss.Color("240")
	borderSelected = lipgloss.Color("205")
	borderTarget   = lipgloss.Color("212")
)

// BoardModel represents the main kanban board view. It renders the store's
// current snapshot, publishes the geometry of what it drew to the layout
// tracker and feeds mouse input to the drag controller.
type BoardModel struct {
	// Dependencies
	store    *store.Store
	exec     *reorder.Executor
	tracker  *layout.Tracker
	ctrl     *drag.Controller
	logger   *log.Logger
	boardID  string
	board    *domain.Board
	openLink func(string) error

	// UI components
	keymap      KeyMap
	help        HelpModel
	spinner     spinner.Model
	filterInput textinput.Model

	// Board state
	columns        []string                  // Column IDs in order
	filteredCards  map[string][]*domain.Card // Column ID -> visible cards
	selectedColumn int                       // Currently selected column
	columnOffset   int                       // Horizontal scroll offset (first visible column index)
	selectedCard   map[string]int            // Column ID -> selected card index
	scrollOffset   map[string]int            // Column ID -> first visible card index
	scrollAccum    map[string]float64        // List -> fractional auto-scroll not applied yet

	// View state
	width         int
	height        int
	showHelp      bool
	filterMode    bool
	filterText    string
	moveMode      bool
	loading       bool
	autoScrolling bool
	scrollIntents []resolve.ScrollIntent
	errorToast    string
}

// NewBoardModel creates a board model for boardID. The store must already
// hold the board.
func NewBoardModel(s *store.Store, exec *reorder.Executor, cfg drag.Config, logger *log.Logger, boardID string) BoardModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ti := textinput.New()
	ti.Placeholder = "Filter..."
	ti.Prompt = "/ "

	if logger == nil {
		logger = log.New()
	}

	tracker := layout.NewTracker()
	var committer drag.Committer
	if exec != nil {
		committer = exec
	}

	m := BoardModel{
		store:         s,
		exec:          exec,
		tracker:       tracker,
		ctrl:          drag.NewController(cfg, tracker, committer),
		logger:        logger,
		boardID:       boardID,
		openLink:      browser.OpenURL,
		keymap:        DefaultKeyMap(),
		help:          NewHelpModel(DefaultKeyMap()),
		spinner:       sp,
		filterInput:   ti,
		filteredCards: make(map[string][]*domain.Card),
		selectedCard:  make(map[string]int),
		scrollOffset:  make(map[string]int),
		scrollAccum:   make(map[string]float64),
	}
	m.refresh()
	return m
}

// Init initializes the board
func (m BoardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tea.WindowSize())
}

// Update handles messages and republishes the layout afterwards, so the
// tracker always describes what the next View will draw.
func (m BoardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.update(msg)
	next.publishLayout()
	return next, cmd
}

func (m BoardModel) update(msg tea.Msg) (BoardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.adjustColumnScroll()
		return m, nil

	case storeUpdateMsg:
		if msg.update.BoardID != m.boardID {
			return m, nil
		}
		if msg.update.Reason == store.ReasonRemove {
			m.board = nil
		}
		m.loading = false
		m.refresh()
		return m, nil

	case failureMsg:
		if msg.failure.BoardID != m.boardID {
			return m, nil
		}
		m.errorToast = fmt.Sprintf("Move failed, rolled back: %v", msg.failure.Err)
		m.refresh()
		return m, nil

	case autoScrollMsg:
		return m.handleAutoScroll()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}

	return m, nil
}

// handleKeyPress processes keyboard input
func (m BoardModel) handleKeyPress(msg tea.KeyMsg) (BoardModel, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	// Any key dismisses a stale error
	m.errorToast = ""

	// Help overlay
	if m.showHelp {
		if msg.String() == "?" || msg.String() == "q" || msg.String() == "esc" {
			m.showHelp = false
		}
		return m, nil
	}

	// A key during a drag cancels it on esc and is ignored otherwise
	if m.ctrl.Active() {
		if key.Matches(msg, m.keymap.ClearFilter) {
			m.ctrl.Cancel()
			m.scrollIntents = nil
		}
		return m, nil
	}

	// Filter mode
	if m.filterMode {
		switch {
		case key.Matches(msg, m.keymap.ApplyFilter):
			m.filterMode = false
			m.filterInput.Blur()
			m.filterText = strings.TrimSpace(m.filterInput.Value())
			m.applyFilter()
			return m, nil
		case key.Matches(msg, m.keymap.CancelFilter):
			m.filterMode = false
			m.filterInput.Blur()
			m.filterInput.SetValue(m.filterText)
			return m, nil
		default:
			var cmd tea.Cmd
			m.filterInput, cmd = m.filterInput.Update(msg)
			return m, cmd
		}
	}

	// Move mode
	if m.moveMode {
		return m.handleMoveMode(msg)
	}

	switch {
	case key.Matches(msg, m.keymap.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keymap.Help):
		m.showHelp = true
	case key.Matches(msg, m.keymap.Filter):
		m.filterMode = true
		m.filterInput.Focus()
		return m, textinput.Blink
	case key.Matches(msg, m.keymap.ClearFilter):
		if m.filterText != "" {
			m.filterText = ""
			m.filterInput.SetValue("")
			m.applyFilter()
		}
	case key.Matches(msg, m.keymap.MoveColumnLeft):
		m.moveSelectedColumn(-1)
	case key.Matches(msg, m.keymap.MoveColumnRight):
		m.moveSelectedColumn(1)
	case key.Matches(msg, m.keymap.MoveCardUp):
		m.moveSelectedCard(-1)
	case key.Matches(msg, m.keymap.MoveCardDown):
		m.moveSelectedCard(1)
	case key.Matches(msg, m.keymap.Left):
		if m.selectedColumn > 0 {
			m.selectedColumn--
			m.adjustColumnScroll()
		}
	case key.Matches(msg, m.keymap.Right):
		if m.selectedColumn < len(m.columns)-1 {
			m.selectedColumn++
			m.adjustColumnScroll()
		}
	case key.Matches(msg, m.keymap.Down):
		m.moveCardSelection(1)
	case key.Matches(msg, m.keymap.Up):
		m.moveCardSelection(-1)
	case key.Matches(msg, m.keymap.Top):
		m.jumpToCard(0)
	case key.Matches(msg, m.keymap.Bottom):
		m.jumpToCard(-1)
	case key.Matches(msg, m.keymap.PageDn):
		m.moveCardSelection(pageJumpSize)
	case key.Matches(msg, m.keymap.PageUp):
		m.moveCardSelection(-pageJumpSize)
	case key.Matches(msg, m.keymap.Move):
		if m.getSelectedCard() != nil {
			m.moveMode = true
		}
	case key.Matches(msg, m.keymap.Open):
		card := m.getSelectedCard()
		if card != nil && len(card.Attachments) > 0 && m.openLink != nil {
			if err := m.openLink(card.Attachments[0].URL); err != nil {
				m.errorToast = fmt.Sprintf("Open failed: %v", err)
			}
		}
	case key.Matches(msg, m.keymap.Refresh):
		if m.exec != nil && m.exec.Pending(m.boardID) > 0 {
			m.errorToast = "Moves are still being saved"
			return m, nil
		}
		m.loading = true
		return m, func() tea.Msg { return reloadBoardMsg{} }
	case key.Matches(msg, m.keymap.Boards):
		return m, func() tea.Msg { return showPickerMsg{} }
	case key.Matches(msg, m.keymap.Detail):
		card := m.getSelectedCard()
		if card != nil {
			column := m.columnName(m.columns[m.selectedColumn])
			return m, func() tea.Msg { return openDetailMsg{card: card, column: column} }
		}
	}

	return m, nil
}

// handleMoveMode handles key presses in move mode
func (m BoardModel) handleMoveMode(msg tea.KeyMsg) (BoardModel, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.moveMode = false
		return m, nil
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		idx := int(msg.Runes[0] - '1')
		if idx >= 0 && idx < len(m.columns) {
			m.moveMode = false
			m.moveCardToColumn(m.columns[idx])
		}
	}
	return m, nil
}

// handleMouse routes pointer input to the drag controller.
func (m BoardModel) handleMouse(msg tea.MouseMsg) (BoardModel, tea.Cmd) {
	if m.showHelp || m.board == nil {
		return m, nil
	}
	p := cellPoint(msg.X, msg.Y)

	switch msg.Action {
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonLeft:
			m.errorToast = ""
			return m.pointerPress(p)
		case tea.MouseButtonWheelUp, tea.MouseButtonWheelDown:
			m.wheel(p, msg.Button == tea.MouseButtonWheelDown)
		}
	case tea.MouseActionMotion:
		if m.ctrl.State() == drag.Idle {
			return m, nil
		}
		res := m.ctrl.Motion(p)
		return m.trackScroll(res)
	case tea.MouseActionRelease:
		return m.pointerRelease(p)
	}
	return m, nil
}

// pointerPress selects what is under the pointer and arms a drag session.
// Dragging is disabled while a filter is active because visible indices
// differ from board indices.
func (m BoardModel) pointerPress(p domain.Point) (BoardModel, tea.Cmd) {
	if m.ctrl.Active() {
		m.ctrl.Cancel()
	}
	hit, ok := m.tracker.Snapshot().ContainingElement(p)
	if !ok {
		return m, nil
	}

	var grab drag.Grab
	switch hit.Key.Kind {
	case layout.Card:
		card, col, idx := m.board.Card(hit.Key.ID)
		if card == nil {
			return m, nil
		}
		m.selectCard(col.ID, card.ID)
		grab = drag.Grab{Kind: domain.KindCard, ItemID: card.ID, SourceParent: col.ID, SourceIndex: idx}
	case layout.ColumnHeader:
		_, idx := m.board.Column(hit.Key.ID)
		if idx < 0 {
			return m, nil
		}
		m.selectedColumn = idx
		grab = drag.Grab{Kind: domain.KindColumn, ItemID: hit.Key.ID, SourceParent: m.boardID, SourceIndex: idx}
	case layout.ColumnBody:
		if _, idx := m.board.Column(hit.Key.ID); idx >= 0 {
			m.selectedColumn = idx
		}
		return m, nil
	}

	if m.filterText != "" {
		return m, nil
	}
	grab.BoardID = m.boardID
	grab.Origin = p
	if err := m.ctrl.Press(grab); err != nil {
		m.logger.WithError(err).Debug("Press ignored")
	}
	return m, nil
}

func (m BoardModel) pointerRelease(p domain.Point) (BoardModel, tea.Cmd) {
	item := m.ctrl.Current().Session.ItemID
	kind := m.ctrl.Current().Session.Kind
	outcome, err := m.ctrl.Release(p)
	m.scrollIntents = nil

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidIndex):
		m.logger.WithError(err).Debug("Drop outside valid range ignored")
	case errors.Is(err, domain.ErrInvalidMove):
		m.logger.WithError(err).Debug("Drop treated as cancel")
	default:
		m.errorToast = fmt.Sprintf("Move rejected: %v", err)
	}

	m.refresh()
	if outcome == drag.OutcomeDropped && err == nil && m.board != nil {
		if kind == domain.KindCard {
			if card, col, _ := m.board.Card(item); card != nil {
				m.selectCard(col.ID, card.ID)
			}
		} else if _, idx := m.board.Column(item); idx >= 0 {
			m.selectedColumn = idx
			m.adjustColumnScroll()
		}
	}
	return m, nil
}

// trackScroll records the scroll intents of the last resolution and starts
// the auto-scroll ticker when needed.
func (m BoardModel) trackScroll(res resolve.Resolution) (BoardModel, tea.Cmd) {
	m.scrollIntents = res.Scroll
	if len(res.Scroll) == 0 || m.autoScrolling {
		return m, nil
	}
	m.autoScrolling = true
	return m, autoScrollTick()
}

func autoScrollTick() tea.Cmd {
	return tea.Tick(autoScrollInterval, func(time.Time) tea.Msg { return autoScrollMsg{} })
}

// handleAutoScroll applies pending scroll intents, republishes the layout
// and re-resolves the drop target under the stationary pointer.
func (m BoardModel) handleAutoScroll() (BoardModel, tea.Cmd) {
	if m.ctrl.State() != drag.Dragging || len(m.scrollIntents) == 0 {
		m.autoScrolling = false
		return m, nil
	}
	for _, in := range m.scrollIntents {
		m.applyScroll(in)
	}
	m.publishLayout()
	m.scrollIntents = m.ctrl.Refresh().Scroll
	if len(m.scrollIntents) == 0 {
		m.autoScrolling = false
		return m, nil
	}
	return m, autoScrollTick()
}

// applyScroll accumulates fractional deltas and scrolls by whole steps:
// columns for the board row, cards for a column.
func (m *BoardModel) applyScroll(in resolve.ScrollIntent) {
	m.scrollAccum[in.List] += in.Delta
	steps := int(m.scrollAccum[in.List])
	if steps == 0 {
		return
	}
	m.scrollAccum[in.List] -= float64(steps)

	if in.List == boardList {
		g := m.geometry()
		m.columnOffset = clamp(m.columnOffset+steps, 0, max(len(m.columns)-g.visibleCols, 0))
		return
	}
	m.scrollOffset[in.List] = clamp(m.scrollOffset[in.List]+steps, 0, m.maxScroll(in.List))
}

// wheel scrolls the column under the pointer, or the board row when the
// pointer is over a header.
func (m *BoardModel) wheel(p domain.Point, down bool) {
	step := -1
	if down {
		step = 1
	}
	hit, ok := m.tracker.Snapshot().ContainingElement(p)
	if !ok {
		return
	}
	switch hit.Key.Kind {
	case layout.ColumnHeader:
		g := m.geometry()
		m.columnOffset = clamp(m.columnOffset+step, 0, max(len(m.columns)-g.visibleCols, 0))
	case layout.Card:
		m.scrollOffset[hit.Parent] = clamp(m.scrollOffset[hit.Parent]+step, 0, m.maxScroll(hit.Parent))
	case layout.ColumnBody:
		m.scrollOffset[hit.Key.ID] = clamp(m.scrollOffset[hit.Key.ID]+step, 0, m.maxScroll(hit.Key.ID))
	}
}

// moveCardToColumn moves the selected card to the end of a target column
func (m *BoardModel) moveCardToColumn(targetColID string) {
	card := m.getSelectedCard()
	if card == nil || m.board == nil {
		return
	}
	_, src, from := m.board.Card(card.ID)
	dst, _ := m.board.Column(targetColID)
	if src == nil || dst == nil {
		return
	}
	to := len(dst.Cards)
	if dst.ID == src.ID {
		to = len(dst.Cards) - 1
	}
	m.submit(domain.Move{
		BoardID:    m.boardID,
		Kind:       domain.KindCard,
		ItemID:     card.ID,
		FromParent: src.ID,
		FromIndex:  from,
		ToParent:   dst.ID,
		ToIndex:    to,
	})
	m.refresh()
	m.selectCard(dst.ID, card.ID)
}

// moveSelectedCard shifts the selected card by delta within its column.
func (m *BoardModel) moveSelectedCard(delta int) {
	if m.filterText != "" {
		m.errorToast = "Clear the filter to reorder cards"
		return
	}
	card := m.getSelectedCard()
	if card == nil {
		return
	}
	_, col, from := m.board.Card(card.ID)
	to := from + delta
	if col == nil || to < 0 || to >= len(col.Cards) {
		return
	}
	m.submit(domain.Move{
		BoardID:    m.boardID,
		Kind:       domain.KindCard,
		ItemID:     card.ID,
		FromParent: col.ID,
		FromIndex:  from,
		ToParent:   col.ID,
		ToIndex:    to,
	})
	m.refresh()
	m.selectCard(col.ID, card.ID)
}

// moveSelectedColumn shifts the selected column by delta.
func (m *BoardModel) moveSelectedColumn(delta int) {
	if len(m.columns) == 0 {
		return
	}
	from := m.selectedColumn
	to := from + delta
	if to < 0 || to >= len(m.columns) {
		return
	}
	colID := m.columns[from]
	m.submit(domain.Move{
		BoardID:    m.boardID,
		Kind:       domain.KindColumn,
		ItemID:     colID,
		FromParent: m.boardID,
		FromIndex:  from,
		ToParent:   m.boardID,
		ToIndex:    to,
	})
	m.refresh()
	if _, idx := m.board.Column(colID); idx >= 0 {
		m.selectedColumn = idx
		m.adjustColumnScroll()
	}
}

func (m *BoardModel) submit(mv domain.Move) {
	if m.exec == nil {
		return
	}
	if err := m.exec.Submit(mv); err != nil {
		if errors.Is(err, domain.ErrInvalidIndex) || errors.Is(err, domain.ErrInvalidMove) {
			m.logger.WithError(err).Debug("Keyboard move ignored")
			return
		}
		m.errorToast = fmt.Sprintf("Move rejected: %v", err)
	}
}

// refresh reloads the board snapshot from the store and regroups cards.
func (m *BoardModel) refresh() {
	if b, err := m.store.Board(m.boardID); err == nil {
		m.board = b
	}
	m.rebuildColumns()
	m.applyFilter()
}

// rebuildColumns rebuilds column structure from the board snapshot
func (m *BoardModel) rebuildColumns() {
	m.columns = m.columns[:0]
	if m.board == nil {
		return
	}
	for _, col := range m.board.Columns {
		m.columns = append(m.columns, col.ID)
	}

	// Ensure selected column is valid
	if m.selectedColumn >= len(m.columns) {
		m.selectedColumn = max(len(m.columns)-1, 0)
	}
}

// applyFilter filters cards and groups them by column
func (m *BoardModel) applyFilter() {
	m.filteredCards = make(map[string][]*domain.Card, len(m.columns))
	if m.board == nil {
		return
	}

	needle := strings.ToLower(m.filterText)
	for _, col := range m.board.Columns {
		filtered := make([]*domain.Card, 0, len(col.Cards))
		for _, card := range col.Cards {
			if needle != "" && !cardMatches(card, needle) {
				continue
			}
			filtered = append(filtered, card)
		}
		m.filteredCards[col.ID] = filtered
	}

	for _, colID := range m.columns {
		n := len(m.filteredCards[colID])
		if m.selectedCard[colID] >= n {
			m.selectedCard[colID] = max(n-1, 0)
		}
		m.scrollOffset[colID] = clamp(m.scrollOffset[colID], 0, m.maxScroll(colID))
	}
}

func cardMatches(card *domain.Card, needle string) bool {
	if strings.Contains(strings.ToLower(card.Title), needle) {
		return true
	}
	for _, l := range card.Labels {
		if strings.Contains(strings.ToLower(l.Name), needle) {
			return true
		}
	}
	return false
}

// selectCard points the selection at a card and scrolls it into view.
func (m *BoardModel) selectCard(colID, cardID string) {
	for i, id := range m.columns {
		if id == colID {
			m.selectedColumn = i
		}
	}
	for i, c := range m.filteredCards[colID] {
		if c.ID == cardID {
			m.selectedCard[colID] = i
		}
	}
	m.adjustColumnScroll()
	m.adjustScroll(colID)
}

// moveCardSelection moves the card selection up or down by delta
func (m *BoardModel) moveCardSelection(delta int) {
	if len(m.columns) == 0 {
		return
	}

	colID := m.columns[m.selectedColumn]
	cards := m.filteredCards[colID]
	if len(cards) == 0 {
		return
	}

	m.selectedCard[colID] = clamp(m.selectedCard[colID]+delta, 0, len(cards)-1)
	m.adjustScroll(colID)
}

// jumpToCard jumps to a specific card index. Use -1 to jump to last card.
func (m *BoardModel) jumpToCard(idx int) {
	if len(m.columns) == 0 {
		return
	}

	colID := m.columns[m.selectedColumn]
	cards := m.filteredCards[colID]
	if len(cards) == 0 {
		return
	}

	if idx < 0 || idx >= len(cards) {
		idx = len(cards) - 1
	}

	m.selectedCard[colID] = idx
	m.adjustScroll(colID)
}

// adjustScroll ensures the selected card is visible
func (m *BoardModel) adjustScroll(colID string) {
	visible := m.geometry().visibleCards
	selectedIdx := m.selectedCard[colID]

	if selectedIdx < m.scrollOffset[colID] {
		m.scrollOffset[colID] = selectedIdx
	}
	if selectedIdx >= m.scrollOffset[colID]+visible {
		m.scrollOffset[colID] = selectedIdx - visible + 1
	}
}

// adjustColumnScroll ensures the selected column is visible (horizontal carousel)
func (m *BoardModel) adjustColumnScroll() {
	if len(m.columns) == 0 {
		return
	}
	visibleCols := m.geometry().visibleCols

	if m.selectedColumn < m.columnOffset {
		m.columnOffset = m.selectedColumn
	}
	if m.selectedColumn >= m.columnOffset+visibleCols {
		m.columnOffset = m.selectedColumn - visibleCols + 1
	}
	m.columnOffset = clamp(m.columnOffset, 0, max(len(m.columns)-visibleCols, 0))
}

// maxScroll is the largest first-visible index that still fills the column.
func (m BoardModel) maxScroll(colID string) int {
	return max(len(m.filteredCards[colID])-m.geometry().visibleCards, 0)
}

// getSelectedCard returns the currently selected card
func (m BoardModel) getSelectedCard() *domain.Card {
	if len(m.columns) == 0 {
		return nil
	}

	colID := m.columns[m.selectedColumn]
	cards := m.filteredCards[colID]
	if len(cards) == 0 {
		return nil
	}

	cardIdx := m.selectedCard[colID]
	if cardIdx >= len(cards) {
		cardIdx = 0
	}
	return cards[cardIdx]
}

func (m BoardModel) columnName(colID string) string {
	if m.board == nil {
		return ""
	}
	if col, _ := m.board.Column(colID); col != nil {
		return col.Name
	}
	return ""
}

// boardGeometry is the screen layout of one pass. View draws from it and
// publishLayout reports it, so what the tracker holds is what is on screen.
type boardGeometry struct {
	width         int
	top           int // first row of the board area
	height        int // rows of the board area, borders included
	contentHeight int // rows inside a column border
	left          int // x of the first visible column
	colWidth      int
	innerWidth    int
	visibleCols   int
	start, end    int // visible column range
	visibleCards  int
}

func (m BoardModel) size() (int, int) {
	width, height := m.width, m.height
	if width == 0 {
		width = 80
	}
	if height == 0 {
		height = 24
	}
	return width, height
}

func (m BoardModel) geometry() boardGeometry {
	width, height := m.size()
	g := boardGeometry{width: width, top: 2}
	if m.filterMode {
		g.top++
	}
	if m.moveMode {
		g.top++
	}

	boardHeight := max(height-g.top, 5)
	g.contentHeight = max(boardHeight-2, 3)
	g.height = g.contentHeight + 2

	numCols := len(m.columns)
	g.visibleCols = clamp(width/minColumnWidth, 1, max(numCols, 1))
	g.colWidth = clamp(width/g.visibleCols, minColumnWidth, maxColumnWidth)
	g.innerWidth = max(g.colWidth-4, 10)

	g.start = m.columnOffset
	g.end = g.start + g.visibleCols
	if g.end > numCols {
		g.end = numCols
		g.start = max(g.end-g.visibleCols, 0)
	}
	if g.start > 0 {
		g.left = 2
	}

	// One row for the column header, the rest for cards
	g.visibleCards = max((g.contentHeight-1)/cardHeight, 1)
	return g
}

func (g boardGeometry) columnX(i int) int { return g.left + (i-g.start)*g.colWidth }

func (g boardGeometry) cardsTop() int { return g.top + 2 }

// rowRect is the screen area of the visible columns. Scroll indicators sit
// outside it, so columns scrolled out of view are never hit.
func (g boardGeometry) rowRect() domain.Rect {
	w := min(g.columnX(g.end), g.width) - g.left
	return domain.Rect{X: float64(g.left), Y: float64(g.top), W: float64(w), H: float64(g.height)}
}

// publishLayout pushes the geometry of the next frame to the tracker and
// commits it as one layout pass. Headers and bodies of every column are
// tracked in the board row's content space, and every card of a visible
// column in its column's content space, including scrolled-out ones, so
// the resolver counts them correctly. The viewports clip hits to what is
// drawn.
func (m BoardModel) publishLayout() {
	t := m.tracker
	t.Reset()
	if m.showHelp || m.board == nil || len(m.columns) == 0 {
		t.Commit()
		return
	}

	g := m.geometry()
	rowScroll := domain.Point{X: float64(g.start * g.colWidth)}
	t.SetViewport(layout.Viewport{
		List:   boardList,
		Axis:   layout.Horizontal,
		Rect:   g.rowRect(),
		Scroll: rowScroll,
	})

	w := float64(g.colWidth)
	for i, colID := range m.columns {
		x := float64(g.left + i*g.colWidth)
		t.Update(layout.Element{
			Key:    layout.Key{Kind: layout.ColumnHeader, ID: colID},
			Parent: m.boardID,
			List:   boardList,
			Rect:   domain.Rect{X: x, Y: float64(g.top), W: w, H: 2},
			Scroll: rowScroll,
		})
		t.Update(layout.Element{
			Key:    layout.Key{Kind: layout.ColumnBody, ID: colID},
			Parent: m.boardID,
			List:   boardList,
			Rect:   domain.Rect{X: x, Y: float64(g.cardsTop()), W: w, H: float64(g.height - 2)},
			Scroll: rowScroll,
		})
	}

	for i := g.start; i < g.end; i++ {
		colID := m.columns[i]
		x := float64(g.columnX(i))

		scroll := domain.Point{Y: float64(m.scrollOffset[colID] * cardHeight)}
		t.SetViewport(layout.Viewport{
			List:   colID,
			Axis:   layout.Vertical,
			Rect:   domain.Rect{X: x, Y: float64(g.cardsTop()), W: w, H: float64(g.visibleCards * cardHeight)},
			Scroll: scroll,
		})
		for j, card := range m.filteredCards[colID] {
			t.Update(layout.Element{
				Key:    layout.Key{Kind: layout.Card, ID: card.ID},
				Parent: colID,
				List:   colID,
				Rect:   domain.Rect{X: x, Y: float64(g.cardsTop() + j*cardHeight), W: w, H: cardHeight},
				Scroll: scroll,
			})
		}
	}
	t.Commit()
}

// View renders the board - fills entire terminal exactly
func (m BoardModel) View() string {
	width, _ := m.size()
	g := m.geometry()

	var sections []string
	sections = append(sections, m.renderHeader(width))
	sections = append(sections, m.renderSecondHeader(width))

	if m.filterMode {
		sections = append(sections, m.filterInput.View())
	}
	if m.moveMode {
		sections = append(sections, moveModeStyle.Render("MOVE")+" Press 1-9 to select column, ESC to cancel")
	}

	var mainContent string
	switch {
	case m.showHelp:
		helpLines := strings.Split(m.help.View(width), "\n")
		if len(helpLines) > g.height {
			helpLines = helpLines[:g.height]
		}
		mainContent = strings.Join(helpLines, "\n")
	case m.board == nil || (m.loading && m.board.CardCount() == 0):
		mainContent = lipgloss.Place(width, g.height, lipgloss.Center, lipgloss.Center, m.spinner.View()+" Loading...")
	case len(m.columns) == 0:
		mainContent = lipgloss.Place(width, g.height, lipgloss.Center, lipgloss.Center, "No columns yet. Add one with 'dragboard column add'.")
	default:
		mainContent = m.renderBoard(g)
	}
	sections = append(sections, mainContent)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderHeader renders a single header line with title on left and status on right
func (m BoardModel) renderHeader(width int) string {
	if m.board == nil {
		return ""
	}
	title := m.board.Name

	var statusParts []string
	if m.exec != nil {
		if n := m.exec.Pending(m.boardID); n > 0 {
			statusParts = append(statusParts, fmt.Sprintf("%s saving %d", m.spinner.View(), n))
		}
	}
	total := 0
	for _, cards := range m.filteredCards {
		total += len(cards)
	}
	statusParts = append(statusParts, fmt.Sprintf("%d cards", total))
	if m.filterText != "" {
		statusParts = append(statusParts, "/"+m.filterText)
	}
	statusParts = append(statusParts, "[?]help")
	status := strings.Join(statusParts, " | ")

	padding := max(width-lipgloss.Width(title)-lipgloss.Width(status)-2, 1)
	return titleStyle.Render(title) + strings.Repeat(" ", padding) + dimStyle.Render(status)
}

// renderSecondHeader renders navigation hints on the left and, on the
// right, the error toast, the drag status or the position.
func (m BoardModel) renderSecondHeader(width int) string {
	left := "h/l:col j/k:card J/K:reorder m:move enter:view"

	right := ""
	switch {
	case m.errorToast != "":
		right = errorStyle.Render(m.errorToast)
	case m.ctrl.State() == drag.Dragging:
		right = dragStatusStyle.Render(m.dragStatus())
	case len(m.columns) > 0:
		colID := m.columns[m.selectedColumn]
		cards := m.filteredCards[colID]
		right = fmt.Sprintf("col %d/%d", m.selectedColumn+1, len(m.columns))
		if len(cards) > 0 {
			right = fmt.Sprintf("%s | card %d/%d", right, m.selectedCard[colID]+1, len(cards))
		}
	}

	padding := max(width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	return dimStyle.Render(left) + strings.Repeat(" ", padding) + right
}

func (m BoardModel) dragStatus() string {
	s := m.ctrl.Current().Session
	what := s.ItemID
	if s.Kind == domain.KindCard {
		if card, _, _ := m.board.Card(s.ItemID); card != nil {
			what = card.Title
		}
	} else {
		what = m.columnName(s.ItemID)
	}
	if s.Target == nil {
		return fmt.Sprintf("dragging %s: release to cancel", what)
	}
	if s.Kind == domain.KindCard {
		return fmt.Sprintf("dragging %s → %s #%d", what, m.columnName(s.Target.Parent), s.Target.Index+1)
	}
	return fmt.Sprintf("dragging %s → position %d", what, s.Target.Index+1)
}

// renderBoard renders the visible columns with scroll indicators on the
// sides when columns overflow.
func (m BoardModel) renderBoard(g boardGeometry) string {
	columnViews := make([]string, 0, g.end-g.start+2)

	if g.start > 0 {
		columnViews = append(columnViews, lipgloss.NewStyle().
			Width(2).
			Height(g.height).
			Foreground(lipgloss.Color("205")).
			Align(lipgloss.Center, lipgloss.Center).
			Render("◀"))
	}

	for i := g.start; i < g.end; i++ {
		columnViews = append(columnViews, m.renderColumn(i, g))
	}

	if g.end < len(m.columns) {
		columnViews = append(columnViews, lipgloss.NewStyle().
			Width(2).
			Height(g.height).
			Foreground(lipgloss.Color("205")).
			Align(lipgloss.Center, lipgloss.Center).
			Render("▶"))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, columnViews...)
}

// renderColumn renders one column: a header row, then cardHeight rows per
// visible card. Scroll hints live in the header so card rows stay aligned
// with the published geometry.
func (m BoardModel) renderColumn(i int, g boardGeometry) string {
	colID := m.columns[i]
	col, _ := m.board.Column(colID)
	cards := m.filteredCards[colID]
	selected := i == m.selectedColumn
	sess := m.ctrl.Current().Session
	dragging := m.ctrl.State() == drag.Dragging

	offset := m.scrollOffset[colID]
	end := min(offset+g.visibleCards, len(cards))

	headerText := fmt.Sprintf("[%d] %s (%d)", i+1, col.Name, len(cards))
	if offset > 0 {
		headerText += fmt.Sprintf(" ↑%d", offset)
	}
	if end < len(cards) {
		headerText += fmt.Sprintf(" ↓%d", len(cards)-end)
	}
	hs := columnHeaderStyle
	if c, ok := tagColor(col.Color); ok {
		hs = hs.Foreground(c)
	}
	if dragging && sess.Kind == domain.KindColumn && sess.ItemID == colID {
		hs = draggedCardStyle
	}
	lines := []string{hs.Render(truncate.StringWithTail(headerText, uint(g.innerWidth), "…"))}

	for j := offset; j < end; j++ {
		card := cards[j]
		title := truncate.StringWithTail(card.Title, uint(g.innerWidth-2), "…")
		meta := truncate.StringWithTail(cardMeta(card), uint(g.innerWidth-2), "…")
		switch {
		case dragging && sess.Kind == domain.KindCard && sess.ItemID == card.ID:
			lines = append(lines, draggedCardStyle.Render("┆ "+title), draggedCardStyle.Render("┆ "+meta))
		case selected && j == m.selectedCard[colID]:
			lines = append(lines, selectedCardStyle.Render("> "+title), dimStyle.Render("  "+meta))
		default:
			lines = append(lines, cardStyle.Render("  "+title), dimStyle.Render("  "+meta))
		}
	}
	if len(cards) == 0 {
		lines = append(lines, dimStyle.Render("(empty)"))
	}

	borderColor := borderNormal
	if selected {
		borderColor = borderSelected
	}
	if dragging && sess.Target != nil &&
		((sess.Kind == domain.KindCard && sess.Target.Parent == colID) ||
			(sess.Kind == domain.KindColumn && sess.ItemID == colID)) {
		borderColor = borderTarget
	}

	// Width includes border (2) + padding (2) = content width + 4
	// Height(contentHeight) sets content height, border adds 2 more lines
	colStyle := lipgloss.NewStyle().
		Width(g.colWidth - 2).
		Height(g.contentHeight).
		MaxHeight(g.contentHeight + 2).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor)

	return colStyle.Render(strings.Join(lines, "\n"))
}

// cardMeta is the second line of a card: checklist progress, attachment
// count and labels.
func cardMeta(card *domain.Card) string {
	var parts []string
	if n := len(card.Checklist); n > 0 {
		done := 0
		for _, it := range card.Checklist {
			if it.Checked {
				done++
			}
		}
		parts = append(parts, fmt.Sprintf("[%d/%d]", done, n))
	}
	if n := len(card.Attachments); n > 0 {
		parts = append(parts, fmt.Sprintf("@%d", n))
	}
	for _, l := range card.Labels {
		parts = append(parts, "#"+l.Name)
	}
	return strings.Join(parts, " ")
}

// cellPoint maps a terminal cell to the center of that cell in layout
// space, so a pointer on a card's first row sits above its midpoint and on
// its second row below it.
func cellPoint(x, y int) domain.Point {
	return domain.Point{X: float64(x) + 0.5, Y: float64(y) + 0.5}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
