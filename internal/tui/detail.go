package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/pkg/browser"

	"github.com/robby/dragboard/internal/domain"
)

// Layout constants
const (
	leftPanelRatio = 0.35 // Left panel takes 35% of width
	minLeftWidth   = 30
	maxLeftWidth   = 50
	headerHeight   = 1
	footerHeight   = 1
	borderSize     = 2 // Top + bottom border
)

// Detail view styles
var (
	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205"))

	detailLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))

	detailValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)

	checkedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("34"))

	cursorItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	panelBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))

	focusedPanelBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("205"))

	scrollIndicatorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("205"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228")).
			Bold(true)
)

// ErrReadOnly is reported when the backend cannot edit checklists.
var ErrReadOnly = errors.New("checklists are read-only on this board")

// ChecklistEditor edits card checklists. Backends that cannot do it are
// shown read-only.
type ChecklistEditor interface {
	AddChecklistItem(ctx context.Context, cardID, text string) (*domain.ChecklistItem, error)
	ToggleChecklistItem(ctx context.Context, id string) error
}

// DetailModel represents the card detail view with split-screen layout
type DetailModel struct {
	// Dependencies
	editor   ChecklistEditor
	ctx      context.Context
	openLink func(string) error

	// Card data, a private copy edited in place
	card   domain.Card
	column string

	// UI components
	spinner   spinner.Model
	itemInput textarea.Model
	viewport  viewport.Model

	// State
	cursor        int // selected checklist entry
	addMode       bool
	confirmExit   bool // Show "unsaved changes" prompt
	loading       bool
	loadingAction string
	changed       bool
	errorMsg      string
	successMsg    string

	// View dimensions
	width  int
	height int
}

// NewDetailModel creates a new detail view model. editor may be nil.
func NewDetailModel(ctx context.Context, card *domain.Card, column string, editor ChecklistEditor) DetailModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ta := textarea.New()
	ta.Placeholder = "New checklist item..."
	ta.CharLimit = 500
	ta.SetHeight(3)
	ta.SetWidth(40) // Will be resized
	ta.ShowLineNumbers = false
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle() // No highlight on cursor line
	ta.FocusedStyle.Base = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("228"))
	ta.BlurredStyle.Base = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240"))

	vp := viewport.New(40, 10) // Will be resized in WindowSizeMsg
	vp.MouseWheelEnabled = true
	vp.MouseWheelDelta = 3

	c := *card
	c.Checklist = append([]domain.ChecklistItem(nil), card.Checklist...)

	m := DetailModel{
		editor:    editor,
		ctx:       ctx,
		openLink:  browser.OpenURL,
		card:      c,
		column:    column,
		spinner:   sp,
		itemInput: ta,
		viewport:  vp,
	}
	m.updateViewportContent()
	return m
}

// Init initializes the detail model
func (m DetailModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tea.WindowSize())
}

// Update handles messages
func (m DetailModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeComponents()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case checklistAddedMsg:
		m.loading = false
		m.addMode = false
		m.changed = true
		m.successMsg = "Item added"
		m.itemInput.Reset()
		m.itemInput.Blur()
		m.card.Checklist = append(m.card.Checklist, msg.item)
		m.cursor = len(m.card.Checklist) - 1
		m.updateViewportContent()
		return m, nil

	case checklistToggledMsg:
		m.loading = false
		m.changed = true
		for i := range m.card.Checklist {
			if m.card.Checklist[i].ID == msg.id {
				m.card.Checklist[i].Checked = !m.card.Checklist[i].Checked
			}
		}
		m.updateViewportContent()
		return m, nil

	case checklistErrorMsg:
		m.loading = false
		m.errorMsg = fmt.Sprintf("Failed: %v", msg.err)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.MouseMsg:
		if !m.addMode {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	// Update textarea when adding (for blink, etc.)
	if m.addMode {
		var cmd tea.Cmd
		m.itemInput, cmd = m.itemInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// resizeComponents calculates and sets component dimensions
func (m *DetailModel) resizeComponents() {
	leftWidth := clamp(int(float64(m.width)*leftPanelRatio), minLeftWidth, maxLeftWidth)

	// Right panel gets remaining width minus borders and gap
	rightWidth := max(m.width-leftWidth-3, 30)

	// Content height = total - header - footer - borders
	contentHeight := max(m.height-headerHeight-footerHeight-borderSize, 10)

	m.viewport.Width = rightWidth - borderSize - 2 // -2 for padding
	m.viewport.Height = max(contentHeight-borderSize-1, 3)

	m.itemInput.SetWidth(rightWidth - borderSize - 4)
	m.updateViewportContent()
}

func (m DetailModel) close() tea.Cmd {
	changed := m.changed
	return func() tea.Msg { return closeDetailMsg{changed: changed} }
}

// handleKeyPress processes keyboard input
func (m DetailModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	// Confirm exit dialog
	if m.confirmExit {
		switch msg.String() {
		case "y", "Y":
			m.confirmExit = false
			m.addMode = false
			m.itemInput.Reset()
			m.itemInput.Blur()
			return m, nil
		case "n", "N", "esc":
			m.confirmExit = false
			return m, nil
		case "s", "S":
			m.confirmExit = false
			return m.saveItem()
		}
		return m, nil
	}

	// Add mode - textarea gets all key events except special ones
	if m.addMode {
		switch msg.String() {
		case "esc":
			if strings.TrimSpace(m.itemInput.Value()) != "" {
				m.confirmExit = true
				return m, nil
			}
			m.addMode = false
			m.itemInput.Blur()
			return m, nil
		case "ctrl+s":
			return m.saveItem()
		default:
			var cmd tea.Cmd
			m.itemInput, cmd = m.itemInput.Update(msg)
			return m, cmd
		}
	}

	m.errorMsg = ""
	switch msg.String() {
	case "q", "esc":
		return m, m.close()
	case "o":
		if len(m.card.Attachments) > 0 && m.openLink != nil {
			if err := m.openLink(m.card.Attachments[0].URL); err != nil {
				m.errorMsg = fmt.Sprintf("Open failed: %v", err)
			}
		}
	case "a":
		if m.editor == nil {
			m.errorMsg = ErrReadOnly.Error()
			return m, nil
		}
		m.addMode = true
		m.successMsg = ""
		m.itemInput.Focus()
		return m, textarea.Blink
	case "x", " ":
		return m.toggleItem()
	case "J":
		if m.cursor < len(m.card.Checklist)-1 {
			m.cursor++
			m.updateViewportContent()
		}
	case "K":
		if m.cursor > 0 {
			m.cursor--
			m.updateViewportContent()
		}
	case "j", "down":
		m.viewport.LineDown(1)
	case "k", "up":
		m.viewport.LineUp(1)
	case "ctrl+d":
		m.viewport.HalfViewDown()
	case "ctrl+u":
		m.viewport.HalfViewUp()
	case "g":
		m.viewport.GotoTop()
	case "G":
		m.viewport.GotoBottom()
	}

	return m, nil
}

func (m DetailModel) saveItem() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.itemInput.Value())
	if text == "" {
		return m, nil
	}
	m.loading = true
	m.loadingAction = "Saving..."
	return m, m.addItem(text)
}

func (m DetailModel) toggleItem() (tea.Model, tea.Cmd) {
	if len(m.card.Checklist) == 0 {
		return m, nil
	}
	if m.editor == nil {
		m.errorMsg = ErrReadOnly.Error()
		return m, nil
	}
	m.loading = true
	m.loadingAction = "Saving..."
	id := m.card.Checklist[m.cursor].ID
	editor, ctx := m.editor, m.ctx
	return m, func() tea.Msg {
		if err := editor.ToggleChecklistItem(ctx, id); err != nil {
			return checklistErrorMsg{err: err}
		}
		return checklistToggledMsg{id: id}
	}
}

func (m DetailModel) addItem(text string) tea.Cmd {
	editor, ctx, cardID := m.editor, m.ctx, m.card.ID
	return func() tea.Msg {
		item, err := editor.AddChecklistItem(ctx, cardID, text)
		if err != nil {
			return checklistErrorMsg{err: err}
		}
		return checklistAddedMsg{item: *item}
	}
}

// View renders the split-screen detail view
func (m DetailModel) View() string {
	width := m.width
	height := m.height
	if width == 0 {
		width = 100
	}
	if height == 0 {
		height = 30
	}

	leftWidth := clamp(int(float64(width)*leftPanelRatio), minLeftWidth, maxLeftWidth)
	rightWidth := width - leftWidth - 1 // 1 char gap
	contentHeight := max(height-headerHeight-footerHeight, 10)

	header := m.renderHeader()

	leftContent := m.renderLeftPanel(leftWidth - borderSize)
	leftPanel := panelBorderStyle.
		Width(leftWidth - borderSize).
		Height(contentHeight - borderSize).
		Render(leftContent)

	rightContent := m.renderRightPanel()
	rightBorder := focusedPanelBorderStyle
	if m.addMode {
		rightBorder = panelBorderStyle // Unfocus when typing
	}
	rightPanel := rightBorder.
		Width(rightWidth - borderSize).
		Height(contentHeight - borderSize).
		Render(rightContent)

	panels := lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, " ", rightPanel)
	footer := m.renderFooter(width)

	return lipgloss.JoinVertical(lipgloss.Left, header, panels, footer)
}

// renderHeader renders the top help bar
func (m DetailModel) renderHeader() string {
	if m.confirmExit {
		return warningStyle.Render("Unsaved item! [Y]discard [N]cancel [S]save")
	}
	if m.addMode {
		return dimStyle.Render("[Ctrl+S]save [ESC]cancel") + "  " +
			sectionStyle.Render("Adding checklist item...")
	}

	parts := []string{"[q]back", "[j/k]scroll", "[J/K]item", "[x]toggle", "[a]add"}
	if len(m.card.Attachments) > 0 {
		parts = append(parts, "[o]open")
	}
	return dimStyle.Render(strings.Join(parts, " "))
}

// renderFooter renders the bottom status bar
func (m DetailModel) renderFooter(width int) string {
	var left, right string

	switch {
	case m.loading:
		left = m.spinner.View() + " " + m.loadingAction
	case m.successMsg != "":
		left = lipgloss.NewStyle().Foreground(lipgloss.Color("34")).Render("✓ " + m.successMsg)
	case m.errorMsg != "":
		left = errorStyle.Render("✗ " + m.errorMsg)
	case m.addMode:
		left = fmt.Sprintf("%d chars", len(m.itemInput.Value()))
	}

	if !m.addMode && m.viewport.TotalLineCount() > m.viewport.Height {
		switch {
		case m.viewport.AtTop():
			right = "TOP"
		case m.viewport.AtBottom():
			right = "END"
		default:
			right = fmt.Sprintf("%d%%", int(m.viewport.ScrollPercent()*100))
		}
	}

	padding := max(width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	return dimStyle.Render(left) + strings.Repeat(" ", padding) + dimStyle.Render(right)
}

// renderLeftPanel renders the card metadata panel
func (m DetailModel) renderLeftPanel(width int) string {
	var b strings.Builder

	if m.column != "" {
		b.WriteString(detailLabelStyle.Render(m.column))
		b.WriteString("\n\n")
	}

	b.WriteString(detailTitleStyle.Render(wordwrap.String(m.card.Title, width-2)))
	b.WriteString("\n\n")

	if !m.card.CreatedAt.IsZero() {
		b.WriteString(detailLabelStyle.Render("Created: "))
		b.WriteString(detailValueStyle.Render(formatTimeAgo(m.card.CreatedAt)))
		b.WriteString("\n")
	}
	if !m.card.UpdatedAt.IsZero() && !m.card.UpdatedAt.Equal(m.card.CreatedAt) {
		b.WriteString(detailLabelStyle.Render("Updated: "))
		b.WriteString(detailValueStyle.Render(formatTimeAgo(m.card.UpdatedAt)))
		b.WriteString("\n")
	}

	if len(m.card.Labels) > 0 {
		b.WriteString(detailLabelStyle.Render("Labels: "))
		names := make([]string, 0, len(m.card.Labels))
		for _, l := range m.card.Labels {
			style := detailValueStyle
			if c, ok := tagColor(l.Color); ok {
				style = style.Foreground(c)
			}
			names = append(names, style.Render(l.Name))
		}
		b.WriteString(strings.Join(names, ", "))
		b.WriteString("\n")
	}

	if len(m.card.Attachments) > 0 {
		b.WriteString("\n")
		b.WriteString(detailLabelStyle.Render("Attachments:"))
		b.WriteString("\n")
		for _, a := range m.card.Attachments {
			b.WriteString(detailValueStyle.Render("• " + a.Name))
			b.WriteString("\n")
			if a.URL != a.Name {
				b.WriteString(dimStyle.Render("  " + a.URL))
				b.WriteString("\n")
			}
		}
	}

	return b.String()
}

// renderRightPanel renders the description and checklist
func (m DetailModel) renderRightPanel() string {
	var b strings.Builder

	title := "Checklist"
	if n := len(m.card.Checklist); n > 0 {
		done := 0
		for _, it := range m.card.Checklist {
			if it.Checked {
				done++
			}
		}
		title = fmt.Sprintf("Checklist %d/%d", done, n)
	}

	scrollHint := ""
	if !m.addMode && m.viewport.TotalLineCount() > m.viewport.Height {
		switch {
		case m.viewport.AtTop():
			scrollHint = " ↓"
		case m.viewport.AtBottom():
			scrollHint = " ↑"
		default:
			scrollHint = " ↕"
		}
	}

	b.WriteString(detailLabelStyle.Render(title))
	b.WriteString(scrollIndicatorStyle.Render(scrollHint))
	b.WriteString("\n")

	if m.addMode {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("New Item"))
		b.WriteString("\n\n")
		b.WriteString(m.itemInput.View())
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render("Ctrl+S to save • ESC to cancel"))
		return b.String()
	}

	b.WriteString(m.viewport.View())
	return b.String()
}

// updateViewportContent formats description and checklist for the viewport
func (m *DetailModel) updateViewportContent() {
	var b strings.Builder
	wrapWidth := max(m.viewport.Width-4, 30)

	if m.card.Description != "" {
		b.WriteString(sectionStyle.Render("Description"))
		b.WriteString("\n")
		b.WriteString(detailValueStyle.Render(wordwrap.String(m.card.Description, wrapWidth)))
		b.WriteString("\n\n")
	}

	if len(m.card.Checklist) == 0 {
		b.WriteString(dimStyle.Render("No checklist items"))
		if m.editor != nil {
			b.WriteString("\n\n")
			b.WriteString(dimStyle.Render("Press 'a' to add one"))
		}
	}
	for i, it := range m.card.Checklist {
		box := "[ ]"
		style := detailValueStyle
		if it.Checked {
			box = "[x]"
			style = checkedStyle
		}
		line := box + " " + it.Text
		if i == m.cursor {
			b.WriteString(cursorItemStyle.Render("> " + line))
		} else {
			b.WriteString(style.Render("  " + line))
		}
		b.WriteString("\n")
	}

	m.viewport.SetContent(b.String())
}

// formatTimeAgo converts a timestamp to relative time
func formatTimeAgo(t time.Time) string {
	duration := time.Since(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		mins := int(duration.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case duration < 24*time.Hour:
		hours := int(duration.Hours())
		if hours == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hours)
	case duration < 7*24*time.Hour:
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	case duration < 30*24*time.Hour:
		weeks := int(duration.Hours() / 24 / 7)
		if weeks == 1 {
			return "1w ago"
		}
		return fmt.Sprintf("%dw ago", weeks)
	case duration < 365*24*time.Hour:
		months := int(duration.Hours() / 24 / 30)
		if months == 1 {
			return "1mo ago"
		}
		return fmt.Sprintf("%dmo ago", months)
	default:
		years := int(duration.Hours() / 24 / 365)
		if years == 1 {
			return "1y ago"
		}
		return fmt.Sprintf("%dy ago", years)
	}
}

// Message types for detail view
type (
	checklistAddedMsg   struct{ item domain.ChecklistItem }
	checklistToggledMsg struct{ id string }
	checklistErrorMsg   struct{ err error }
)
