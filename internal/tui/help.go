package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"
)

var (
	helpOverlayStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2).
				MarginTop(2)

	gestureKeyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	gestureDescStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// gesture is a pointer action shown next to the key bindings.
type gesture struct {
	input, action string
}

var gestures = []gesture{
	{"drag card", "move it to another slot or column"},
	{"drag header", "reorder columns"},
	{"drag to edge", "scroll the list under the pointer"},
	{"esc while dragging", "drop nothing"},
	{"click", "select"},
	{"wheel", "scroll a column"},
}

// HelpModel renders the key bindings and mouse gestures of the board.
type HelpModel struct {
	help   help.Model
	keymap KeyMap
}

// NewHelpModel creates the help overlay for keymap.
func NewHelpModel(keymap KeyMap) HelpModel {
	h := help.New()
	h.ShowAll = true
	return HelpModel{help: h, keymap: keymap}
}

// View renders the overlay within width columns.
func (m HelpModel) View(width int) string {
	m.help.Width = width - 8 // border and padding

	var b strings.Builder
	b.WriteString(m.help.View(m.keymap))
	b.WriteString("\n\n")
	for i, g := range gestures {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(gestureKeyStyle.Render(g.input) + " " + gestureDescStyle.Render(g.action))
	}
	return helpOverlayStyle.Render(b.String())
}
