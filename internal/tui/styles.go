package tui

import "github.com/charmbracelet/lipgloss"

var (
	// TitleStyle is used for screen titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")). // Purple
			MarginBottom(1)

	// SelectedItemStyle is used for highlighted/selected items.
	SelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("170")). // Light purple
				Bold(true)

	// NormalItemStyle is used for non-selected items.
	NormalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")) // Light gray

	// ErrorStyle is used for error messages.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // Red
			Bold(true)

	// HelpStyle is used for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")). // Dark gray
			MarginTop(1)
)

// colorNames maps the color names GitHub uses for field options to ANSI
// colors. Anything else is passed to lipgloss as is (hex or ANSI number).
var colorNames = map[string]string{
	"gray":   "245",
	"blue":   "33",
	"green":  "34",
	"yellow": "220",
	"orange": "208",
	"red":    "196",
	"pink":   "205",
	"purple": "141",
}

// tagColor converts a stored color tag into a lipgloss color. The second
// result is false when no color is set.
func tagColor(tag string) (lipgloss.Color, bool) {
	if tag == "" {
		return "", false
	}
	if c, ok := colorNames[tag]; ok {
		return lipgloss.Color(c), true
	}
	return lipgloss.Color(tag), true
}
