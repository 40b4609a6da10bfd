// Package replay renders a recorded sitting as a readable timeline.
package replay

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Each actor in the chamber keeps one consistent color.
var (
	// Structural / metadata
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")) // Gray - timestamps, metadata

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")) // Gray - labels

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")) // White - values

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")) // White bold - headers

	// Speaker rulings - Yellow
	speakerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("11"))

	// Factions - Cyan
	factionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("14"))

	// Amendments - Magenta
	amendmentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("13"))

	// Gateway calls - Blue
	gatewayStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12"))

	// Degradations - Orange
	degradeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208"))

	// Outcomes
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")) // Green

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")) // Red

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")) // Yellow

	// Timeline
	seqStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			Width(5).
			Align(lipgloss.Right)

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	blockHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("8")).
				Italic(true)

	divider = lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Render(strings.Repeat("━", 60))
)

// choiceStyle colors a vote choice.
func choiceStyle(choice string) lipgloss.Style {
	switch choice {
	case "APPROVE":
		return successStyle
	case "REJECT":
		return errorStyle
	default:
		return warnStyle
	}
}
