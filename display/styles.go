// Package display renders videomass output for the terminal: tables,
// banners and per-task progress bars.
package display

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFF")).
			Background(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#06B6D4")).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	dimStyle     = lipgloss.NewStyle().Faint(true)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
)

// Banner renders a section title.
func Banner(title string) string {
	return titleStyle.Render(title)
}

// Success renders a success line.
func Success(format string, args ...any) string {
	return successStyle.Render("✓") + " " + fmt.Sprintf(format, args...)
}

// Warning renders a warning line.
func Warning(format string, args ...any) string {
	return warnStyle.Render("!") + " " + fmt.Sprintf(format, args...)
}

// Error renders an error line.
func Error(format string, args ...any) string {
	return errorStyle.Render("✗") + " " + fmt.Sprintf(format, args...)
}

// Dim renders secondary text.
func Dim(s string) string {
	return dimStyle.Render(s)
}
