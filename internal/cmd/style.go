package cmd

import "github.com/charmbracelet/lipgloss"

// Shared styles for human-readable command output.
var (
	headerStyle = lipgloss.NewStyle().Bold(true)

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	itemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

// statusStyle picks a style for an iteration or phase outcome string.
func statusStyle(outcome string) lipgloss.Style {
	switch outcome {
	case "ok", "success", "complete", "open":
		return okStyle
	case "idle", "timeout", "halted", "in_progress":
		return warnStyle
	case "failed", "failure", "fatal", "breaker", "blocked":
		return failStyle
	default:
		return dimStyle
	}
}
