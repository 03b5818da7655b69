package monitor

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("240"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true)

	statusRunning = lipgloss.NewStyle().
			Foreground(lipgloss.Color("34"))

	statusDone = lipgloss.NewStyle().
			Foreground(lipgloss.Color("28"))

	statusFailed = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	statusCancelled = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	faintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	detailStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)
