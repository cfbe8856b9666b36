package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F5C2E7")).
			Padding(0, 1)

	userLabelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89B4FA"))
	modelLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A6E3A1"))
	indexStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))

	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#BAC2DE")).Padding(0, 1)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")).Padding(0, 1)

	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#7F849C"))
	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#585B70")).
			Padding(0, 1)
)
