package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFDF5")).Background(lipgloss.Color("62")).Padding(0, 1)
	modeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#AFAFAF"))
	smartStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))

	userStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	systemStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	bodyStyle   = lipgloss.NewStyle().PaddingLeft(2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("160")).
			Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	pickerStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2)
)
