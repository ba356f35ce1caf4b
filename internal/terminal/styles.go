package terminal

import "github.com/charmbracelet/lipgloss"

var (
	styleMuted   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleHeader  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	styleSkill   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	styleMatched = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleMissing = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleBox     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1)

	kindStyles = map[string]lipgloss.Style{
		"info":    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		"success": lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		"warning": lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		"error":   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
)
