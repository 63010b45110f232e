package view

import "github.com/charmbracelet/lipgloss"

var (
	colorRed    = lipgloss.Color("#FF0000")
	colorGreen  = lipgloss.Color("#00FF00")
	colorYellow = lipgloss.Color("#FFFF00")
	colorCyan   = lipgloss.Color("#00FFFF")
	colorGray   = lipgloss.Color("#666666")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	recordingStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	finalizingStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	waveStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	levelGreenStyle  = lipgloss.NewStyle().Foreground(colorGreen)
	levelYellowStyle = lipgloss.NewStyle().Foreground(colorYellow)
	levelGrayStyle   = lipgloss.NewStyle().Foreground(colorGray)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed)
)
