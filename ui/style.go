package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	FooterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	MutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	BusyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// Colorize renders text in a 24-bit color given as 0xRRGGBB.
func Colorize(text string, color int) string {
	hexColor := fmt.Sprintf("#%06x", color&0xffffff)
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hexColor)).Render(text)
}

// SeverityStyle returns the style used for messages of the given severity.
func SeverityStyle(s Severity) lipgloss.Style {
	switch s {
	case SeveritySuccess:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	case SeverityWarning:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	case SeverityError:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	}
}
