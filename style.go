package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"
)

var (
	keywordStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"})
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#02BA84", Dark: "#02BF87"})
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D5A31A", Dark: "#ECC541"})
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#ED567A", Dark: "#ED567A"})
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"})
)

// paragraph wraps and indents text for help output.
func paragraph(s string) string {
	return indent.String(wordwrap.String(s, 76), 2)
}

// keyword highlights a word in help text.
func keyword(s string) string {
	return keywordStyle.Render(s)
}

// mark renders a pass/fail bullet for setup and doctor summaries.
func mark(ok bool) string {
	if ok {
		return okStyle.Render("✓")
	}
	return failStyle.Render("✗")
}

// defaultGlamourStyle picks a glamour style from the terminal
// background when the user asked for auto.
func defaultGlamourStyle(requested string) string {
	if requested != "auto" {
		return requested
	}
	if termenv.HasDarkBackground() {
		return "dark"
	}
	return "light"
}
