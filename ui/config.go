// Package ui renders pipeline progress in the terminal: a spinner, a
// progress bar, the current stage, and a short tail of recent events.
package ui

// Config contains TUI-specific configuration, partly read from the
// environment.
type Config struct {
	// Title is shown above the progress bar.
	Title string

	// GlamourStyle picks the markdown style for the storyboard summary.
	GlamourStyle string `env:"GLAMOUR_STYLE"`

	// For debugging the UI.
	AltScreen bool `env:"FABLECAST_ALT_SCREEN" envDefault:"false"`
}
