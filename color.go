package subsync

import "github.com/fatih/color"

// ColorMode defines color output behavior.
type ColorMode string

const (
	ColorModeAuto   ColorMode = "auto"   // Color when TTY
	ColorModeAlways ColorMode = "always" // Always color
	ColorModeNever  ColorMode = "never"  // No color
)

var (
	// Per-submodule status markers
	colorUpdated  = color.New(color.FgGreen).SprintFunc()  // updated
	colorUpToDate = color.New(color.FgCyan).SprintFunc()   // up-to-date
	colorSkipped  = color.New(color.FgYellow).SprintFunc() // skipped
	colorFailed   = color.New(color.FgRed).SprintFunc()    // failed

	// Summary header
	colorSummary = color.New(color.Bold).SprintFunc()

	// Selection reasons and other secondary detail
	colorReason = color.New(color.FgHiBlack).SprintFunc()

	// Errors
	colorError = color.New(color.FgRed).SprintFunc()
)

// SetColorMode configures color output based on mode.
func SetColorMode(mode ColorMode) {
	switch mode {
	case ColorModeAlways:
		color.NoColor = false
	case ColorModeNever:
		color.NoColor = true
	case ColorModeAuto:
		// Use fatih/color default behavior (TTY detection)
	}
}

// IsColorEnabled returns whether color output is enabled.
// This should be called after SetColorMode.
func IsColorEnabled() bool {
	return !color.NoColor
}
