package subsync

// FormatResult holds formatted output strings.
type FormatResult struct {
	Stdout string
	Stderr string
}
