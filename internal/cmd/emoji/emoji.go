// Package emoji provides symbol constants for CLI output.
package emoji

// Status symbols shared by command output.
const (
	// Success marks a report that was written.
	Success = "✓"

	// Error marks a provider whose report could not be produced.
	Error = "✗"

	// Warning marks non-fatal problems such as a partially failed batch.
	Warning = "!"

	// Info marks informational hints.
	Info = "i"
)
