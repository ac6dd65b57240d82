// Package emoji provides symbol constants for CLI output.
// These symbols create a consistent visual language across all command-line commands.
package emoji

// Symbol constants for CLI output provide a consistent visual language across commands.
// These symbols are used for status indicators, alerts, and user feedback in terminal output.
const (
	// Success represents successful completion of an operation.
	// Used for: completed runs, enabled providers, passing validation.
	Success = "✓"

	// Error represents failures or missing required configuration.
	// Used for: failed runs, missing credentials, validation errors.
	Error = "✗"

	// Warning represents warnings or non-critical issues.
	// Used for: quality issues, paused runs, recommendations.
	Warning = "!"

	// Optional represents optional or skipped configuration.
	// Used for: disabled providers, stopped schedules.
	Optional = "-"

	// Unknown represents unknown or indeterminate states.
	// Used for: providers that have never synced.
	Unknown = "?"
)
