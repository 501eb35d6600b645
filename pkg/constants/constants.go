// Package constants provides shared constants used throughout procreport.
// This includes the default remote endpoints, timeouts, limits and file
// permissions that should be consistent across the application.
package constants

import "time"

// Remote endpoint defaults
const (
	// DefaultAggregatorURL is the base URL of the federating aggregator.
	// The federation map is served at the base URL itself and the merged
	// process catalog at {base}/processes.
	DefaultAggregatorURL = "https://openeocloud.vito.be/openeo/1.0.0"

	// DefaultSpecURL serves the canonical process specification as a bare JSON array
	DefaultSpecURL = "https://processes.openeo.org/processes.json"

	// ProcessesPath is appended to aggregator and backend base URLs
	ProcessesPath = "/processes"
)

// DefaultProviders is the list of federation members reported on when no
// providers are configured.
var DefaultProviders = []string{"eodc", "vito", "sentinelhub"}

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the per-request timeout for remote documents
	DefaultHTTPTimeout = 30 * time.Second

	// ShutdownTimeout bounds cleanup after a failed command
	ShutdownTimeout = 5 * time.Second
)

// Limit constants
const (
	// MaxConcurrentProviders is the maximum number of provider reports generated concurrently
	MaxConcurrentProviders = 5

	// MaxResponseBytes caps the size of a remote JSON document (32 MiB)
	MaxResponseBytes = 32 << 20
)

// Report output constants
const (
	// DefaultFilePattern names the report file; %s is replaced by the provider identifier
	DefaultFilePattern = "process-report-%s.md"

	// DefaultOutputDir is where report files are written
	DefaultOutputDir = "."
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)
