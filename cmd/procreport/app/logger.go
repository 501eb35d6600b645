package app

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/agentstation/procreport/pkg/logging"
)

// NewLogger creates a configured logger based on the application configuration.
// Log level precedence (highest to lowest):
//  1. --log-level flag or PROCREPORT_LOG_LEVEL / LOG_LEVEL
//  2. -v/--verbose flag (shortcut for debug)
//  3. -q/--quiet flag (shortcut for warn)
//  4. Default (info)
func NewLogger(config *Config) zerolog.Logger {
	return newLogger(config, os.Stderr)
}

func newLogger(config *Config, warnings io.Writer) zerolog.Logger {
	level := determineLogLevel(config, warnings)

	logConfig := &logging.Config{
		Level:     level,
		Format:    config.LogFormat,
		Output:    config.LogOutput,
		NoColor:   config.NoColor,
		AddCaller: level == "debug" || level == "trace",
	}

	return logging.NewLoggerFromConfig(logConfig)
}

// determineLogLevel determines the log level using the precedence rules above.
func determineLogLevel(config *Config, warnings io.Writer) string {
	if config.LogLevel != "" {
		validated := validateLogLevel(config.LogLevel)
		if validated != config.LogLevel {
			_, _ = fmt.Fprintf(warnings, "Warning: invalid log level %q, using %q\n", config.LogLevel, validated)
		}
		return validated
	}

	if config.Verbose && config.Quiet {
		_, _ = fmt.Fprintf(warnings, "Warning: both --verbose and --quiet specified, using --quiet\n")
		return "warn"
	}

	if config.Verbose {
		return "debug"
	}
	if config.Quiet {
		return "warn"
	}

	return "info"
}

// validateLogLevel returns level if it is known, otherwise "info".
func validateLogLevel(level string) string {
	switch level {
	case "trace", "debug", "info", "warn", "error":
		return level
	default:
		return "info"
	}
}
