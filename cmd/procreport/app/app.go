// Package app provides the application context and dependency management
// for the procreport CLI: configuration, logging and the wiring of the
// report generator.
package app

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/agentstation/procreport/internal/sources"
	"github.com/agentstation/procreport/internal/transport"
	"github.com/agentstation/procreport/internal/validation"
	"github.com/agentstation/procreport/pkg/errors"
	"github.com/agentstation/procreport/pkg/report"
	"github.com/agentstation/procreport/pkg/rules"
)

// App represents the procreport application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger
	// loggerFixed keeps an injected logger across flag parsing.
	loggerFixed bool

	stdout io.Writer
	stderr io.Writer

	// fetcher replaces the HTTP sources client when set.
	fetcher report.Fetcher
}

// New creates a new App instance with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.config == nil {
		config, err := LoadConfig("")
		if err != nil {
			return nil, err
		}
		app.config = config
	}

	if app.logger == nil {
		logger := newLogger(app.config, app.stderr)
		app.logger = &logger
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// Shutdown performs graceful shutdown of the application. Report runs stop
// on context cancellation, so there is nothing left to release.
func (a *App) Shutdown(_ context.Context) error {
	return nil
}

// Catalog returns the configured rule catalog.
func (a *App) Catalog() (*rules.Catalog, error) {
	if a.config.RulesFile != "" {
		return rules.Load(a.config.RulesFile)
	}
	return rules.Default()
}

// Fetcher returns the document fetcher for report generation.
func (a *App) Fetcher() (report.Fetcher, error) {
	if a.fetcher != nil {
		return a.fetcher, nil
	}

	validator, err := validation.New()
	if err != nil {
		return nil, errors.NewConfigError("validation", "cannot compile document schemas", err)
	}

	client := transport.New(
		transport.WithTimeout(a.config.HTTPTimeout),
		transport.WithUserAgent("procreport/"+a.version),
	)
	return sources.New(client, validator), nil
}

// ReportOptions builds the report options from the configuration.
func (a *App) ReportOptions() (*report.Options, error) {
	opts := report.Defaults().Apply(
		report.WithAggregatorURL(a.config.AggregatorURL),
		report.WithSpecURL(a.config.SpecURL),
		report.WithOutputDir(a.config.OutputDir),
		report.WithFilePattern(a.config.FilePattern),
		report.WithMaxConcurrency(a.config.MaxConcurrency),
	)
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		a.loggerFixed = logger != nil
		return nil
	}
}

// WithOutput redirects command output (useful for testing).
func WithOutput(stdout, stderr io.Writer) Option {
	return func(a *App) error {
		if stdout != nil {
			a.stdout = stdout
		}
		if stderr != nil {
			a.stderr = stderr
		}
		return nil
	}
}

// WithFetcher sets a custom document fetcher (useful for testing).
func WithFetcher(f report.Fetcher) Option {
	return func(a *App) error {
		a.fetcher = f
		return nil
	}
}
