// Package report builds process compliance reports: for one provider it
// cross-references the aggregator listing, the process specification and the
// provider's own listing, and renders a markdown checklist per process.
package report

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/agentstation/procreport/pkg/constants"
	"github.com/agentstation/procreport/pkg/errors"
)

// Options carries the endpoints and output settings of a report run.
type Options struct {
	// Endpoints
	AggregatorURL string // Aggregator root; the federation map is served here
	SpecURL       string // Specification process array

	// Output
	OutputDir   string // Directory receiving the report files
	FilePattern string // File name pattern with one %s for the provider

	// Scheduling
	MaxConcurrency int // Providers processed at once
}

// Option is a function that configures report Options.
type Option func(*Options)

// Defaults returns the default report options.
func Defaults() *Options {
	return &Options{
		AggregatorURL:  constants.DefaultAggregatorURL,
		SpecURL:        constants.DefaultSpecURL,
		OutputDir:      constants.DefaultOutputDir,
		FilePattern:    constants.DefaultFilePattern,
		MaxConcurrency: constants.MaxConcurrentProviders,
	}
}

// Apply applies the given options.
func (o *Options) Apply(opts ...Option) *Options {
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithAggregatorURL overrides the aggregator endpoint.
func WithAggregatorURL(u string) Option {
	return func(o *Options) {
		if u != "" {
			o.AggregatorURL = u
		}
	}
}

// WithSpecURL overrides the specification endpoint.
func WithSpecURL(u string) Option {
	return func(o *Options) {
		if u != "" {
			o.SpecURL = u
		}
	}
}

// WithOutputDir sets the directory reports are written to.
func WithOutputDir(dir string) Option {
	return func(o *Options) {
		if dir != "" {
			o.OutputDir = dir
		}
	}
}

// WithFilePattern sets the report file name pattern.
func WithFilePattern(pattern string) Option {
	return func(o *Options) {
		if pattern != "" {
			o.FilePattern = pattern
		}
	}
}

// WithMaxConcurrency bounds how many providers run at once.
func WithMaxConcurrency(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxConcurrency = n
		}
	}
}

// Validate checks that the options can be used for a run.
func (o *Options) Validate() error {
	endpoints := []struct{ field, raw string }{
		{"AggregatorURL", o.AggregatorURL},
		{"SpecURL", o.SpecURL},
	}
	for _, e := range endpoints {
		u, err := url.Parse(e.raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return &errors.ValidationError{
				Field:   e.field,
				Value:   e.raw,
				Message: "must be an absolute URL",
			}
		}
	}

	// fmt marks verb and argument mismatches with %!.
	name := fmt.Sprintf(o.FilePattern, "provider")
	if strings.Contains(name, "%!") {
		return &errors.ValidationError{
			Field:   "FilePattern",
			Value:   o.FilePattern,
			Message: "must contain exactly one %s placeholder",
		}
	}
	if strings.ContainsAny(name, `/\`) {
		return &errors.ValidationError{
			Field:   "FilePattern",
			Value:   o.FilePattern,
			Message: "must name a file, not a path",
		}
	}

	if o.MaxConcurrency < 1 {
		return &errors.ValidationError{
			Field:   "MaxConcurrency",
			Value:   o.MaxConcurrency,
			Message: "must be at least 1",
		}
	}
	return nil
}

// FileName returns the report file name for provider.
func (o *Options) FileName(provider string) string {
	return fmt.Sprintf(o.FilePattern, provider)
}
