package report

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/agentstation/procreport/pkg/errors"
	"github.com/agentstation/procreport/pkg/logging"
)

// Result is the outcome of one provider run.
type Result struct {
	Provider string        `json:"provider" yaml:"provider"`
	Path     string        `json:"path,omitempty" yaml:"path,omitempty"`
	Sections int           `json:"sections" yaml:"sections"`
	Err      error         `json:"-" yaml:"-"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// OK reports whether the provider's report was written.
func (r Result) OK() bool {
	return r.Err == nil
}

// Results are provider outcomes in the order the providers were given.
type Results []Result

// Failed returns the number of failed providers.
func (rs Results) Failed() int {
	n := 0
	for _, r := range rs {
		if !r.OK() {
			n++
		}
	}
	return n
}

// AllFailed reports whether no provider succeeded. An empty result set has
// not failed.
func (rs Results) AllFailed() bool {
	return len(rs) > 0 && rs.Failed() == len(rs)
}

// Summary returns a one-line human-readable summary.
func (rs Results) Summary() string {
	return fmt.Sprintf("%d of %d reports written", len(rs)-rs.Failed(), len(rs))
}

// Runner generates and writes reports for many providers. Each provider is
// an independent task; a failure or panic in one never affects another.
type Runner struct {
	generator *Generator
}

// NewRunner creates a runner around g.
func NewRunner(g *Generator) *Runner {
	return &Runner{generator: g}
}

// Run processes all providers and waits for every task to finish. At most
// Options.MaxConcurrency providers run at once.
func (r *Runner) Run(ctx context.Context, providers []string) Results {
	opts := r.generator.Options()
	results := make(Results, len(providers))

	limit := opts.MaxConcurrency
	if limit < 1 {
		limit = 1
	}
	semaphore := make(chan struct{}, limit)

	var wg sync.WaitGroup
	for i, provider := range providers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			results[i] = r.runOne(ctx, provider)
		}()
	}
	wg.Wait()

	return results
}

// runOne builds and writes one report.
func (r *Runner) runOne(ctx context.Context, provider string) (res Result) {
	start := time.Now()
	res.Provider = provider

	ctx = logging.WithProvider(ctx, provider)
	logger := logging.FromContext(ctx)

	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("report generation panicked: %v", p)
			logger.Error().Str("stack", string(debug.Stack())).Msg("Provider task panicked")
		}
		res.Duration = time.Since(start)
		if res.Err != nil {
			res.Path = ""
			logger.Error().
				Err(res.Err).
				Str("cause", failureCause(res.Err)).
				Dur("duration", res.Duration).
				Msg("Report failed")
			return
		}
		logger.Info().
			Str("path", res.Path).
			Int("sections", res.Sections).
			Dur("duration", res.Duration).
			Msg("Report written")
	}()

	if err := validateProvider(provider); err != nil {
		res.Err = err
		return res
	}

	logger.Info().Msg("Generating report")

	report, err := r.generator.Build(ctx, provider)
	if err != nil {
		res.Err = err
		return res
	}

	opts := r.generator.Options()
	path, err := WriteReport(opts.OutputDir, opts.FileName(provider), report.String())
	if err != nil {
		res.Err = err
		return res
	}

	res.Path = path
	res.Sections = len(report.Sections)
	return res
}

// failureCause classifies a failed run for the log.
func failureCause(err error) string {
	var ioErr *errors.IOError
	switch {
	case errors.IsTimeout(err):
		return "timeout"
	case errors.Is(err, errors.ErrCanceled):
		return "canceled"
	case errors.Is(err, errors.ErrRateLimited):
		return "rate_limited"
	case errors.IsProviderUnavailable(err):
		return "provider_unavailable"
	case errors.IsTransport(err):
		return "transport"
	case errors.As(err, &ioErr):
		return "io"
	case errors.IsDataUnavailable(err):
		return "data_unavailable"
	case errors.IsValidationError(err):
		return "invalid_provider"
	}
	return "internal"
}

// validateProvider rejects identifiers that cannot be used in a file name.
func validateProvider(provider string) error {
	if strings.TrimSpace(provider) == "" {
		return errors.NewValidationError("provider", provider, "provider identifier must not be empty")
	}
	if strings.ContainsAny(provider, `/\`) || provider == "." || provider == ".." {
		return errors.NewValidationError("provider", provider, "provider identifier must not contain path separators")
	}
	return nil
}
