package report

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/agentstation/procreport/internal/sources"
	perrors "github.com/agentstation/procreport/pkg/errors"
	"github.com/agentstation/procreport/pkg/logging"
	"github.com/agentstation/procreport/pkg/processes"
	"github.com/agentstation/procreport/pkg/rules"
)

// Fetcher retrieves the remote documents. *sources.Client implements it.
type Fetcher interface {
	Federation(ctx context.Context, aggregatorURL string) (processes.Federation, error)
	AggregatorProcesses(ctx context.Context, aggregatorURL string) (processes.List, error)
	SpecProcesses(ctx context.Context, specURL string) (processes.List, error)
	BackendProcesses(ctx context.Context, backendURL string) (processes.List, error)
}

var _ Fetcher = (*sources.Client)(nil)

// Generator produces reports for providers of one aggregator. It holds no
// per-run state and is safe for concurrent use.
type Generator struct {
	fetcher  Fetcher
	renderer *renderer
	opts     *Options
}

// NewGenerator creates a generator. A nil opts means Defaults().
func NewGenerator(fetcher Fetcher, catalog *rules.Catalog, opts *Options) *Generator {
	if opts == nil {
		opts = Defaults()
	}
	return &Generator{
		fetcher:  fetcher,
		renderer: newRenderer(catalog),
		opts:     opts,
	}
}

// Options returns the options the generator was built with.
func (g *Generator) Options() *Options {
	return g.opts
}

// Generate fetches the documents for provider and returns the rendered
// markdown report.
func (g *Generator) Generate(ctx context.Context, provider string) (string, error) {
	r, err := g.Build(ctx, provider)
	if err != nil {
		return "", err
	}
	return r.String(), nil
}

// Build fetches the documents for provider and computes its report.
func (g *Generator) Build(ctx context.Context, provider string) (*Report, error) {
	docs, err := g.Fetch(ctx, provider)
	if err != nil {
		return nil, err
	}
	return &Report{Provider: provider, Sections: g.renderer.sections(docs)}, nil
}

// Render computes the report for already fetched documents.
func (g *Generator) Render(docs Documents) string {
	r := &Report{Sections: g.renderer.sections(docs)}
	return r.String()
}

// Fetch retrieves the three process listings for provider. Federation,
// aggregator listing and specification are requested in parallel; the
// backend listing follows once the federation resolves the provider. The
// first failure cancels the requests still in flight.
func (g *Generator) Fetch(ctx context.Context, provider string) (Documents, error) {
	ctx = logging.WithProvider(ctx, provider)
	eg, ctx := errgroup.WithContext(ctx)

	var docs Documents

	eg.Go(recovered(func() error {
		fed, err := g.fetcher.Federation(ctx, g.opts.AggregatorURL)
		if err != nil {
			return err
		}
		backend, ok := fed.Lookup(provider)
		if !ok {
			return perrors.NewDataUnavailableError(provider, sources.DocFederation, "provider not listed", nil)
		}
		if backend.URL == "" {
			return perrors.NewDataUnavailableError(provider, sources.DocFederation, "provider has no url", nil)
		}
		logging.FromContext(ctx).Debug().Str("backend_url", backend.URL).Msg("Resolved backend")

		docs.Backend, err = g.fetcher.BackendProcesses(ctx, backend.URL)
		return err
	}))

	eg.Go(recovered(func() error {
		var err error
		docs.Aggregator, err = g.fetcher.AggregatorProcesses(ctx, g.opts.AggregatorURL)
		return err
	}))

	eg.Go(recovered(func() error {
		var err error
		docs.Spec, err = g.fetcher.SpecProcesses(ctx, g.opts.SpecURL)
		return err
	}))

	if err := eg.Wait(); err != nil {
		return Documents{}, attribute(provider, err)
	}
	return docs, nil
}

// recovered turns a panic in fn into an error so it surfaces through the
// errgroup instead of crashing the process.
func recovered(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("fetch panicked: %v", p)
			}
		}()
		return fn()
	}
}

// attribute fills in the provider on errors coming from the fetcher.
func attribute(provider string, err error) error {
	var du *perrors.DataUnavailableError
	if errors.As(err, &du) {
		if du.Provider != "" {
			return err
		}
		attributed := *du
		attributed.Provider = provider
		return &attributed
	}
	return perrors.WrapDataUnavailable(provider, "remote documents", err)
}
