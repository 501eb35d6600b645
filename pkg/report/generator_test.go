package report

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/procreport/internal/sources"
	"github.com/agentstation/procreport/pkg/errors"
	"github.com/agentstation/procreport/pkg/processes"
)

// fakeFetcher serves fixed listings; errors take precedence.
type fakeFetcher struct {
	federation processes.Federation
	aggregator processes.List
	spec       processes.List
	backend    map[string]processes.List

	federationErr error
	aggregatorErr error
	specErr       error
	backendErr    error

	backendCalls atomic.Int32
	sawCanceled  atomic.Bool
	blockSpec    bool
}

func (f *fakeFetcher) Federation(_ context.Context, _ string) (processes.Federation, error) {
	if f.federationErr != nil {
		return nil, f.federationErr
	}
	return f.federation, nil
}

func (f *fakeFetcher) AggregatorProcesses(_ context.Context, _ string) (processes.List, error) {
	if f.aggregatorErr != nil {
		return nil, f.aggregatorErr
	}
	return f.aggregator, nil
}

func (f *fakeFetcher) SpecProcesses(ctx context.Context, _ string) (processes.List, error) {
	if f.blockSpec {
		<-ctx.Done()
		f.sawCanceled.Store(true)
		return nil, errors.NewDataUnavailableError("", sources.DocSpecification, "", errors.NewTransportError("spec", ctx.Err()))
	}
	if f.specErr != nil {
		return nil, f.specErr
	}
	return f.spec, nil
}

func (f *fakeFetcher) BackendProcesses(_ context.Context, backendURL string) (processes.List, error) {
	f.backendCalls.Add(1)
	if f.backendErr != nil {
		return nil, f.backendErr
	}
	return f.backend[backendURL], nil
}

func newFakeFetcher(t *testing.T) *fakeFetcher {
	t.Helper()
	return &fakeFetcher{
		federation: processes.Federation{
			"good":  {URL: "https://good.example/openeo"},
			"other": {URL: "https://other.example/openeo"},
		},
		aggregator: list(t, `[{"id": "absolute"}, {"id": "load_result"}]`),
		spec:       list(t, `[{"id": "absolute"}, {"id": "load_stac"}]`),
		backend: map[string]processes.List{
			"https://good.example/openeo":  list(t, `[{"id": "absolute"}, {"id": "load_stac"}]`),
			"https://other.example/openeo": list(t, `[{"id": "load_result"}]`),
		},
	}
}

func TestGenerate(t *testing.T) {
	f := newFakeFetcher(t)
	g := NewGenerator(f, testCatalog(), nil)

	out, err := g.Generate(context.Background(), "good")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "# openEO process compliance report\r\n\r\n"))
	assert.True(t, strings.HasSuffix(out, "\r\n\r\n## load_result\r\n"+
		"- [ ] is supported - Known issues:\r\n"+
		"- [x] Migration to `load_stac` is planned or done"))
	assert.Contains(t, out, "\r\n\r\n## absolute\r\n- [x] is supported - Known issues:\r\n\r\n")

	// The backend listing is picked per provider.
	other, err := g.Generate(context.Background(), "other")
	require.NoError(t, err)
	assert.Contains(t, other, "## absolute\r\n- [ ] is supported - Known issues:")
	assert.Contains(t, other, "- [ ] Migration to `load_stac` is planned or done\r\n- [ ] marked as deprecated")
}

func TestGenerateIsIdempotent(t *testing.T) {
	g := NewGenerator(newFakeFetcher(t), testCatalog(), nil)

	first, err := g.Generate(context.Background(), "good")
	require.NoError(t, err)
	second, err := g.Generate(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuild(t *testing.T) {
	g := NewGenerator(newFakeFetcher(t), testCatalog(), nil)

	r, err := g.Build(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "good", r.Provider)
	require.Len(t, r.Sections, 2)
	assert.Equal(t, "absolute", r.Sections[0].ProcessID)
	assert.Equal(t, "load_result", r.Sections[1].ProcessID)
	assert.Empty(t, r.Sections[1].Tags)
}

func TestGenerateDataUnavailable(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		setup    func(*fakeFetcher)
		document string
		reason   string
	}{
		{
			name:     "provider missing from federation",
			provider: "unknown",
			document: sources.DocFederation,
			reason:   "provider not listed",
		},
		{
			name:     "provider listed without url",
			provider: "good",
			setup: func(f *fakeFetcher) {
				f.federation["good"] = processes.Backend{Title: "draft"}
			},
			document: sources.DocFederation,
			reason:   "provider has no url",
		},
		{
			name:     "federation fetch fails",
			provider: "good",
			setup: func(f *fakeFetcher) {
				f.federationErr = errors.NewDataUnavailableError("", sources.DocFederation, "no federation members listed", nil)
			},
			document: sources.DocFederation,
			reason:   "no federation members listed",
		},
		{
			name:     "empty aggregator listing",
			provider: "good",
			setup: func(f *fakeFetcher) {
				f.aggregatorErr = errors.NewDataUnavailableError("", sources.DocAggregatorProcesses, "no processes listed", nil)
			},
			document: sources.DocAggregatorProcesses,
			reason:   "no processes listed",
		},
		{
			name:     "specification unreachable",
			provider: "good",
			setup: func(f *fakeFetcher) {
				f.specErr = errors.NewDataUnavailableError("", sources.DocSpecification, "", errors.NewAPIError("spec", 502, "bad gateway"))
			},
			document: sources.DocSpecification,
		},
		{
			name:     "backend listing malformed",
			provider: "good",
			setup: func(f *fakeFetcher) {
				f.backendErr = errors.NewDataUnavailableError("", sources.DocBackendProcesses, "malformed document", nil)
			},
			document: sources.DocBackendProcesses,
			reason:   "malformed document",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFetcher(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			g := NewGenerator(f, testCatalog(), nil)

			out, err := g.Generate(context.Background(), tt.provider)
			require.Error(t, err)
			assert.Empty(t, out)
			assert.True(t, errors.IsDataUnavailable(err))

			var du *errors.DataUnavailableError
			require.ErrorAs(t, err, &du)
			assert.Equal(t, tt.provider, du.Provider)
			assert.Equal(t, tt.document, du.Document)
			assert.Equal(t, tt.reason, du.Reason)
		})
	}
}

func TestGenerateUnknownProviderSkipsBackend(t *testing.T) {
	f := newFakeFetcher(t)
	g := NewGenerator(f, testCatalog(), nil)

	_, err := g.Generate(context.Background(), "unknown")
	require.Error(t, err)
	assert.Equal(t, int32(0), f.backendCalls.Load())
}

func TestFetchCancelsSiblingsOnFailure(t *testing.T) {
	f := newFakeFetcher(t)
	f.blockSpec = true
	f.aggregatorErr = errors.NewDataUnavailableError("", sources.DocAggregatorProcesses, "no processes listed", nil)
	g := NewGenerator(f, testCatalog(), nil)

	_, err := g.Fetch(context.Background(), "good")
	require.Error(t, err)
	assert.True(t, f.sawCanceled.Load())
}

func TestAttribute(t *testing.T) {
	t.Run("keeps existing provider", func(t *testing.T) {
		err := attribute("b", errors.NewDataUnavailableError("a", sources.DocFederation, "", nil))
		var du *errors.DataUnavailableError
		require.ErrorAs(t, err, &du)
		assert.Equal(t, "a", du.Provider)
	})

	t.Run("does not modify the original", func(t *testing.T) {
		original := errors.NewDataUnavailableError("", sources.DocFederation, "", nil)
		err := attribute("b", original)
		var du *errors.DataUnavailableError
		require.ErrorAs(t, err, &du)
		assert.Equal(t, "b", du.Provider)
		assert.Empty(t, original.Provider)
	})

	t.Run("wraps foreign errors", func(t *testing.T) {
		err := attribute("b", errors.New("boom"))
		assert.True(t, errors.IsDataUnavailable(err))
		assert.Contains(t, err.Error(), "for provider b")
	})
}
