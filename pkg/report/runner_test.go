package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/procreport/internal/sources"
	"github.com/agentstation/procreport/internal/testhelper"
	"github.com/agentstation/procreport/internal/transport"
	"github.com/agentstation/procreport/internal/validation"
	"github.com/agentstation/procreport/pkg/errors"
	"github.com/agentstation/procreport/pkg/logging"
	"github.com/agentstation/procreport/pkg/processes"
)

// panickingFetcher panics when asked for one backend.
type panickingFetcher struct {
	*fakeFetcher
	panicURL string
}

func (p *panickingFetcher) BackendProcesses(ctx context.Context, backendURL string) (processes.List, error) {
	if backendURL == p.panicURL {
		panic("backend exploded")
	}
	return p.fakeFetcher.BackendProcesses(ctx, backendURL)
}

// countingFetcher records the highest number of concurrent backend fetches.
type countingFetcher struct {
	*fakeFetcher
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (c *countingFetcher) BackendProcesses(ctx context.Context, backendURL string) (processes.List, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		peak := c.peak.Load()
		if n <= peak || c.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return c.fakeFetcher.BackendProcesses(ctx, backendURL)
}

func TestRunnerWritesOneFilePerProvider(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(newFakeFetcher(t), testCatalog(), Defaults().Apply(WithOutputDir(dir)))

	results := NewRunner(g).Run(context.Background(), []string{"good", "other"})
	require.Len(t, results, 2)
	assert.Equal(t, 0, results.Failed())
	assert.Equal(t, "2 of 2 reports written", results.Summary())

	for i, provider := range []string{"good", "other"} {
		res := results[i]
		assert.Equal(t, provider, res.Provider)
		require.NoError(t, res.Err)
		assert.Equal(t, filepath.Join(dir, "process-report-"+provider+".md"), res.Path)
		assert.Equal(t, 2, res.Sections)
		assert.Positive(t, res.Duration)

		data, err := os.ReadFile(res.Path)
		require.NoError(t, err)
		expected, err := g.Generate(context.Background(), provider)
		require.NoError(t, err)
		assert.Equal(t, expected, string(data))
	}
}

func TestRunnerFailedProviderDoesNotStopOthers(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(newFakeFetcher(t), testCatalog(), Defaults().Apply(WithOutputDir(dir)))

	results := NewRunner(g).Run(context.Background(), []string{"unknown", "good"})
	require.Len(t, results, 2)

	assert.Equal(t, "unknown", results[0].Provider)
	require.Error(t, results[0].Err)
	assert.True(t, errors.IsDataUnavailable(results[0].Err))
	assert.Empty(t, results[0].Path)
	assert.NoFileExists(t, filepath.Join(dir, "process-report-unknown.md"))

	assert.True(t, results[1].OK())
	assert.FileExists(t, filepath.Join(dir, "process-report-good.md"))

	assert.Equal(t, 1, results.Failed())
	assert.False(t, results.AllFailed())
}

func TestRunnerRecoversFromPanics(t *testing.T) {
	dir := t.TempDir()
	f := &panickingFetcher{fakeFetcher: newFakeFetcher(t), panicURL: "https://other.example/openeo"}
	g := NewGenerator(f, testCatalog(), Defaults().Apply(WithOutputDir(dir)))

	capture := logging.CaptureLoggingForTest(t)
	results := NewRunner(g).Run(context.Background(), []string{"other", "good"})

	require.Error(t, results[0].Err)
	assert.Contains(t, results[0].Err.Error(), "backend exploded")
	assert.NoFileExists(t, filepath.Join(dir, "process-report-other.md"))
	assert.True(t, results[1].OK())
	assert.True(t, capture.Contains("fetch panicked: backend exploded"))
}

func TestRunnerRejectsUnsafeProviderIDs(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(newFakeFetcher(t), testCatalog(), Defaults().Apply(WithOutputDir(dir)))

	results := NewRunner(g).Run(context.Background(), []string{"", "../good", "."})
	require.Len(t, results, 3)
	assert.True(t, results.AllFailed())
	for _, res := range results {
		assert.True(t, errors.IsValidationError(res.Err), "provider %q", res.Provider)
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunnerBoundsConcurrency(t *testing.T) {
	f := &countingFetcher{fakeFetcher: newFakeFetcher(t)}
	f.federation = processes.Federation{}
	providers := []string{"p1", "p2", "p3", "p4", "p5", "p6"}
	for _, p := range providers {
		f.federation[p] = processes.Backend{URL: "https://good.example/openeo"}
	}
	g := NewGenerator(f, testCatalog(), Defaults().Apply(WithOutputDir(t.TempDir()), WithMaxConcurrency(2)))

	results := NewRunner(g).Run(context.Background(), providers)
	assert.Equal(t, 0, results.Failed())
	assert.LessOrEqual(t, f.peak.Load(), int32(2))
}

func TestRunnerLogsCompletion(t *testing.T) {
	g := NewGenerator(newFakeFetcher(t), testCatalog(), Defaults().Apply(WithOutputDir(t.TempDir())))

	capture := logging.CaptureLoggingForTest(t)
	NewRunner(g).Run(context.Background(), []string{"good", "unknown"})

	assert.True(t, capture.Contains("Report written"))
	assert.True(t, capture.Contains("Report failed"))
	assert.True(t, capture.Contains(`"provider_id":"good"`))
	assert.True(t, capture.Contains(`"sections":2`))
	assert.True(t, capture.Contains(`"cause":"data_unavailable"`))
}

func TestFailureCause(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", errors.WrapDataUnavailable("p", "spec", errors.NewTransportError("u", context.DeadlineExceeded)), "timeout"},
		{"canceled", errors.NewTransportError("u", context.Canceled), "canceled"},
		{"rate limited", errors.WrapDataUnavailable("p", "spec", errors.NewAPIError("u", 429, "slow down")), "rate_limited"},
		{"server error", errors.NewAPIError("u", 503, "down"), "provider_unavailable"},
		{"not found", errors.NewAPIError("u", 404, "missing"), "transport"},
		{"write failure", errors.WrapIO("write", "/out/report.md", errors.New("disk full")), "io"},
		{"missing document", errors.NewDataUnavailableError("p", sources.DocFederation, "provider not listed", nil), "data_unavailable"},
		{"bad provider id", validateProvider("../x"), "invalid_provider"},
		{"other", errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, failureCause(tt.err))
		})
	}
}

func TestResultsAllFailed(t *testing.T) {
	assert.False(t, Results{}.AllFailed())
	assert.True(t, Results{{Err: errors.New("x")}}.AllFailed())
	assert.False(t, Results{{Err: errors.New("x")}, {}}.AllFailed())
}

// TestEndToEnd drives the real sources client against a fake aggregator:
// one provider is missing from the federation, the other gets its file.
func TestEndToEnd(t *testing.T) {
	srv := testhelper.NewServer(t)
	capabilities := strings.ReplaceAll(string(testhelper.LoadTestdata(t, "capabilities.json")), "{{BACKEND}}", srv.URLFor("/backend"))
	aggregator := `{"processes": ` + string(testhelper.LoadTestdata(t, "aggregator.json")) + `}`
	backend := `{"processes": ` + string(testhelper.LoadTestdata(t, "backend.json")) + `}`

	srv.Handle("/openeo", []byte(capabilities)).
		Handle("/openeo/processes", []byte(aggregator)).
		HandleFile(t, "/processes.json", "spec.json").
		Handle("/backend/processes", []byte(backend))

	v, err := validation.New()
	require.NoError(t, err)
	client := sources.New(transport.New(transport.WithTimeout(5*time.Second)), v)

	dir := t.TempDir()
	opts := Defaults().Apply(
		WithAggregatorURL(srv.URLFor("/openeo")),
		WithSpecURL(srv.URLFor("/processes.json")),
		WithOutputDir(dir),
	)
	require.NoError(t, opts.Validate())
	g := NewGenerator(client, testCatalog(), opts)

	results := NewRunner(g).Run(context.Background(), []string{"missing", "draft", "good"})
	require.Len(t, results, 3)

	for i, want := range []struct{ provider, reason string }{
		{"missing", "provider not listed"},
		{"draft", "provider has no url"},
	} {
		var du *errors.DataUnavailableError
		require.ErrorAs(t, results[i].Err, &du)
		assert.Equal(t, want.provider, du.Provider)
		assert.Equal(t, sources.DocFederation, du.Document)
		assert.Equal(t, want.reason, du.Reason)
		assert.NoFileExists(t, filepath.Join(dir, "process-report-"+want.provider+".md"))
	}

	require.NoError(t, results[2].Err)
	assert.Equal(t, 5, results[2].Sections)
	data, err := os.ReadFile(results[2].Path)
	require.NoError(t, err)
	testhelper.CompareWithTestdata(t, "report.golden.md", string(data))
}
