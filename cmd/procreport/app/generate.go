package app

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/procreport/internal/cmd/output"
	"github.com/agentstation/procreport/pkg/constants"
	"github.com/agentstation/procreport/pkg/errors"
	"github.com/agentstation/procreport/pkg/logging"
	"github.com/agentstation/procreport/pkg/report"
)

// NewGenerateCommand creates the generate command.
func (a *App) NewGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate compliance reports for the configured providers",
		Long: `Generate fetches the aggregator's federation and process listing, the
process specification and each provider's process listing, then writes one
markdown checklist per provider.

A provider whose documents cannot be retrieved is reported as failed; the
other providers are not affected. The command exits with an error only when
every provider failed, or on any failure with --fail-on-error.`,
		Example: `  procreport generate
  procreport generate -p eodc -p vito --output-dir reports
  procreport generate --aggregator-url https://openeo.example/openeo/1.0.0 -o json`,
		Args: cobra.NoArgs,
		RunE: a.runGenerate,
	}

	cmd.Flags().StringSliceP("provider", "p", nil, "provider to report on (repeatable; default from config)")
	cmd.Flags().String("aggregator-url", "", "aggregator root URL (default "+constants.DefaultAggregatorURL+")")
	cmd.Flags().String("spec-url", "", "process specification URL (default "+constants.DefaultSpecURL+")")
	cmd.Flags().String("output-dir", "", "directory for report files (default current directory)")
	cmd.Flags().String("rules", "", "rule catalog YAML file (default built-in catalog)")
	cmd.Flags().Duration("timeout", 0, "per-request timeout (default "+constants.DefaultHTTPTimeout.String()+")")
	cmd.Flags().Int("max-concurrency", 0, "providers processed at once (default "+strconv.Itoa(constants.MaxConcurrentProviders)+")")
	cmd.Flags().Bool("fail-on-error", false, "exit with an error if any provider fails")

	return cmd
}

func (a *App) runGenerate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := logging.FromContext(ctx)

	failOnError, _ := cmd.Flags().GetBool("fail-on-error")

	catalog, err := a.Catalog()
	if err != nil {
		return err
	}
	fetcher, err := a.Fetcher()
	if err != nil {
		return err
	}
	opts, err := a.ReportOptions()
	if err != nil {
		return err
	}

	providers := a.config.Providers
	if len(providers) == 0 {
		providers = constants.DefaultProviders
	}

	logger.Debug().
		Strs("providers", providers).
		Str("aggregator_url", opts.AggregatorURL).
		Str("spec_url", opts.SpecURL).
		Str("output_dir", opts.OutputDir).
		Msg("Starting report run")

	generator := report.NewGenerator(fetcher, catalog, opts)
	results := report.NewRunner(generator).Run(ctx, providers)

	formatter := output.NewFormatter(output.DetectFormat(a.config.Format))
	if err := formatter.Format(a.stdout, newRunSummary(results)); err != nil {
		return errors.WrapIO("write", "summary", err)
	}

	failed := results.Failed()
	switch {
	case results.AllFailed():
		return fmt.Errorf("no report written: all %d providers failed", failed)
	case failOnError && failed > 0:
		return fmt.Errorf("%d of %d providers failed", failed, len(results))
	}
	return nil
}

// runSummary is the printed outcome of a generate run.
type runSummary []summaryRow

type summaryRow struct {
	Provider string `json:"provider" yaml:"provider"`
	Status   string `json:"status" yaml:"status"`
	File     string `json:"file,omitempty" yaml:"file,omitempty"`
	Sections int    `json:"sections" yaml:"sections"`
	Duration string `json:"duration" yaml:"duration"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

const (
	statusOK     = "ok"
	statusFailed = "failed"
)

func newRunSummary(results report.Results) runSummary {
	rows := make(runSummary, 0, len(results))
	for _, r := range results {
		row := summaryRow{
			Provider: r.Provider,
			Status:   statusOK,
			File:     r.Path,
			Sections: r.Sections,
			Duration: r.Duration.Round(time.Millisecond).String(),
		}
		if r.Err != nil {
			row.Status = statusFailed
			row.Error = r.Err.Error()
		}
		rows = append(rows, row)
	}
	return rows
}

// TableData implements output.Tabular.
func (s runSummary) TableData() output.Data {
	data := output.Data{
		Headers: output.Headers("provider", "status", "file", "sections", "duration", "error"),
		ColumnAlignment: []output.Align{
			output.AlignLeft, output.AlignLeft, output.AlignLeft,
			output.AlignRight, output.AlignRight, output.AlignLeft,
		},
	}
	for _, row := range s {
		status := output.Success(row.Status)
		sections := strconv.Itoa(row.Sections)
		file := row.File
		if row.Status == statusFailed {
			status = output.Failure(row.Status)
			sections = "-"
			file = "-"
		}
		data.Rows = append(data.Rows, []string{row.Provider, status, file, sections, row.Duration, row.Error})
	}
	return data
}
