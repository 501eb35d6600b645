package app

import (
	"slices"

	"github.com/spf13/cobra"

	"github.com/agentstation/procreport/internal/cmd/output"
	"github.com/agentstation/procreport/pkg/errors"
	"github.com/agentstation/procreport/pkg/rules"
)

// NewRulesCommand creates the rules command.
func (a *App) NewRulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules [process-id]",
		Short: "Show the rule catalog",
		Long: `Rules lists the extra checklist lines the catalog adds per process, with
label keys expanded, and the process migration map. With a process
identifier only that process is shown.`,
		Example: `  procreport rules
  procreport rules array_element
  procreport rules --rules my-rules.yaml -o yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.runRules,
	}

	cmd.Flags().String("rules", "", "rule catalog YAML file (default built-in catalog)")

	return cmd
}

func (a *App) runRules(cmd *cobra.Command, args []string) error {
	catalog, err := a.Catalog()
	if err != nil {
		return err
	}

	ids := catalog.ProcessIDs()
	if len(args) == 1 {
		id := args[0]
		_, renamed := catalog.Migrations().Target(id)
		if !slices.Contains(ids, id) && !renamed {
			cmd.SilenceUsage = true
			return errors.NewNotFoundError("rules for process", id)
		}
		ids = []string{id}
	}

	listing := newRuleListing(catalog, ids)
	formatter := output.NewFormatter(output.DetectFormat(a.config.Format))
	if err := formatter.Format(a.stdout, listing); err != nil {
		return errors.WrapIO("write", "rules", err)
	}
	return nil
}

// ruleListing is the printed view of (part of) a catalog.
type ruleListing []ruleEntry

type ruleEntry struct {
	Process     string   `json:"process" yaml:"process"`
	MigrationTo string   `json:"migration_to,omitempty" yaml:"migration_to,omitempty"`
	Rules       []string `json:"rules,omitempty" yaml:"rules,omitempty"`
	Kinds       []string `json:"kinds,omitempty" yaml:"kinds,omitempty"`
}

func newRuleListing(catalog *rules.Catalog, ids []string) ruleListing {
	migrations := catalog.Migrations()

	// Migration sources without rules are listed too.
	all := slices.Clone(ids)
	if len(ids) > 1 {
		for _, src := range migrations.Sources() {
			if !slices.Contains(all, src) {
				all = append(all, src)
			}
		}
		slices.Sort(all)
	}

	listing := make(ruleListing, 0, len(all))
	for _, id := range all {
		entry := ruleEntry{Process: id}
		entry.MigrationTo, _ = migrations.Target(id)
		for _, ref := range catalog.Refs(id) {
			entry.Rules = append(entry.Rules, catalog.Resolve(ref))
			entry.Kinds = append(entry.Kinds, ref.Kind.String())
		}
		listing = append(listing, entry)
	}
	return listing
}

// TableData implements output.Tabular. One row per rule line.
func (l ruleListing) TableData() output.Data {
	data := output.Data{Headers: output.Headers("process", "kind", "rule")}
	for _, entry := range l {
		if entry.MigrationTo != "" {
			data.Rows = append(data.Rows, []string{entry.Process, "migration", "Migration to " + entry.MigrationTo})
		}
		for i, rule := range entry.Rules {
			data.Rows = append(data.Rows, []string{entry.Process, entry.Kinds[i], rule})
		}
	}
	return data
}
