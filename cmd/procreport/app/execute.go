package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/procreport/internal/cmd/output"
	"github.com/agentstation/procreport/pkg/logging"
)

// Execute runs the procreport CLI application with the given arguments.
// This is the main entry point called from main.go.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "procreport",
		Short:   "openEO process compliance reports",
		Version: a.version,
		Long: `procreport compares the processes an openEO aggregator federates with the
openEO process specification and each federated backend, and writes one
markdown compliance checklist per backend provider.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.PersistentFlags().String("config", "", "config file (default is $HOME/.procreport.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringP("format", "o", "", "output format: table, json, yaml")
	rootCmd.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")

	rootCmd.SetVersionTemplate("procreport {{.Version}}\n")

	rootCmd.AddCommand(a.NewGenerateCommand())
	rootCmd.AddCommand(a.NewRulesCommand())
	rootCmd.AddCommand(a.NewVersionCommand())

	return rootCmd
}

// setupCommand is called before any command runs. It reloads the config
// file when --config is given, applies explicitly set flags and rebuilds the
// logger accordingly.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	if cmd.Flags().Changed("config") {
		config, err := LoadConfig(mustGetString(cmd, "config"))
		if err != nil {
			return err
		}
		a.config = config
	}

	if err := a.config.UpdateFromFlags(cmd.Flags()); err != nil {
		return err
	}

	if _, err := output.ParseFormat(a.config.Format); err != nil {
		return err
	}

	if a.config.NoColor {
		output.DisableColor()
	}

	if !a.loggerFixed {
		logger := newLogger(a.config, a.stderr)
		a.logger = &logger
		logging.SetDefault(logger)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.WithLogger(ctx, a.logger))

	return nil
}

// ExitOnError is a helper that prints an error and exits with status 1.
// This is meant to be used in main.go for top-level error handling.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}

// mustGetString retrieves a string flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}
