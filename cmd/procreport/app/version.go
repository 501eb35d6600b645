package app

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(a.stdout, "procreport version %s\n", a.version)
			_, _ = fmt.Fprintf(a.stdout, "commit: %s\n", a.commit)
			_, _ = fmt.Fprintf(a.stdout, "built: %s\n", a.date)
			_, _ = fmt.Fprintf(a.stdout, "built by: %s\n", a.builtBy)
			_, _ = fmt.Fprintf(a.stdout, "go version: %s\n", runtime.Version())
			_, _ = fmt.Fprintf(a.stdout, "platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
