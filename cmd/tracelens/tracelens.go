// Package tracelenscmder
package tracelenscmder

import (
	"github.com/spf13/cobra"

	analyzecmder "github.com/papercomputeco/tracelens/cmd/tracelens/analyze"
	configcmder "github.com/papercomputeco/tracelens/cmd/tracelens/config"
	servecmder "github.com/papercomputeco/tracelens/cmd/tracelens/serve"
	submitcmder "github.com/papercomputeco/tracelens/cmd/tracelens/submit"
	watchcmder "github.com/papercomputeco/tracelens/cmd/tracelens/watch"
	versioncmder "github.com/papercomputeco/tracelens/cmd/version"
)

const tracelensLongDesc string = `tracelens reconstructs the causal graph of an agent trace and flags the
steps that leak sensitive data or reason against their evidence.

Analyze exports locally:
  tracelens analyze trace.json     Print the annotated graph of one trace
  tracelens watch ./exports        Re-analyze exports as they change

Run the service:
  tracelens serve                  Run the API server with background analysis
  tracelens submit trace.json      Upload a trace to a running server`

const tracelensShortDesc string = "tracelens - agent trace graph and risk analysis"

func NewTracelensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "tracelens",
		Short:        tracelensShortDesc,
		Long:         tracelensLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .tracelens/ directory holding config.toml")

	// Add subcommands
	cmd.AddCommand(analyzecmder.NewAnalyzeCmd())
	cmd.AddCommand(watchcmder.NewWatchCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(submitcmder.NewSubmitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
