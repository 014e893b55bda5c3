// Package cli implements the operator-facing command line interface.
// Commands delegate to the import orchestrator; no business logic
// lives here.
package cli

import (
	"github.com/spf13/cobra"

	configfile "github.com/custodia-labs/batchscan/internal/adapters/driven/config/file"
	"github.com/custodia-labs/batchscan/internal/core/ports/driven"
	"github.com/custodia-labs/batchscan/internal/core/ports/driving"
	"github.com/custodia-labs/batchscan/internal/logger"
)

// version is overridden at build time via -ldflags.
var version = "dev"

// Services wired in by main before Execute.
var (
	importer      driving.ImportOrchestrator
	store         driven.Store
	settingsStore *configfile.SettingsStore
)

var verboseFlag bool

var rootCmd = &cobra.Command{
	Use:   "batchscan",
	Short: "Batch ballot scanning for the central count workstation",
	Long: `batchscan drives a sheet-fed scanner to import ballot sheets in
batches, interprets and validates each sheet, pauses for operator
adjudication when a sheet needs review, and durably records the
results for tabulation.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose logging")
}

// SetServices wires the CLI to its collaborators. Must be called
// before Execute.
func SetServices(
	orchestrator driving.ImportOrchestrator,
	ballotStore driven.Store,
	settings *configfile.SettingsStore,
) {
	importer = orchestrator
	store = ballotStore
	settingsStore = settings
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
