package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/batchscan/internal/adapters/driving/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open the interactive scanning dashboard",
	Long: `Opens a live dashboard showing batch progress and adjudication
prompts. Batches can be started and held sheets resolved from the
keyboard.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(_ *cobra.Command, _ []string) error {
	if importer == nil || store == nil {
		return errors.New("import service not configured")
	}
	if err := tui.Run(importer, store); err != nil {
		return fmt.Errorf("dashboard failed: %w", err)
	}
	return nil
}
