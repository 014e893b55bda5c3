package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/batchscan/internal/core/domain"
)

var (
	configureJurisdiction string
	configureTestMode     bool
)

var configureCmd = &cobra.Command{
	Use:   "configure <election.json>",
	Short: "Load an election definition",
	Long: `Loads an election definition file and makes it the active
configuration. Any previously scanned batches and sheets are wiped.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().StringVar(&configureJurisdiction, "jurisdiction", "", "jurisdiction name")
	configureCmd.Flags().BoolVar(&configureTestMode, "test-mode", false, "configure for test ballots")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	if importer == nil {
		return errors.New("import service not configured")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading election definition: %w", err)
	}

	var definition domain.ElectionDefinition
	if err := json.Unmarshal(data, &definition); err != nil {
		return fmt.Errorf("parsing election definition: %w", err)
	}

	election := &domain.Election{
		Definition:   definition,
		Jurisdiction: configureJurisdiction,
		TestMode:     configureTestMode,
	}
	if err := importer.Configure(context.Background(), election); err != nil {
		return fmt.Errorf("configure failed: %w", err)
	}

	cmd.Printf("Configured %s (%s)\n", definition.Title, election.ElectionHash)
	if election.TestMode {
		cmd.Println("Test ballot mode is on.")
	}
	return nil
}
