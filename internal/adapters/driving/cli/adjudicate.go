package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/batchscan/internal/core/domain"
	"github.com/custodia-labs/batchscan/internal/core/ports/driving"
)

var adjudicateReject bool

var adjudicateCmd = &cobra.Command{
	Use:   "adjudicate",
	Short: "Resolve the sheet awaiting review",
	Long: `Accepts the sheet currently held for adjudication and resumes
scanning. Use --reject to discard it instead; remove the rejected
sheet from the output tray before continuing.`,
	RunE: runAdjudicate,
}

func init() {
	adjudicateCmd.Flags().BoolVar(&adjudicateReject, "reject", false, "reject the held sheet")
	rootCmd.AddCommand(adjudicateCmd)
}

func runAdjudicate(cmd *cobra.Command, _ []string) error {
	if importer == nil || store == nil {
		return errors.New("import service not configured")
	}

	ctx := context.Background()
	pending, err := store.GetNextAdjudicationSheet(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return errors.New("no sheet is awaiting adjudication")
	}
	if err != nil {
		return fmt.Errorf("reading pending sheet: %w", err)
	}

	err = importer.ContinueImport(ctx, driving.ContinueImportOptions{ForceAccept: !adjudicateReject})
	if err != nil {
		return fmt.Errorf("resolve sheet: %w", err)
	}

	if adjudicateReject {
		cmd.Printf("Rejected sheet %s.\n", pending.ID)
	} else {
		cmd.Printf("Accepted sheet %s.\n", pending.ID)
	}
	return nil
}
