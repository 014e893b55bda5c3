package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the election and batch status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if importer == nil || store == nil {
		return errors.New("import service not configured")
	}

	ctx := context.Background()
	status, err := importer.Status(ctx)
	if err != nil {
		return fmt.Errorf("reading status: %w", err)
	}

	if status.ElectionHash == "" {
		cmd.Println("No election configured.")
		return nil
	}
	cmd.Printf("Election: %s\n", status.ElectionHash)

	counted, err := store.BallotsCounted(ctx)
	if err != nil {
		return fmt.Errorf("counting ballots: %w", err)
	}
	cmd.Printf("Ballots counted: %s\n", humanize.Comma(int64(counted)))

	if status.Adjudication.Remaining > 0 {
		cmd.Printf("Awaiting adjudication: %d\n", status.Adjudication.Remaining)
	}
	if !status.CanUnconfigure {
		cmd.Println("Backup needed before reconfiguring or clearing data.")
	}

	if len(status.Batches) == 0 {
		cmd.Println("No batches scanned.")
		return nil
	}
	cmd.Println()
	for _, batch := range status.Batches {
		state := "open"
		switch {
		case batch.Error != "":
			state = "failed: " + batch.Error
		case batch.EndedAt != nil:
			state = "closed"
		}
		cmd.Printf("%-10s  %4d sheets  started %s  %s\n",
			batch.Label, batch.SheetCount, humanize.Time(batch.StartedAt), state)
	}
	return nil
}
