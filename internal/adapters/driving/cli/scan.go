package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/batchscan/internal/core/ports/driving"
)

var scanForceAccept bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a batch of ballot sheets",
	Long: `Starts a scanning session and imports sheets until the feeder is
empty. When a sheet needs review, scanning pauses and you choose to
accept or reject it before the next sheet is pulled.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanForceAccept, "force-accept", false,
		"accept flagged sheets without prompting")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, _ []string) error {
	if importer == nil {
		return errors.New("import service not configured")
	}

	ctx := context.Background()
	batchID, err := importer.StartImport(ctx)
	if err != nil {
		return fmt.Errorf("start scanning: %w", err)
	}
	cmd.Printf("Scanning batch %s. Load sheets into the feeder.\n", batchID)

	stdin := bufio.NewReader(cmd.InOrStdin())
	for {
		if err := importer.WaitForEndOfBatchOrScanningPause(ctx); err != nil {
			return fmt.Errorf("waiting for scanner: %w", err)
		}

		status, err := importer.Status(ctx)
		if err != nil {
			return fmt.Errorf("reading status: %w", err)
		}
		if status.Adjudication.Remaining == 0 {
			// No pending sheet means the batch ended.
			printBatchSummary(cmd, status, batchID)
			return nil
		}

		accept := scanForceAccept
		if !accept {
			accept, err = promptAdjudication(cmd, stdin)
			if err != nil {
				return err
			}
		}
		if err := importer.ContinueImport(ctx, driving.ContinueImportOptions{ForceAccept: accept}); err != nil {
			return fmt.Errorf("resume scanning: %w", err)
		}
	}
}

// promptAdjudication asks the operator to resolve the held sheet.
func promptAdjudication(cmd *cobra.Command, stdin *bufio.Reader) (bool, error) {
	for {
		cmd.Print("Sheet needs review. Accept or reject? [a/r]: ")
		answer, err := stdin.ReadString('\n')
		if err != nil {
			return false, fmt.Errorf("reading answer: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "a", "accept":
			return true, nil
		case "r", "reject":
			cmd.Println("Remove the sheet from the output tray.")
			return false, nil
		}
	}
}

func printBatchSummary(cmd *cobra.Command, status *driving.ImportStatus, batchID string) {
	for _, batch := range status.Batches {
		if batch.ID != batchID {
			continue
		}
		if batch.Error != "" {
			cmd.Printf("%s failed: %s\n", batch.Label, batch.Error)
			return
		}
		cmd.Printf("%s complete: %s.\n", batch.Label,
			english.Plural(batch.SheetCount, "sheet", ""))
		return
	}
	cmd.Println("Batch complete.")
}
