package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/batchscan/internal/core/domain"
)

var (
	unconfigureYes                bool
	unconfigureAllowWithoutBackup bool
)

var unconfigureCmd = &cobra.Command{
	Use:   "unconfigure",
	Short: "Remove the election and all scanned data",
	Long: `Deletes the election configuration along with every scanned batch,
sheet and image. Blocked until a backup newer than the last data
change exists, unless --allow-without-backup is given.`,
	RunE: runUnconfigure,
}

func init() {
	unconfigureCmd.Flags().BoolVar(&unconfigureYes, "yes", false, "skip the confirmation prompt")
	unconfigureCmd.Flags().BoolVar(&unconfigureAllowWithoutBackup, "allow-without-backup", false,
		"proceed even without a fresh backup")
	rootCmd.AddCommand(unconfigureCmd)
}

func runUnconfigure(cmd *cobra.Command, _ []string) error {
	if importer == nil {
		return errors.New("import service not configured")
	}

	ok, err := confirmDestructive(cmd, unconfigureYes, "remove the election and all scanned data")
	if err != nil {
		return err
	}
	if !ok {
		cmd.Println("Aborted.")
		return nil
	}

	if err := importer.Unconfigure(context.Background(), unconfigureAllowWithoutBackup); err != nil {
		if errors.Is(err, domain.ErrBackupRequired) {
			return errors.New("a backup newer than the last data change is required (or pass --allow-without-backup)")
		}
		return fmt.Errorf("unconfigure failed: %w", err)
	}
	cmd.Println("Election removed.")
	return nil
}
