package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/batchscan/internal/core/domain"
)

var (
	zeroYes                bool
	zeroAllowWithoutBackup bool
)

var zeroCmd = &cobra.Command{
	Use:   "zero",
	Short: "Delete all scanned batches and sheets",
	Long: `Deletes every scanned batch, sheet and image, keeping the election
configuration. Blocked until a backup newer than the last data change
exists, unless --allow-without-backup is given.`,
	RunE: runZero,
}

func init() {
	zeroCmd.Flags().BoolVar(&zeroYes, "yes", false, "skip the confirmation prompt")
	zeroCmd.Flags().BoolVar(&zeroAllowWithoutBackup, "allow-without-backup", false,
		"proceed even without a fresh backup")
	rootCmd.AddCommand(zeroCmd)
}

func runZero(cmd *cobra.Command, _ []string) error {
	if importer == nil {
		return errors.New("import service not configured")
	}

	ok, err := confirmDestructive(cmd, zeroYes, "delete all scanned data")
	if err != nil {
		return err
	}
	if !ok {
		cmd.Println("Aborted.")
		return nil
	}

	if err := importer.DoZero(context.Background(), zeroAllowWithoutBackup); err != nil {
		if errors.Is(err, domain.ErrBackupRequired) {
			return errors.New("a backup newer than the last data change is required (or pass --allow-without-backup)")
		}
		return fmt.Errorf("zero failed: %w", err)
	}
	cmd.Println("All scanned data deleted.")
	return nil
}

// confirmDestructive requires an interactive "yes" unless skipped.
// Non-interactive runs must pass --yes explicitly.
func confirmDestructive(cmd *cobra.Command, skip bool, action string) (bool, error) {
	if skip {
		return true, nil
	}
	if stdin, ok := cmd.InOrStdin().(*os.File); ok && !term.IsTerminal(int(stdin.Fd())) {
		return false, fmt.Errorf("refusing to %s without a terminal; pass --yes to confirm", action)
	}

	cmd.Printf("This will %s. Type 'yes' to continue: ", action)
	answer, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}
	return strings.TrimSpace(answer) == "yes", nil
}
