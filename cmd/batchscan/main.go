// Command batchscan is the central count ballot scanning tool.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/batchscan/internal/adapters/driven/backup"
	configfile "github.com/custodia-labs/batchscan/internal/adapters/driven/config/file"
	"github.com/custodia-labs/batchscan/internal/adapters/driven/interpret"
	"github.com/custodia-labs/batchscan/internal/adapters/driven/scanner/device"
	"github.com/custodia-labs/batchscan/internal/adapters/driven/scanner/loop"
	"github.com/custodia-labs/batchscan/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/batchscan/internal/adapters/driving/cli"
	"github.com/custodia-labs/batchscan/internal/core/ports/driven"
	"github.com/custodia-labs/batchscan/internal/core/services"
	"github.com/custodia-labs/batchscan/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Optional .env for development overrides.
	_ = godotenv.Load()

	settingsStore, err := configfile.NewSettingsStore(os.Getenv("BATCHSCAN_CONFIG_DIR"))
	if err != nil {
		return fmt.Errorf("opening settings: %w", err)
	}
	settings, err := settingsStore.Load()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	applyEnvOverrides(&settings)

	store, err := sqlite.NewStore(settings.DataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	imagesDir := settings.ImagesDir
	if imagesDir == "" {
		imagesDir = filepath.Join(filepath.Dir(store.Path()), "images")
	}
	if err := os.MkdirAll(imagesDir, 0700); err != nil {
		return fmt.Errorf("creating images directory: %w", err)
	}

	var scanner driven.BatchScanner
	if settings.ScannerDevice != "" {
		scanner = device.NewScanner(settings.ScannerBinary, settings.ScannerDevice, imagesDir)
	} else {
		// No device configured: the loop simulator stands in.
		logger.Info("No scanner device configured, using the loop simulator")
		scanner = loop.NewScanner(nil, 0)
	}

	importer := services.NewImporter(
		scanner,
		interpret.NewInterpreter(settings.InterpreterBinary),
		store,
		services.ImporterConfig{
			ReviewReasons:   settings.ReviewReasons,
			ImprintIDPrefix: settings.ImprintIDPrefix,
			ImagesDir:       imagesDir,
		},
	)

	if settings.BackupDir != "" {
		watcher := backup.NewWatcher(settings.BackupDir, store)
		go func() {
			if err := watcher.Run(context.Background()); err != nil {
				logger.Warn("Backup watcher stopped: %v", err)
			}
		}()
	}

	cli.SetServices(importer, store, settingsStore)
	return cli.Execute()
}

// applyEnvOverrides lets the environment (including a local .env) win
// over the settings file for the workstation-specific paths.
func applyEnvOverrides(settings *configfile.Settings) {
	overrides := map[string]*string{
		"BATCHSCAN_DATA_DIR":           &settings.DataDir,
		"BATCHSCAN_IMAGES_DIR":         &settings.ImagesDir,
		"BATCHSCAN_BACKUP_DIR":         &settings.BackupDir,
		"BATCHSCAN_SCANNER_DEVICE":     &settings.ScannerDevice,
		"BATCHSCAN_SCANNER_BINARY":     &settings.ScannerBinary,
		"BATCHSCAN_INTERPRETER_BINARY": &settings.InterpreterBinary,
	}
	for key, field := range overrides {
		if v := os.Getenv(key); v != "" {
			*field = v
		}
	}
}
