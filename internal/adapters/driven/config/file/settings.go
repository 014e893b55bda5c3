// Package file persists workstation settings as a TOML file. Settings
// cover the machine-local concerns: directories, the scanner device
// and the interpretation options. Election configuration lives in the
// store, not here.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/batchscan/internal/core/domain"
)

// Settings are the workstation-level options.
type Settings struct {
	// DataDir holds the ballot database. Empty means the default
	// under the user's home directory.
	DataDir string `toml:"data_dir"`

	// ImagesDir is where scanned images are written.
	ImagesDir string `toml:"images_dir"`

	// BackupDir is watched for completed backup archives.
	BackupDir string `toml:"backup_dir"`

	// ScannerDevice is the device name the scanner binary drives.
	// Empty selects the loop simulator.
	ScannerDevice string `toml:"scanner_device"`

	// ScannerBinary is the scanimage-style tool. Defaults to
	// "scanimage" on PATH.
	ScannerBinary string `toml:"scanner_binary"`

	// InterpreterBinary is the external ballot interpreter.
	InterpreterBinary string `toml:"interpreter_binary"`

	// ImprintIDPrefix, when set, asks the scanner to imprint
	// sequential audit ids with this prefix.
	ImprintIDPrefix string `toml:"imprint_id_prefix"`

	// ReviewReasons selects which hand-marked conditions pause
	// scanning for adjudication.
	ReviewReasons []domain.AdjudicationReason `toml:"review_reasons"`
}

// DefaultSettings returns the settings used before any file exists.
func DefaultSettings() Settings {
	return Settings{
		ScannerBinary:     "scanimage",
		InterpreterBinary: "interpret-ballot",
		ReviewReasons: []domain.AdjudicationReason{
			domain.ReasonOvervote,
			domain.ReasonWriteIn,
			domain.ReasonBlankBallot,
			domain.ReasonUninterpretable,
		},
	}
}

// SettingsStore loads and saves settings from a TOML file.
type SettingsStore struct {
	mu       sync.Mutex
	filePath string
}

// NewSettingsStore creates a store at configDir/settings.toml. If
// configDir is empty, defaults to ~/.batchscan.
func NewSettingsStore(configDir string) (*SettingsStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		configDir = filepath.Join(home, ".batchscan")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	return &SettingsStore{filePath: filepath.Join(configDir, "settings.toml")}, nil
}

// Path returns the settings file path.
func (s *SettingsStore) Path() string {
	return s.filePath
}

// Load reads the settings file, falling back to defaults when it does
// not exist. File values overlay the defaults.
func (s *SettingsStore) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := DefaultSettings()
	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("reading settings: %w", err)
	}
	if err := toml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("parsing settings: %w", err)
	}
	return settings, nil
}

// Save persists the settings with restricted permissions.
func (s *SettingsStore) Save(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := toml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := os.WriteFile(s.filePath, data, 0600); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}
