// Package config loads and persists user settings from a TOML file under
// the barge home directory, and projects them into the runtime configuration
// the engine consumes.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Settings holds all user-configurable application settings organized by
// category.
type Settings struct {
	General   GeneralSettings   `toml:"general"`
	Network   NetworkSettings   `toml:"network"`
	Engine    EngineSettings    `toml:"engine"`
	Transform TransformSettings `toml:"transform"`
}

// GeneralSettings contains application behavior settings.
type GeneralSettings struct {
	// DownloadDir is where completed files land. Empty means ~/Downloads.
	DownloadDir string `toml:"download_dir"`
	// OrganizeByHost places downloads under host/path subdirectories derived
	// from the locator.
	OrganizeByHost bool `toml:"organize_by_host"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`
}

// NetworkSettings contains transport parameters.
type NetworkSettings struct {
	// UserAgent overrides the default User-Agent string. Empty keeps the
	// default.
	UserAgent string `toml:"user_agent"`
}

// EngineSettings contains transfer tuning parameters.
type EngineSettings struct {
	// CopyBufferKB is the transfer buffer size in KiB.
	CopyBufferKB int `toml:"copy_buffer_kb"`
	// ProgressIntervalMS is the minimum spacing between progress updates in
	// milliseconds.
	ProgressIntervalMS int `toml:"progress_interval_ms"`
}

// TransformSettings configures the external transform program used by the
// transcription pipeline. {input} and {output} in the arguments are replaced
// with the actual paths.
type TransformSettings struct {
	Command []string `toml:"command"`
}

// DefaultSettings returns a new Settings instance with sensible defaults.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()

	return &Settings{
		General: GeneralSettings{
			DownloadDir: filepath.Join(homeDir, "Downloads"),
			LogLevel:    "info",
		},
		Engine: EngineSettings{
			CopyBufferKB:       64,
			ProgressIntervalMS: 500,
		},
	}
}

// BargeDir returns the barge home directory (~/.barge).
func BargeDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".barge")
}

// StateDir returns the directory holding the record database and lock file.
func StateDir() string {
	return filepath.Join(BargeDir(), "state")
}

// GetSettingsPath returns the path to the settings TOML file.
func GetSettingsPath() string {
	return filepath.Join(BargeDir(), "config.toml")
}

// LoadSettings loads settings from disk. Returns defaults if the file does
// not exist.
func LoadSettings() (*Settings, error) {
	return LoadSettingsFrom(GetSettingsPath())
}

// LoadSettingsFrom loads settings from an explicit path. Missing fields keep
// their defaults.
func LoadSettingsFrom(path string) (*Settings, error) {
	settings := DefaultSettings()

	if _, err := toml.DecodeFile(path, settings); err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	return settings, nil
}

// SaveSettings saves settings to disk atomically.
func SaveSettings(s *Settings) error {
	return SaveSettingsTo(GetSettingsPath(), s)
}

// SaveSettingsTo writes settings to an explicit path via tmp+rename.
func SaveSettingsTo(path string, s *Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, buf.Bytes(), 0o644); err != nil {
		return err
	}

	return os.Rename(tempPath, path)
}

// RuntimeConfig is the projection of Settings handed to the engine.
type RuntimeConfig struct {
	DownloadDir      string
	UserAgent        string
	CopyBufferSize   int
	ProgressInterval time.Duration
	OrganizeByHost   bool
	TransformCommand []string
}

// ToRuntimeConfig creates a RuntimeConfig from user Settings.
func (s *Settings) ToRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		DownloadDir:      s.General.DownloadDir,
		UserAgent:        s.Network.UserAgent,
		CopyBufferSize:   s.Engine.CopyBufferKB * 1024,
		ProgressInterval: time.Duration(s.Engine.ProgressIntervalMS) * time.Millisecond,
		OrganizeByHost:   s.General.OrganizeByHost,
		TransformCommand: s.Transform.Command,
	}
}
