// Package config provides configuration management for promptvault.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	json "github.com/goccy/go-json"
)

// DefaultIntervalMinutes is the default cadence of the watch mode.
const DefaultIntervalMinutes = 5

const (
	dataDirName  = ".promptvault"
	settingsFile = "settings.json"
)

// Config holds all runtime settings.
type Config struct {
	WorkspaceRoot   string // editor workspace storage root to scan
	SaveRoot        string // directory receiving ledger and project tables
	IntervalMinutes int    // watch-mode extraction interval
}

// settings mirrors the on-disk settings.json. Keys double as the environment
// variable names that override them.
type settings struct {
	WorkspaceRoot   string `json:"PROMPTVAULT_WORKSPACE_ROOT,omitempty"`
	SaveRoot        string `json:"PROMPTVAULT_SAVE_ROOT,omitempty"`
	IntervalMinutes int    `json:"PROMPTVAULT_INTERVAL_MINUTES,omitempty"`
}

var (
	cached   *Config
	cachedMu sync.Mutex
)

// homeDir returns the user's home directory, preferring $HOME so tests can
// redirect it.
func homeDir() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	h, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return h
}

// DataDir returns the promptvault data directory.
func DataDir() string {
	return filepath.Join(homeDir(), dataDirName)
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), settingsFile)
}

// EnsureDataDir creates the data directory if needed.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0o750)
}

// EnsureSettings writes a default settings file if none exists.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	cfg := Default()
	data, err := json.MarshalIndent(settings{
		WorkspaceRoot:   cfg.WorkspaceRoot,
		SaveRoot:        cfg.SaveRoot,
		IntervalMinutes: cfg.IntervalMinutes,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// EnsureAll creates the data directory and the settings file.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		WorkspaceRoot:   defaultWorkspaceRoot(),
		SaveRoot:        filepath.Join(homeDir(), "Documents", "prompt-logs"),
		IntervalMinutes: DefaultIntervalMinutes,
	}
}

// defaultWorkspaceRoot returns the platform location of the editor's
// per-workspace storage.
func defaultWorkspaceRoot() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Application Support", "Cursor", "User", "workspaceStorage")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Cursor", "User", "workspaceStorage")
		}
		return filepath.Join(homeDir(), "AppData", "Roaming", "Cursor", "User", "workspaceStorage")
	default:
		return filepath.Join(homeDir(), ".config", "Cursor", "User", "workspaceStorage")
	}
}

// Load reads the settings file over the defaults and applies environment
// overrides. A missing or invalid settings file yields the defaults; Load
// only fails on unexpected filesystem errors.
func Load() (*Config, error) {
	cfg := Default()

	if data, err := os.ReadFile(SettingsPath()); err == nil {
		var s settings
		if err := json.Unmarshal(data, &s); err == nil {
			if s.WorkspaceRoot != "" {
				cfg.WorkspaceRoot = s.WorkspaceRoot
			}
			if s.SaveRoot != "" {
				cfg.SaveRoot = s.SaveRoot
			}
			if s.IntervalMinutes > 0 {
				cfg.IntervalMinutes = s.IntervalMinutes
			}
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	if v := os.Getenv("PROMPTVAULT_WORKSPACE_ROOT"); v != "" {
		cfg.WorkspaceRoot = v
	}
	if v := os.Getenv("PROMPTVAULT_SAVE_ROOT"); v != "" {
		cfg.SaveRoot = v
	}
	if v := os.Getenv("PROMPTVAULT_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.IntervalMinutes = n
		}
	}

	return cfg, nil
}

// Get returns the cached configuration, loading it on first use. Load
// failures fall back to the defaults.
func Get() *Config {
	cachedMu.Lock()
	defer cachedMu.Unlock()
	if cached == nil {
		cfg, err := Load()
		if err != nil {
			cfg = Default()
		}
		cached = cfg
	}
	return cached
}
