// Package config provides configuration loading and validation for eaept.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Standard config file location.
const defaultConfigPath = "~/.config/eaept/config.json"

// Config holds all eaept configuration settings.
type Config struct {
	StateDir           string `json:"state_dir"`            // Project-relative directory for workflow state
	PhaseOverridesPath string `json:"phase_overrides_path"` // YAML file with per-phase policy overrides
	HistoryDBPath      string `json:"history_db_path"`      // SQLite archive of finished sessions
	TotalBudget        int    `json:"total_budget"`         // Total resource budget (tokens)
	MonitorURL         string `json:"monitor_url"`          // Session analyzer base URL; empty disables the budget check
	OptimizeCommand    string `json:"optimize_command"`     // External optimization command; empty disables triggering
	ExecutorCommand    string `json:"executor_command"`     // External phase executor; empty selects the built-in one
	DefaultAutoExecute bool   `json:"default_auto_execute"` // Whether start runs to completion by default

	// expandedPaths tracks whether ExpandPaths has been called.
	expandedPaths bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		StateDir:           "config",
		PhaseOverridesPath: filepath.Join("config", "eaept-config.yaml"),
		HistoryDBPath:      "~/.local/share/eaept/history.db",
		TotalBudget:        200000,
		DefaultAutoExecute: true,
	}
}

// Load reads config from the standard location (~/.config/eaept/config.json),
// falling back to defaults if the file doesn't exist.
// Missing fields use default values (not zero values).
func Load() (*Config, error) {
	configPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to expand config path: %w", err)
	}
	return LoadFromPath(configPath)
}

// LoadFromPath reads config from a specific path.
// If the file doesn't exist, returns default config.
// If the file exists but is invalid, returns an error.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := cfg.ExpandPaths(); err != nil {
			return nil, fmt.Errorf("failed to expand paths: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fileCfg fileConfig
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	mergeConfig(cfg, &fileCfg)

	if err := cfg.ExpandPaths(); err != nil {
		return nil, fmt.Errorf("failed to expand paths: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// fileConfig is used for parsing JSON with pointer fields to detect what was set.
type fileConfig struct {
	StateDir           *string `json:"state_dir"`
	PhaseOverridesPath *string `json:"phase_overrides_path"`
	HistoryDBPath      *string `json:"history_db_path"`
	TotalBudget        *int    `json:"total_budget"`
	MonitorURL         *string `json:"monitor_url"`
	OptimizeCommand    *string `json:"optimize_command"`
	ExecutorCommand    *string `json:"executor_command"`
	DefaultAutoExecute *bool   `json:"default_auto_execute"`
}

// mergeConfig merges file config values into the default config.
// Only non-nil values from the file config are applied.
func mergeConfig(cfg *Config, fileCfg *fileConfig) {
	if fileCfg.StateDir != nil {
		cfg.StateDir = *fileCfg.StateDir
	}
	if fileCfg.PhaseOverridesPath != nil {
		cfg.PhaseOverridesPath = *fileCfg.PhaseOverridesPath
	}
	if fileCfg.HistoryDBPath != nil {
		cfg.HistoryDBPath = *fileCfg.HistoryDBPath
	}
	if fileCfg.TotalBudget != nil {
		cfg.TotalBudget = *fileCfg.TotalBudget
	}
	if fileCfg.MonitorURL != nil {
		cfg.MonitorURL = *fileCfg.MonitorURL
	}
	if fileCfg.OptimizeCommand != nil {
		cfg.OptimizeCommand = *fileCfg.OptimizeCommand
	}
	if fileCfg.ExecutorCommand != nil {
		cfg.ExecutorCommand = *fileCfg.ExecutorCommand
	}
	if fileCfg.DefaultAutoExecute != nil {
		cfg.DefaultAutoExecute = *fileCfg.DefaultAutoExecute
	}
}

// Validate checks that all config values are valid.
func (c *Config) Validate() error {
	var errs []error

	if c.StateDir == "" {
		errs = append(errs, errors.New("state_dir must be non-empty"))
	}

	if c.TotalBudget <= 0 {
		errs = append(errs, errors.New("total_budget must be > 0"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// StatePath returns the session snapshot path inside the state directory.
func (c *Config) StatePath() string {
	return filepath.Join(c.StateDir, ".eaept-state.json")
}

// ExpandPaths expands ~ to home directory in all path fields.
func (c *Config) ExpandPaths() error {
	if c.expandedPaths {
		return nil
	}

	var err error

	c.HistoryDBPath, err = expandPath(c.HistoryDBPath)
	if err != nil {
		return fmt.Errorf("failed to expand history_db_path: %w", err)
	}

	c.expandedPaths = true
	return nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}

	return filepath.Clean(path), nil
}
