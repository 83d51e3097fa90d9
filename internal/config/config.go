// Package config loads vbranch's configuration from environment variables,
// an optional config file, and defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every configurable setting (§A's Configuration section).
type Config struct {
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Store     StoreConfig     `mapstructure:"store"`
	Diff      DiffConfig      `mapstructure:"diff"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// WorkspaceConfig names the ref the synthetic workspace commit lives on.
type WorkspaceConfig struct {
	Ref string `mapstructure:"ref"`
}

// StoreConfig points at the SQLite database backing stack/branch metadata.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// DiffConfig tunes the diff engine.
type DiffConfig struct {
	ContextLines int `mapstructure:"contextLines"`
}

// LoggingConfig controls the zap logger built by internal/obslog.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from the current directory's vbranch.yaml (if
// present), then VBRANCH_-prefixed environment variables, falling back to
// defaults when neither is set.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("VBRANCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("vbranch")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/vbranch")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("workspace.ref", "refs/heads/gitbutler/workspace")
	v.SetDefault("store.path", "./.vbranch/stacks.db")
	v.SetDefault("diff.contextLines", 3)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

func validate(cfg *Config) error {
	var errs []string
	if cfg.Workspace.Ref == "" {
		errs = append(errs, "workspace.ref must not be empty")
	}
	if cfg.Diff.ContextLines < 0 {
		errs = append(errs, "diff.contextLines must not be negative")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, console")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
