// SPDX-License-Identifier: MPL-2.0

// Package config loads nifbuild's optional configuration file and its
// environment overrides. Nothing here is required for normal operation; the
// defaults match a stock Erlang application layout with cargo on PATH.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name, used for the config directory.
	AppName = "nifbuild"
	// ConfigFileName is the config file name without extension.
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "toml"
	// EnvPrefix namespaces environment overrides (NIFBUILD_CARGO_BIN, ...).
	EnvPrefix = "NIFBUILD"
)

// configDirOverride lets tests redirect config loading to a temp dir.
var configDirOverride string

// Config holds all tunable settings.
type Config struct {
	// CargoBin is the toolchain binary to invoke.
	CargoBin string `mapstructure:"cargo_bin" toml:"cargo_bin"`
	// CratesDir is the crates container, relative to the application dir.
	CratesDir string `mapstructure:"crates_dir" toml:"crates_dir"`
	// OutputDir is the artifact tree, relative to the application dir.
	OutputDir string `mapstructure:"output_dir" toml:"output_dir"`
	// UI groups presentation settings.
	UI UIConfig `mapstructure:"ui" toml:"ui"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	// Verbose enables debug-level log output.
	Verbose bool `mapstructure:"verbose" toml:"verbose"`
}

// Default returns the configuration used when no file or overrides exist.
func Default() *Config {
	return &Config{
		CargoBin:  "cargo",
		CratesDir: "crates",
		OutputDir: filepath.Join("priv", "crates"),
	}
}

// Dir returns the nifbuild configuration directory using platform
// conventions: %APPDATA% on Windows, ~/Library/Application Support on macOS,
// $XDG_CONFIG_HOME (defaulting to ~/.config) elsewhere.
func Dir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string
	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// SetDirOverride redirects config loading, for tests.
func SetDirOverride(dir string) {
	configDirOverride = dir
}

// FilePath returns the full path of the config file, which may not exist.
func FilePath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileExt), nil
}

// Load reads the config file if present, applies NIFBUILD_* environment
// overrides, and returns the result. A missing file yields the defaults; a
// malformed file is an error.
func Load() (*Config, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("cargo_bin", defaults.CargoBin)
	v.SetDefault("crates_dir", defaults.CratesDir)
	v.SetDefault("output_dir", defaults.OutputDir)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := FilePath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}
