// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"nifbuild/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage nifbuild configuration",
	Long: `Manage nifbuild configuration.

Configuration is stored in:
  - Linux: ~/.config/nifbuild/config.toml
  - macOS: ~/Library/Application Support/nifbuild/config.toml
  - Windows: %APPDATA%\nifbuild\config.toml

Every key can also be set through the environment (NIFBUILD_CARGO_BIN,
NIFBUILD_CRATES_DIR, NIFBUILD_OUTPUT_DIR, NIFBUILD_UI_VERBOSE).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return writeTOML(cmd, cfg)
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfigFile(cmd)
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.FilePath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})
}

func writeTOML(cmd *cobra.Command, cfg *config.Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func initConfigFile(cmd *cobra.Command) error {
	path, err := config.FilePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := toml.Marshal(config.Default())
	if err != nil {
		return fmt.Errorf("failed to render default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Created ")+path)
	return nil
}
