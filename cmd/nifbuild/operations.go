// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"nifbuild/internal/cliargs"
	"nifbuild/internal/config"
	"nifbuild/internal/orchestrate"
	"nifbuild/internal/toolchain"
)

// The three operation commands disable cobra's flag parsing: their argument
// tails belong to cargo verbatim, including flags nifbuild itself scans
// (--release, --debug, --target).
var (
	buildCmd = &cobra.Command{
		Use:                "build [cargo rustc args]",
		Short:              "Build every crate and install artifacts under priv/crates",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, cliargs.OperationBuild, args)
		},
	}

	testCmd = &cobra.Command{
		Use:                "test [cargo test args]",
		Short:              "Run cargo test in every crate",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, cliargs.OperationTest, args)
		},
	}

	cleanCmd = &cobra.Command{
		Use:                "clean [cargo clean args]",
		Short:              "Clean every crate and remove priv/crates",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, cliargs.OperationClean, args)
		},
	}
)

// runOperation wires configuration, logging, and the orchestrator for one
// operation against the current working directory.
func runOperation(cmd *cobra.Command, op cliargs.Operation, args []string) error {
	cfg := loadConfigOrDefault(cmd)
	inv := cliargs.ParseTail(op, args)

	appDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("cannot determine working directory: %w", err)
	}

	o := orchestrate.New(orchestrate.Options{
		Cargo:     toolchain.New(cfg.CargoBin),
		CratesDir: cfg.CratesDir,
		OutputDir: cfg.OutputDir,
		Logger:    newLogger(cfg),
	})
	return o.Run(cmd.Context(), appDir, inv)
}

// loadConfigOrDefault loads the config file, falling back to defaults with a
// warning when loading fails. A broken config file should not block a build
// that the defaults can serve.
func loadConfigOrDefault(cmd *cobra.Command) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), WarningStyle.Render("Warning: ")+err.Error())
		return config.Default()
	}
	return cfg
}

func newLogger(cfg *config.Config) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: false,
	})
	if cfg.UI.Verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}
