// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for nifbuild.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"nifbuild/internal/cliargs"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "nifbuild",
		Short: "Build Rust crates embedded in an Erlang application",
		Long: TitleStyle.Render("nifbuild") + SubtitleStyle.Render(" - Rust crate builder for Erlang applications") + `

nifbuild compiles every crate found under the application's crates/
directory and installs the artifacts under priv/crates/<crate>/ with the
filenames the BEAM expects, so NIF shared libraries load by name on
Linux, macOS, and Windows alike.

Everything after the command name is forwarded verbatim to cargo:

  nifbuild build --release
  nifbuild build --target=aarch64-apple-darwin
  nifbuild test -- --nocapture
  nifbuild clean

Run nifbuild from the application's root directory (the one that
contains crates/ and priv/).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// No command given: usage belongs on the error stream.
			cmd.SetOut(cmd.ErrOrStderr())
			_ = cmd.Usage()
			return &ExitError{Code: 1, Err: cliargs.ErrNoCommand}
		},
	}
)

func init() {
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(configCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
