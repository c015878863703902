// SPDX-License-Identifier: MPL-2.0

// Package orchestrate applies the build, test, and clean operations across
// every crate discovered under an application directory. Crates are
// processed sequentially and independently; the first failure aborts the
// whole operation with nothing rolled back, since cargo invocations are
// idempotent and retrying would only mask real build problems.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"nifbuild/internal/cliargs"
	"nifbuild/internal/discovery"
	"nifbuild/internal/toolchain"
	"nifbuild/pkg/crate"
	"nifbuild/pkg/manifest"
)

// Fatal filesystem errors during artifact handling.
var (
	// ErrCreateOutputDir is returned when the destination tree cannot be
	// created under the application's output directory.
	ErrCreateOutputDir = errors.New("cannot create output directory")
	// ErrCopyArtifact is returned when a built artifact cannot be copied
	// into place; this usually means cargo did not produce the expected
	// filename (name mismatch or build misconfiguration).
	ErrCopyArtifact = errors.New("cannot copy artifact")
	// ErrDeleteOutputDir is returned when clean cannot remove the output
	// tree. The tree being absent already is success, not failure.
	ErrDeleteOutputDir = errors.New("cannot delete output directory")
)

// Orchestrator runs cargo across all crates of one application.
type Orchestrator struct {
	cargo     *toolchain.Cargo
	platform  crate.Platform
	cratesDir string
	outputDir string
	logger    *log.Logger
}

// Options configures an Orchestrator. Zero-value fields fall back to the
// stock layout: "cargo" on PATH, crates/ and priv/crates under the appdir,
// the host platform's naming, and a discarded logger.
type Options struct {
	Cargo     *toolchain.Cargo
	Platform  crate.Platform
	CratesDir string
	OutputDir string
	Logger    *log.Logger
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		cargo:     opts.Cargo,
		platform:  opts.Platform,
		cratesDir: opts.CratesDir,
		outputDir: opts.OutputDir,
		logger:    opts.Logger,
	}
	if o.cargo == nil {
		o.cargo = toolchain.New("")
	}
	if o.platform == "" {
		o.platform = crate.HostPlatform()
	}
	if o.cratesDir == "" {
		o.cratesDir = "crates"
	}
	if o.outputDir == "" {
		o.outputDir = filepath.Join("priv", "crates")
	}
	if o.logger == nil {
		o.logger = log.New(io.Discard)
	}
	return o
}

// Run dispatches the invocation's operation against appDir.
func (o *Orchestrator) Run(ctx context.Context, appDir string, inv *cliargs.Invocation) error {
	switch inv.Operation {
	case cliargs.OperationBuild:
		return o.Build(ctx, appDir, inv)
	case cliargs.OperationTest:
		return o.Test(ctx, appDir, inv)
	case cliargs.OperationClean:
		return o.Clean(ctx, appDir, inv)
	default:
		return fmt.Errorf("unknown operation %v", inv.Operation)
	}
}

// RunArgs parses a full argument vector (argv[0] being the program name)
// and runs the resulting operation against appDir. It mirrors the CLI
// surface for embedders and integration tests.
func (o *Orchestrator) RunArgs(ctx context.Context, appDir string, argv []string) error {
	inv, err := cliargs.Parse(argv)
	if err != nil {
		return err
	}
	return o.Run(ctx, appDir, inv)
}

// Build compiles every declared target of every crate and installs each
// artifact under the output tree with its platform-correct name.
func (o *Orchestrator) Build(ctx context.Context, appDir string, inv *cliargs.Invocation) error {
	crates, err := o.discover(appDir)
	if err != nil {
		return err
	}

	for _, c := range crates {
		targets, err := manifest.Read(ctx, o.cargo, c.Dir)
		if err != nil {
			return err
		}
		for _, target := range targets {
			o.logger.Info("building", "crate", c.Name(), "target", target.String())

			args := target.SelectorArgs()
			args = append(args, inv.PassArgs...)
			args = append(args, target.LinkerArgs(o.platform)...)
			o.logger.Debug("invoking cargo", "dir", c.Dir, "args", args)
			if err := o.cargo.Run(ctx, c.Dir, "rustc", args...); err != nil {
				return err
			}

			if err := o.install(appDir, c, target, inv); err != nil {
				return err
			}
		}
	}
	return nil
}

// install relocates one built artifact from cargo's output directory into
// the unified output tree.
func (o *Orchestrator) install(appDir string, c crate.Crate, target crate.Target, inv *cliargs.Invocation) error {
	dstName, srcName := target.Filenames(o.platform)
	src := artifactSource(c.Dir, inv, srcName)

	dstDir := filepath.Join(appDir, o.outputDir, c.Name())
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrCreateOutputDir, err)
	}

	dst := filepath.Join(dstDir, dstName)
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrCopyArtifact, err)
	}

	o.logger.Info("installed", "artifact", filepath.Join(o.outputDir, c.Name(), dstName))
	return nil
}

// artifactSource is where cargo leaves the built artifact:
// <crate>/target[/<triple>]/<debug|release>/<filename>.
func artifactSource(crateDir string, inv *cliargs.Invocation, filename string) string {
	path := filepath.Join(crateDir, "target")
	if inv.Target != "" {
		path = filepath.Join(path, inv.Target)
	}
	return filepath.Join(path, inv.Profile.Subdir(), filename)
}

// Test runs cargo's test suite in every crate, aborting on the first
// failure.
func (o *Orchestrator) Test(ctx context.Context, appDir string, inv *cliargs.Invocation) error {
	crates, err := o.discover(appDir)
	if err != nil {
		return err
	}

	for _, c := range crates {
		o.logger.Info("testing", "crate", c.Name())
		if err := o.cargo.Run(ctx, c.Dir, "test", inv.PassArgs...); err != nil {
			return err
		}
	}
	return nil
}

// Clean runs cargo clean in every crate, then removes the whole output
// tree. An already-absent output tree is success.
func (o *Orchestrator) Clean(ctx context.Context, appDir string, inv *cliargs.Invocation) error {
	crates, err := o.discover(appDir)
	if err != nil {
		return err
	}

	for _, c := range crates {
		o.logger.Info("cleaning", "crate", c.Name())
		if err := o.cargo.Run(ctx, c.Dir, "clean", inv.PassArgs...); err != nil {
			return err
		}
	}

	outputDir := filepath.Join(appDir, o.outputDir)
	if err := removeDirIfPresent(outputDir); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteOutputDir, err)
	}
	return nil
}

func (o *Orchestrator) discover(appDir string) ([]crate.Crate, error) {
	return discovery.Discover(filepath.Join(appDir, o.cratesDir))
}

// removeDirIfPresent removes path recursively. A missing path is fine (the
// tree was never built or a prior clean already ran); anything else that
// cannot be removed is an error.
func removeDirIfPresent(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if !info.IsDir() {
		return nil
	}
	return os.RemoveAll(path)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
