// SPDX-License-Identifier: MPL-2.0

package orchestrate

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/charmbracelet/log"

	"nifbuild/internal/cliargs"
	"nifbuild/internal/discovery"
	"nifbuild/internal/toolchain"
	"nifbuild/pkg/crate"
)

// stubCargoScript mimics the cargo subcommands the orchestrator drives. It
// keys its manifest answers and artifact names off the crate directory's
// base name, matching the two-crate scenario used throughout these tests.
const stubCargoScript = `#!/bin/sh
cmd="$1"; shift
name=$(basename "$PWD")
case "$cmd" in
read-manifest)
	case "$name" in
	helloexe) echo '{"targets":[{"name":"helloexe","kind":["bin"]}]}' ;;
	bonjourdylib) echo '{"targets":[{"name":"bonjourdylib","kind":["cdylib"]}]}' ;;
	*) echo '{"targets":[]}' ;;
	esac ;;
rustc)
	profile=debug
	for a in "$@"; do
		[ "$a" = "--release" ] && profile=release
	done
	mkdir -p "target/$profile"
	case "$name" in
	helloexe) : > "target/$profile/helloexe" ;;
	bonjourdylib) : > "target/$profile/libbonjourdylib.so" ;;
	esac ;;
test) : ;;
clean) rm -rf target ;;
esac
`

func newTestCargo(t *testing.T, script string) *toolchain.Cargo {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub scripts require a POSIX shell")
	}
	bin := filepath.Join(t.TempDir(), "cargo")
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	cargo := toolchain.New(bin)
	cargo.Stdout = &bytes.Buffer{}
	cargo.Stderr = &bytes.Buffer{}
	return cargo
}

// newTestApp lays out an application directory with the helloexe and
// bonjourdylib crates.
func newTestApp(t *testing.T) string {
	t.Helper()
	appDir := t.TempDir()
	for _, name := range []string{"helloexe", "bonjourdylib"} {
		dir := filepath.Join(appDir, "crates", name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, discovery.ManifestName), []byte("[package]\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return appDir
}

func newTestOrchestrator(t *testing.T, script string) *Orchestrator {
	t.Helper()
	return New(Options{
		Cargo:    newTestCargo(t, script),
		Platform: crate.PlatformPosix,
		Logger:   log.New(io.Discard),
	})
}

func mustExist(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("%s does not exist: %v", path, err)
	}
	if !info.Mode().IsRegular() {
		t.Fatalf("%s is not a regular file", path)
	}
}

func mustNotExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("%s still exists (stat err %v)", path, err)
	}
}

func TestOrchestrator_buildCleanCycle(t *testing.T) {
	t.Parallel()

	appDir := newTestApp(t)
	o := newTestOrchestrator(t, stubCargoScript)
	ctx := context.Background()

	inv := cliargs.ParseTail(cliargs.OperationBuild, nil)
	if err := o.Build(ctx, appDir, inv); err != nil {
		t.Fatalf("Build: %v", err)
	}
	mustExist(t, filepath.Join(appDir, "priv", "crates", "helloexe", "helloexe"))
	mustExist(t, filepath.Join(appDir, "priv", "crates", "bonjourdylib", "libbonjourdylib.so"))

	cleanInv := cliargs.ParseTail(cliargs.OperationClean, nil)
	if err := o.Clean(ctx, appDir, cleanInv); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	mustNotExist(t, filepath.Join(appDir, "priv", "crates"))
	mustNotExist(t, filepath.Join(appDir, "crates", "helloexe", "target"))

	// Cleaning an already-clean application succeeds.
	if err := o.Clean(ctx, appDir, cleanInv); err != nil {
		t.Fatalf("second Clean: %v", err)
	}
}

func TestOrchestrator_runArgs(t *testing.T) {
	t.Parallel()

	appDir := newTestApp(t)
	o := newTestOrchestrator(t, stubCargoScript)
	ctx := context.Background()

	if err := o.RunArgs(ctx, appDir, []string{"nifbuild", "build"}); err != nil {
		t.Fatalf("RunArgs build: %v", err)
	}
	mustExist(t, filepath.Join(appDir, "priv", "crates", "helloexe", "helloexe"))

	if err := o.RunArgs(ctx, appDir, []string{"nifbuild", "clean"}); err != nil {
		t.Fatalf("RunArgs clean: %v", err)
	}
	mustNotExist(t, filepath.Join(appDir, "priv", "crates"))

	if err := o.RunArgs(ctx, appDir, []string{"nifbuild"}); !errors.Is(err, cliargs.ErrNoCommand) {
		t.Errorf("RunArgs without command: %v, want ErrNoCommand", err)
	}
}

func TestOrchestrator_buildRelease(t *testing.T) {
	t.Parallel()

	appDir := newTestApp(t)
	o := newTestOrchestrator(t, stubCargoScript)

	inv := cliargs.ParseTail(cliargs.OperationBuild, []string{"--release"})
	if err := o.Build(context.Background(), appDir, inv); err != nil {
		t.Fatalf("Build: %v", err)
	}
	// The stub honors --release from the pass-through args, so the artifact
	// must have come out of target/release.
	mustExist(t, filepath.Join(appDir, "crates", "helloexe", "target", "release", "helloexe"))
	mustExist(t, filepath.Join(appDir, "priv", "crates", "helloexe", "helloexe"))
}

func TestOrchestrator_buildMissingArtifact(t *testing.T) {
	t.Parallel()

	// rustc "succeeds" but never produces the expected file.
	script := `#!/bin/sh
case "$1" in
read-manifest) echo '{"targets":[{"name":"helloexe","kind":["bin"]}]}' ;;
esac
`
	appDir := newTestApp(t)
	o := newTestOrchestrator(t, script)

	err := o.Build(context.Background(), appDir, cliargs.ParseTail(cliargs.OperationBuild, nil))
	if !errors.Is(err, ErrCopyArtifact) {
		t.Fatalf("Build error = %v, want ErrCopyArtifact", err)
	}
}

func TestOrchestrator_buildToolchainFailure(t *testing.T) {
	t.Parallel()

	script := `#!/bin/sh
case "$1" in
read-manifest) echo '{"targets":[{"name":"helloexe","kind":["bin"]}]}' ;;
rustc) exit 101 ;;
esac
`
	appDir := newTestApp(t)
	o := newTestOrchestrator(t, script)

	err := o.Build(context.Background(), appDir, cliargs.ParseTail(cliargs.OperationBuild, nil))
	var exitErr *toolchain.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Build error = %v, want *toolchain.ExitError", err)
	}
	// The failure aborted before any artifact was installed.
	mustNotExist(t, filepath.Join(appDir, "priv"))
}

func TestOrchestrator_testFailureAborts(t *testing.T) {
	t.Parallel()

	// Fail the test run in the first crate (bonjourdylib sorts first).
	script := `#!/bin/sh
if [ "$1" = test ] && [ "$(basename "$PWD")" = bonjourdylib ]; then
	exit 7
fi
`
	appDir := newTestApp(t)
	o := newTestOrchestrator(t, script)

	err := o.Test(context.Background(), appDir, cliargs.ParseTail(cliargs.OperationTest, nil))
	var exitErr *toolchain.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Test error = %v, want *toolchain.ExitError", err)
	}
	if exitErr.Code != 7 {
		t.Errorf("exit code = %d, want 7", exitErr.Code)
	}
}

func TestOrchestrator_missingCratesRoot(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, stubCargoScript)
	appDir := t.TempDir() // no crates/ at all
	ctx := context.Background()

	for _, op := range []cliargs.Operation{cliargs.OperationBuild, cliargs.OperationTest, cliargs.OperationClean} {
		inv := cliargs.ParseTail(op, nil)
		if err := o.Run(ctx, appDir, inv); !errors.Is(err, discovery.ErrCannotEnumerate) {
			t.Errorf("%v error = %v, want ErrCannotEnumerate", op, err)
		}
	}
}

func TestArtifactSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tail []string
		want string
	}{
		{"default profile", nil, filepath.Join("c", "target", "debug", "f")},
		{"explicit debug", []string{"--debug"}, filepath.Join("c", "target", "debug", "f")},
		{"release", []string{"--release"}, filepath.Join("c", "target", "release", "f")},
		{"release wins over debug", []string{"--debug", "--release"}, filepath.Join("c", "target", "release", "f")},
		{"target triple", []string{"--target=x86_64-unknown-linux-gnu"},
			filepath.Join("c", "target", "x86_64-unknown-linux-gnu", "debug", "f")},
		{"triple and release", []string{"--target", "=", "aarch64-apple-darwin", "--release"},
			filepath.Join("c", "target", "aarch64-apple-darwin", "release", "f")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			inv := cliargs.ParseTail(cliargs.OperationBuild, tt.tail)
			if got := artifactSource("c", inv, "f"); got != tt.want {
				t.Errorf("artifactSource = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRemoveDirIfPresent(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	if err := os.MkdirAll(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := removeDirIfPresent(dir); err != nil {
		t.Fatalf("removeDirIfPresent: %v", err)
	}
	mustNotExist(t, dir)

	// Absent already: success.
	if err := removeDirIfPresent(dir); err != nil {
		t.Fatalf("removeDirIfPresent on absent dir: %v", err)
	}
}
