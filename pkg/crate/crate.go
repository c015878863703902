// SPDX-License-Identifier: MPL-2.0

// Package crate models the build targets a crate declares and the
// platform-specific filenames their artifacts carry. Everything here is a
// pure function of (target, platform); the host platform is detected once at
// the CLI boundary and passed down, so all three naming conventions are
// testable from a single binary.
package crate

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// Kind distinguishes the two artifact types a crate may declare.
type Kind int

const (
	// KindBin is a standalone executable, typically loaded by the host
	// application as a port program.
	KindBin Kind = iota
	// KindDylib is a shared library loaded through the NIF interface.
	KindDylib
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindBin:
		return "bin"
	case KindDylib:
		return "dylib"
	default:
		return "unknown"
	}
}

// Target is a single declared build artifact within a crate. Name is the
// identifier cargo uses to build exactly that artifact and is never empty.
type Target struct {
	Name string
	Kind Kind
}

// String returns "kind name" for log lines.
func (t Target) String() string {
	return fmt.Sprintf("%s %s", t.Kind, t.Name)
}

// Platform identifies an artifact-naming convention.
type Platform string

const (
	// PlatformPosix covers Linux and the BSDs: no executable suffix,
	// "lib<name>.so" shared libraries.
	PlatformPosix Platform = "posix"
	// PlatformDarwin is macOS: cargo emits "lib<name>.dylib" but the BEAM's
	// dynamic loader expects the ".so" extension, so the installed name
	// differs from the built name.
	PlatformDarwin Platform = "darwin"
	// PlatformWindows uses ".exe" and "<name>.dll" with no "lib" prefix.
	PlatformWindows Platform = "windows"
)

// HostPlatform maps runtime.GOOS onto a naming convention.
func HostPlatform() Platform {
	switch runtime.GOOS {
	case "windows":
		return PlatformWindows
	case "darwin":
		return PlatformDarwin
	default:
		return PlatformPosix
	}
}

// Filenames returns the installed filename and the filename cargo produces
// for the target on the given platform. The two differ only for shared
// libraries on Darwin (".so" installed, ".dylib" built).
func (t Target) Filenames(p Platform) (dst, src string) {
	switch t.Kind {
	case KindBin:
		if p == PlatformWindows {
			return t.Name + ".exe", t.Name + ".exe"
		}
		return t.Name, t.Name
	case KindDylib:
		switch p {
		case PlatformWindows:
			return t.Name + ".dll", t.Name + ".dll"
		case PlatformDarwin:
			return "lib" + t.Name + ".so", "lib" + t.Name + ".dylib"
		default:
			return "lib" + t.Name + ".so", "lib" + t.Name + ".so"
		}
	}
	return t.Name, t.Name
}

// darwinDylibLinkerArgs suppresses the flat-namespace/undefined-symbol
// errors the macOS linker raises for NIF API calls, which are resolved by
// the emulator only at load time.
var darwinDylibLinkerArgs = []string{"--", "--codegen", "link-args=-flat_namespace -undefined suppress"}

// LinkerArgs returns extra arguments to append to the cargo invocation for
// the target on the given platform. Only Darwin shared libraries need any.
func (t Target) LinkerArgs(p Platform) []string {
	if t.Kind == KindDylib && p == PlatformDarwin {
		return darwinDylibLinkerArgs
	}
	return nil
}

// SelectorArgs returns the cargo arguments that select this target for
// building. Cargo permits at most one library target per crate, so the
// library selector carries no name.
func (t Target) SelectorArgs() []string {
	switch t.Kind {
	case KindBin:
		return []string{"--bin", t.Name}
	case KindDylib:
		return []string{"--lib"}
	}
	return nil
}

// Crate is a discovered sub-project: a directory under the application's
// crates container that holds a cargo manifest.
type Crate struct {
	// Dir is the crate directory path.
	Dir string
}

// Name returns the crate's directory base name, which keys its artifact
// sub-tree under the output directory.
func (c Crate) Name() string {
	return filepath.Base(c.Dir)
}
