// SPDX-License-Identifier: MPL-2.0

// Package discovery finds the buildable crates nested under an application's
// crates container directory.
package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"nifbuild/pkg/crate"
)

// ManifestName is the file whose presence marks a directory as a crate.
const ManifestName = "Cargo.toml"

// ErrCannotEnumerate is returned when the crates container itself is missing
// or unreadable. A missing root is never treated as "no crates": partial or
// empty discovery would silently turn a misconfigured project into a no-op.
var ErrCannotEnumerate = errors.New("cannot read crates directory")

// Discover lists the crates directly under cratesDir: every immediate
// subdirectory containing a regular Cargo.toml. Entries that cannot be
// stat'ed (permission races, dangling symlinks) are skipped rather than
// failing the whole enumeration.
func Discover(cratesDir string) ([]crate.Crate, error) {
	entries, err := os.ReadDir(cratesDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCannotEnumerate, err)
	}

	var crates []crate.Crate
	for _, entry := range entries {
		dir := filepath.Join(cratesDir, entry.Name())
		if isCrate(dir) {
			crates = append(crates, crate.Crate{Dir: dir})
		}
	}
	return crates, nil
}

func isCrate(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ManifestName))
	return err == nil && info.Mode().IsRegular()
}
