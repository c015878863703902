// SPDX-License-Identifier: MPL-2.0

// Package manifest turns cargo's manifest-query output into the targets a
// crate declares. The JSON schema belongs to cargo; this package only reads
// the "targets" array and maps each entry's kind list onto the two artifact
// kinds the orchestrator knows how to install.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"nifbuild/internal/toolchain"
	"nifbuild/pkg/crate"
)

// ErrUnparsable is returned when cargo's manifest output is not JSON or
// lacks the targets array. A present-but-empty array is not an error.
var ErrUnparsable = errors.New("cannot parse crate manifest")

type document struct {
	// Targets is a pointer so a missing key is distinguishable from an
	// empty array; only the former is a schema violation.
	Targets *[]entry `json:"targets"`
}

type entry struct {
	Name string   `json:"name"`
	Kind []string `json:"kind"`
}

// Read queries cargo for the manifest of the crate at dir and returns its
// declared targets. Launch failure surfaces as toolchain.ErrUnavailable;
// everything else that goes wrong, including cargo exiting non-zero without
// usable output, surfaces as ErrUnparsable.
func Read(ctx context.Context, cargo *toolchain.Cargo, dir string) ([]crate.Target, error) {
	out, err := cargo.Capture(ctx, dir, "read-manifest")
	if err != nil {
		var exitErr *toolchain.ExitError
		if !errors.As(err, &exitErr) {
			return nil, err
		}
		// cargo ran and failed; whatever it printed either parses or it
		// does not. Fall through to the parser.
	}
	targets, err := ParseTargets(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, dir)
	}
	return targets, nil
}

// ParseTargets decodes a read-manifest JSON document. Entries whose kind
// list names neither an executable nor a shared library are dropped; the
// caller only installs those two artifact types.
func ParseTargets(data []byte) ([]crate.Target, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, ErrUnparsable
	}
	if doc.Targets == nil {
		return nil, ErrUnparsable
	}

	var targets []crate.Target
	for _, e := range *doc.Targets {
		if e.Name == "" {
			continue
		}
		switch {
		case slices.Contains(e.Kind, "bin"):
			targets = append(targets, crate.Target{Name: e.Name, Kind: crate.KindBin})
		case slices.Contains(e.Kind, "dylib"), slices.Contains(e.Kind, "cdylib"):
			targets = append(targets, crate.Target{Name: e.Name, Kind: crate.KindDylib})
		}
	}
	return targets, nil
}
