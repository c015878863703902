// SPDX-License-Identifier: MPL-2.0

// Package cliargs parses the orchestrator's argument vector. It deliberately
// does not use a flag library for the post-command tail: every token after
// the operation name is forwarded verbatim to cargo, so recognized flags
// like --release and --target are scanned but never consumed.
package cliargs

import (
	"errors"
	"fmt"
	"slices"
)

// ErrNoCommand is returned when the argument vector names no recognized
// operation. The caller responds with usage output, not a crash.
var ErrNoCommand = errors.New("no command given")

// Operation is the top-level verb to apply across all crates.
type Operation int

const (
	// OperationBuild compiles every declared target and installs artifacts.
	OperationBuild Operation = iota
	// OperationTest runs cargo's test suite in every crate.
	OperationTest
	// OperationClean removes cargo build state and the installed artifacts.
	OperationClean
)

// String returns the CLI spelling of the operation.
func (o Operation) String() string {
	switch o {
	case OperationBuild:
		return "build"
	case OperationTest:
		return "test"
	case OperationClean:
		return "clean"
	default:
		return "unknown"
	}
}

// Profile selects the cargo build profile.
type Profile int

const (
	// ProfileDefaultDebug is the profile when neither --release nor --debug
	// was given. It behaves exactly like ProfileDebug.
	ProfileDefaultDebug Profile = iota
	// ProfileDebug was requested explicitly via --debug.
	ProfileDebug
	// ProfileRelease was requested via --release, which wins over --debug.
	ProfileRelease
)

// Subdir returns the cargo output subdirectory for the profile.
func (p Profile) Subdir() string {
	if p == ProfileRelease {
		return "release"
	}
	return "debug"
}

// Invocation is the parsed command line. It is constructed once from the
// process argument vector and immutable thereafter.
type Invocation struct {
	// Operation is the verb to run.
	Operation Operation
	// Target is the --target triple, or "" when none was given.
	Target string
	// Profile is the build profile derived from --release/--debug.
	Profile Profile
	// PassArgs is the verbatim argument tail after the operation name.
	// Scanned flags remain in it; cargo sees exactly what the user typed.
	PassArgs []string
}

// Parse interprets a full process argument vector (argv[0] is the program
// name and is ignored). It returns ErrNoCommand when fewer than two elements
// are present or when argv[1] is not a recognized operation.
func Parse(argv []string) (*Invocation, error) {
	if len(argv) < 2 {
		return nil, ErrNoCommand
	}
	op, err := parseOperation(argv[1])
	if err != nil {
		return nil, err
	}
	return ParseTail(op, argv[2:]), nil
}

// ParseTail builds an Invocation from an already-dispatched operation and
// its raw argument tail. The CLI layer uses this directly since cobra has
// already matched the subcommand name.
func ParseTail(op Operation, tail []string) *Invocation {
	profile := ProfileDefaultDebug
	if HasFlag(tail, "--debug") {
		profile = ProfileDebug
	}
	if HasFlag(tail, "--release") {
		profile = ProfileRelease
	}

	target, _ := OptionValue(tail, "--target")

	return &Invocation{
		Operation: op,
		Target:    target,
		Profile:   profile,
		PassArgs:  slices.Clone(tail),
	}
}

func parseOperation(name string) (Operation, error) {
	switch name {
	case "build":
		return OperationBuild, nil
	case "test":
		return OperationTest, nil
	case "clean":
		return OperationClean, nil
	default:
		return 0, fmt.Errorf("%w: unrecognized command %q", ErrNoCommand, name)
	}
}

// HasFlag reports whether key appears as its own argument.
func HasFlag(args []string, key string) bool {
	return slices.Contains(args, key)
}

// OptionValue scans args left to right for key and returns its value in the
// first of four accepted spellings: "key=value", "key= value", "key =value",
// and "key = value". A candidate occurrence that resolves under none of the
// four forms (for example "key" followed by a bare word) does not fail the
// scan; later occurrences may still match. Only exhausting the argument list
// yields not-found.
func OptionValue(args []string, key string) (string, bool) {
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if rest, ok := cutKeyEquals(arg, key); ok {
			if rest != "" {
				return rest, true // key=value
			}
			if i+1 < len(args) {
				return args[i+1], true // key= value
			}
			return "", false // "key=" at end of list
		}

		if arg != key {
			continue
		}
		if i+1 >= len(args) {
			return "", false // bare "key" at end of list
		}
		next := args[i+1]
		if next == "=" {
			if i+2 < len(args) {
				return args[i+2], true // key = value
			}
			return "", false // "key =" at end of list
		}
		if len(next) > 1 && next[0] == '=' {
			return next[1:], true // key =value
		}
		// Malformed occurrence: skip the lookahead token and keep scanning.
		i++
	}
	return "", false
}

// cutKeyEquals splits "key=..." into the part after '=' when arg is the key
// immediately followed by '='.
func cutKeyEquals(arg, key string) (string, bool) {
	if len(arg) > len(key) && arg[:len(key)] == key && arg[len(key)] == '=' {
		return arg[len(key)+1:], true
	}
	return "", false
}
