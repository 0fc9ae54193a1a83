// Package util centralizes the cross-cutting concerns every other package
// needs but none of them should own individually: the run configuration
// populated from CLI flags, and structured logging. Mirrors how the
// teacher's own util package was the one place -vb/-t-style flags and
// cross-cutting diagnostics lived, generalized from a compiler's options to
// a symbolic-execution run's.
package util

import (
	"fmt"

	"symex/src/executor"
	"symex/src/report"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Options is the run configuration a `spexec run` invocation populates:
// which bitcode to load, which function to start exploring from, the
// exploration bounds, and the reporter's solve policy. Playing the same
// role the teacher's util.Options played for a compilation, generalized
// from "how to compile this source" to "how to explore this function".
type Options struct {
	BitcodeFiles []string // One or more bitcode files making up the project.
	Entry        string   // Entry function name (exact, demangled, or demangled-without-hash).
	Verbose      bool     // Enable debug-level structured logging.
	NullCheck    bool     // Enable the optional null-pointer read/write policy (off by default, spec.md §4.4/§9).
	Out          string   // Path to write the rendered report to; empty means stdout.

	Bounds executor.Bounds
	Report report.Config
}

// ---------------------
// ----- Constants -----
// ---------------------

const appVersion = "spexec 1.0"

// ---------------------
// ----- Functions -----
// ---------------------

// DefaultOptions returns an Options with the published default bounds and
// a reporter configured to solve every witness category for every path.
func DefaultOptions() Options {
	return Options{
		Bounds: executor.DefaultBounds(),
		Report: report.DefaultConfig(),
	}
}

// Validate checks that Options carries enough to actually run: at least
// one bitcode file and a non-empty entry function name.
func (o Options) Validate() error {
	if len(o.BitcodeFiles) == 0 {
		return fmt.Errorf("util: no bitcode file given")
	}
	if o.Entry == "" {
		return fmt.Errorf("util: no entry function given")
	}
	return nil
}

// Version returns the CLI's self-reported version string.
func Version() string { return appVersion }
