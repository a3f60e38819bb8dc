// Package edenerr defines the fatal error taxonomy every stage of the
// compiler and engine reports through: errors.New sentinels wrapped with
// fmt.Errorf("%w: ...", sentinel, detail) at the point of failure. None of
// these are recoverable — every caller that sees one aborts the process
// with the matching exit code.
package edenerr

import "errors"

// ModelMalformed reports a structural problem in the resolved model itself
// (a dangling symbolic reference, an unsupported channel kind) — an error
// in the caller's input, not this program.
var ModelMalformed = errors.New("model malformed")

// CodegenFailed reports a kernel source that failed to compile or load, or
// a reversal/gate kind the emitter has no lowering for.
var CodegenFailed = errors.New("codegen failed")

// ResourceExhausted reports a filesystem, memory, or MPI-buffer allocation
// failure unrelated to the model's structure.
var ResourceExhausted = errors.New("resource exhausted")

// InternalInvariant reports a violated table/instantiation invariant
// detected outside the construction-time panics that catch most of them —
// e.g. a cross-rank reference left unresolved after the domain decomposer's
// mirror-buffer pass.
var InternalInvariant = errors.New("internal invariant broken")

// ExitCode maps an error produced by this package to a process exit code:
// 0 on success, 1 on file-I/O/compile failure, 2 on unsupported-configuration
// or malformed-model errors.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ResourceExhausted), errors.Is(err, CodegenFailed):
		return 1
	case errors.Is(err, ModelMalformed), errors.Is(err, InternalInvariant):
		return 2
	default:
		return 1
	}
}
