// Package errs defines the error taxonomy shared across the miner.
//
// Each type is a distinct Go type (not just a sentinel) so callers can
// discriminate with errors.As and so the exit-code table in cmd/gapminer can
// map a taxonomy member to a process exit code without string matching.
package errs

import "fmt"

// ConfigError reports a missing required flag, an out-of-range numeric
// value, or an unsupported flag combination (e.g. GPU + Chinese mode).
// Fatal at startup; the caller should exit 1.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "config: " + e.Msg }

// GPUInitError reports an OpenCL platform/device/kernel build failure.
// Fatal at startup; the caller should exit 2.
type GPUInitError struct {
	Msg string
	Err error
}

func (e *GPUInitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gpu init: %s: %v", e.Msg, e.Err)
	}
	return "gpu init: " + e.Msg
}

func (e *GPUInitError) Unwrap() error { return e.Err }

// FileFormatError reports a missing, truncated, or invariant-violating CRT
// Set file. Fatal for loaders. The CRT optimizer has no retry path:
// crtopt.Run returns any error from building the set to its caller.
type FileFormatError struct {
	Path string
	Msg  string
}

func (e *FileFormatError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("file format (%s): %s", e.Path, e.Msg)
	}
	return "file format: " + e.Msg
}

// WorkSourceError reports a transport-layer failure talking to the pool.
// The core observes this as a nil work unit and keeps mining on the last
// known header until the work source recovers.
type WorkSourceError struct {
	Op  string
	Err error
}

func (e *WorkSourceError) Error() string {
	return fmt.Sprintf("work source: %s: %v", e.Op, e.Err)
}

func (e *WorkSourceError) Unwrap() error { return e.Err }

// InvariantViolation reports a violated structural invariant, e.g. a shift
// too small for the loaded CRT Set's bit width. Fatal; abort with message.
type InvariantViolation struct {
	Msg string
}

func (e *InvariantViolation) Error() string { return "invariant violation: " + e.Msg }

// StaleShare is advisory, not fatal: it describes a PoW that no longer
// matches the active header. shareproc.Processor.Process reports staleness
// through its bool result and does not construct this type; the producing
// sieve stops on a true result.
type StaleShare struct {
	Reason string
}

func (e *StaleShare) Error() string { return "stale share: " + e.Reason }

// Transient reports a condition the caller may retry. No package in this
// module returns it: gapqueue.Queue.Pop signals an empty heap by returning
// nil.
type Transient struct {
	Reason string
}

func (e *Transient) Error() string { return "transient: " + e.Reason }
