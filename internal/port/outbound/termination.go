package outbound

import "sync/atomic"

// Termination is the host-supplied kill switch. The adapter calls Set on a
// confirmed denial; the host's workflow loop observes IsSet and stops.
// Setting is one-shot and irrevocable.
type Termination interface {
	Set()
	IsSet() bool
}

// TerminationFlag is the default Termination: a process-local atomic flag
// for hosts that run in the same process as the guard.
type TerminationFlag struct {
	set atomic.Bool
}

// NewTerminationFlag returns an unset flag.
func NewTerminationFlag() *TerminationFlag {
	return &TerminationFlag{}
}

// Set marks the flag. Later calls are no-ops.
func (f *TerminationFlag) Set() {
	f.set.Store(true)
}

// IsSet reports whether termination was signalled.
func (f *TerminationFlag) IsSet() bool {
	return f.set.Load()
}

// Compile-time interface verification.
var _ Termination = (*TerminationFlag)(nil)
