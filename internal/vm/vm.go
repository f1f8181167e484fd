// Package vm boots target images and runs commands inside them over SSH.
// It wraps the low-level hypervisor launcher with guest reachability
// checks and a command session.
package vm

import (
	"context"
	"time"
)

// ExitTimeout is the exit status reported for a command that was killed
// because it ran past its timeout.
const ExitTimeout = -1

// Result is the outcome of a remote command.
type Result struct {
	// ExitStatus is the command's exit status; non-zero means failure.
	ExitStatus int

	// Output is the command's combined stdout and stderr, trimmed.
	Output string
}

// Succeeded reports whether the command exited zero.
func (r Result) Succeeded() bool {
	return r.ExitStatus == 0
}

// Session runs commands inside a live guest. Commands are issued one at a
// time.
type Session interface {
	// IP is the guest's address.
	IP() string

	// ServerIP is the host's address as seen from the guest.
	ServerIP() string

	// Run executes command in the guest. A zero timeout selects the
	// session default. The error is reserved for transport failures; a
	// command that runs and fails is reported through Result.ExitStatus.
	Run(ctx context.Context, command string, timeout time.Duration) (Result, error)
}

// Guest is a booted VM with a command session. Close releases both the
// session and the VM; it is safe to call more than once.
type Guest interface {
	Session
	Close() error
}

// Provider boots guests from image names.
type Provider interface {
	Boot(ctx context.Context, image string) (Guest, error)
}
