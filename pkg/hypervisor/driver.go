// Package hypervisor boots target system images under an emulator and
// reports how to reach the guest over the network.
package hypervisor

import (
	"context"
)

// Launcher boots VM images.
type Launcher interface {
	// Launch boots the image described by cfg and returns once the guest's
	// network addresses are known. The caller owns the returned Instance
	// and must Stop it.
	Launch(ctx context.Context, cfg *VMConfig) (Instance, error)

	Info() Info
}

// Instance is a running guest.
type Instance interface {
	// IP is the guest's address.
	IP() string

	// ServerIP is the host's address as seen from the guest.
	ServerIP() string

	// Done is closed when the emulator process exits.
	Done() <-chan struct{}

	// Stop terminates the emulator. It is best-effort and safe to call
	// more than once; stopping an instance that already exited is not an
	// error.
	Stop() error
}

// Info contains launcher metadata.
type Info struct {
	Name   string // "runqemu"
	Binary string // resolved executable
}
