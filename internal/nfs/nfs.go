// Package nfs exports host directories to guests with a user-space NFS
// server.
package nfs

import "context"

// Endpoint is where a running export can be mounted from.
type Endpoint struct {
	// DataPort is the nfsd port.
	DataPort int

	// MountPort is the mountd port.
	MountPort int
}

// Export is a directory being served. Close stops serving it; it is safe
// to call more than once.
type Export interface {
	Dir() string
	Endpoint() Endpoint
	Close() error
}

// Provider starts exports.
type Provider interface {
	Start(ctx context.Context, dir string) (Export, error)
}
