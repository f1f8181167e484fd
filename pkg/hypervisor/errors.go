package hypervisor

import "errors"

// Configuration errors
var (
	ErrMissingImage       = errors.New("hypervisor: image name is required")
	ErrInsufficientMemory = errors.New("hypervisor: memory must be at least 128MB")
	ErrInvalidDisplay     = errors.New("hypervisor: unsupported display mode")
	ErrInvalidAddress     = errors.New("hypervisor: invalid IP address")
)

// Runtime errors
var (
	ErrBootTimeout = errors.New("hypervisor: timed out waiting for guest network address")
	ErrBootFailed  = errors.New("hypervisor: emulator exited before the guest came up")
)
