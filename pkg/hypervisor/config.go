package hypervisor

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// DefaultBootTimeout applies when VMConfig.BootTimeout is unset.
const DefaultBootTimeout = 10 * time.Minute

// Display modes understood by runqemu.
var displayModes = map[string]bool{
	"":          true,
	"nographic": true,
	"sdl":       true,
	"gtk":       true,
	"vnc":       true,
	"publicvnc": true,
}

// VMConfig holds VM launch parameters.
type VMConfig struct {
	// Image is the image recipe to boot, e.g. "core-image-minimal".
	Image string

	// Display selects the display backend ("nographic" for headless).
	Display string

	// MemoryMB is the amount of guest memory in megabytes.
	MemoryMB int

	// ExtraQemuParams are appended to the emulator command line.
	ExtraQemuParams []string

	// BootTimeout bounds how long Launch waits for the guest addresses.
	BootTimeout time.Duration

	// GuestIP and ServerIP, when both set, skip address discovery from the
	// emulator output (e.g. for user-mode networking with fixed forwards).
	GuestIP  string
	ServerIP string
}

// Validate performs basic validation of the configuration.
func (c *VMConfig) Validate() error {
	if c.Image == "" {
		return ErrMissingImage
	}
	if c.MemoryMB < 128 {
		return ErrInsufficientMemory
	}
	if !displayModes[c.Display] {
		return fmt.Errorf("%w: %q", ErrInvalidDisplay, c.Display)
	}
	if c.GuestIP != "" && net.ParseIP(c.GuestIP) == nil {
		return fmt.Errorf("%w: guest %q", ErrInvalidAddress, c.GuestIP)
	}
	if c.ServerIP != "" && net.ParseIP(c.ServerIP) == nil {
		return fmt.Errorf("%w: server %q", ErrInvalidAddress, c.ServerIP)
	}
	if c.BootTimeout <= 0 {
		c.BootTimeout = DefaultBootTimeout
	}
	return nil
}

// QemuParams renders the value passed to runqemu as qemuparams=.
func (c *VMConfig) QemuParams() string {
	params := []string{fmt.Sprintf("-m %d", c.MemoryMB)}
	params = append(params, c.ExtraQemuParams...)
	return strings.Join(params, " ")
}

// fixedAddresses reports whether discovery can be skipped.
func (c *VMConfig) fixedAddresses() bool {
	return c.GuestIP != "" && c.ServerIP != ""
}
