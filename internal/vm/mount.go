package vm

import (
	"errors"
	"fmt"
	"net"
	"path"
	"strconv"
	"strings"
)

// ErrInvalidMount is returned when a MountSpec fails validation.
var ErrInvalidMount = errors.New("vm: invalid NFS mount")

// MountSpec describes an NFS mount issued inside the guest.
type MountSpec struct {
	// ServerIP is the NFS server's address as seen from the guest.
	ServerIP string

	// ExportDir is the exported directory on the server.
	ExportDir string

	// MountPoint is where the export is mounted in the guest.
	MountPoint string

	// DataPort and MountPort are the nfsd and mountd ports.
	DataPort  int
	MountPort int

	// Transport is "udp" or "tcp".
	Transport string

	// Version is the NFS protocol version (default 3).
	Version int

	// Options are extra mount options placed first (default "noac").
	Options []string
}

// NewMountSpec returns the mount used to share a host directory at the
// same path inside the guest.
func NewMountSpec(serverIP, dir string, dataPort, mountPort int, udp bool) MountSpec {
	transport := "tcp"
	if udp {
		transport = "udp"
	}
	return MountSpec{
		ServerIP:   serverIP,
		ExportDir:  dir,
		MountPoint: dir,
		DataPort:   dataPort,
		MountPort:  mountPort,
		Transport:  transport,
		Version:    3,
		Options:    []string{"noac"},
	}
}

// Validate checks the spec before any command is rendered.
func (m MountSpec) Validate() error {
	if net.ParseIP(m.ServerIP) == nil {
		return fmt.Errorf("%w: server address %q", ErrInvalidMount, m.ServerIP)
	}
	if !path.IsAbs(m.ExportDir) {
		return fmt.Errorf("%w: export directory %q is not absolute", ErrInvalidMount, m.ExportDir)
	}
	if !path.IsAbs(m.MountPoint) {
		return fmt.Errorf("%w: mount point %q is not absolute", ErrInvalidMount, m.MountPoint)
	}
	if !validPort(m.DataPort) || !validPort(m.MountPort) {
		return fmt.Errorf("%w: ports %d/%d out of range", ErrInvalidMount, m.DataPort, m.MountPort)
	}
	if m.Transport != "udp" && m.Transport != "tcp" {
		return fmt.Errorf("%w: transport %q", ErrInvalidMount, m.Transport)
	}
	return nil
}

// MountOptions renders the -o argument.
func (m MountSpec) MountOptions() string {
	version := m.Version
	if version == 0 {
		version = 3
	}
	opts := append([]string{}, m.Options...)
	opts = append(opts,
		"nfsvers="+strconv.Itoa(version),
		"port="+strconv.Itoa(m.DataPort),
		m.Transport,
		"mountport="+strconv.Itoa(m.MountPort),
	)
	return strings.Join(opts, ",")
}

// MkdirCommand creates the mount point.
func (m MountSpec) MkdirCommand() Command {
	return Shell("mkdir", "-p", m.MountPoint)
}

// MountCommand performs the mount.
func (m MountSpec) MountCommand() Command {
	return Shell("mount", "-o", m.MountOptions(), m.ServerIP+":"+m.ExportDir, m.MountPoint)
}

func validPort(p int) bool {
	return p > 0 && p < 65536
}
