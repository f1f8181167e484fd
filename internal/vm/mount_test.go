package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMountSpecCommands(t *testing.T) {
	m := NewMountSpec("192.168.7.1", "/build/tmp", 3049, 3048, true)

	assert.NoError(t, m.Validate())
	assert.Equal(t, "noac,nfsvers=3,port=3049,udp,mountport=3048", m.MountOptions())
	assert.Equal(t, "mkdir -p /build/tmp", m.MkdirCommand().String())
	assert.Equal(t,
		"mount -o noac,nfsvers=3,port=3049,udp,mountport=3048 192.168.7.1:/build/tmp /build/tmp",
		m.MountCommand().String())
}

func TestMountSpecTCP(t *testing.T) {
	m := NewMountSpec("192.168.7.1", "/build/tmp", 2049, 2048, false)
	assert.Equal(t, "noac,nfsvers=3,port=2049,tcp,mountport=2048", m.MountOptions())
}

func TestMountSpecQuotesPaths(t *testing.T) {
	m := NewMountSpec("192.168.7.1", "/build/my tmp", 2049, 2048, true)
	assert.Equal(t, "mkdir -p '/build/my tmp'", m.MkdirCommand().String())
	assert.Contains(t, m.MountCommand().String(), "'192.168.7.1:/build/my tmp' '/build/my tmp'")
}

func TestMountSpecValidate(t *testing.T) {
	valid := NewMountSpec("192.168.7.1", "/build/tmp", 2049, 2048, true)

	tests := []struct {
		name   string
		mutate func(*MountSpec)
	}{
		{"bad server", func(m *MountSpec) { m.ServerIP = "not-an-ip" }},
		{"relative export", func(m *MountSpec) { m.ExportDir = "tmp" }},
		{"relative mount point", func(m *MountSpec) { m.MountPoint = "tmp" }},
		{"zero data port", func(m *MountSpec) { m.DataPort = 0 }},
		{"mount port too large", func(m *MountSpec) { m.MountPort = 70000 }},
		{"bad transport", func(m *MountSpec) { m.Transport = "rdma" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid
			tt.mutate(&m)
			assert.ErrorIs(t, m.Validate(), ErrInvalidMount)
		})
	}
}
