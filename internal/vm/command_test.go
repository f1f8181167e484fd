package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandString(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{
			name: "plain",
			cmd:  Shell("uname"),
			want: "uname",
		},
		{
			name: "quoted path",
			cmd:  Shell("mkdir", "-p", "/build/tmp dir"),
			want: "mkdir -p '/build/tmp dir'",
		},
		{
			name: "directory",
			cmd:  Shell("./llvm-lit", "-j1", "../test").In("/build/bin"),
			want: "cd /build/bin && ./llvm-lit -j1 ../test",
		},
		{
			name: "shell metacharacters",
			cmd:  Shell("./llvm-lit", "--filter-out", "COFF|MachO|MinGW"),
			want: `./llvm-lit --filter-out COFF\|MachO\|MinGW`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cmd.String())
		})
	}
}

func TestCommandValidate(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		ok   bool
	}{
		{"valid", Shell("ls"), true},
		{"valid dir", Shell("ls").In("/tmp"), true},
		{"no args", Command{}, false},
		{"empty arg", Shell("ls", ""), false},
		{"relative dir", Shell("ls").In("build/bin"), false},
		{"nul", Shell("echo", "a\x00b"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cmd.Render()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidCommand)
			}
		})
	}
}

func TestCommandInCopies(t *testing.T) {
	base := Shell("ls")
	inDir := base.In("/tmp")

	require.Empty(t, base.Dir)
	assert.Equal(t, "/tmp", inDir.Dir)
}
