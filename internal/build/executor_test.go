package build

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javanstorm/toolchainqa/internal/logging"
)

// fakeBitBake writes a shell script standing in for bitbake and returns
// its path. Each invocation appends its arguments to calls.log.
func fakeBitBake(t *testing.T, body string) (bin, dir string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake bitbake requires a POSIX shell")
	}

	dir = t.TempDir()
	bin = filepath.Join(dir, "bitbake")
	script := "#!/bin/sh\necho \"$@\" >> \"" + filepath.Join(dir, "calls.log") + "\"\n" + body + "\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0755))
	return bin, dir
}

func readCalls(t *testing.T, dir string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "calls.log"))
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestTargetSpecArgs(t *testing.T) {
	tests := []struct {
		name string
		spec TargetSpec
		want string
	}{
		{"full build", TargetSpec{Target: "llvm"}, "llvm"},
		{"task", TargetSpec{Target: "llvm-native", Task: "check_llvm"}, "llvm-native -c check_llvm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.spec.String())
		})
	}
}

func TestExecuteSuccess(t *testing.T) {
	bin, dir := fakeBitBake(t, "exit 0")
	b := NewBitBake(BitBakeConfig{Binary: bin, Dir: dir, Logger: logging.Discard()})

	err := b.Execute(context.Background(), TargetSpec{Target: "clang-native", Task: "check_clang"})
	require.NoError(t, err)
	assert.Equal(t, []string{"clang-native -c check_clang"}, readCalls(t, dir))
}

func TestExecuteFailureCarriesOutput(t *testing.T) {
	bin, dir := fakeBitBake(t, "echo 'ERROR: Task do_check_lld failed'\nexit 1")
	b := NewBitBake(BitBakeConfig{Binary: bin, Dir: dir, Logger: logging.Discard()})

	err := b.Execute(context.Background(), TargetSpec{Target: "lld-native", Task: "check_lld"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bitbake lld-native -c check_lld")
	assert.Contains(t, err.Error(), "do_check_lld failed")
}

func TestExecuteEmptyTarget(t *testing.T) {
	b := NewBitBake(BitBakeConfig{Logger: logging.Discard()})
	assert.ErrorIs(t, b.Execute(context.Background(), TargetSpec{}), ErrEmptyTarget)
}

func TestLookupCachesEnvironment(t *testing.T) {
	bin, dir := fakeBitBake(t, `echo 'TMPDIR="/build/tmp"'`)
	b := NewBitBake(BitBakeConfig{Binary: bin, Dir: dir, Logger: logging.Discard()})

	for i := 0; i < 2; i++ {
		got, err := b.Lookup(context.Background(), "TMPDIR")
		require.NoError(t, err)
		assert.Equal(t, "/build/tmp", got)
	}
	assert.Equal(t, []string{"-e"}, readCalls(t, dir))
}

func TestLookupForTarget(t *testing.T) {
	bin, dir := fakeBitBake(t, `echo 'RECIPE_SYSROOT_NATIVE="/build/tmp/work/unfs3/recipe-sysroot-native"'`)
	b := NewBitBake(BitBakeConfig{Binary: bin, Dir: dir, Logger: logging.Discard()})

	got, err := b.LookupFor(context.Background(), "unfs3-native", "RECIPE_SYSROOT_NATIVE")
	require.NoError(t, err)
	assert.Equal(t, "/build/tmp/work/unfs3/recipe-sysroot-native", got)
	assert.Equal(t, []string{"-e unfs3-native"}, readCalls(t, dir))

	_, err = b.LookupFor(context.Background(), "unfs3-native", "MISSING")
	assert.ErrorContains(t, err, "MISSING not set unfs3-native")
}

func TestTailLines(t *testing.T) {
	assert.Equal(t, "c\nd", tailLines("a\nb\nc\nd\n", 2))
	assert.Equal(t, "a\nb", tailLines("a\nb", 5))
}
