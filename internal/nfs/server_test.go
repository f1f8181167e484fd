package nfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javanstorm/toolchainqa/internal/build"
	"github.com/javanstorm/toolchainqa/internal/logging"
)

// writeUnfsd writes a fake unfsd that records its arguments and runs
// until terminated.
func writeUnfsd(t *testing.T, path, argsFile string) {
	t.Helper()
	script := "#!/bin/sh\n" +
		"echo \"$@\" > '" + argsFile + "'\n" +
		"trap 'exit 0' TERM\n" +
		"while true; do sleep 0.1; done\n"
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
}

func fixedPorts(int) ([]int, error) {
	return []int{3049, 3048}, nil
}

func newTestServer(t *testing.T, cfg ServerConfig) *Server {
	t.Helper()
	cfg.StateDir = t.TempDir()
	cfg.StartupGrace = 200 * time.Millisecond
	cfg.StopGrace = 2 * time.Second
	if cfg.Ports == nil {
		cfg.Ports = fixedPorts
	}
	cfg.Logger = logging.Discard()
	return NewServer(cfg)
}

func readArgs(t *testing.T, argsFile string) []string {
	t.Helper()
	var data []byte
	require.Eventually(t, func() bool {
		var err error
		data, err = os.ReadFile(argsFile)
		return err == nil && len(data) > 0
	}, 2*time.Second, 20*time.Millisecond)
	return strings.Fields(string(data))
}

func TestServerStartAndClose(t *testing.T) {
	tmp := t.TempDir()
	bin := filepath.Join(tmp, "bin", "unfsd")
	argsFile := filepath.Join(tmp, "args")
	writeUnfsd(t, bin, argsFile)

	exportDir := t.TempDir()
	srv := newTestServer(t, ServerConfig{Binary: bin})

	exp, err := srv.Start(context.Background(), exportDir)
	require.NoError(t, err)
	assert.Equal(t, exportDir, exp.Dir())
	assert.Equal(t, Endpoint{DataPort: 3049, MountPort: 3048}, exp.Endpoint())

	args := readArgs(t, argsFile)
	require.Len(t, args, 8)
	assert.Equal(t, []string{"-d", "-p", "-e"}, args[:3])
	assert.Equal(t, []string{"-n", "3049", "-m", "3048"}, args[4:])

	exportsPath := args[3]
	content, err := os.ReadFile(exportsPath)
	require.NoError(t, err)
	assert.Equal(t, exportDir+" (rw,no_root_squash,no_all_squash,insecure)\n", string(content))

	require.NoError(t, exp.Close())
	require.NoError(t, exp.Close())

	_, err = os.Stat(exportsPath)
	assert.True(t, errors.Is(err, os.ErrNotExist), "exports file should be removed")
	select {
	case <-exp.(*export).done:
	default:
		t.Fatal("unfsd still running after Close")
	}
}

func TestServerStartupFailure(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "unfsd")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho 'cannot bind port' >&2\nexit 1\n"), 0o755))

	srv := newTestServer(t, ServerConfig{Binary: bin})
	_, err := srv.Start(context.Background(), t.TempDir())
	require.ErrorIs(t, err, ErrServerExited)
	assert.Contains(t, err.Error(), "cannot bind port")

	entries, err := os.ReadDir(srv.cfg.StateDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "exports file should not be left behind")
}

func TestServerRejectsBadDir(t *testing.T) {
	srv := newTestServer(t, ServerConfig{Binary: "/bin/true"})

	_, err := srv.Start(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, ErrNotDirectory)

	_, err = srv.Start(context.Background(), "relative")
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestServerPortsError(t *testing.T) {
	srv := newTestServer(t, ServerConfig{
		Binary: "/bin/true",
		Ports:  func(int) ([]int, error) { return nil, ErrNoFreePorts },
	})

	_, err := srv.Start(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, ErrNoFreePorts)
}

func TestServerTooFewPorts(t *testing.T) {
	srv := newTestServer(t, ServerConfig{
		Binary: "/bin/true",
		Ports:  func(int) ([]int, error) { return []int{3049}, nil },
	})

	_, err := srv.Start(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, ErrNoFreePorts)

	left, err := os.ReadDir(srv.cfg.StateDir)
	require.NoError(t, err)
	assert.Empty(t, left, "the exports file is removed")
}

type fakeVars struct {
	values map[string]string
}

func (f fakeVars) Lookup(ctx context.Context, name string) (string, error) {
	return f.LookupFor(ctx, "", name)
}

func (f fakeVars) LookupFor(_ context.Context, target, name string) (string, error) {
	v, ok := f.values[target+"/"+name]
	if !ok {
		return "", errors.New("not set")
	}
	return v, nil
}

type stagingBuilder struct {
	install func()
	specs   []build.TargetSpec
}

func (b *stagingBuilder) Execute(_ context.Context, spec build.TargetSpec) error {
	b.specs = append(b.specs, spec)
	b.install()
	return nil
}

func TestServerBuildsUnfsdIntoSysroot(t *testing.T) {
	tmp := t.TempDir()
	sysroot := filepath.Join(tmp, "recipe-sysroot-native")
	argsFile := filepath.Join(tmp, "args")
	builder := &stagingBuilder{install: func() {
		writeUnfsd(t, filepath.Join(sysroot, "usr", "bin", "unfsd"), argsFile)
	}}

	srv := newTestServer(t, ServerConfig{
		Vars:    fakeVars{values: map[string]string{"unfs3-native/RECIPE_SYSROOT_NATIVE": sysroot}},
		Builder: builder,
	})

	exp, err := srv.Start(context.Background(), t.TempDir())
	require.NoError(t, err)
	defer exp.Close()

	assert.Equal(t, []build.TargetSpec{{Target: "unfs3-native", Task: "addto_recipe_sysroot"}}, builder.specs)
	assert.Len(t, readArgs(t, argsFile), 8)
}

func TestServerUsesExistingSysroot(t *testing.T) {
	tmp := t.TempDir()
	sysroot := filepath.Join(tmp, "recipe-sysroot-native")
	argsFile := filepath.Join(tmp, "args")
	writeUnfsd(t, filepath.Join(sysroot, "usr", "bin", "unfsd"), argsFile)
	builder := &stagingBuilder{install: func() { t.Error("builder should not run") }}

	srv := newTestServer(t, ServerConfig{
		Vars:    fakeVars{values: map[string]string{"unfs3-native/RECIPE_SYSROOT_NATIVE": sysroot}},
		Builder: builder,
	})

	exp, err := srv.Start(context.Background(), t.TempDir())
	require.NoError(t, err)
	require.NoError(t, exp.Close())
	assert.Empty(t, builder.specs)
}

func TestExportsLine(t *testing.T) {
	assert.Equal(t, "/build/tmp (rw,no_root_squash,no_all_squash,insecure)\n", ExportsLine("/build/tmp"))
}
