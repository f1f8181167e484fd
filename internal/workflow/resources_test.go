package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javanstorm/toolchainqa/internal/logging"
	"github.com/javanstorm/toolchainqa/internal/nfs"
	"github.com/javanstorm/toolchainqa/internal/testutil"
)

func TestOpenResources(t *testing.T) {
	f := testutil.NewFixture()

	res, err := OpenResources(context.Background(), f.VMs, f.Exports, "core-image-minimal", "/build/tmp", logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, []string{"core-image-minimal"}, f.VMs.Images)
	assert.Equal(t, nfs.Endpoint{DataPort: 3049, MountPort: 3048}, res.Endpoint)
	assert.Equal(t, "192.168.7.2", res.Session.IP())
	assert.Equal(t, "/build/tmp", f.Exports.Exports[0].Dir())

	res.Close()
	res.Close()

	assert.Equal(t, []string{"acquire vm", "acquire export", "release export", "release vm"}, f.Events.List())
	assert.Equal(t, 1, f.Guest.Closes())
	assert.Equal(t, 1, f.Exports.Exports[0].Closes())
}

func TestOpenResourcesExportFailureReleasesVM(t *testing.T) {
	f := testutil.NewFixture()
	f.Exports.Err = errors.New("unfsd: bind failed")

	res, err := OpenResources(context.Background(), f.VMs, f.Exports, "core-image-minimal", "/build/tmp", logging.Discard())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, KindResource, KindOf(err))
	assert.ErrorContains(t, err, "bind failed")

	assert.Equal(t, 1, f.Guest.Closes(), "VM released exactly once")
	assert.Equal(t, []string{"acquire vm", "release vm"}, f.Events.List())
}

func TestOpenResourcesBootFailure(t *testing.T) {
	f := testutil.NewFixture()
	f.VMs.Err = errors.New("runqemu exited")

	_, err := OpenResources(context.Background(), f.VMs, f.Exports, "core-image-minimal", "/build/tmp", logging.Discard())
	require.Error(t, err)
	assert.Equal(t, KindResource, KindOf(err))
	assert.Empty(t, f.Exports.Exports, "export is never started without a VM")
	assert.Equal(t, 0, f.Guest.Closes())
}
