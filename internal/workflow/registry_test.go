package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context) (Outcome, error) { return Outcome{}, nil }

func TestRegistrySelect(t *testing.T) {
	var r Registry
	require.NoError(t, r.Register(Entry{Name: "native", Tags: []string{TagToolchainUser, TagRunOnBuild}, Run: noop}))
	require.NoError(t, r.Register(Entry{Name: "target", Tags: []string{TagToolchainUser}, Run: noop}))
	require.NoError(t, r.Register(Entry{Name: "smoke", Tags: []string{"quick"}, Run: noop}))

	names := func(entries []Entry) []string {
		var out []string
		for _, e := range entries {
			out = append(out, e.Name)
		}
		return out
	}

	assert.Equal(t, []string{"native", "target", "smoke"}, names(r.Select(nil)))
	assert.Equal(t, []string{"native", "target"}, names(r.Select([]string{TagToolchainUser})))
	assert.Equal(t, []string{"native"}, names(r.Select([]string{TagRunOnBuild})))
	assert.Equal(t, []string{"native", "smoke"}, names(r.Select([]string{"quick", TagRunOnBuild})))
	assert.Empty(t, r.Select([]string{"nightly"}))

	assert.Equal(t, []string{TagToolchainUser, TagRunOnBuild, "quick"}, r.AllTags())
}

func TestRegistryLookupAndDuplicates(t *testing.T) {
	var r Registry
	require.NoError(t, r.Register(Entry{Name: "native", Run: noop}))

	e, ok := r.Lookup("native")
	require.True(t, ok)
	assert.Equal(t, "native", e.Name)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)

	assert.ErrorIs(t, r.Register(Entry{Name: "native", Run: noop}), ErrDuplicateEntry)
	assert.Error(t, r.Register(Entry{Name: "no-run"}))
	assert.Len(t, r.Entries(), 1)
}

func TestEntryHasTag(t *testing.T) {
	e := Entry{Tags: []string{TagRunOnBuild}}
	assert.True(t, e.HasTag(TagRunOnBuild))
	assert.False(t, e.HasTag(TagToolchainUser))
}
