package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
)

// Tags carried by the toolchain workflows.
const (
	TagToolchainUser = "toolchain-user"
	TagRunOnBuild    = "run-on-build"
)

// ErrDuplicateEntry is returned when a name is registered twice.
var ErrDuplicateEntry = errors.New("workflow: duplicate registry entry")

// Entry is a named, tagged workflow.
type Entry struct {
	Name        string
	Description string
	Tags        []string
	Run         func(ctx context.Context) (Outcome, error)
}

// HasTag reports whether the entry carries tag.
func (e Entry) HasTag(tag string) bool {
	return lo.Contains(e.Tags, tag)
}

// Registry holds workflows in registration order.
type Registry struct {
	entries []Entry
}

// Register adds e.
func (r *Registry) Register(e Entry) error {
	if e.Name == "" || e.Run == nil {
		return fmt.Errorf("workflow: entry needs a name and a run function")
	}
	if _, ok := r.Lookup(e.Name); ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, e.Name)
	}
	r.entries = append(r.entries, e)
	return nil
}

// Entries returns every entry.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Lookup finds an entry by name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	return lo.Find(r.entries, func(e Entry) bool { return e.Name == name })
}

// Select returns entries carrying at least one of tags, or all entries
// when tags is empty.
func (r *Registry) Select(tags []string) []Entry {
	if len(tags) == 0 {
		return r.Entries()
	}
	return lo.Filter(r.entries, func(e Entry, _ int) bool {
		return lo.Some(e.Tags, tags)
	})
}

// AllTags lists the distinct tags in registration order.
func (r *Registry) AllTags() []string {
	return lo.Uniq(lo.FlatMap(r.entries, func(e Entry, _ int) []string { return e.Tags }))
}
