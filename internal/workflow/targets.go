package workflow

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/javanstorm/toolchainqa/internal/vm"
)

// Defaults for the target build layout.
const (
	DefaultTriplet = "x86-64-v3-oe-linux"
	DefaultVersion = "21.1.4"
	DefaultHarness = "./llvm-lit"
)

// ErrInvalidTarget is returned for an unusable RemoteTestTarget.
var ErrInvalidTarget = errors.New("workflow: invalid test target")

// RemoteTestTarget describes one component's test run inside the guest.
type RemoteTestTarget struct {
	Component   string        `yaml:"component"`
	Triplet     string        `yaml:"triplet,omitempty"`
	Version     string        `yaml:"version,omitempty"`
	Harness     string        `yaml:"harness,omitempty"`
	HarnessArgs []string      `yaml:"args,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
}

// BuildDir is the component's build tree under the build tmpdir.
func (t RemoteTestTarget) BuildDir(tmpdir string) string {
	return path.Join(tmpdir, "work", t.Triplet, t.Component, t.Version, "build")
}

// GuestResultPath is where the harness writes its results in the guest.
func (t RemoteTestTarget) GuestResultPath() string {
	return "/tmp/" + t.Component + "-target-results.json"
}

// HostResultPath is where the results are copied to, next to the build.
func (t RemoteTestTarget) HostResultPath(tmpdir string) string {
	return path.Join(t.BuildDir(tmpdir), t.Component+"-target-results.log")
}

// HarnessCommand runs the harness from the build's bin directory.
func (t RemoteTestTarget) HarnessCommand(tmpdir string) vm.Command {
	args := append([]string{t.harness()}, t.HarnessArgs...)
	args = append(args, "../test", "-o", t.GuestResultPath())
	return vm.Shell(args...).In(path.Join(t.BuildDir(tmpdir), "bin"))
}

// CopyCommand copies the guest result file onto the shared build tree.
func (t RemoteTestTarget) CopyCommand(tmpdir string) vm.Command {
	return vm.Shell("cp", t.GuestResultPath(), t.HostResultPath(tmpdir))
}

func (t RemoteTestTarget) harness() string {
	if t.Harness == "" {
		return DefaultHarness
	}
	return t.Harness
}

// Validate checks the descriptor.
func (t RemoteTestTarget) Validate() error {
	switch {
	case t.Component == "":
		return fmt.Errorf("%w: component is required", ErrInvalidTarget)
	case strings.ContainsAny(t.Component, "/ \t\n"):
		return fmt.Errorf("%w: component %q contains a separator", ErrInvalidTarget, t.Component)
	case t.Triplet == "" || t.Version == "":
		return fmt.Errorf("%w: %s needs a triplet and a version", ErrInvalidTarget, t.Component)
	case t.Timeout < 0:
		return fmt.Errorf("%w: %s has a negative timeout", ErrInvalidTarget, t.Component)
	}
	return nil
}

// DefaultTargets returns the lld, llvm and clang test runs.
func DefaultTargets(triplet, version string) []RemoteTestTarget {
	if triplet == "" {
		triplet = DefaultTriplet
	}
	if version == "" {
		version = DefaultVersion
	}
	filter := []string{"--filter-out", "COFF|MachO|MinGW"}
	return []RemoteTestTarget{
		{
			Component:   "lld",
			Triplet:     triplet,
			Version:     version,
			HarnessArgs: append(append([]string{"-v"}, filter...), "-j1"),
		},
		{
			Component:   "llvm",
			Triplet:     triplet,
			Version:     version,
			HarnessArgs: append(append([]string{}, filter...), "-j1"),
		},
		{
			Component:   "clang",
			Triplet:     triplet,
			Version:     version,
			HarnessArgs: []string{"-j2"},
			Timeout:     1000 * time.Second,
		},
	}
}

type targetsFile struct {
	Targets []RemoteTestTarget `yaml:"targets"`
}

// LoadTargets reads descriptors from a YAML file of the form
//
//	targets:
//	  - component: lld
//	    args: ["-v", "-j1"]
//	    timeout: 20m
//
// Missing triplets and versions take the given defaults.
func LoadTargets(file, triplet, version string) ([]RemoteTestTarget, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read targets file: %w", err)
	}

	var f targetsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse targets file %s: %w", file, err)
	}
	if len(f.Targets) == 0 {
		return nil, fmt.Errorf("%w: %s lists no targets", ErrInvalidTarget, file)
	}

	seen := make(map[string]bool, len(f.Targets))
	for i := range f.Targets {
		t := &f.Targets[i]
		if t.Triplet == "" {
			t.Triplet = triplet
		}
		if t.Version == "" {
			t.Version = version
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if seen[t.Component] {
			return nil, fmt.Errorf("%w: duplicate component %s", ErrInvalidTarget, t.Component)
		}
		seen[t.Component] = true
	}
	return f.Targets, nil
}
