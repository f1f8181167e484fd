// Package build runs bitbake targets and queries bitbake variables.
package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrEmptyTarget is returned when a TargetSpec names no target.
var ErrEmptyTarget = errors.New("build: target is required")

// TargetSpec names a bitbake target and an optional task.
type TargetSpec struct {
	Target string `yaml:"target"`
	Task   string `yaml:"task,omitempty"`
}

// Args returns the bitbake arguments for the spec.
func (s TargetSpec) Args() []string {
	if s.Task == "" {
		return []string{s.Target}
	}
	return []string{s.Target, "-c", s.Task}
}

// String renders the spec as it would appear after "bitbake".
func (s TargetSpec) String() string {
	return strings.Join(s.Args(), " ")
}

// Executor runs a build target to completion or failure.
type Executor interface {
	Execute(ctx context.Context, spec TargetSpec) error
}

// VarLookup resolves bitbake variables.
type VarLookup interface {
	// Lookup resolves a variable in the global datastore.
	Lookup(ctx context.Context, name string) (string, error)
	// LookupFor resolves a variable in the datastore of a specific target.
	LookupFor(ctx context.Context, target, name string) (string, error)
}

// BitBakeConfig configures the bitbake runner.
type BitBakeConfig struct {
	// Binary is the bitbake executable (default "bitbake").
	Binary string

	// Dir is the build directory bitbake runs in (empty = current dir).
	Dir string

	// TailLines bounds how much output a failure error carries.
	TailLines int

	// Env overrides the process environment (nil = inherit).
	Env []string

	Logger logrus.FieldLogger
}

// BitBake runs bitbake as a subprocess.
type BitBake struct {
	cfg BitBakeConfig
	log logrus.FieldLogger

	mu   sync.Mutex
	envs map[string]string
}

// NewBitBake creates a bitbake runner.
func NewBitBake(cfg BitBakeConfig) *BitBake {
	if cfg.Binary == "" {
		cfg.Binary = "bitbake"
	}
	if cfg.TailLines <= 0 {
		cfg.TailLines = 40
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &BitBake{
		cfg:  cfg,
		log:  cfg.Logger.WithField("component", "bitbake"),
		envs: make(map[string]string),
	}
}

// Execute runs "bitbake <target> [-c <task>]".
func (b *BitBake) Execute(ctx context.Context, spec TargetSpec) error {
	if spec.Target == "" {
		return ErrEmptyTarget
	}

	out, err := b.run(ctx, spec.Args()...)
	if err != nil {
		return fmt.Errorf("bitbake %s: %w\n%s", spec, err, tailLines(out, b.cfg.TailLines))
	}
	return nil
}

// Lookup resolves name from "bitbake -e".
func (b *BitBake) Lookup(ctx context.Context, name string) (string, error) {
	return b.LookupFor(ctx, "", name)
}

// LookupFor resolves name from "bitbake -e <target>".
// The environment dump is cached per target for the life of the runner.
func (b *BitBake) LookupFor(ctx context.Context, target, name string) (string, error) {
	env, err := b.environment(ctx, target)
	if err != nil {
		return "", err
	}
	value, ok := ParseVar(env, name)
	if !ok {
		return "", fmt.Errorf("bitbake variable %s not set%s", name, forTarget(target))
	}
	return value, nil
}

func (b *BitBake) environment(ctx context.Context, target string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if env, ok := b.envs[target]; ok {
		return env, nil
	}

	args := []string{"-e"}
	if target != "" {
		args = append(args, target)
	}
	out, err := b.run(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("bitbake -e%s: %w\n%s", forTarget(target), err, tailLines(out, b.cfg.TailLines))
	}
	b.envs[target] = out
	return out, nil
}

func (b *BitBake) run(ctx context.Context, args ...string) (string, error) {
	b.log.WithField("args", args).Debug("running bitbake")

	//nolint:gosec // G204: bitbake arguments come from workflow definitions
	cmd := exec.CommandContext(ctx, b.cfg.Binary, args...)
	cmd.Dir = b.cfg.Dir
	if b.cfg.Env != nil {
		cmd.Env = b.cfg.Env
	} else {
		cmd.Env = os.Environ()
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	return out.String(), err
}

func forTarget(target string) string {
	if target == "" {
		return ""
	}
	return " " + target
}

// tailLines keeps the last n lines of s.
func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
