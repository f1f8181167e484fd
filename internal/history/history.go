// Package history records workflow runs so the last outcome of each
// workflow survives between invocations.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/lo"
)

// DefaultLimit bounds how many runs the file keeps.
const DefaultLimit = 100

// Run is one workflow execution.
type Run struct {
	// ID groups the workflows started by one invocation.
	ID       string    `json:"id"`
	Workflow string    `json:"workflow"`
	Started  time.Time `json:"started"`

	// Seconds is the whole-second duration, zero for failed runs.
	Seconds int64 `json:"seconds"`
	Passed  bool  `json:"passed"`

	// Step and Kind locate a failure.
	Step  string `json:"step,omitempty"`
	Kind  string `json:"kind,omitempty"`
	Error string `json:"error,omitempty"`
}

// State is the on-disk document.
type State struct {
	Runs []Run `json:"runs"`
}

// File manages the history file.
type File struct {
	path  string
	limit int
}

// NewFile creates a history file manager under dataDir.
func NewFile(dataDir string) *File {
	return &File{
		path:  filepath.Join(dataDir, "history.json"),
		limit: DefaultLimit,
	}
}

// Load reads the history from disk. A missing file is an empty history.
func (f *File) Load() (*State, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history file: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse history file: %w", err)
	}
	return &state, nil
}

// Save writes the history to disk.
func (f *File) Save(state *State) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	// Write atomically
	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write history file: %w", err)
	}
	return os.Rename(tmpPath, f.path)
}

// Record appends run, dropping the oldest entries beyond the limit.
func (f *File) Record(run Run) error {
	state, err := f.Load()
	if err != nil {
		return err
	}

	state.Runs = append(state.Runs, run)
	if over := len(state.Runs) - f.limit; over > 0 {
		state.Runs = state.Runs[over:]
	}
	return f.Save(state)
}

// Latest returns the most recent run of each workflow, ordered by the
// workflow's first appearance in the history.
func (s *State) Latest() []Run {
	byWorkflow := lo.GroupBy(s.Runs, func(r Run) string { return r.Workflow })
	order := lo.Uniq(lo.Map(s.Runs, func(r Run, _ int) string { return r.Workflow }))
	return lo.Map(order, func(name string, _ int) Run {
		runs := byWorkflow[name]
		return runs[len(runs)-1]
	})
}

// Path returns the history file path.
func (f *File) Path() string {
	return f.path
}
