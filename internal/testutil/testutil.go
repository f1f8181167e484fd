// Package testutil provides fakes for the collaborators workflows depend
// on: a controllable clock, a build executor, a scripted guest session and
// recording VM and export providers.
package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/javanstorm/toolchainqa/internal/build"
	"github.com/javanstorm/toolchainqa/internal/nfs"
	"github.com/javanstorm/toolchainqa/internal/vm"
)

// Clock is a manually advanced clock.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock returns a clock set to a fixed instant.
func NewClock() *Clock {
	return &Clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// Events is an ordered log shared between fakes, so tests can assert on
// the interleaving of builds, acquisitions, commands and releases.
type Events struct {
	mu   sync.Mutex
	list []string
}

func (e *Events) Record(event string) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.list = append(e.list, event)
}

// List returns a copy of the recorded events.
func (e *Events) List() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.list...)
}

// Count returns how many events equal event.
func (e *Events) Count(event string) int {
	n := 0
	for _, got := range e.List() {
		if got == event {
			n++
		}
	}
	return n
}

// WithPrefix returns the events starting with prefix.
func (e *Events) WithPrefix(prefix string) []string {
	var out []string
	for _, got := range e.List() {
		if strings.HasPrefix(got, prefix) {
			out = append(out, got)
		}
	}
	return out
}

// Executor is a fake build.Executor. Each call advances Clock by the
// target's duration and records "build <spec>".
type Executor struct {
	Clock     *Clock
	Durations map[string]time.Duration
	Failures  map[string]error
	Events    *Events

	mu    sync.Mutex
	calls []build.TargetSpec
}

func (f *Executor) Execute(_ context.Context, spec build.TargetSpec) error {
	f.mu.Lock()
	f.calls = append(f.calls, spec)
	f.mu.Unlock()

	f.Events.Record("build " + spec.String())
	if f.Clock != nil {
		f.Clock.Advance(f.Durations[spec.String()])
	}
	return f.Failures[spec.String()]
}

// Calls returns the specs executed so far.
func (f *Executor) Calls() []build.TargetSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]build.TargetSpec(nil), f.calls...)
}

// Vars is a fake build.VarLookup keyed by variable name.
type Vars map[string]string

func (v Vars) Lookup(_ context.Context, name string) (string, error) {
	value, ok := v[name]
	if !ok {
		return "", errors.New("variable " + name + " not set")
	}
	return value, nil
}

func (v Vars) LookupFor(ctx context.Context, _ string, name string) (string, error) {
	return v.Lookup(ctx, name)
}

// Rule scripts the response to commands containing Match.
type Rule struct {
	Match  string
	Result vm.Result
	Err    error

	// Elapsed advances the session's clock, if any.
	Elapsed time.Duration
}

// Call is a command received by a Session.
type Call struct {
	Command string
	Timeout time.Duration
}

// Session is a scripted vm.Session. Commands matching no rule succeed
// with empty output.
type Session struct {
	Addr   string
	Server string
	Rules  []Rule
	Events *Events
	Clock  *Clock

	mu    sync.Mutex
	calls []Call
}

func (s *Session) IP() string       { return s.Addr }
func (s *Session) ServerIP() string { return s.Server }

func (s *Session) Run(_ context.Context, command string, timeout time.Duration) (vm.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Command: command, Timeout: timeout})
	s.mu.Unlock()

	s.Events.Record("run " + command)
	for _, r := range s.Rules {
		if strings.Contains(command, r.Match) {
			if s.Clock != nil {
				s.Clock.Advance(r.Elapsed)
			}
			return r.Result, r.Err
		}
	}
	return vm.Result{}, nil
}

// Calls returns the commands run so far.
func (s *Session) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Commands returns just the command strings.
func (s *Session) Commands() []string {
	var out []string
	for _, c := range s.Calls() {
		out = append(out, c.Command)
	}
	return out
}

// Guest is a fake vm.Guest that counts Close calls.
type Guest struct {
	*Session

	mu     sync.Mutex
	closes int
}

func (g *Guest) Close() error {
	g.mu.Lock()
	g.closes++
	g.mu.Unlock()
	g.Events.Record("release vm")
	return nil
}

// Closes reports how many times Close was called.
func (g *Guest) Closes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closes
}

// VMProvider is a fake vm.Provider handing out Guest.
type VMProvider struct {
	Guest  *Guest
	Err    error
	Events *Events

	Images []string
}

func (p *VMProvider) Boot(_ context.Context, image string) (vm.Guest, error) {
	p.Images = append(p.Images, image)
	if p.Err != nil {
		return nil, p.Err
	}
	p.Events.Record("acquire vm")
	return p.Guest, nil
}

// Export is a fake nfs.Export that counts Close calls.
type Export struct {
	Path   string
	Ports  nfs.Endpoint
	Events *Events

	mu     sync.Mutex
	closes int
}

func (e *Export) Dir() string            { return e.Path }
func (e *Export) Endpoint() nfs.Endpoint { return e.Ports }

func (e *Export) Close() error {
	e.mu.Lock()
	e.closes++
	e.mu.Unlock()
	e.Events.Record("release export")
	return nil
}

// Closes reports how many times Close was called.
func (e *Export) Closes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closes
}

// ExportProvider is a fake nfs.Provider.
type ExportProvider struct {
	Ports  nfs.Endpoint
	Err    error
	Events *Events

	Exports []*Export
}

func (p *ExportProvider) Start(_ context.Context, dir string) (nfs.Export, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	p.Events.Record("acquire export")
	exp := &Export{Path: dir, Ports: p.Ports, Events: p.Events}
	p.Exports = append(p.Exports, exp)
	return exp, nil
}

// Fixture wires a complete set of fakes sharing one event log.
type Fixture struct {
	Clock   *Clock
	Events  *Events
	Exec    *Executor
	Vars    Vars
	Session *Session
	Guest   *Guest
	VMs     *VMProvider
	Exports *ExportProvider
}

// NewFixture returns fakes for a guest at 192.168.7.2 served from
// 192.168.7.1 with TMPDIR=/build/tmp and export ports 3049/3048.
func NewFixture() *Fixture {
	events := &Events{}
	clock := NewClock()
	session := &Session{Addr: "192.168.7.2", Server: "192.168.7.1", Events: events, Clock: clock}
	guest := &Guest{Session: session}
	return &Fixture{
		Clock:   clock,
		Events:  events,
		Exec:    &Executor{Clock: clock, Durations: map[string]time.Duration{}, Failures: map[string]error{}, Events: events},
		Vars:    Vars{"TMPDIR": "/build/tmp"},
		Session: session,
		Guest:   guest,
		VMs:     &VMProvider{Guest: guest, Events: events},
		Exports: &ExportProvider{Ports: nfs.Endpoint{DataPort: 3049, MountPort: 3048}, Events: events},
	}
}

var (
	_ build.Executor  = (*Executor)(nil)
	_ build.VarLookup = Vars(nil)
	_ vm.Guest        = (*Guest)(nil)
	_ vm.Provider     = (*VMProvider)(nil)
	_ nfs.Provider    = (*ExportProvider)(nil)
)
