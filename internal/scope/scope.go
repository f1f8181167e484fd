// Package scope releases acquired resources in reverse order of
// acquisition.
package scope

import (
	"sync"

	"github.com/sirupsen/logrus"
)

type releaser struct {
	name string
	fn   func() error
}

// Scope collects release functions. Close runs them last-in first-out
// exactly once; release errors are logged, never returned, so that a
// failing release cannot mask the error that ended the scope.
type Scope struct {
	log logrus.FieldLogger

	mu        sync.Mutex
	releasers []releaser
	closed    bool
}

// New creates an empty scope.
func New(log logrus.FieldLogger) *Scope {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scope{log: log.WithField("component", "scope")}
}

// Defer registers fn to run at Close. Registering on a closed scope runs
// fn immediately.
func (s *Scope) Defer(name string, fn func() error) {
	s.mu.Lock()
	if !s.closed {
		s.releasers = append(s.releasers, releaser{name: name, fn: fn})
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.release(releaser{name: name, fn: fn})
}

// Close releases everything in reverse order.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	pending := s.releasers
	s.releasers = nil
	s.mu.Unlock()

	for i := len(pending) - 1; i >= 0; i-- {
		s.release(pending[i])
	}
}

func (s *Scope) release(r releaser) {
	defer func() {
		if p := recover(); p != nil {
			s.log.WithField("resource", r.name).Errorf("release panicked: %v", p)
		}
	}()

	if err := r.fn(); err != nil {
		s.log.WithField("resource", r.name).WithError(err).Warn("release failed")
		return
	}
	s.log.WithField("resource", r.name).Debug("released")
}
