package vm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"

	"github.com/javanstorm/toolchainqa/pkg/hypervisor"
)

// DefaultCommandTimeout applies when Run is called with a zero timeout and
// the session was created without one.
const DefaultCommandTimeout = 300 * time.Second

// SSHSession runs commands over an established SSH connection.
type SSHSession struct {
	client   *ssh.Client
	ip       string
	serverIP string
	timeout  time.Duration
	log      logrus.FieldLogger

	mu sync.Mutex
}

// NewSSHSession wraps client. timeout is the default per-command timeout.
func NewSSHSession(client *ssh.Client, ip, serverIP string, timeout time.Duration, log logrus.FieldLogger) *SSHSession {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SSHSession{
		client:   client,
		ip:       ip,
		serverIP: serverIP,
		timeout:  timeout,
		log:      log.WithField("component", "ssh"),
	}
}

func (s *SSHSession) IP() string       { return s.ip }
func (s *SSHSession) ServerIP() string { return s.serverIP }

// Run implements Session. A command that outlives its timeout is killed
// and reported with ExitTimeout.
func (s *SSHSession) Run(ctx context.Context, command string, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = s.timeout
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.client.NewSession()
	if err != nil {
		return Result{}, fmt.Errorf("open ssh session to %s: %w", s.ip, err)
	}
	defer sess.Close()

	var out lockedBuffer
	sess.Stdout = &out
	sess.Stderr = &out

	log := s.log.WithField("command", command)
	log.Debug("running remote command")

	done := make(chan error, 1)
	go func() { done <- sess.Run(command) }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return s.result(log, out.String(), err)
	case <-timer.C:
		abort(sess)
		log.WithField("timeout", timeout).Warn("remote command timed out")
		output := strings.TrimSpace(out.String())
		if output != "" {
			output += "\n"
		}
		return Result{
			ExitStatus: ExitTimeout,
			Output:     output + fmt.Sprintf("command timed out after %s", timeout),
		}, nil
	case <-ctx.Done():
		abort(sess)
		return Result{}, ctx.Err()
	}
}

func (s *SSHSession) result(log logrus.FieldLogger, output string, err error) (Result, error) {
	res := Result{Output: strings.TrimSpace(output)}
	if err == nil {
		return res, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		res.ExitStatus = exitErr.ExitStatus()
		log.WithField("status", res.ExitStatus).Debug("remote command failed")
		return res, nil
	}
	return Result{}, fmt.Errorf("ssh %s: %w", s.ip, err)
}

func abort(sess *ssh.Session) {
	_ = sess.Signal(ssh.SIGKILL)
	_ = sess.Close()
}

// lockedBuffer collects stdout and stderr, which x/crypto/ssh copies from
// separate goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// sshGuest ties a session to the emulator instance it talks to.
type sshGuest struct {
	*SSHSession
	instance hypervisor.Instance

	closeOnce sync.Once
	closeErr  error
}

// Close disconnects and stops the emulator.
func (g *sshGuest) Close() error {
	g.closeOnce.Do(func() {
		if err := g.client.Close(); err != nil {
			g.log.WithError(err).Debug("closing ssh client")
		}
		if err := g.instance.Stop(); err != nil {
			g.closeErr = fmt.Errorf("stop guest %s: %w", g.ip, err)
		}
	})
	return g.closeErr
}

var (
	_ Session = (*SSHSession)(nil)
	_ Guest   = (*sshGuest)(nil)
)
