package vm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"

	"github.com/javanstorm/toolchainqa/pkg/hypervisor"
)

// Boot errors
var (
	ErrGuestExited    = errors.New("vm: emulator exited before ssh became available")
	ErrSSHUnavailable = errors.New("vm: timed out waiting for ssh")
)

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Launcher hypervisor.Launcher

	// VM is the launch template; Boot fills in the image.
	VM hypervisor.VMConfig

	SSH SSHConfig

	// CommandTimeout is the default per-command timeout.
	CommandTimeout time.Duration

	// RetryInterval is the pause between ssh connection attempts.
	RetryInterval time.Duration

	Logger logrus.FieldLogger
}

// Runner boots images and connects to them. It implements Provider.
type Runner struct {
	cfg RunnerConfig
	log logrus.FieldLogger
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Runner{cfg: cfg, log: cfg.Logger.WithField("component", "vm")}
}

// Boot launches image and waits until the guest accepts ssh logins.
func (r *Runner) Boot(ctx context.Context, image string) (Guest, error) {
	vmCfg := r.cfg.VM
	vmCfg.Image = image

	inst, err := r.cfg.Launcher.Launch(ctx, &vmCfg)
	if err != nil {
		return nil, fmt.Errorf("boot %s: %w", image, err)
	}

	bootTimeout := vmCfg.BootTimeout
	if bootTimeout <= 0 {
		bootTimeout = hypervisor.DefaultBootTimeout
	}

	client, err := r.waitForSSH(ctx, inst, bootTimeout)
	if err != nil {
		if stopErr := inst.Stop(); stopErr != nil {
			r.log.WithError(stopErr).Warn("failed to stop guest after boot failure")
		}
		return nil, fmt.Errorf("boot %s: %w", image, err)
	}

	r.log.WithFields(logrus.Fields{"image": image, "ip": inst.IP()}).Info("guest ready")
	return &sshGuest{
		SSHSession: NewSSHSession(client, inst.IP(), inst.ServerIP(), r.cfg.CommandTimeout, r.cfg.Logger),
		instance:   inst,
	}, nil
}

func (r *Runner) waitForSSH(ctx context.Context, inst hypervisor.Instance, timeout time.Duration) (*ssh.Client, error) {
	clientCfg, err := r.cfg.SSH.ClientConfig()
	if err != nil {
		return nil, err
	}
	addr := r.cfg.SSH.Address(inst.IP())

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	var lastErr error
	for attempt := 1; ; attempt++ {
		client, err := dial(ctx, addr, clientCfg)
		if err == nil {
			return client, nil
		}
		lastErr = err
		r.log.WithFields(logrus.Fields{"addr": addr, "attempt": attempt}).WithError(err).Debug("ssh not ready")

		select {
		case <-inst.Done():
			return nil, ErrGuestExited
		case <-deadline.C:
			return nil, fmt.Errorf("%w after %s: %v", ErrSSHUnavailable, timeout, lastErr)
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.cfg.RetryInterval):
		}
	}
}

// dial connects with ctx and bounds the handshake by cfg.Timeout.
func dial(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	d := net.Dialer{Timeout: cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(cfg.Timeout))
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(c, chans, reqs), nil
}

var _ Provider = (*Runner)(nil)
