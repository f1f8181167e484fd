package hypervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// runqemu prints the kernel command line it boots with; the ip= argument
// carries "<guest>::<host>:<netmask>...".
var kernelIPArg = regexp.MustCompile(`ip=([0-9]{1,3}(?:\.[0-9]{1,3}){3})::([0-9]{1,3}(?:\.[0-9]{1,3}){3}):`)

// ParseAddresses extracts the guest and host addresses from a line of
// runqemu output.
func ParseAddresses(line string) (guest, server string, ok bool) {
	m := kernelIPArg.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// RunQemuConfig configures the runqemu launcher.
type RunQemuConfig struct {
	// Binary is the runqemu script (default "runqemu").
	Binary string

	// Dir is the build directory runqemu runs in.
	Dir string

	// Env overrides the process environment (nil = inherit).
	Env []string

	// Console receives the emulator's output (nil = discard).
	Console io.Writer

	// StopGrace is how long Stop waits after SIGTERM before killing.
	StopGrace time.Duration

	Logger logrus.FieldLogger
}

// RunQemu launches images through the runqemu script.
type RunQemu struct {
	cfg RunQemuConfig
	log logrus.FieldLogger
}

// NewRunQemu creates a runqemu launcher.
func NewRunQemu(cfg RunQemuConfig) *RunQemu {
	if cfg.Binary == "" {
		cfg.Binary = "runqemu"
	}
	if cfg.Console == nil {
		cfg.Console = io.Discard
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &RunQemu{cfg: cfg, log: cfg.Logger.WithField("component", "runqemu")}
}

// Info implements Launcher.
func (r *RunQemu) Info() Info {
	bin := r.cfg.Binary
	if p, err := exec.LookPath(bin); err == nil {
		bin = p
	}
	return Info{Name: "runqemu", Binary: bin}
}

// Args returns the runqemu arguments for cfg.
func (r *RunQemu) Args(cfg *VMConfig) []string {
	args := []string{cfg.Image}
	if cfg.Display != "" {
		args = append(args, cfg.Display)
	}
	return append(args, "qemuparams="+cfg.QemuParams())
}

// Launch implements Launcher.
func (r *RunQemu) Launch(ctx context.Context, cfg *VMConfig) (Instance, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	args := r.Args(cfg)
	log := r.log.WithFields(logrus.Fields{"image": cfg.Image, "memory_mb": cfg.MemoryMB})
	log.WithField("args", args).Info("starting emulator")

	//nolint:gosec // G204: runqemu arguments come from validated config
	cmd := exec.Command(r.cfg.Binary, args...)
	cmd.Dir = r.cfg.Dir
	if r.cfg.Env != nil {
		cmd.Env = r.cfg.Env
	} else {
		cmd.Env = os.Environ()
	}
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("runqemu stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("runqemu stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start runqemu: %w", err)
	}

	inst := &qemuInstance{
		cmd:   cmd,
		grace: r.cfg.StopGrace,
		log:   log,
		done:  make(chan struct{}),
	}

	lines := make(chan string, 256)
	console := &lockedWriter{w: r.cfg.Console}

	var g errgroup.Group
	g.Go(func() error { return pump(stdout, console, lines) })
	g.Go(func() error { return pump(stderr, console, lines) })
	go func() {
		if err := g.Wait(); err != nil {
			log.WithError(err).Debug("emulator output closed")
		}
		close(lines)
		inst.exitErr = cmd.Wait()
		close(inst.done)
	}()

	if cfg.fixedAddresses() {
		inst.ip, inst.serverIP = cfg.GuestIP, cfg.ServerIP
		go drain(lines)
		return inst, nil
	}

	timer := time.NewTimer(cfg.BootTimeout)
	defer timer.Stop()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				<-inst.done
				return nil, fmt.Errorf("%w: %v", ErrBootFailed, inst.exitErr)
			}
			if guest, server, found := ParseAddresses(line); found {
				inst.ip, inst.serverIP = guest, server
				log.WithFields(logrus.Fields{"guest_ip": guest, "server_ip": server}).Info("guest network configured")
				go drain(lines)
				return inst, nil
			}
		case <-timer.C:
			go drain(lines)
			_ = inst.Stop()
			return nil, fmt.Errorf("%w after %s", ErrBootTimeout, cfg.BootTimeout)
		case <-ctx.Done():
			go drain(lines)
			_ = inst.Stop()
			return nil, ctx.Err()
		}
	}
}

// qemuInstance is a runqemu process.
type qemuInstance struct {
	cmd      *exec.Cmd
	grace    time.Duration
	log      logrus.FieldLogger
	ip       string
	serverIP string

	done    chan struct{}
	exitErr error

	stopOnce sync.Once
	stopErr  error
}

func (q *qemuInstance) IP() string            { return q.ip }
func (q *qemuInstance) ServerIP() string      { return q.serverIP }
func (q *qemuInstance) Done() <-chan struct{} { return q.done }

// Stop sends SIGTERM to the emulator's process group, then kills it if it
// has not exited within the grace period.
func (q *qemuInstance) Stop() error {
	q.stopOnce.Do(func() {
		select {
		case <-q.done:
			return
		default:
		}

		q.log.Info("stopping emulator")
		if err := terminate(q.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
			q.log.WithError(err).Warn("failed to signal emulator")
		}

		select {
		case <-q.done:
		case <-time.After(q.grace):
			q.log.Warn("emulator did not exit, killing")
			if err := kill(q.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
				q.stopErr = fmt.Errorf("kill runqemu: %w", err)
				return
			}
			<-q.done
		}
	})
	return q.stopErr
}

// pump copies lines from r to the console and the lines channel.
func pump(r io.Reader, console io.Writer, lines chan<- string) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		fmt.Fprintln(console, line)
		lines <- line
	}
	return scanner.Err()
}

func drain(lines <-chan string) {
	for range lines {
	}
}

// lockedWriter serialises writes from the two output pumps.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// Compile-time interface compliance check
var _ Launcher = (*RunQemu)(nil)
