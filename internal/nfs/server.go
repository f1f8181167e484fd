package nfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/javanstorm/toolchainqa/internal/build"
)

// sysrootRecipe provides unfsd in the native sysroot.
var sysrootRecipe = build.TargetSpec{Target: "unfs3-native", Task: "addto_recipe_sysroot"}

// Errors
var (
	ErrNotDirectory = errors.New("nfs: export path is not an absolute directory")
	ErrServerExited = errors.New("nfs: unfsd exited during startup")
)

// ServerConfig configures the unfsd provider.
type ServerConfig struct {
	// Binary is the unfsd executable. A bare name is searched for in the
	// unfs3-native sysroot (when Vars is set) and then on PATH.
	Binary string

	// Vars resolves RECIPE_SYSROOT_NATIVE for unfs3-native.
	Vars build.VarLookup

	// Builder stages unfs3-native into its sysroot when unfsd is missing.
	Builder build.Executor

	// StateDir holds generated exports files (default os.TempDir()).
	StateDir string

	// StartupGrace is how long unfsd must stay up before Start returns.
	StartupGrace time.Duration

	// StopGrace is how long Close waits after SIGTERM before killing.
	StopGrace time.Duration

	// Ports allocates the data and mount ports (default FreePorts).
	Ports func(n int) ([]int, error)

	Logger logrus.FieldLogger
}

// Server starts unfsd processes. It implements Provider.
type Server struct {
	cfg ServerConfig
	log logrus.FieldLogger
}

// NewServer creates an unfsd provider.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Binary == "" {
		cfg.Binary = "unfsd"
	}
	if cfg.StateDir == "" {
		cfg.StateDir = os.TempDir()
	}
	if cfg.StartupGrace <= 0 {
		cfg.StartupGrace = time.Second
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = 5 * time.Second
	}
	if cfg.Ports == nil {
		cfg.Ports = FreePorts
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Server{cfg: cfg, log: cfg.Logger.WithField("component", "nfs")}
}

// ExportsLine renders the exports(5) entry for dir.
func ExportsLine(dir string) string {
	return dir + " (rw,no_root_squash,no_all_squash,insecure)\n"
}

// Start exports dir read-write.
func (s *Server) Start(ctx context.Context, dir string) (Export, error) {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() || !filepath.IsAbs(dir) {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}

	binary, err := s.resolveBinary(ctx)
	if err != nil {
		return nil, err
	}

	exports, err := os.CreateTemp(s.cfg.StateDir, "exports-*")
	if err != nil {
		return nil, fmt.Errorf("create exports file: %w", err)
	}
	exportsPath := exports.Name()
	_, err = exports.WriteString(ExportsLine(dir))
	if closeErr := exports.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(exportsPath)
		return nil, fmt.Errorf("write exports file: %w", err)
	}

	ports, err := s.cfg.Ports(2)
	if err == nil && len(ports) < 2 {
		err = fmt.Errorf("%w: got %d of 2", ErrNoFreePorts, len(ports))
	}
	if err != nil {
		os.Remove(exportsPath)
		return nil, err
	}
	endpoint := Endpoint{DataPort: ports[0], MountPort: ports[1]}

	args := []string{
		"-d", "-p",
		"-e", exportsPath,
		"-n", strconv.Itoa(endpoint.DataPort),
		"-m", strconv.Itoa(endpoint.MountPort),
	}
	log := s.log.WithFields(logrus.Fields{
		"dir":        dir,
		"data_port":  endpoint.DataPort,
		"mount_port": endpoint.MountPort,
	})
	log.WithField("binary", binary).Info("starting unfsd")

	//nolint:gosec // G204: binary comes from configuration or the build sysroot
	cmd := exec.Command(binary, args...)
	out := &syncBuffer{}
	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Start(); err != nil {
		os.Remove(exportsPath)
		return nil, fmt.Errorf("start unfsd: %w", err)
	}

	exp := &export{
		dir:      dir,
		endpoint: endpoint,
		exports:  exportsPath,
		cmd:      cmd,
		out:      out,
		grace:    s.cfg.StopGrace,
		log:      log,
		done:     make(chan struct{}),
	}
	go func() {
		exp.exitErr = cmd.Wait()
		close(exp.done)
	}()

	timer := time.NewTimer(s.cfg.StartupGrace)
	defer timer.Stop()

	select {
	case <-exp.done:
		os.Remove(exportsPath)
		return nil, fmt.Errorf("%w: %v\n%s", ErrServerExited, exp.exitErr, strings.TrimSpace(out.String()))
	case <-ctx.Done():
		_ = exp.Close()
		return nil, ctx.Err()
	case <-timer.C:
	}

	log.Info("nfs export ready")
	return exp, nil
}

// resolveBinary finds unfsd, staging unfs3-native into its sysroot if
// needed.
func (s *Server) resolveBinary(ctx context.Context) (string, error) {
	bin := s.cfg.Binary
	if strings.ContainsRune(bin, filepath.Separator) {
		return bin, nil
	}

	if s.cfg.Vars != nil {
		sysroot, err := s.cfg.Vars.LookupFor(ctx, sysrootRecipe.Target, "RECIPE_SYSROOT_NATIVE")
		if err != nil {
			return "", fmt.Errorf("locate unfs3-native sysroot: %w", err)
		}
		candidate := filepath.Join(sysroot, "usr", "bin", bin)
		if isExecutable(candidate) {
			return candidate, nil
		}
		if s.cfg.Builder != nil {
			s.log.WithField("target", sysrootRecipe).Info("unfsd not found, building")
			if err := s.cfg.Builder.Execute(ctx, sysrootRecipe); err != nil {
				return "", fmt.Errorf("build unfsd: %w", err)
			}
			if isExecutable(candidate) {
				return candidate, nil
			}
		}
	}

	path, err := exec.LookPath(bin)
	if err != nil {
		return "", fmt.Errorf("unfsd not available: %w", err)
	}
	return path, nil
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Mode()&0o111 != 0
}

// export is a running unfsd process.
type export struct {
	dir      string
	endpoint Endpoint
	exports  string
	cmd      *exec.Cmd
	out      *syncBuffer
	grace    time.Duration
	log      logrus.FieldLogger

	done    chan struct{}
	exitErr error

	closeOnce sync.Once
	closeErr  error
}

func (e *export) Dir() string        { return e.dir }
func (e *export) Endpoint() Endpoint { return e.endpoint }

// Close stops unfsd and removes the exports file.
func (e *export) Close() error {
	e.closeOnce.Do(func() {
		var errs []error

		select {
		case <-e.done:
		default:
			e.log.Info("stopping unfsd")
			if err := e.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
				e.log.WithError(err).Warn("failed to signal unfsd")
			}
			select {
			case <-e.done:
			case <-time.After(e.grace):
				e.log.Warn("unfsd did not exit, killing")
				if err := e.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
					errs = append(errs, fmt.Errorf("kill unfsd: %w", err))
				} else {
					<-e.done
				}
			}
		}

		if err := os.Remove(e.exports); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove exports file: %w", err))
		}
		e.closeErr = errors.Join(errs...)
	})
	return e.closeErr
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var _ Provider = (*Server)(nil)
