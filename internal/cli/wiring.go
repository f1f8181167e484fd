package cli

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/javanstorm/toolchainqa/internal/build"
	"github.com/javanstorm/toolchainqa/internal/config"
	"github.com/javanstorm/toolchainqa/internal/nfs"
	"github.com/javanstorm/toolchainqa/internal/vm"
	"github.com/javanstorm/toolchainqa/internal/workflow"
	"github.com/javanstorm/toolchainqa/pkg/hypervisor"
)

// newRegistry wires the workflows to bitbake, runqemu and unfsd. Nothing
// is started until an entry runs.
func newRegistry(cfg *config.Config, log *logrus.Entry, report io.Writer) (*workflow.Registry, error) {
	bb := build.NewBitBake(build.BitBakeConfig{
		Binary: cfg.Build.BitBake,
		Dir:    cfg.Build.Dir,
		Logger: log,
	})
	tags := []string{workflow.TagToolchainUser, workflow.TagRunOnBuild}

	entries := []workflow.Entry{
		{
			Name:        "native",
			Description: "Run the LLVM, Clang and LLD native lit suites",
			Tags:        tags,
			Run: func(ctx context.Context) (workflow.Outcome, error) {
				suite := &workflow.NativeSuite{Exec: bb, Report: report, Log: log}
				return suite.Run(ctx)
			},
		},
		{
			Name:        "target",
			Description: "Build LLVM, Clang and LLD for the target and run their lit suites in a VM",
			Tags:        tags,
			Run: func(ctx context.Context) (workflow.Outcome, error) {
				suite, closeConsole, err := newTargetSuite(cfg, bb, log, report)
				if err != nil {
					return workflow.Outcome{}, err
				}
				defer closeConsole()
				return suite.Run(ctx)
			},
		},
	}

	r := &workflow.Registry{}
	for _, e := range entries {
		if err := r.Register(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func newTargetSuite(cfg *config.Config, bb *build.BitBake, log *logrus.Entry, report io.Writer) (*workflow.TargetSuite, func(), error) {
	targets := workflow.DefaultTargets(cfg.Targets.Triplet, cfg.Targets.Version)
	if cfg.Targets.File != "" {
		loaded, err := workflow.LoadTargets(cfg.Targets.File, cfg.Targets.Triplet, cfg.Targets.Version)
		if err != nil {
			return nil, nil, err
		}
		targets = loaded
	}

	// The emulator console is only interesting when debugging a boot.
	console := log.WithField("component", "console").WriterLevel(logrus.DebugLevel)

	launcher := hypervisor.NewRunQemu(hypervisor.RunQemuConfig{
		Binary:  cfg.VM.RunQemu,
		Dir:     cfg.Build.Dir,
		Console: console,
		Logger:  log,
	})
	runner := vm.NewRunner(vm.RunnerConfig{
		Launcher: launcher,
		VM:       cfg.Launch(),
		SSH: vm.SSHConfig{
			User:    cfg.SSH.User,
			Port:    cfg.SSH.Port,
			KeyPath: cfg.SSH.KeyPath,
		},
		CommandTimeout: cfg.Remote.CommandTimeout,
		Logger:         log,
	})
	exports := nfs.NewServer(nfs.ServerConfig{
		Binary:  cfg.NFS.Unfsd,
		Vars:    bb,
		Builder: bb,
		Logger:  log,
	})

	suite := &workflow.TargetSuite{
		Exec:    bb,
		Vars:    bb,
		VMs:     runner,
		Exports: exports,
		Image:   cfg.VM.Image,
		Targets: targets,
		UDP:     cfg.NFS.UDP,
		Report:  report,
		Log:     log,
	}
	return suite, func() { console.Close() }, nil
}
