package workflow

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/javanstorm/toolchainqa/internal/build"
	"github.com/javanstorm/toolchainqa/internal/nfs"
	"github.com/javanstorm/toolchainqa/internal/timing"
	"github.com/javanstorm/toolchainqa/internal/vm"
)

// DefaultImage is the image booted for on-target testing.
const DefaultImage = "core-image-minimal"

// DefaultTargetBuilds are the full builds that precede on-target testing.
var DefaultTargetBuilds = []build.TargetSpec{
	{Target: "llvm"},
	{Target: "clang"},
	{Target: "lld"},
	{Target: DefaultImage},
}

// TargetSuite builds the toolchain for the target, boots it, mounts the
// build tree over NFS and runs each component's lit suite in the guest.
type TargetSuite struct {
	Exec    build.Executor
	Vars    build.VarLookup
	VMs     vm.Provider
	Exports nfs.Provider

	// Builds defaults to DefaultTargetBuilds.
	Builds []build.TargetSpec

	// Image defaults to DefaultImage.
	Image string

	// Targets defaults to DefaultTargets("", "").
	Targets []RemoteTestTarget

	// UDP selects the NFS transport.
	UDP bool

	Stepper Stepper
	Report  io.Writer
	Log     logrus.FieldLogger
}

// Run executes the suite. The guest and the export are released on every
// path once they have been acquired.
func (t *TargetSuite) Run(ctx context.Context) (Outcome, error) {
	log := t.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("workflow", "target")
	stepper := t.Stepper
	if stepper.Log == nil {
		stepper.Log = log
	}

	builds := t.Builds
	if len(builds) == 0 {
		builds = DefaultTargetBuilds
	}
	image := t.Image
	if image == "" {
		image = DefaultImage
	}
	targets := t.Targets
	if len(targets) == 0 {
		targets = DefaultTargets("", "")
	}

	banner(log, "STARTING TARGET LLVM/CLANG/LLD BUILDS")

	start := stepper.now()
	steps, err := runBuilds(ctx, stepper, t.Exec, builds)
	if err != nil {
		return Outcome{}, err
	}
	buildTotal := stepper.elapsedSince(start)

	banner(log, "ALL TARGET BUILDS COMPLETED SUCCESSFULLY")
	summarize(t.Report, "Target builds", steps, buildTotal)

	// Guest phases are timed by marks so setup and mount show up in the
	// summary next to the lit suites.
	phases := timing.New(stepper.Now)

	tmpdir, err := t.Vars.Lookup(ctx, "TMPDIR")
	if err != nil {
		return Outcome{}, &Error{Kind: KindResource, Step: "resolve TMPDIR", Err: err}
	}

	res, err := OpenResources(ctx, t.VMs, t.Exports, image, tmpdir, log)
	if err != nil {
		return Outcome{}, err
	}
	defer res.Close()
	phases.Mark("resource setup")

	if err := MountShared(ctx, res.Session, res.Endpoint, tmpdir, t.UDP, log); err != nil {
		return Outcome{}, err
	}
	phases.Mark("mount")

	log.Info("Running llvm-lit directly on target")
	var (
		tests      []StepResult
		lastOutput string
	)
	for _, target := range targets {
		result, err := stepper.Run(ctx, "llvm-lit "+target.Component, func(ctx context.Context) error {
			out, err := runTarget(ctx, res.Session, target, tmpdir, log)
			lastOutput = out
			return err
		})
		if err != nil {
			return Outcome{}, err
		}
		tests = append(tests, result)
		phases.Mark(result.Name)
	}

	log.Info("llvm-lit tests completed successfully on target")
	if lastOutput != "" {
		log.Info(lastOutput)
	}
	if t.Report != nil {
		phases.Report(t.Report, "On-target phases", phases.Total())
	}

	return Outcome{
		Name:  "target",
		Steps: append(steps, tests...),
		Total: stepper.elapsedSince(start),
	}, nil
}

// runTarget runs one component's harness and copies its results out.
// The copy is attempted only when the harness exits zero.
func runTarget(ctx context.Context, session vm.Session, target RemoteTestTarget, tmpdir string, log logrus.FieldLogger) (string, error) {
	if err := target.Validate(); err != nil {
		return "", &Error{Kind: KindRemoteCommand, Step: "llvm-lit " + target.Component, Err: err}
	}

	buildDir := target.BuildDir(tmpdir)
	log = log.WithField("component", target.Component)
	log.Infof("  LIT BIN  : %s/bin/%s", buildDir, target.harness())
	log.Infof("  TESTDIR  : %s/test", buildDir)
	log.Infof("  LOGFILE  : %s", target.GuestResultPath())

	res, err := runRemote(ctx, session, remoteCall{
		step:    "llvm-lit " + target.Component,
		cmd:     target.HarnessCommand(tmpdir),
		timeout: target.Timeout,
		kind:    KindRemoteCommand,
		message: "llvm-lit tests FAILED on target for " + target.Component,
	}, log)
	if err != nil {
		return "", err
	}

	if _, err := runRemote(ctx, session, remoteCall{
		step:    "copy " + target.Component + " results",
		cmd:     target.CopyCommand(tmpdir),
		kind:    KindArtifactTransfer,
		message: "failed to copy " + target.Component + " lit results back to host",
	}, log); err != nil {
		return "", err
	}

	return res.Output, nil
}
