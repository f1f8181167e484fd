package workflow

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/javanstorm/toolchainqa/internal/build"
)

// DefaultNativeChecks are the native toolchain self-check tasks.
var DefaultNativeChecks = []build.TargetSpec{
	{Target: "llvm-native", Task: "check_llvm"},
	{Target: "clang-native", Task: "check_clang"},
	{Target: "lld-native", Task: "check_lld"},
}

// NativeSuite runs the native toolchain checks in order.
type NativeSuite struct {
	Exec build.Executor

	// Checks defaults to DefaultNativeChecks.
	Checks []build.TargetSpec

	Stepper Stepper

	// Report receives the summary table (nil = none).
	Report io.Writer

	Log logrus.FieldLogger
}

// Run executes every check, stopping at the first failure.
func (n *NativeSuite) Run(ctx context.Context) (Outcome, error) {
	log := n.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("workflow", "native")
	stepper := n.Stepper
	if stepper.Log == nil {
		stepper.Log = log
	}

	checks := n.Checks
	if len(checks) == 0 {
		checks = DefaultNativeChecks
	}

	banner(log, "STARTING LLVM + CLANG + LLD NATIVE LIT TEST SUITES")

	start := stepper.now()
	steps, err := runBuilds(ctx, stepper, n.Exec, checks)
	if err != nil {
		return Outcome{}, err
	}
	total := stepper.elapsedSince(start)

	banner(log, "ALL LIT TEST SUITES COMPLETED SUCCESSFULLY")
	summarize(n.Report, "Native lit suites", steps, total)

	return Outcome{Name: "native", Steps: steps, Total: total}, nil
}

// runBuilds runs each spec as a timed step.
func runBuilds(ctx context.Context, stepper Stepper, exec build.Executor, specs []build.TargetSpec) ([]StepResult, error) {
	steps := make([]StepResult, 0, len(specs))
	for _, spec := range specs {
		res, err := stepper.Run(ctx, spec.String(), func(ctx context.Context) error {
			return exec.Execute(ctx, spec)
		})
		if err != nil {
			return nil, err
		}
		steps = append(steps, res)
	}
	return steps, nil
}
