package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/javanstorm/toolchainqa/internal/config"
	"github.com/javanstorm/toolchainqa/internal/history"
	"github.com/javanstorm/toolchainqa/internal/timing"
	"github.com/javanstorm/toolchainqa/internal/workflow"
)

var runTags []string

var runCmd = &cobra.Command{
	Use:   "run [workflow...]",
	Short: "Run workflows by name or tag",
	Long: `Run the named workflows, or every workflow carrying one of the given
tags, in registration order. With neither, every workflow runs.

Workflows run one after another and the first failure stops the run.`,
	Example: `  toolchainqa run --tag run-on-build
  toolchainqa run native target`,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := newRegistry(cfg, log, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		entries, err := selectEntries(registry, args, runTags)
		if err != nil {
			return err
		}
		return runEntries(cmd.Context(), cmd.OutOrStdout(), log, openHistory(), entries)
	},
}

var nativeCmd = &cobra.Command{
	Use:   "native",
	Short: "Run the native lit suites",
	Long:  `Run bitbake llvm-native -c check_llvm, clang-native -c check_clang and lld-native -c check_lld in order.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNamed(cmd, "native")
	},
}

var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Build for the target and run the lit suites in a VM",
	Long: `Build llvm, clang, lld and core-image-minimal, boot the image, mount
TMPDIR into the guest over NFS and run each component's lit suite there.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNamed(cmd, "target")
	},
}

func init() {
	runCmd.Flags().StringSliceVarP(&runTags, "tag", "t", nil, "run workflows carrying this tag (repeatable)")
}

func runNamed(cmd *cobra.Command, name string) error {
	registry, err := newRegistry(cfg, log, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	entries, err := selectEntries(registry, []string{name}, nil)
	if err != nil {
		return err
	}
	return runEntries(cmd.Context(), cmd.OutOrStdout(), log, openHistory(), entries)
}

// selectEntries resolves names, or tags when no names are given.
func selectEntries(r *workflow.Registry, names, tags []string) ([]workflow.Entry, error) {
	if len(names) == 0 {
		selected := r.Select(tags)
		if len(selected) == 0 {
			return nil, fmt.Errorf("no workflow carries tags %s", strings.Join(tags, ", "))
		}
		return selected, nil
	}

	entries := make([]workflow.Entry, 0, len(names))
	for _, name := range lo.Uniq(names) {
		e, ok := r.Lookup(name)
		if !ok {
			known := lo.Map(r.Entries(), func(e workflow.Entry, _ int) string { return e.Name })
			return nil, fmt.Errorf("unknown workflow %q (known: %s)", name, strings.Join(known, ", "))
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// recorder persists run outcomes.
type recorder interface {
	Record(run history.Run) error
}

// openHistory returns the history file, or nil when the data directory
// cannot be determined.
func openHistory() recorder {
	paths, err := config.GetPaths()
	if err != nil {
		log.WithError(err).Warn("run history disabled")
		return nil
	}
	return history.NewFile(paths.DataDir)
}

type runSummary struct {
	name     string
	steps    int
	duration time.Duration
	err      error
}

// runEntries runs entries in order, stopping at the first failure, and
// prints a summary of what ran. A nil rec skips recording.
func runEntries(ctx context.Context, out io.Writer, log logrus.FieldLogger, rec recorder, entries []workflow.Entry) error {
	var (
		summaries []runSummary
		failure   error
	)

	for _, e := range entries {
		elog := log.WithField("workflow", e.Name)
		elog.Info("starting workflow")

		run := history.Run{ID: runID, Workflow: e.Name, Started: time.Now()}
		outcome, err := e.Run(ctx)
		if err != nil {
			step := workflow.StepOf(err)
			kind := workflow.KindOf(err).String()
			elog.WithFields(logrus.Fields{
				"step": step,
				"kind": kind,
			}).WithError(err).Error("workflow failed")
			run.Step, run.Kind, run.Error = step, kind, err.Error()
			record(rec, elog, run)
			summaries = append(summaries, runSummary{name: e.Name, err: err})
			failure = fmt.Errorf("workflow %s failed at step %q: %w", e.Name, step, err)
			break
		}

		elog.WithField("duration_s", timing.Seconds(outcome.Total)).Info("workflow passed")
		run.Passed, run.Seconds = true, timing.Seconds(outcome.Total)
		record(rec, elog, run)
		summaries = append(summaries, runSummary{name: e.Name, steps: len(outcome.Steps), duration: outcome.Total})
	}

	printSummary(out, summaries)
	return failure
}

func record(rec recorder, log logrus.FieldLogger, run history.Run) {
	if rec == nil {
		return
	}
	if err := rec.Record(run); err != nil {
		log.WithError(err).Warn("failed to record run")
	}
}

func printSummary(out io.Writer, summaries []runSummary) {
	if len(summaries) == 0 {
		return
	}

	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()

	fmt.Fprintln(out)
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Workflow", "Steps", "Duration", "Result"})
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	for _, s := range summaries {
		result := ok("PASSED")
		steps := fmt.Sprint(s.steps)
		duration := timing.FormatSeconds(s.duration)
		if s.err != nil {
			result = bad("FAILED")
			steps, duration = "-", "-"
		}
		table.Append([]string{s.name, steps, duration, result})
	}
	table.Render()
}
