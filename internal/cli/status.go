package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/javanstorm/toolchainqa/internal/config"
	"github.com/javanstorm/toolchainqa/internal/history"
	"github.com/javanstorm/toolchainqa/pkg/hypervisor"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the tool setup and the last run of each workflow",
	Long:  `Display the emulator launcher, the configuration in use, and the most recent outcome of each workflow.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	paths, err := config.GetPaths()
	if err != nil {
		return fmt.Errorf("determine paths: %w", err)
	}
	file := history.NewFile(paths.DataDir)
	state, err := file.Load()
	if err != nil {
		return err
	}

	launcher := hypervisor.NewRunQemu(hypervisor.RunQemuConfig{Binary: cfg.VM.RunQemu, Logger: log})
	printStatus(cmd.OutOrStdout(), cfg, launcher.Info(), file.Path(), state)
	return nil
}

func printStatus(out io.Writer, cfg *config.Config, info hypervisor.Info, historyPath string, state *history.State) {
	source := cfg.Source()
	if source == "" {
		source = "defaults"
	}
	fmt.Fprintf(out, "Config: %s\n", source)
	fmt.Fprintf(out, "Launcher: %s (%s)\n", info.Name, info.Binary)
	fmt.Fprintf(out, "Image: %s, %d MB\n", cfg.VM.Image, cfg.VM.MemoryMB)
	fmt.Fprintf(out, "Targets: %s, version %s\n", cfg.Targets.Triplet, cfg.Targets.Version)
	fmt.Fprintln(out)

	latest := state.Latest()
	if len(latest) == 0 {
		fmt.Fprintf(out, "History: no runs recorded (%s)\n", historyPath)
		return
	}

	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()

	fmt.Fprintf(out, "Last runs (%s):\n", historyPath)
	for _, run := range latest {
		started := run.Started.Format("2006-01-02 15:04:05")
		if run.Passed {
			fmt.Fprintf(out, "  %s: %s at %s (%d seconds)\n", run.Workflow, ok("PASSED"), started, run.Seconds)
			continue
		}
		fmt.Fprintf(out, "  %s: %s at %s\n", run.Workflow, bad("FAILED"), started)
		fmt.Fprintf(out, "    step: %s (%s)\n", run.Step, run.Kind)
		fmt.Fprintf(out, "    error: %s\n", run.Error)
	}
}
