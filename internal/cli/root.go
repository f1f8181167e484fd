// Package cli provides the command-line interface for toolchainqa.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/javanstorm/toolchainqa/internal/config"
	"github.com/javanstorm/toolchainqa/internal/logging"
)

var (
	configFile string
	logLevel   string
	logFormat  string

	// Set by PersistentPreRunE for commands that need them.
	cfg    *config.Config
	issues []config.ValidationError
	log    *logrus.Entry
	runID  string
)

var rootCmd = &cobra.Command{
	Use:   "toolchainqa",
	Short: "Build and test the LLVM/Clang/LLD toolchain natively and on target",
	Long: `toolchainqa drives the toolchain QA workflows of a bitbake build.

The native workflow runs the llvm, clang and lld lit suites on the build
host. The target workflow builds the toolchain and core-image-minimal for
the target, boots the image under runqemu, mounts the build tree into the
guest over NFS and runs each component's lit suite there, copying the
results back next to each build.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "version", "completion", "help", "ssh-keygen":
			return nil
		case "config", "status":
			return setup(cmd, false)
		}
		return setup(cmd, true)
	},
}

// setup loads configuration and builds the logger. With strict set, fatal
// configuration problems abort the command.
func setup(cmd *cobra.Command, strict bool) error {
	loaded, err := config.Load(config.LoadOptions{ConfigFile: configFile})
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.Log.Level = logLevel
	}
	if logFormat != "" {
		loaded.Log.Format = logFormat
	}

	found := config.Validate(loaded)
	if strict && config.HasFatal(found) {
		return errors.New(config.FormatValidationErrors(found))
	}

	logger, err := logging.New(loaded.Log.Level, loaded.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		if strict {
			return err
		}
		logger, _ = logging.New("info", "text", cmd.ErrOrStderr())
	}

	id := uuid.NewString()
	entry := logger.WithField("run_id", id)
	if src := loaded.Source(); src != "" {
		entry.WithField("file", src).Debug("loaded configuration")
	}
	for _, issue := range found {
		if !issue.Fatal {
			entry.WithField("field", issue.Field).Warn(issue.Message)
		}
	}

	cfg, issues, log, runID = loaded, found, entry, id
	return nil
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return fmt.Errorf("command failed: %w", err)
	}
	return nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default: ./toolchainqa.yaml or the user config dir)")
	flags.StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "", "log format (text, json)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(nativeCmd)
	rootCmd.AddCommand(targetCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(sshKeygenCmd)
	rootCmd.AddCommand(statusCmd)
}
