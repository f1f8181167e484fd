package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/javanstorm/toolchainqa/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Print the configuration after defaults, the config file, .env and
TOOLCHAINQA_* environment variables have been applied, followed by any
validation problems.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := printConfig(cmd.OutOrStdout(), cfg, issues); err != nil {
			return err
		}
		if config.HasFatal(issues) {
			return fmt.Errorf("configuration is invalid")
		}
		return nil
	},
}

func printConfig(out io.Writer, cfg *config.Config, issues []config.ValidationError) error {
	source := cfg.Source()
	if source == "" {
		source = "(defaults and environment only)"
	}
	fmt.Fprintf(out, "# source: %s\n", source)

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("render config: %w", err)
	}
	if _, err := out.Write(data); err != nil {
		return err
	}

	if msg := config.FormatValidationErrors(issues); msg != "" {
		fmt.Fprintln(out)
		fmt.Fprint(out, msg)
	}
	return nil
}
