package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/javanstorm/toolchainqa/internal/workflow"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List workflows and their tags",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := newRegistry(cfg, log, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		printList(cmd.OutOrStdout(), registry.Entries())
		fmt.Fprintf(cmd.OutOrStdout(), "\nTags: %s\n", strings.Join(registry.AllTags(), ", "))
		return nil
	},
}

func printList(out io.Writer, entries []workflow.Entry) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Name", "Tags", "Description"})
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	for _, e := range entries {
		table.Append([]string{e.Name, strings.Join(e.Tags, ","), e.Description})
	}
	table.Render()
}
