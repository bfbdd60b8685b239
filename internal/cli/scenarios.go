package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/chaosdojo/chaosdojo/internal/scenario"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List the chaos scenario catalog",
	Long: `List the five built-in scenarios with their difficulty and points.

The catalog is compiled in; this prints the same cards the dashboard shows.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		table := tablewriter.NewTable(os.Stdout)
		table.Header("ID", "Name", "Difficulty", "Points", "Action")
		for _, s := range scenario.All() {
			if err := table.Append([]string{s.ID, s.Name, s.Difficulty, strconv.Itoa(s.Points), s.Action}); err != nil {
				return fmt.Errorf("render catalog: %w", err)
			}
		}
		return table.Render()
	},
}

func init() {
	rootCmd.AddCommand(scenariosCmd)
}
