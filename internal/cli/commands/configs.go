package commands

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewConfigsCommand creates the configs command.
func NewConfigsCommand() *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "configs",
		Short: "List transfer configurations",
		Example: `  # List all configurations of a project
  fieldshift configs --project 42

  # JSON output
  fieldshift configs --project 42 -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			configs, err := a.store.ListConfigs(projectID)
			if err != nil {
				return fmt.Errorf("failed to list configurations: %w", err)
			}

			if getConfig(cmd).Output == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(configs)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Name", "Project", "Owner", "Enabled", "Direction", "Trigger", "Batch"})
			for _, cfg := range configs {
				t.AppendRow(table.Row{
					cfg.Name, cfg.ProjectID, cfg.Owner, cfg.Enabled,
					cfg.Direction, cfg.Trigger, cfg.BatchSize,
				})
			}
			t.Render()
			fmt.Fprintf(cmd.OutOrStdout(), "(%d configurations)\n", len(configs))
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project whose configurations to list")
	return cmd
}
