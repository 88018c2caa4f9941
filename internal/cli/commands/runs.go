package commands

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var (
		projectID string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "runs <config>",
		Short: "Show recent runs of a configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg, err := a.store.GetConfigByName(projectID, args[0])
			if err != nil {
				return fmt.Errorf("failed to load configuration %q: %w", args[0], err)
			}

			runs, err := a.store.ListRuns(cfg.ID, limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			if getConfig(cmd).Output == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Run", "Trigger", "Status", "Started", "Transferred", "Created", "Skipped", "Failed"})
			for _, run := range runs {
				t.AppendRow(table.Row{
					run.ID, run.Trigger, run.Status,
					run.StartedAt.Format("2006-01-02 15:04:05"),
					run.Transferred, run.Created, run.Skipped, run.Failed,
				})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project the configuration belongs to")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	return cmd
}
