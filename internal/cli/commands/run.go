package commands

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/fieldshift-labs/fieldshift/internal/transfer"
	"github.com/fieldshift-labs/fieldshift/pkg/core"
)

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	var (
		projectID string
		recordID  string
	)

	cmd := &cobra.Command{
		Use:   "run <config>",
		Short: "Run a transfer configuration",
		Long: `Execute one transfer configuration: validate it, resolve its field
map against both schemas, and move records in batches. A failing batch is
recorded and skipped; remaining batches still run.`,
		Example: `  # Run a configuration
  fieldshift run nightly-sync --project 42

  # Transfer a single record, as the on-save trigger would
  fieldshift run nightly-sync --project 42 --record 1007`,
		Args: cobra.ExactArgs(1),
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

			opts := transfer.Options{Trigger: core.TriggerManual}
			if recordID != "" {
				opts.Trigger = core.TriggerSave
				opts.RecordID = recordID
			}

			run, err := a.service.Run(cmd.Context(), cfg, opts)
			if run != nil {
				printRun(cmd, run)
			}
			if err != nil {
				return fmt.Errorf("run failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project the configuration belongs to")
	cmd.Flags().StringVar(&recordID, "record", "", "Restrict the transfer to a single record")
	return cmd
}

// printRun renders a run summary with its batch outcomes.
func printRun(cmd *cobra.Command, run *core.TransferRun) {
	if getConfig(cmd).Output == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		_ = enc.Encode(run)
		return
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: %s\n", run.ID, run.Status)
	if run.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", run.Error)
	}
	fmt.Fprintf(out, "Transferred %d, created %d, skipped %d, failed %d\n",
		run.Transferred, run.Created, run.Skipped, run.Failed)

	if len(run.Batches) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Batch", "Status", "Records", "Transferred", "Created", "Skipped", "Error"})
	for _, b := range run.Batches {
		t.AppendRow(table.Row{
			b.Index, b.Status, len(b.RecordIDs), b.Transferred, b.Created, b.Skipped, b.Error,
		})
	}
	t.Render()
}
