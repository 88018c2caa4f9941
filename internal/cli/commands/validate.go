package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Resolve a configuration's field map without transferring",
		Long: `Resolve the field map against the current schemas of both projects
and report the resolved field pairs and any mapping problems. Nothing is
transferred.`,
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

			resolved, err := a.service.ResolveFieldMap(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			t := table.NewWriter()
			t.SetOutputMirror(out)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Source", "Event", "Destination", "Event", "Comparison"})
			for _, pair := range resolved.Pairs {
				t.AppendRow(table.Row{
					pair.Source.Name, pair.SourceEvent,
					pair.Destination.Name, pair.DestinationEvent,
					pair.Comparison,
				})
			}
			t.Render()

			status := resolved.Status
			fmt.Fprintf(out, "Status: %s\n", status.Severity())
			for _, msg := range status.Messages() {
				fmt.Fprintf(out, "  - %s\n", msg)
			}
			if status.IsError() {
				return fmt.Errorf("field map has errors")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project the configuration belongs to")
	return cmd
}
