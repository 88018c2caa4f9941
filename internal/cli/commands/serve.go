package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fieldshift-labs/fieldshift/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Serve the HTTP API: configuration listing, manual runs, the
record-save webhook, and single-row mapping status checks.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := server.NewServer(server.Config{
				Store:   a.store,
				Service: a.service,
				Port:    getConfig(cmd).Port,
				Logger:  getLogger(cmd),
			})
			return srv.Serve(ctx)
		},
	}
}
