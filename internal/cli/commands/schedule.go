package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldshift-labs/fieldshift/internal/scheduler"
	"github.com/fieldshift-labs/fieldshift/internal/transfer"
	"github.com/fieldshift-labs/fieldshift/pkg/core"
)

// NewScheduleCommand creates the schedule command.
func NewScheduleCommand() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run schedule-triggered configurations",
		Long: `Run the scheduler. Each hourly pass claims the current (date, hour)
slot, so concurrent scheduler processes never double-run a window.

With --once, perform a single pass for the current hour and exit. This is
the mode to use from an external cron.`,
		Example: `  # Single pass, e.g. from cron
  fieldshift schedule --once

  # Long-running scheduler with an internal hourly tick
  fieldshift schedule`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			logger := getLogger(cmd)
			run := func(ctx context.Context, cfg *core.TransferConfig, trigger core.TriggerKind) (*core.TransferRun, error) {
				return a.service.Run(ctx, cfg, transfer.Options{Trigger: trigger})
			}
			sched := scheduler.New(a.store, run, logger)

			if once {
				return sched.Pass(cmd.Context(), time.Now())
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := sched.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			sched.Stop()
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Perform a single scheduler pass and exit")
	return cmd
}
