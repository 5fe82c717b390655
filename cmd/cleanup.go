package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/teemow/calendaragent/internal/logging"
	"github.com/teemow/calendaragent/internal/server"
)

func newCleanupCmd() *cobra.Command {
	var retention time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Purge cancelled events older than the retention period",
		Long: `Remove cancelled events from the calendar store once they have not been
touched for the retention period (default from cleanup.retention, 30 days).
Confirmed and tentative events are never removed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := newApp(ctx, os.Stderr)
			if err != nil {
				return err
			}
			defer a.close()

			if !cmd.Flags().Changed("retention") {
				retention = a.cfg.Cleanup.Retention
			}
			n, err := runCleanup(ctx, a.sc, retention)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d cancelled event(s)\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&retention, "retention", 0, "Age after which cancelled events are purged (e.g. 720h)")
	return cmd
}

// runCleanup purges cancelled events not updated within retention.
func runCleanup(ctx context.Context, sc *server.ServerContext, retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("retention must be positive, got %s", retention)
	}
	cutoff := sc.Now().Add(-retention)
	n, err := sc.Engine().PurgeCancelled(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge cancelled events: %w", err)
	}
	return n, nil
}

// startCleanupSchedule runs runCleanup on the configured cron schedule. It
// returns nil when no schedule is configured.
func startCleanupSchedule(ctx context.Context, a *app) (*cron.Cron, error) {
	schedule := a.cfg.Cleanup.Schedule
	if schedule == "" {
		return nil, nil
	}

	c := cron.New(
		cron.WithLocation(a.sc.Location()),
		cron.WithLogger(logging.NewCronLogger(a.logger)),
		cron.WithChain(cron.SkipIfStillRunning(logging.NewCronLogger(a.logger))),
	)
	retention := a.cfg.Cleanup.Retention
	if _, err := c.AddFunc(schedule, func() {
		n, err := runCleanup(ctx, a.sc, retention)
		if err != nil {
			a.logger.Error("scheduled cleanup failed", logging.Err(err))
			return
		}
		a.logger.Debug("scheduled cleanup finished", slog.Int("purged", n))
	}); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	c.Start()
	a.logger.Info("cleanup scheduled", slog.String("schedule", schedule), slog.Duration("retention", retention))
	return c, nil
}
