package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jslade/jobsync/internal/sched"
)

func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run full passes on a cron schedule until interrupted",
		Long: `Starts a long-running process that executes the full extract, ingest
and sync pass on the configured cron spec. When a Redis URL is configured,
a distributed lock keeps concurrent deployments from overlapping. A
Prometheus endpoint is served while the scheduler runs.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runSchedule(cmd.Context(), app)
		},
	}
}

func runSchedule(parent context.Context, app *App) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var lock *sched.Lock
	if url := app.Config.Schedule.RedisURL; url != "" {
		var err error
		lock, err = sched.NewLock(ctx, url, "jobsync:run", time.Duration(app.Config.Schedule.LockTTL)*time.Second)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := lock.Close(); cerr != nil {
				app.Logger.Warn("Failed to close lock client", zap.Error(cerr))
			}
		}()
	}

	var srv *http.Server
	if app.Config.Metrics.Enabled {
		srv = sched.NewMetricsServer(app.Config.Metrics.Addr)
		go func() {
			app.Logger.Info("Metrics server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				app.Logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	scheduler := sched.New(app.Config.Schedule.Spec, func(runCtx context.Context) {
		if err := app.runAll(runCtx); err != nil {
			app.Logger.Error("Scheduled run failed", zap.Error(err))
		}
	}, lock, app.Logger)

	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	app.Logger.Info("Shutting down")
	scheduler.Stop()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.Logger.Warn("Metrics server shutdown failed", zap.Error(err))
		}
	}
	return nil
}
