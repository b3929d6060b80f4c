package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/and161185/medizone/internal/reminder"
	"github.com/and161185/medizone/internal/statusapi"
)

func agentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run in the background: probe connectivity, sync, fire reminders and serve the status API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				return runAgent(ctx, a)
			})
		},
	}
	cmd.Flags().String("listen", "127.0.0.1:8787", "status API listen address; empty disables it")
	cmd.Flags().Duration("probe-interval", 15*time.Second, "connectivity probe interval")
	_ = viper.BindPFlag("listen", cmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("probe-interval", cmd.Flags().Lookup("probe-interval"))
	return cmd
}

func runAgent(ctx context.Context, a *app) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := &reminder.Scheduler{
		Source: a.reminders,
		Notifier: reminder.NotifierFunc(func(_ context.Context, n reminder.Notification) error {
			a.log.Info("reminder",
				zap.String("medication", n.MedicationName),
				zap.String("time", n.Reminder.Time),
				zap.String("reminder_id", n.Reminder.ID))
			return nil
		}),
		Lookup:   a.tracker.Projection.Medication,
		Location: a.cfg.Location(),
		Log:      a.log,
	}

	var wg sync.WaitGroup
	run := func(f func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f(ctx)
		}()
	}
	run(a.prober.Run)
	run(func(ctx context.Context) { a.rec.Watch(ctx, a.monitor) })
	if a.reminders != nil {
		run(sched.Run)
	} else {
		a.log.Warn("reminders disabled: local database unavailable")
	}

	errCh := make(chan error, 1)
	var srv *http.Server
	if a.cfg.Listen != "" {
		srv = &http.Server{
			Addr: a.cfg.Listen,
			Handler: statusapi.New(statusapi.Config{
				Tracker:  a.tracker,
				Sync:     a.rec,
				Signal:   a.monitor,
				Gatherer: a.registry,
				Version:  version,
				Log:      a.log,
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.log.Info("status api listening", zap.String("addr", a.cfg.Listen))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
		a.log.Error("status api", zap.Error(err))
	}
	cancel()
	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		done()
	}
	wg.Wait()
	return err
}
