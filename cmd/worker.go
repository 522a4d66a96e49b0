package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/admin-dashboard/internal/session"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background workers such as session housekeeping.`,
}

var sessionWorkerCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Start the session housekeeping scheduler",
	Long:  `Mark expired sessions inactive and purge old inactive rows on the configured cron schedules`,
	Run: func(cmd *cobra.Command, args []string) {
		startSessionWorker()
	},
}

var (
	runOnce       bool
	retentionDays int
)

func newScheduler(app *application) (*session.Scheduler, error) {
	cfg := app.Config.Session
	return session.NewScheduler(app.Manager, session.SchedulerConfig{
		CleanupSchedule: cfg.CleanupSchedule,
		PurgeSchedule:   cfg.PurgeSchedule,
		RetentionDays:   getIntFlag(retentionDays, cfg.RetentionDays),
	}, app.Logger)
}

func startSessionWorker() {
	cfg := mustLoadConfig()

	app, err := newApplication(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()
	lg := app.Logger

	scheduler, err := newScheduler(app)
	if err != nil {
		lg.Error("failed to create session scheduler", "error", err)
		return
	}

	if runOnce {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := scheduler.RunOnce(ctx); err != nil {
			lg.Error("session housekeeping failed", "error", err)
			return
		}
		lg.Info("session housekeeping complete")
		return
	}

	scheduler.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	lg.Info("session worker is running. Press Ctrl+C to stop.")

	sig := <-sigChan
	lg.Info("received signal, shutting down session worker", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	select {
	case <-scheduler.Stop().Done():
		lg.Info("session worker shutdown complete")
	case <-ctx.Done():
		lg.Warn("shutdown timeout reached, forcing exit")
	}
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	sessionWorkerCmd.Flags().BoolVar(&runOnce, "once", false, "run cleanup and purge once and exit")
	sessionWorkerCmd.Flags().IntVar(&retentionDays, "retention-days", 0, "days to keep inactive sessions (overrides config)")

	workerCmd.AddCommand(sessionWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
