package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simargl-labs/content-pipeline/internal/schedule"
)

var workerSkipSchedules bool

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the stage worker",
	Long:  "Polls the task queue and executes stage tasks. Also declares the repeating scan and cleanup schedules unless --no-schedules is set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if !workerSkipSchedules {
			if err := registerCoreSchedules(ctx, env.Queue); err != nil {
				return err
			}
		}

		w := schedule.NewWorker(env.Queue.Client(), cfg.Temporal.TaskQueue, env.Runner)
		zap.L().Info("worker started", zap.String("task_queue", cfg.Temporal.TaskQueue))
		return w.Run(ctx)
	},
}

// registerCoreSchedules declares the repeating readiness scan and the
// daily cleanup purge. Keys are stable, so restarts re-declare rather
// than duplicate.
func registerCoreSchedules(ctx context.Context, q *schedule.TemporalQueue) error {
	tz := cfg.Schedules.Timezone
	if err := q.RegisterRepeating(ctx, "scan-ready", cfg.Schedules.ScanCron, tz,
		schedule.Task{Kind: schedule.TaskScanReady}); err != nil {
		return err
	}
	return q.RegisterRepeating(ctx, "purge-expired", cfg.Schedules.CleanupCron, tz,
		schedule.Task{Kind: schedule.TaskPurgeExpired})
}

func init() {
	workerCmd.Flags().BoolVar(&workerSkipSchedules, "no-schedules", false, "do not declare repeating schedules on startup")
	rootCmd.AddCommand(workerCmd)
}
