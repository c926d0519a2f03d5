package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
)

// TemporalConfig holds the connection and routing settings.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
}

// TemporalQueue implements Queue on a Temporal cluster. Each task runs
// as a StageTaskWorkflow; the workflow ID carries the dedupe key so a
// duplicate enqueue while the task is in flight collapses to the
// running execution.
type TemporalQueue struct {
	client    client.Client
	taskQueue string
}

// Dial connects to Temporal and returns a queue bound to the configured
// task queue.
func Dial(cfg TemporalConfig) (*TemporalQueue, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    zapAdapter{zap.S()},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "schedule: dial temporal at %s", cfg.HostPort)
	}
	return &TemporalQueue{client: c, taskQueue: cfg.TaskQueue}, nil
}

// NewTemporalQueue wraps an existing client, for tests and shared
// connections.
func NewTemporalQueue(c client.Client, taskQueue string) *TemporalQueue {
	return &TemporalQueue{client: c, taskQueue: taskQueue}
}

// Client exposes the underlying connection so the worker can share it.
func (q *TemporalQueue) Client() client.Client {
	return q.client
}

// Close releases the client connection.
func (q *TemporalQueue) Close() {
	q.client.Close()
}

func (q *TemporalQueue) Enqueue(ctx context.Context, task Task, opts Options) error {
	wfOpts := client.StartWorkflowOptions{
		ID:                       task.DedupeKey(),
		TaskQueue:                q.taskQueue,
		StartDelay:               opts.Delay,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionTimeout: time.Hour,
	}
	if opts.MaxAttempts > 0 {
		wfOpts.RetryPolicy = &temporal.RetryPolicy{MaximumAttempts: int32(opts.MaxAttempts)}
	}

	_, err := q.client.ExecuteWorkflow(ctx, wfOpts, StageTaskWorkflow, task)
	if err != nil {
		var already *serviceerror.WorkflowExecutionAlreadyStarted
		if opts.Unique && errors.As(err, &already) {
			zap.L().Debug("task already in flight, enqueue collapsed",
				zap.String("kind", string(task.Kind)),
				zap.String("dedupe_key", task.DedupeKey()))
			return nil
		}
		return eris.Wrapf(err, "schedule: enqueue %s", task.DedupeKey())
	}
	return nil
}

func (q *TemporalQueue) RegisterRepeating(ctx context.Context, key, cronExpr, timezone string, task Task) error {
	_, err := q.client.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: key,
		Spec: client.ScheduleSpec{
			CronExpressions: []string{cronExpr},
			TimeZoneName:    timezone,
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        key + "-run",
			Workflow:  StageTaskWorkflow,
			Args:      []any{task},
			TaskQueue: q.taskQueue,
		},
		Overlap: enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
	})
	if err != nil {
		if errors.Is(err, temporal.ErrScheduleAlreadyRunning) {
			zap.L().Debug("repeating job already registered", zap.String("key", key))
			return nil
		}
		return eris.Wrapf(err, "schedule: register repeating %s", key)
	}
	zap.L().Info("repeating job registered",
		zap.String("key", key),
		zap.String("cron", cronExpr),
		zap.String("timezone", timezone))
	return nil
}

func (q *TemporalQueue) RemoveRepeating(ctx context.Context, key string) error {
	err := q.client.ScheduleClient().GetHandle(ctx, key).Delete(ctx)
	if err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return nil
		}
		return eris.Wrapf(err, "schedule: remove repeating %s", key)
	}
	zap.L().Info("repeating job removed", zap.String("key", key))
	return nil
}

// zapAdapter bridges the global zap logger onto Temporal's log.Logger.
type zapAdapter struct {
	s *zap.SugaredLogger
}

func (a zapAdapter) Debug(msg string, kv ...any) { a.s.Debugw(msg, kv...) }
func (a zapAdapter) Info(msg string, kv ...any)  { a.s.Infow(msg, kv...) }
func (a zapAdapter) Warn(msg string, kv ...any)  { a.s.Warnw(msg, kv...) }
func (a zapAdapter) Error(msg string, kv ...any) { a.s.Errorw(msg, kv...) }
