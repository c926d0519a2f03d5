package schedule

import (
	"context"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
)

// Worker polls the task queue and dispatches delivered tasks to the
// handler. Delivery is at least once; the handler is responsible for
// making each task idempotent.
type Worker struct {
	w worker.Worker
}

// NewWorker binds the stage workflow and activity on the given task
// queue.
func NewWorker(c client.Client, taskQueue string, handler Handler) *Worker {
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflow(StageTaskWorkflow)
	w.RegisterActivityWithOptions(
		func(ctx context.Context, task Task) error {
			zap.L().Debug("stage task delivered",
				zap.String("kind", string(task.Kind)),
				zap.String("content_id", task.ContentID),
				zap.Int32("attempt", activity.GetInfo(ctx).Attempt))
			return handler.Handle(ctx, task)
		},
		activity.RegisterOptions{Name: stageActivityName},
	)
	return &Worker{w: w}
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	stop := make(chan interface{})
	go func() {
		<-ctx.Done()
		close(stop)
	}()
	if err := w.w.Run(stop); err != nil {
		return eris.Wrap(err, "schedule: worker run")
	}
	return nil
}

// Stop shuts the worker down.
func (w *Worker) Stop() {
	w.w.Stop()
}
