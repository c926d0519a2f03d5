package schedule

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const stageActivityName = "RunStageTask"

// StageTaskWorkflow runs a single stage task as one activity. Retries
// live at the activity layer so a worker restart resumes the attempt
// counter instead of resetting it.
func StageTaskWorkflow(ctx workflow.Context, task Task) error {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Minute,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    30 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Minute,
			MaximumAttempts:    5,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	return workflow.ExecuteActivity(ctx, stageActivityName, task).Get(ctx, nil)
}
