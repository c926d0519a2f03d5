package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/simargl-labs/content-pipeline/internal/model"
	"github.com/simargl-labs/content-pipeline/internal/quota"
	"github.com/simargl-labs/content-pipeline/internal/resilience"
	"github.com/simargl-labs/content-pipeline/internal/schedule"
	"github.com/simargl-labs/content-pipeline/pkg/gemini"
)

// failValidation settles a stage failure against the error taxonomy: a
// terminal ValidationError marks the item failed and is swallowed so the
// scheduler does not retry; any other error passes through for the
// scheduler's backoff. contentID may be empty when the entity never
// existed.
func (r *Runner) failValidation(ctx context.Context, contentID string, err error) error {
	if !resilience.IsValidation(err) {
		return err
	}
	zap.L().Warn("validation failure, marking item failed",
		zap.String("content_id", contentID),
		zap.Error(err),
	)
	if contentID != "" {
		if markErr := r.store.MarkContentFailed(ctx, contentID, err.Error()); markErr != nil {
			zap.L().Error("failed to mark item failed",
				zap.String("content_id", contentID),
				zap.Error(markErr),
			)
		}
	}
	return nil
}

// classifyGenerate maps a provider call failure onto the retry taxonomy.
// Quota rejections are persisted as violation audit rows; overload marks
// the model and schedules a delayed sweep. Anything unrecognized stays an
// error so the scheduler's backoff owns the retry cadence.
func (r *Runner) classifyGenerate(ctx context.Context, modelName string, err error) error {
	var apiErr *gemini.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.IsResourceExhausted():
			v, _ := quota.ParseAPIError(apiErr)
			r.ledger.RecordProviderViolation(ctx, modelName, v, apiErr.Raw)
			qe := &resilience.QuotaExceededError{Model: modelName, Dimension: model.DimensionUnknown}
			if v != nil {
				qe.Dimension = v.QuotaType
				qe.WaitSeconds = v.RetryDelaySeconds
			}
			zap.L().Warn("provider quota rejection",
				zap.String("model", modelName),
				zap.String("dimension", string(qe.Dimension)),
				zap.Int("retry_delay_seconds", qe.WaitSeconds),
			)
			return qe

		case apiErr.IsUnavailable():
			r.markOverloaded(ctx, modelName)
			return &resilience.OverloadError{Model: modelName, Err: apiErr}

		case resilience.IsTransientHTTPStatus(apiErr.Code):
			return resilience.NewTransientError(apiErr, apiErr.Code)
		}
		return apiErr
	}
	return err
}

// markOverloaded flags the model and schedules a one-shot sweep so the
// mark cannot outlive its timeout even if no read ever touches it.
func (r *Runner) markOverloaded(ctx context.Context, modelName string) {
	r.tracker.Mark(modelName)
	zap.L().Warn("model marked overloaded", zap.String("model", modelName))

	task := schedule.Task{Kind: schedule.TaskSweepOverload, Model: modelName}
	if err := r.queue.Enqueue(ctx, task, schedule.Options{
		Delay:  r.tracker.Timeout(),
		Unique: true,
	}); err != nil {
		// The self-cleaning read still expires the mark.
		zap.L().Warn("failed to schedule overload sweep",
			zap.String("model", modelName),
			zap.Error(err),
		)
	}
}
