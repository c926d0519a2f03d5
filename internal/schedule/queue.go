// Package schedule is the boundary to the external work queue. Stage
// tasks are enqueued here and delivered at least once to the worker;
// repeating jobs are registered under stable keys so re-registration is
// an update, not a duplicate.
package schedule

import (
	"context"
	"fmt"
	"time"
)

// TaskKind names a stage task.
type TaskKind string

const (
	TaskDiscoverChannel TaskKind = "discover_channel"
	TaskFetchMetadata   TaskKind = "fetch_metadata"
	TaskScanReady       TaskKind = "scan_ready"
	TaskGatherInsight   TaskKind = "gather_insight"
	TaskRunResearch     TaskKind = "run_research"
	TaskSweepOverload   TaskKind = "sweep_overload"
	TaskPurgeExpired    TaskKind = "purge_expired"
)

// Task is one unit of stage work. Fields beyond Kind are set as the
// kind requires: ContentID for per-item stages, ChunkIndex for insight
// tasks, PromptID for research tasks.
type Task struct {
	Kind       TaskKind `json:"kind"`
	ContentID  string   `json:"content_id,omitempty"`
	ChannelID  string   `json:"channel_id,omitempty"`
	ChunkIndex int      `json:"chunk_index,omitempty"`
	PromptID   string   `json:"prompt_id,omitempty"`
	Model      string   `json:"model,omitempty"`
}

// DedupeKey derives a stable identity for the task so that duplicate
// enqueues of the same logical work collapse to one delivery.
func (t Task) DedupeKey() string {
	switch t.Kind {
	case TaskGatherInsight:
		return fmt.Sprintf("%s:%s:%d", t.Kind, t.ContentID, t.ChunkIndex)
	case TaskRunResearch:
		return fmt.Sprintf("%s:%s:%s", t.Kind, t.ContentID, t.PromptID)
	case TaskSweepOverload:
		return fmt.Sprintf("%s:%s", t.Kind, t.Model)
	case TaskDiscoverChannel:
		return fmt.Sprintf("%s:%s", t.Kind, t.ChannelID)
	default:
		return fmt.Sprintf("%s:%s", t.Kind, t.ContentID)
	}
}

// Options tune a single enqueue.
type Options struct {
	// Delay defers the first delivery.
	Delay time.Duration
	// MaxAttempts caps redelivery; zero means the queue default.
	MaxAttempts int
	// Unique makes the enqueue collapse against an in-flight task with
	// the same dedupe key instead of erroring.
	Unique bool
}

// Queue enqueues stage tasks and manages repeating jobs.
type Queue interface {
	Enqueue(ctx context.Context, task Task, opts Options) error
	// RegisterRepeating installs a cron job under key. Registering an
	// existing key is a no-op so startup can re-declare schedules.
	RegisterRepeating(ctx context.Context, key, cronExpr, timezone string, task Task) error
	// RemoveRepeating deletes the job under key, tolerating absence.
	RemoveRepeating(ctx context.Context, key string) error
}

// Handler executes a delivered task. Implemented by the pipeline runner.
type Handler interface {
	Handle(ctx context.Context, task Task) error
}
