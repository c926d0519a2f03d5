// Package store defines the persistence interface for the content
// pipeline and its Postgres and SQLite implementations.
package store

import (
	"context"

	"github.com/simargl-labs/content-pipeline/internal/model"
	"github.com/simargl-labs/content-pipeline/internal/quota"
)

// ViolationFilter bounds a violation listing.
type ViolationFilter struct {
	Model string `json:"model,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// Store is the persistence boundary. Status writes are compare-and-set
// against the expected predecessor; quota counter writes are single
// atomic increment-or-create statements, never read-modify-write pairs.
type Store interface {
	// Content items
	UpsertContentItem(ctx context.Context, sourceID, channelID string) (*model.ContentItem, error)
	GetContentItem(ctx context.Context, id string) (*model.ContentItem, error)
	ListContentByStatus(ctx context.Context, status model.ContentStatus, limit int) ([]model.ContentItem, error)
	// TransitionContent applies upd and moves the item from→to only when
	// its current status is exactly from. Returns false when the guard
	// did not match (stale or duplicate delivery).
	TransitionContent(ctx context.Context, id string, from, to model.ContentStatus, upd *model.StatusUpdate) (bool, error)
	MarkContentFailed(ctx context.Context, id, lastError string) error
	// ResetContent returns the item to metadata_ready and purges its
	// insight and research child records.
	ResetContent(ctx context.Context, id string) error

	// Quota counters and audit (see quota.Store)
	IncrementQuotaWindow(ctx context.Context, inc quota.WindowIncrement) error
	GetQuotaWindow(ctx context.Context, modelName, minuteKey, dayKey string) (*model.QuotaWindow, error)
	InsertQuotaViolation(ctx context.Context, v *model.QuotaViolation) error
	ListQuotaViolations(ctx context.Context, filter ViolationFilter) ([]model.QuotaViolation, error)

	// Insights
	UpsertInsight(ctx context.Context, rec *model.InsightRecord) error
	CountInsights(ctx context.Context, contentID string) (int, error)
	ListInsights(ctx context.Context, contentID string) ([]model.InsightRecord, error)

	// Research
	UpsertResearchResult(ctx context.Context, rec *model.ResearchResult) error
	ListResearchResults(ctx context.Context, contentID string) ([]model.ResearchResult, error)

	// PurgeExpired deletes quota windows, day counters and violations
	// whose TTL has passed. Driven by the daily cleanup schedule.
	PurgeExpired(ctx context.Context) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
