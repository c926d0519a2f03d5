// Package model defines the domain types shared across the pipeline.
package model

import "time"

// ContentStatus represents where a content item sits in the pipeline.
type ContentStatus string

const (
	StatusDiscovered       ContentStatus = "discovered"
	StatusInitializing     ContentStatus = "initializing"
	StatusMetadataReady    ContentStatus = "metadata_ready"
	StatusInsightsQueued   ContentStatus = "insights_queued"
	StatusInsightsGathered ContentStatus = "insights_gathered"
	StatusFailed           ContentStatus = "failed"
)

// Terminal reports whether no further forward transition is possible.
func (s ContentStatus) Terminal() bool {
	return s == StatusFailed
}

// ContentItem is a single piece of content moving through the pipeline.
// It is owned exclusively by the stage workers; every status write is a
// compare-and-set against the expected predecessor status.
type ContentItem struct {
	ID          string        `json:"id"`
	SourceID    string        `json:"source_id"` // external video id
	ChannelID   string        `json:"channel_id,omitempty"`
	Title       string        `json:"title,omitempty"`
	Description string        `json:"description,omitempty"`
	Status      ContentStatus `json:"status"`

	DurationSeconds int   `json:"duration_seconds,omitempty"`
	ViewCount       int64 `json:"view_count,omitempty"`

	PublishedAt        *time.Time `json:"published_at,omitempty"`
	DiscoveredAt       time.Time  `json:"discovered_at"`
	MetadataReadyAt    *time.Time `json:"metadata_ready_at,omitempty"`
	InsightsQueuedAt   *time.Time `json:"insights_queued_at,omitempty"`
	InsightsGatheredAt *time.Time `json:"insights_gathered_at,omitempty"`

	// ChunkTotal is the number of insight chunks fanned out by the
	// readiness scan. Zero until the item reaches insights_queued.
	ChunkTotal int `json:"chunk_total,omitempty"`

	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusUpdate carries the stage-specific fields written alongside a
// status transition.
type StatusUpdate struct {
	Title           string
	Description     string
	DurationSeconds int
	ViewCount       int64
	PublishedAt     *time.Time

	MetadataReadyAt    *time.Time
	InsightsQueuedAt   *time.Time
	InsightsGatheredAt *time.Time
	ChunkTotal         int
	LastError          string
}

// Chunk is one fixed-duration window of a content item's timeline.
// Ranges are half-open: [StartSeconds, EndSeconds).
type Chunk struct {
	Index        int `json:"index"`
	StartSeconds int `json:"start_seconds"`
	EndSeconds   int `json:"end_seconds"`
}
