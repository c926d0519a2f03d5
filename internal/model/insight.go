package model

import "time"

// InsightRecord is the model output for one chunk of a content item.
// At most one row exists per (content, chunk index); duplicate stage
// deliveries overwrite rather than append.
type InsightRecord struct {
	ID         string    `json:"id"`
	ContentID  string    `json:"content_id"`
	ChunkIndex int       `json:"chunk_index"`
	StartSec   int       `json:"start_sec"`
	EndSec     int       `json:"end_sec"`
	Model      string    `json:"model"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

// ResearchStatus tracks per-prompt research progress. Research is tracked
// per (content, prompt), not as a content-level status.
type ResearchStatus string

const (
	ResearchComplete   ResearchStatus = "complete"
	ResearchSuperseded ResearchStatus = "superseded"
)

// ResearchResult is the output of running one research prompt over a
// content item's gathered insights. The store enforces at most one
// non-superseded row per (content, prompt).
type ResearchResult struct {
	ID         string         `json:"id"`
	ContentID  string         `json:"content_id"`
	PromptID   string         `json:"prompt_id"`
	Model      string         `json:"model"`
	Status     ResearchStatus `json:"status"`
	Structured []byte         `json:"structured,omitempty"` // JSON when schema parsing succeeded
	RawText    string         `json:"raw_text,omitempty"`   // fallback when it did not
	CreatedAt  time.Time      `json:"created_at"`
}
