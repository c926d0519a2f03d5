package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/simargl-labs/content-pipeline/internal/model"
	"github.com/simargl-labs/content-pipeline/internal/quota"
)

// SQLiteStore implements Store using modernc.org/sqlite, for single-node
// deployments and local development.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS content_items (
	id                   TEXT PRIMARY KEY,
	source_id            TEXT NOT NULL UNIQUE,
	channel_id           TEXT NOT NULL DEFAULT '',
	title                TEXT NOT NULL DEFAULT '',
	description          TEXT NOT NULL DEFAULT '',
	status               TEXT NOT NULL DEFAULT 'discovered',
	duration_seconds     INTEGER NOT NULL DEFAULT 0,
	view_count           INTEGER NOT NULL DEFAULT 0,
	published_at         TIMESTAMP,
	discovered_at        TIMESTAMP NOT NULL,
	metadata_ready_at    TIMESTAMP,
	insights_queued_at   TIMESTAMP,
	insights_gathered_at TIMESTAMP,
	chunk_total          INTEGER NOT NULL DEFAULT 0,
	last_error           TEXT NOT NULL DEFAULT '',
	updated_at           TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_content_items_status ON content_items(status);

CREATE TABLE IF NOT EXISTS quota_windows (
	model      TEXT NOT NULL,
	minute_key TEXT NOT NULL,
	day_key    TEXT NOT NULL,
	requests   INTEGER NOT NULL DEFAULT 0,
	tokens     INTEGER NOT NULL DEFAULT 0,
	expires_at TIMESTAMP NOT NULL,
	PRIMARY KEY (model, minute_key)
);

CREATE TABLE IF NOT EXISTS quota_days (
	model      TEXT NOT NULL,
	day_key    TEXT NOT NULL,
	requests   INTEGER NOT NULL DEFAULT 0,
	expires_at TIMESTAMP NOT NULL,
	PRIMARY KEY (model, day_key)
);

CREATE TABLE IF NOT EXISTS quota_violations (
	id                  TEXT PRIMARY KEY,
	model               TEXT NOT NULL,
	dimension           TEXT NOT NULL,
	quota_id            TEXT NOT NULL DEFAULT '',
	tier                TEXT NOT NULL DEFAULT '',
	retry_delay_seconds INTEGER NOT NULL DEFAULT 0,
	raw_payload         TEXT NOT NULL DEFAULT '',
	proactive           INTEGER NOT NULL DEFAULT 0,
	created_at          TIMESTAMP NOT NULL,
	expires_at          TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_quota_violations_model ON quota_violations(model, created_at DESC);

CREATE TABLE IF NOT EXISTS insights (
	id          TEXT PRIMARY KEY,
	content_id  TEXT NOT NULL REFERENCES content_items(id),
	chunk_index INTEGER NOT NULL,
	start_sec   INTEGER NOT NULL,
	end_sec     INTEGER NOT NULL,
	model       TEXT NOT NULL,
	text        TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	UNIQUE (content_id, chunk_index)
);

CREATE TABLE IF NOT EXISTS research_results (
	id         TEXT PRIMARY KEY,
	content_id TEXT NOT NULL REFERENCES content_items(id),
	prompt_id  TEXT NOT NULL,
	model      TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'complete',
	structured BLOB,
	raw_text   TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_research_results_live
	ON research_results(content_id, prompt_id) WHERE status <> 'superseded';
`

// Migrate applies the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Content items ---

func (s *SQLiteStore) UpsertContentItem(ctx context.Context, sourceID, channelID string) (*model.ContentItem, error) {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO content_items (id, source_id, channel_id, status, discovered_at, updated_at) VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (source_id) DO NOTHING`,
		uuid.NewString(), sourceID, channelID, model.StatusDiscovered, now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert content %s", sourceID)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+contentColumns+` FROM content_items WHERE source_id = ?`, sourceID)
	item, err := scanContentSQLite(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: fetch content by source %s", sourceID)
	}
	return item, nil
}

func (s *SQLiteStore) GetContentItem(ctx context.Context, id string) (*model.ContentItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contentColumns+` FROM content_items WHERE id = ?`, id)
	item, err := scanContentSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get content %s", id)
	}
	return item, nil
}

func (s *SQLiteStore) ListContentByStatus(ctx context.Context, status model.ContentStatus, limit int) ([]model.ContentItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contentColumns+` FROM content_items WHERE status = ? ORDER BY discovered_at ASC LIMIT ?`,
		status, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list content by status %s", status)
	}
	defer rows.Close()

	var items []model.ContentItem
	for rows.Next() {
		item, err := scanContentSQLite(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan content")
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) TransitionContent(ctx context.Context, id string, from, to model.ContentStatus, upd *model.StatusUpdate) (bool, error) {
	set := []string{"status = ?", "updated_at = ?"}
	args := []any{to, time.Now()}

	add := func(col string, val any) {
		set = append(set, col+" = ?")
		args = append(args, val)
	}

	if upd != nil {
		if upd.Title != "" {
			add("title", upd.Title)
		}
		if upd.Description != "" {
			add("description", upd.Description)
		}
		if upd.DurationSeconds > 0 {
			add("duration_seconds", upd.DurationSeconds)
		}
		if upd.ViewCount > 0 {
			add("view_count", upd.ViewCount)
		}
		if upd.PublishedAt != nil {
			add("published_at", *upd.PublishedAt)
		}
		if upd.MetadataReadyAt != nil {
			add("metadata_ready_at", *upd.MetadataReadyAt)
		}
		if upd.InsightsQueuedAt != nil {
			add("insights_queued_at", *upd.InsightsQueuedAt)
		}
		if upd.InsightsGatheredAt != nil {
			add("insights_gathered_at", *upd.InsightsGatheredAt)
		}
		if upd.ChunkTotal > 0 {
			add("chunk_total", upd.ChunkTotal)
		}
		if upd.LastError != "" {
			add("last_error", upd.LastError)
		}
	}

	query := fmt.Sprintf(
		"UPDATE content_items SET %s WHERE id = ? AND status = ?",
		strings.Join(set, ", "),
	)
	args = append(args, id, from)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: transition content %s %s->%s", id, from, to)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) MarkContentFailed(ctx context.Context, id, lastError string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE content_items SET status = ?, last_error = ?, updated_at = ? WHERE id = ? AND status <> ?`,
		model.StatusFailed, lastError, time.Now(), id, model.StatusFailed,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark content %s failed", id)
	}
	return nil
}

func (s *SQLiteStore) ResetContent(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: reset: begin tx")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE content_items SET status = ?, insights_queued_at = NULL, insights_gathered_at = NULL, chunk_total = 0, last_error = '', updated_at = ? WHERE id = ?`,
		model.StatusMetadataReady, time.Now(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: reset content %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("sqlite: reset: content %s not found", id)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM insights WHERE content_id = ?`, id); err != nil {
		return eris.Wrapf(err, "sqlite: reset: purge insights for %s", id)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM research_results WHERE content_id = ?`, id); err != nil {
		return eris.Wrapf(err, "sqlite: reset: purge research for %s", id)
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: reset: commit tx")
	}
	return nil
}

// --- Quota ---

func (s *SQLiteStore) IncrementQuotaWindow(ctx context.Context, inc quota.WindowIncrement) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: quota increment: begin tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO quota_windows (model, minute_key, day_key, requests, tokens, expires_at) VALUES (?, ?, ?, 1, ?, ?) ON CONFLICT (model, minute_key) DO UPDATE SET requests = requests + 1, tokens = tokens + excluded.tokens, expires_at = excluded.expires_at`,
		inc.Model, inc.MinuteKey, inc.DayKey, inc.Tokens, inc.ExpiresAt,
	); err != nil {
		return eris.Wrapf(err, "sqlite: increment quota window %s/%s", inc.Model, inc.MinuteKey)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO quota_days (model, day_key, requests, expires_at) VALUES (?, ?, 1, ?) ON CONFLICT (model, day_key) DO UPDATE SET requests = requests + 1, expires_at = excluded.expires_at`,
		inc.Model, inc.DayKey, inc.ExpiresAt.Add(24*time.Hour),
	); err != nil {
		return eris.Wrapf(err, "sqlite: increment quota day %s/%s", inc.Model, inc.DayKey)
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: quota increment: commit tx")
	}
	return nil
}

func (s *SQLiteStore) GetQuotaWindow(ctx context.Context, modelName, minuteKey, dayKey string) (*model.QuotaWindow, error) {
	w := &model.QuotaWindow{Model: modelName, MinuteKey: minuteKey, DayKey: dayKey}

	err := s.db.QueryRowContext(ctx,
		`SELECT requests, tokens FROM quota_windows WHERE model = ? AND minute_key = ?`,
		modelName, minuteKey,
	).Scan(&w.RequestsInWindow, &w.TokensInWindow)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(err, "sqlite: get quota window %s/%s", modelName, minuteKey)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT requests FROM quota_days WHERE model = ? AND day_key = ?`,
		modelName, dayKey,
	).Scan(&w.RequestsToday)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(err, "sqlite: get quota day %s/%s", modelName, dayKey)
	}

	return w, nil
}

func (s *SQLiteStore) InsertQuotaViolation(ctx context.Context, v *model.QuotaViolation) error {
	id := v.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quota_violations (id, model, dimension, quota_id, tier, retry_delay_seconds, raw_payload, proactive, created_at, expires_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, v.Model, v.Dimension, v.QuotaID, v.Tier, v.RetryDelaySeconds, v.RawPayload, v.Proactive, v.CreatedAt, v.ExpiresAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert quota violation for %s", v.Model)
	}
	return nil
}

func (s *SQLiteStore) ListQuotaViolations(ctx context.Context, filter ViolationFilter) ([]model.QuotaViolation, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, model, dimension, quota_id, tier, retry_delay_seconds, raw_payload, proactive, created_at, expires_at FROM quota_violations`
	args := []any{}
	if filter.Model != "" {
		query += ` WHERE model = ?`
		args = append(args, filter.Model)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list quota violations")
	}
	defer rows.Close()

	var out []model.QuotaViolation
	for rows.Next() {
		var v model.QuotaViolation
		if err := rows.Scan(&v.ID, &v.Model, &v.Dimension, &v.QuotaID, &v.Tier, &v.RetryDelaySeconds, &v.RawPayload, &v.Proactive, &v.CreatedAt, &v.ExpiresAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan quota violation")
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// --- Insights ---

func (s *SQLiteStore) UpsertInsight(ctx context.Context, rec *model.InsightRecord) error {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO insights (id, content_id, chunk_index, start_sec, end_sec, model, text, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (content_id, chunk_index) DO UPDATE SET model = excluded.model, text = excluded.text, created_at = excluded.created_at`,
		id, rec.ContentID, rec.ChunkIndex, rec.StartSec, rec.EndSec, rec.Model, rec.Text, createdAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert insight %s/%d", rec.ContentID, rec.ChunkIndex)
	}
	return nil
}

func (s *SQLiteStore) CountInsights(ctx context.Context, contentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM insights WHERE content_id = ?`, contentID,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: count insights for %s", contentID)
	}
	return n, nil
}

func (s *SQLiteStore) ListInsights(ctx context.Context, contentID string) ([]model.InsightRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content_id, chunk_index, start_sec, end_sec, model, text, created_at FROM insights WHERE content_id = ? ORDER BY chunk_index ASC`,
		contentID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list insights for %s", contentID)
	}
	defer rows.Close()

	var out []model.InsightRecord
	for rows.Next() {
		var rec model.InsightRecord
		if err := rows.Scan(&rec.ID, &rec.ContentID, &rec.ChunkIndex, &rec.StartSec, &rec.EndSec, &rec.Model, &rec.Text, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan insight")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// --- Research ---

func (s *SQLiteStore) UpsertResearchResult(ctx context.Context, rec *model.ResearchResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: research upsert: begin tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE research_results SET status = ? WHERE content_id = ? AND prompt_id = ? AND status <> ?`,
		model.ResearchSuperseded, rec.ContentID, rec.PromptID, model.ResearchSuperseded,
	); err != nil {
		return eris.Wrapf(err, "sqlite: supersede research %s/%s", rec.ContentID, rec.PromptID)
	}

	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO research_results (id, content_id, prompt_id, model, status, structured, raw_text, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.ContentID, rec.PromptID, rec.Model, model.ResearchComplete, rec.Structured, rec.RawText, createdAt,
	); err != nil {
		return eris.Wrapf(err, "sqlite: insert research %s/%s", rec.ContentID, rec.PromptID)
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: research upsert: commit tx")
	}
	return nil
}

func (s *SQLiteStore) ListResearchResults(ctx context.Context, contentID string) ([]model.ResearchResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content_id, prompt_id, model, status, structured, raw_text, created_at FROM research_results WHERE content_id = ? ORDER BY created_at DESC`,
		contentID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list research for %s", contentID)
	}
	defer rows.Close()

	var out []model.ResearchResult
	for rows.Next() {
		var rec model.ResearchResult
		if err := rows.Scan(&rec.ID, &rec.ContentID, &rec.PromptID, &rec.Model, &rec.Status, &rec.Structured, &rec.RawText, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan research result")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// --- Housekeeping ---

func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	var total int64
	now := time.Now()
	for _, table := range []string{"quota_windows", "quota_days", "quota_violations"} {
		res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE expires_at <= ?`, now)
		if err != nil {
			return total, eris.Wrapf(err, "sqlite: purge expired %s", table)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// --- scanning ---

func scanContentSQLite(row rowScanner) (*model.ContentItem, error) {
	var item model.ContentItem
	var published, metadataReady, insightsQueued, insightsGathered sql.NullTime
	err := row.Scan(
		&item.ID, &item.SourceID, &item.ChannelID, &item.Title, &item.Description,
		&item.Status, &item.DurationSeconds, &item.ViewCount, &published,
		&item.DiscoveredAt, &metadataReady, &insightsQueued,
		&insightsGathered, &item.ChunkTotal, &item.LastError, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if published.Valid {
		item.PublishedAt = &published.Time
	}
	if metadataReady.Valid {
		item.MetadataReadyAt = &metadataReady.Time
	}
	if insightsQueued.Valid {
		item.InsightsQueuedAt = &insightsQueued.Time
	}
	if insightsGathered.Valid {
		item.InsightsGatheredAt = &insightsGathered.Time
	}
	return &item, nil
}
