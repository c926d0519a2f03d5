package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/simargl-labs/content-pipeline/internal/db"
	"github.com/simargl-labs/content-pipeline/internal/model"
	"github.com/simargl-labs/content-pipeline/internal/quota"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the hot paths: admission reads and usage increments run once per
// provider call.
var preparedStatements = map[string]string{
	"get_quota_window": `SELECT requests, tokens FROM quota_windows WHERE model = $1 AND minute_key = $2`,
	"get_quota_day":    `SELECT requests FROM quota_days WHERE model = $1 AND day_key = $2`,
	"inc_quota_window": `INSERT INTO quota_windows (model, minute_key, day_key, requests, tokens, expires_at) VALUES ($1, $2, $3, 1, $4, $5) ON CONFLICT (model, minute_key) DO UPDATE SET requests = quota_windows.requests + 1, tokens = quota_windows.tokens + EXCLUDED.tokens, expires_at = EXCLUDED.expires_at`,
	"inc_quota_day":    `INSERT INTO quota_days (model, day_key, requests, expires_at) VALUES ($1, $2, 1, $3) ON CONFLICT (model, day_key) DO UPDATE SET requests = quota_days.requests + 1, expires_at = EXCLUDED.expires_at`,
	"get_content":      `SELECT id, source_id, channel_id, title, description, status, duration_seconds, view_count, published_at, discovered_at, metadata_ready_at, insights_queued_at, insights_gathered_at, chunk_total, last_error, updated_at FROM content_items WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS content_items (
	id                   TEXT PRIMARY KEY,
	source_id            TEXT NOT NULL UNIQUE,
	channel_id           TEXT NOT NULL DEFAULT '',
	title                TEXT NOT NULL DEFAULT '',
	description          TEXT NOT NULL DEFAULT '',
	status               TEXT NOT NULL DEFAULT 'discovered',
	duration_seconds     INT NOT NULL DEFAULT 0,
	view_count           BIGINT NOT NULL DEFAULT 0,
	published_at         TIMESTAMPTZ,
	discovered_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	metadata_ready_at    TIMESTAMPTZ,
	insights_queued_at   TIMESTAMPTZ,
	insights_gathered_at TIMESTAMPTZ,
	chunk_total          INT NOT NULL DEFAULT 0,
	last_error           TEXT NOT NULL DEFAULT '',
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_content_items_status ON content_items(status);
CREATE INDEX IF NOT EXISTS idx_content_items_channel ON content_items(channel_id);

CREATE TABLE IF NOT EXISTS quota_windows (
	model      TEXT NOT NULL,
	minute_key TEXT NOT NULL,
	day_key    TEXT NOT NULL,
	requests   INT NOT NULL DEFAULT 0,
	tokens     INT NOT NULL DEFAULT 0,
	expires_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (model, minute_key)
);

CREATE INDEX IF NOT EXISTS idx_quota_windows_expires ON quota_windows(expires_at);

CREATE TABLE IF NOT EXISTS quota_days (
	model      TEXT NOT NULL,
	day_key    TEXT NOT NULL,
	requests   INT NOT NULL DEFAULT 0,
	expires_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (model, day_key)
);

CREATE INDEX IF NOT EXISTS idx_quota_days_expires ON quota_days(expires_at);

CREATE TABLE IF NOT EXISTS quota_violations (
	id                  TEXT PRIMARY KEY,
	model               TEXT NOT NULL,
	dimension           TEXT NOT NULL,
	quota_id            TEXT NOT NULL DEFAULT '',
	tier                TEXT NOT NULL DEFAULT '',
	retry_delay_seconds INT NOT NULL DEFAULT 0,
	raw_payload         TEXT NOT NULL DEFAULT '',
	proactive           BOOLEAN NOT NULL DEFAULT FALSE,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at          TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_quota_violations_model ON quota_violations(model, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_quota_violations_expires ON quota_violations(expires_at);

CREATE TABLE IF NOT EXISTS insights (
	id          TEXT PRIMARY KEY,
	content_id  TEXT NOT NULL REFERENCES content_items(id),
	chunk_index INT NOT NULL,
	start_sec   INT NOT NULL,
	end_sec     INT NOT NULL,
	model       TEXT NOT NULL,
	text        TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (content_id, chunk_index)
);

CREATE TABLE IF NOT EXISTS research_results (
	id         TEXT PRIMARY KEY,
	content_id TEXT NOT NULL REFERENCES content_items(id),
	prompt_id  TEXT NOT NULL,
	model      TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'complete',
	structured JSONB,
	raw_text   TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_research_results_live
	ON research_results(content_id, prompt_id) WHERE status <> 'superseded';
`

// Migrate applies the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Content items ---

const contentColumns = `id, source_id, channel_id, title, description, status, duration_seconds, view_count, published_at, discovered_at, metadata_ready_at, insights_queued_at, insights_gathered_at, chunk_total, last_error, updated_at`

func (s *PostgresStore) UpsertContentItem(ctx context.Context, sourceID, channelID string) (*model.ContentItem, error) {
	now := time.Now()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO content_items (id, source_id, channel_id, status, discovered_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (source_id) DO NOTHING`,
		uuid.NewString(), sourceID, channelID, model.StatusDiscovered, now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert content %s", sourceID)
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+contentColumns+` FROM content_items WHERE source_id = $1`, sourceID)
	item, err := scanContent(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: fetch content by source %s", sourceID)
	}
	return item, nil
}

func (s *PostgresStore) GetContentItem(ctx context.Context, id string) (*model.ContentItem, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+contentColumns+` FROM content_items WHERE id = $1`, id)
	item, err := scanContent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get content %s", id)
	}
	return item, nil
}

func (s *PostgresStore) ListContentByStatus(ctx context.Context, status model.ContentStatus, limit int) ([]model.ContentItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+contentColumns+` FROM content_items WHERE status = $1 ORDER BY discovered_at ASC LIMIT $2`,
		status, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list content by status %s", status)
	}
	defer rows.Close()

	var items []model.ContentItem
	for rows.Next() {
		item, err := scanContent(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan content")
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) TransitionContent(ctx context.Context, id string, from, to model.ContentStatus, upd *model.StatusUpdate) (bool, error) {
	set := []string{"status = $1", "updated_at = $2"}
	args := []any{to, time.Now()}
	next := 3

	add := func(col string, val any) {
		set = append(set, fmt.Sprintf("%s = $%d", col, next))
		args = append(args, val)
		next++
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
		"UPDATE content_items SET %s WHERE id = $%d AND status = $%d",
		strings.Join(set, ", "), next, next+1,
	)
	args = append(args, id, from)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: transition content %s %s->%s", id, from, to)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) MarkContentFailed(ctx context.Context, id, lastError string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE content_items SET status = $1, last_error = $2, updated_at = $3 WHERE id = $4 AND status <> $1`,
		model.StatusFailed, lastError, time.Now(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark content %s failed", id)
	}
	return nil
}

func (s *PostgresStore) ResetContent(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: reset: begin tx")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE content_items SET status = $1, insights_queued_at = NULL, insights_gathered_at = NULL, chunk_total = 0, last_error = '', updated_at = $2 WHERE id = $3`,
		model.StatusMetadataReady, time.Now(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: reset content %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: reset: content %s not found", id)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM insights WHERE content_id = $1`, id); err != nil {
		return eris.Wrapf(err, "postgres: reset: purge insights for %s", id)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM research_results WHERE content_id = $1`, id); err != nil {
		return eris.Wrapf(err, "postgres: reset: purge research for %s", id)
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: reset: commit tx")
	}
	return nil
}

// --- Quota ---

// IncrementQuotaWindow performs the atomic increment-or-create on the
// minute row and the parallel day-counter increment in one transaction.
// Both statements are single upserts so concurrent recorders for the same
// model and minute cannot lose updates.
func (s *PostgresStore) IncrementQuotaWindow(ctx context.Context, inc quota.WindowIncrement) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: quota increment: begin tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO quota_windows (model, minute_key, day_key, requests, tokens, expires_at) VALUES ($1, $2, $3, 1, $4, $5) ON CONFLICT (model, minute_key) DO UPDATE SET requests = quota_windows.requests + 1, tokens = quota_windows.tokens + EXCLUDED.tokens, expires_at = EXCLUDED.expires_at`,
		inc.Model, inc.MinuteKey, inc.DayKey, inc.Tokens, inc.ExpiresAt,
	); err != nil {
		return eris.Wrapf(err, "postgres: increment quota window %s/%s", inc.Model, inc.MinuteKey)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO quota_days (model, day_key, requests, expires_at) VALUES ($1, $2, 1, $3) ON CONFLICT (model, day_key) DO UPDATE SET requests = quota_days.requests + 1, expires_at = EXCLUDED.expires_at`,
		inc.Model, inc.DayKey, inc.ExpiresAt.Add(24*time.Hour),
	); err != nil {
		return eris.Wrapf(err, "postgres: increment quota day %s/%s", inc.Model, inc.DayKey)
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: quota increment: commit tx")
	}
	return nil
}

func (s *PostgresStore) GetQuotaWindow(ctx context.Context, modelName, minuteKey, dayKey string) (*model.QuotaWindow, error) {
	w := &model.QuotaWindow{Model: modelName, MinuteKey: minuteKey, DayKey: dayKey}

	err := s.pool.QueryRow(ctx,
		`SELECT requests, tokens FROM quota_windows WHERE model = $1 AND minute_key = $2`,
		modelName, minuteKey,
	).Scan(&w.RequestsInWindow, &w.TokensInWindow)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(err, "postgres: get quota window %s/%s", modelName, minuteKey)
	}

	err = s.pool.QueryRow(ctx,
		`SELECT requests FROM quota_days WHERE model = $1 AND day_key = $2`,
		modelName, dayKey,
	).Scan(&w.RequestsToday)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(err, "postgres: get quota day %s/%s", modelName, dayKey)
	}

	return w, nil
}

func (s *PostgresStore) InsertQuotaViolation(ctx context.Context, v *model.QuotaViolation) error {
	id := v.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO quota_violations (id, model, dimension, quota_id, tier, retry_delay_seconds, raw_payload, proactive, created_at, expires_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, v.Model, v.Dimension, v.QuotaID, v.Tier, v.RetryDelaySeconds, v.RawPayload, v.Proactive, v.CreatedAt, v.ExpiresAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert quota violation for %s", v.Model)
	}
	return nil
}

func (s *PostgresStore) ListQuotaViolations(ctx context.Context, filter ViolationFilter) ([]model.QuotaViolation, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, model, dimension, quota_id, tier, retry_delay_seconds, raw_payload, proactive, created_at, expires_at FROM quota_violations`
	args := []any{}
	if filter.Model != "" {
		query += ` WHERE model = $1 ORDER BY created_at DESC LIMIT $2`
		args = append(args, filter.Model, limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list quota violations")
	}
	defer rows.Close()

	var out []model.QuotaViolation
	for rows.Next() {
		var v model.QuotaViolation
		if err := rows.Scan(&v.ID, &v.Model, &v.Dimension, &v.QuotaID, &v.Tier, &v.RetryDelaySeconds, &v.RawPayload, &v.Proactive, &v.CreatedAt, &v.ExpiresAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan quota violation")
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// --- Insights ---

func (s *PostgresStore) UpsertInsight(ctx context.Context, rec *model.InsightRecord) error {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO insights (id, content_id, chunk_index, start_sec, end_sec, model, text, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (content_id, chunk_index) DO UPDATE SET model = EXCLUDED.model, text = EXCLUDED.text, created_at = EXCLUDED.created_at`,
		id, rec.ContentID, rec.ChunkIndex, rec.StartSec, rec.EndSec, rec.Model, rec.Text, createdAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert insight %s/%d", rec.ContentID, rec.ChunkIndex)
	}
	return nil
}

func (s *PostgresStore) CountInsights(ctx context.Context, contentID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM insights WHERE content_id = $1`, contentID,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: count insights for %s", contentID)
	}
	return n, nil
}

func (s *PostgresStore) ListInsights(ctx context.Context, contentID string) ([]model.InsightRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, content_id, chunk_index, start_sec, end_sec, model, text, created_at FROM insights WHERE content_id = $1 ORDER BY chunk_index ASC`,
		contentID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list insights for %s", contentID)
	}
	defer rows.Close()

	var out []model.InsightRecord
	for rows.Next() {
		var rec model.InsightRecord
		if err := rows.Scan(&rec.ID, &rec.ContentID, &rec.ChunkIndex, &rec.StartSec, &rec.EndSec, &rec.Model, &rec.Text, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan insight")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// --- Research ---

// UpsertResearchResult supersedes any live result for (content, prompt)
// then inserts the new row, keeping at most one non-superseded result per
// pair. The partial unique index backs this invariant.
func (s *PostgresStore) UpsertResearchResult(ctx context.Context, rec *model.ResearchResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: research upsert: begin tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE research_results SET status = $1 WHERE content_id = $2 AND prompt_id = $3 AND status <> $1`,
		model.ResearchSuperseded, rec.ContentID, rec.PromptID,
	); err != nil {
		return eris.Wrapf(err, "postgres: supersede research %s/%s", rec.ContentID, rec.PromptID)
	}

	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO research_results (id, content_id, prompt_id, model, status, structured, raw_text, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, rec.ContentID, rec.PromptID, rec.Model, model.ResearchComplete, rec.Structured, rec.RawText, createdAt,
	); err != nil {
		return eris.Wrapf(err, "postgres: insert research %s/%s", rec.ContentID, rec.PromptID)
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: research upsert: commit tx")
	}
	return nil
}

func (s *PostgresStore) ListResearchResults(ctx context.Context, contentID string) ([]model.ResearchResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, content_id, prompt_id, model, status, structured, raw_text, created_at FROM research_results WHERE content_id = $1 ORDER BY created_at DESC`,
		contentID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list research for %s", contentID)
	}
	defer rows.Close()

	var out []model.ResearchResult
	for rows.Next() {
		var rec model.ResearchResult
		if err := rows.Scan(&rec.ID, &rec.ContentID, &rec.PromptID, &rec.Model, &rec.Status, &rec.Structured, &rec.RawText, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan research result")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// --- Housekeeping ---

func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	var total int64
	for _, table := range []string{"quota_windows", "quota_days", "quota_violations"} {
		tag, err := s.pool.Exec(ctx, `DELETE FROM `+table+` WHERE expires_at <= now()`)
		if err != nil {
			return total, eris.Wrapf(err, "postgres: purge expired %s", table)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

// --- scanning ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContent(row rowScanner) (*model.ContentItem, error) {
	var item model.ContentItem
	err := row.Scan(
		&item.ID, &item.SourceID, &item.ChannelID, &item.Title, &item.Description,
		&item.Status, &item.DurationSeconds, &item.ViewCount, &item.PublishedAt,
		&item.DiscoveredAt, &item.MetadataReadyAt, &item.InsightsQueuedAt,
		&item.InsightsGatheredAt, &item.ChunkTotal, &item.LastError, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
