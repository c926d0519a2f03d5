package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simargl-labs/content-pipeline/internal/model"
	"github.com/simargl-labs/content-pipeline/internal/quota"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func contentRow(id, sourceID string, status model.ContentStatus) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows([]string{
		"id", "source_id", "channel_id", "title", "description", "status",
		"duration_seconds", "view_count", "published_at", "discovered_at",
		"metadata_ready_at", "insights_queued_at", "insights_gathered_at",
		"chunk_total", "last_error", "updated_at",
	}).AddRow(
		id, sourceID, "chan1", "A talk", "About things", status,
		1200, int64(9001), (*time.Time)(nil), now,
		(*time.Time)(nil), (*time.Time)(nil), (*time.Time)(nil),
		0, "", now,
	)
}

func TestPostgresStore_GetContentItem_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM content_items WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	item, err := s.GetContentItem(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, item)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetContentItem_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM content_items WHERE id = \$1`).
		WithArgs("c1").
		WillReturnRows(contentRow("c1", "vid1", model.StatusMetadataReady))

	item, err := s.GetContentItem(context.Background(), "c1")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "vid1", item.SourceID)
	assert.Equal(t, model.StatusMetadataReady, item.Status)
	assert.Equal(t, 1200, item.DurationSeconds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertContentItem(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO content_items .+ ON CONFLICT \(source_id\) DO NOTHING`).
		WithArgs(pgxmock.AnyArg(), "vid1", "chan1", model.StatusDiscovered, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT .+ FROM content_items WHERE source_id = \$1`).
		WithArgs("vid1").
		WillReturnRows(contentRow("c1", "vid1", model.StatusDiscovered))

	item, err := s.UpsertContentItem(context.Background(), "vid1", "chan1")
	require.NoError(t, err)
	assert.Equal(t, "c1", item.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_TransitionContent_Won(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE content_items SET status = \$1, updated_at = \$2 WHERE id = \$3 AND status = \$4`).
		WithArgs(model.StatusInitializing, pgxmock.AnyArg(), "c1", model.StatusDiscovered).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := s.TransitionContent(context.Background(), "c1", model.StatusDiscovered, model.StatusInitializing, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_TransitionContent_LostRace(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE content_items SET status = \$1`).
		WithArgs(model.StatusInitializing, pgxmock.AnyArg(), "c1", model.StatusDiscovered).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := s.TransitionContent(context.Background(), "c1", model.StatusDiscovered, model.StatusInitializing, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_TransitionContent_WithUpdate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	readyAt := time.Now()
	upd := &model.StatusUpdate{
		Title:           "A talk",
		DurationSeconds: 1200,
		MetadataReadyAt: &readyAt,
	}

	mock.ExpectExec(`UPDATE content_items SET status = \$1, updated_at = \$2, title = \$3, duration_seconds = \$4, metadata_ready_at = \$5 WHERE id = \$6 AND status = \$7`).
		WithArgs(model.StatusMetadataReady, pgxmock.AnyArg(), "A talk", 1200, readyAt, "c1", model.StatusInitializing).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := s.TransitionContent(context.Background(), "c1", model.StatusInitializing, model.StatusMetadataReady, upd)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkContentFailed(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE content_items SET status = \$1, last_error = \$2`).
		WithArgs(model.StatusFailed, "duration missing", pgxmock.AnyArg(), "c1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.MarkContentFailed(context.Background(), "c1", "duration missing")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ResetContent(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE content_items SET status = \$1, insights_queued_at = NULL`).
		WithArgs(model.StatusMetadataReady, pgxmock.AnyArg(), "c1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`DELETE FROM insights WHERE content_id = \$1`).
		WithArgs("c1").
		WillReturnResult(pgxmock.NewResult("DELETE", 4))
	mock.ExpectExec(`DELETE FROM research_results WHERE content_id = \$1`).
		WithArgs("c1").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCommit()

	err := s.ResetContent(context.Background(), "c1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ResetContent_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE content_items SET status = \$1, insights_queued_at = NULL`).
		WithArgs(model.StatusMetadataReady, pgxmock.AnyArg(), "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := s.ResetContent(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_IncrementQuotaWindow(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	expires := time.Now().Add(24 * time.Hour)
	inc := quota.WindowIncrement{
		Model:     "gemini-2.5-flash",
		MinuteKey: "2025-06-15T10:30",
		DayKey:    "2025-06-15",
		Tokens:    512,
		ExpiresAt: expires,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO quota_windows .+ ON CONFLICT \(model, minute_key\) DO UPDATE`).
		WithArgs("gemini-2.5-flash", "2025-06-15T10:30", "2025-06-15", 512, expires).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO quota_days .+ ON CONFLICT \(model, day_key\) DO UPDATE`).
		WithArgs("gemini-2.5-flash", "2025-06-15", expires.Add(24*time.Hour)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.IncrementQuotaWindow(context.Background(), inc)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetQuotaWindow_PartialRows(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT requests, tokens FROM quota_windows`).
		WithArgs("gemini-2.5-flash", "2025-06-15T10:30").
		WillReturnRows(pgxmock.NewRows([]string{"requests", "tokens"}).AddRow(3, 9000))
	mock.ExpectQuery(`SELECT requests FROM quota_days`).
		WithArgs("gemini-2.5-flash", "2025-06-15").
		WillReturnError(pgx.ErrNoRows)

	w, err := s.GetQuotaWindow(context.Background(), "gemini-2.5-flash", "2025-06-15T10:30", "2025-06-15")
	require.NoError(t, err)
	assert.Equal(t, 3, w.RequestsInWindow)
	assert.Equal(t, 9000, w.TokensInWindow)
	assert.Equal(t, 0, w.RequestsToday)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertQuotaViolation_GeneratesID(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now()
	v := &model.QuotaViolation{
		Model:             "gemini-2.5-pro",
		Dimension:         model.DimensionRPD,
		QuotaID:           "GenerateRequestsPerDayPerProjectPerModel-FreeTier",
		Tier:              "FreeTier",
		RetryDelaySeconds: 56,
		Proactive:         false,
		CreatedAt:         now,
		ExpiresAt:         now.Add(7 * 24 * time.Hour),
	}

	mock.ExpectExec(`INSERT INTO quota_violations`).
		WithArgs(pgxmock.AnyArg(), "gemini-2.5-pro", model.DimensionRPD, v.QuotaID, "FreeTier", 56, "", false, now, v.ExpiresAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.InsertQuotaViolation(context.Background(), v)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertInsight(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rec := &model.InsightRecord{
		ContentID:  "c1",
		ChunkIndex: 2,
		StartSec:   600,
		EndSec:     900,
		Model:      "gemini-2.5-flash",
		Text:       "notes",
	}

	mock.ExpectExec(`INSERT INTO insights .+ ON CONFLICT \(content_id, chunk_index\) DO UPDATE`).
		WithArgs(pgxmock.AnyArg(), "c1", 2, 600, 900, "gemini-2.5-flash", "notes", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertInsight(context.Background(), rec)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountInsights(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM insights WHERE content_id = \$1`).
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	n, err := s.CountInsights(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertResearchResult_SupersedesLive(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rec := &model.ResearchResult{
		ContentID:  "c1",
		PromptID:   "summary",
		Model:      "gemini-2.5-pro",
		Structured: []byte(`{"summary":"good"}`),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE research_results SET status = \$1 WHERE content_id = \$2 AND prompt_id = \$3`).
		WithArgs(model.ResearchSuperseded, "c1", "summary").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO research_results`).
		WithArgs(pgxmock.AnyArg(), "c1", "summary", "gemini-2.5-pro", model.ResearchComplete, rec.Structured, "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.UpsertResearchResult(context.Background(), rec)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListQuotaViolations_FilterByModel(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now()
	rows := pgxmock.NewRows([]string{
		"id", "model", "dimension", "quota_id", "tier",
		"retry_delay_seconds", "raw_payload", "proactive", "created_at", "expires_at",
	}).AddRow(
		"v1", "gemini-2.5-pro", model.DimensionRPM, "", "FreeTier",
		18, "", true, now, now.Add(7*24*time.Hour),
	)

	mock.ExpectQuery(`FROM quota_violations WHERE model = \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs("gemini-2.5-pro", 10).
		WillReturnRows(rows)

	out, err := s.ListQuotaViolations(context.Background(), ViolationFilter{Model: "gemini-2.5-pro", Limit: 10})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, model.DimensionRPM, out[0].Dimension)
	assert.True(t, out[0].Proactive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PurgeExpired_SumsTables(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM quota_windows WHERE expires_at`).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`DELETE FROM quota_days WHERE expires_at`).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`DELETE FROM quota_violations WHERE expires_at`).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	n, err := s.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
