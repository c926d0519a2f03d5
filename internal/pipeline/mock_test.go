package pipeline

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/simargl-labs/content-pipeline/internal/model"
	"github.com/simargl-labs/content-pipeline/internal/quota"
	"github.com/simargl-labs/content-pipeline/internal/schedule"
	"github.com/simargl-labs/content-pipeline/internal/store"
	"github.com/simargl-labs/content-pipeline/pkg/gemini"
	"github.com/simargl-labs/content-pipeline/pkg/youtube"
)

// --- Store mock ---

type mockStore struct {
	mock.Mock
}

var _ store.Store = (*mockStore)(nil)

func (m *mockStore) UpsertContentItem(ctx context.Context, sourceID, channelID string) (*model.ContentItem, error) {
	args := m.Called(ctx, sourceID, channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ContentItem), args.Error(1)
}

func (m *mockStore) GetContentItem(ctx context.Context, id string) (*model.ContentItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ContentItem), args.Error(1)
}

func (m *mockStore) ListContentByStatus(ctx context.Context, status model.ContentStatus, limit int) ([]model.ContentItem, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ContentItem), args.Error(1)
}

func (m *mockStore) TransitionContent(ctx context.Context, id string, from, to model.ContentStatus, upd *model.StatusUpdate) (bool, error) {
	args := m.Called(ctx, id, from, to, upd)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) MarkContentFailed(ctx context.Context, id, lastError string) error {
	args := m.Called(ctx, id, lastError)
	return args.Error(0)
}

func (m *mockStore) ResetContent(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockStore) IncrementQuotaWindow(ctx context.Context, inc quota.WindowIncrement) error {
	args := m.Called(ctx, inc)
	return args.Error(0)
}

func (m *mockStore) GetQuotaWindow(ctx context.Context, modelName, minuteKey, dayKey string) (*model.QuotaWindow, error) {
	args := m.Called(ctx, modelName, minuteKey, dayKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QuotaWindow), args.Error(1)
}

func (m *mockStore) InsertQuotaViolation(ctx context.Context, v *model.QuotaViolation) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *mockStore) ListQuotaViolations(ctx context.Context, filter store.ViolationFilter) ([]model.QuotaViolation, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.QuotaViolation), args.Error(1)
}

func (m *mockStore) UpsertInsight(ctx context.Context, rec *model.InsightRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *mockStore) CountInsights(ctx context.Context, contentID string) (int, error) {
	args := m.Called(ctx, contentID)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) ListInsights(ctx context.Context, contentID string) ([]model.InsightRecord, error) {
	args := m.Called(ctx, contentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.InsightRecord), args.Error(1)
}

func (m *mockStore) UpsertResearchResult(ctx context.Context, rec *model.ResearchResult) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *mockStore) ListResearchResults(ctx context.Context, contentID string) ([]model.ResearchResult, error) {
	args := m.Called(ctx, contentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ResearchResult), args.Error(1)
}

func (m *mockStore) PurgeExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Queue mock ---

type mockQueue struct {
	mock.Mock
}

var _ schedule.Queue = (*mockQueue)(nil)

func (m *mockQueue) Enqueue(ctx context.Context, task schedule.Task, opts schedule.Options) error {
	args := m.Called(ctx, task, opts)
	return args.Error(0)
}

func (m *mockQueue) RegisterRepeating(ctx context.Context, key, cronExpr, timezone string, task schedule.Task) error {
	args := m.Called(ctx, key, cronExpr, timezone, task)
	return args.Error(0)
}

func (m *mockQueue) RemoveRepeating(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// --- YouTube mock ---

type mockYouTube struct {
	mock.Mock
}

var _ youtube.Client = (*mockYouTube)(nil)

func (m *mockYouTube) VideoDetails(ctx context.Context, videoID string) (*youtube.VideoMetadata, error) {
	args := m.Called(ctx, videoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*youtube.VideoMetadata), args.Error(1)
}

func (m *mockYouTube) ChannelUploads(ctx context.Context, channelID string, publishedAfter time.Time, max int) ([]string, error) {
	args := m.Called(ctx, channelID, publishedAfter, max)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// --- Gemini mock ---

type mockGemini struct {
	mock.Mock
}

var _ gemini.Client = (*mockGemini)(nil)

func (m *mockGemini) GenerateContent(ctx context.Context, req gemini.Request) (*gemini.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gemini.Response), args.Error(1)
}

func (m *mockGemini) GenerateContentStream(ctx context.Context, req gemini.Request, fn func(chunk string) error) (*gemini.Response, error) {
	args := m.Called(ctx, req, fn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gemini.Response), args.Error(1)
}
