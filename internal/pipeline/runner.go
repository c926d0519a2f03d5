package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/simargl-labs/content-pipeline/internal/cost"
	"github.com/simargl-labs/content-pipeline/internal/model"
	"github.com/simargl-labs/content-pipeline/internal/overload"
	"github.com/simargl-labs/content-pipeline/internal/quota"
	"github.com/simargl-labs/content-pipeline/internal/resilience"
	"github.com/simargl-labs/content-pipeline/internal/schedule"
	"github.com/simargl-labs/content-pipeline/internal/selector"
	"github.com/simargl-labs/content-pipeline/internal/store"
	"github.com/simargl-labs/content-pipeline/pkg/gemini"
	"github.com/simargl-labs/content-pipeline/pkg/youtube"
)

// Config tunes the stage workers.
type Config struct {
	// ChunkSeconds is the fixed insight window length.
	ChunkSeconds int `yaml:"chunk_seconds" mapstructure:"chunk_seconds"`
	// ScanPageSize bounds each readiness scan pass.
	ScanPageSize int `yaml:"scan_page_size" mapstructure:"scan_page_size"`
	// DiscoveryLookback bounds channel discovery to recent uploads.
	DiscoveryLookback time.Duration `yaml:"discovery_lookback" mapstructure:"discovery_lookback"`
	// DiscoveryMax caps uploads listed per channel poll.
	DiscoveryMax int `yaml:"discovery_max" mapstructure:"discovery_max"`

	InsightPrompt   string           `yaml:"insight_prompt" mapstructure:"insight_prompt"`
	ResearchPrompts []ResearchPrompt `yaml:"research_prompts" mapstructure:"research_prompts"`
}

// DefaultConfig returns the stage worker defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSeconds:      300,
		ScanPageSize:      50,
		DiscoveryLookback: 30 * 24 * time.Hour,
		DiscoveryMax:      25,
		InsightPrompt:     DefaultInsightPrompt,
		ResearchPrompts:   DefaultResearchPrompts(),
	}
}

// Runner executes stage tasks delivered by the work queue. One Runner
// serves all stages; it holds no per-item state.
type Runner struct {
	store     store.Store
	queue     schedule.Queue
	videos    youtube.Client
	generator gemini.Client
	selector  *selector.Selector
	ledger    *quota.Ledger
	tracker   *overload.Tracker
	estimator *cost.Estimator
	cfg       Config
}

// NewRunner wires the stage workers.
func NewRunner(
	st store.Store,
	queue schedule.Queue,
	videos youtube.Client,
	generator gemini.Client,
	sel *selector.Selector,
	ledger *quota.Ledger,
	tracker *overload.Tracker,
	estimator *cost.Estimator,
	cfg Config,
) *Runner {
	if cfg.ChunkSeconds <= 0 {
		cfg.ChunkSeconds = 300
	}
	if cfg.ScanPageSize <= 0 {
		cfg.ScanPageSize = 50
	}
	if cfg.InsightPrompt == "" {
		cfg.InsightPrompt = DefaultInsightPrompt
	}
	if len(cfg.ResearchPrompts) == 0 {
		cfg.ResearchPrompts = DefaultResearchPrompts()
	}
	return &Runner{
		store:     st,
		queue:     queue,
		videos:    videos,
		generator: generator,
		selector:  sel,
		ledger:    ledger,
		tracker:   tracker,
		estimator: estimator,
		cfg:       cfg,
	}
}

// Handle dispatches one delivered task to its stage worker. Implements
// schedule.Handler.
func (r *Runner) Handle(ctx context.Context, task schedule.Task) error {
	switch task.Kind {
	case schedule.TaskDiscoverChannel:
		return r.discoverChannel(ctx, task.ChannelID)
	case schedule.TaskFetchMetadata:
		return r.fetchMetadata(ctx, task.ContentID)
	case schedule.TaskScanReady:
		return r.scanReady(ctx)
	case schedule.TaskGatherInsight:
		return r.gatherInsight(ctx, task.ContentID, task.ChunkIndex)
	case schedule.TaskRunResearch:
		return r.runResearch(ctx, task.ContentID, task.PromptID)
	case schedule.TaskSweepOverload:
		r.tracker.Sweep(task.Model)
		return nil
	case schedule.TaskPurgeExpired:
		return r.purgeExpired(ctx)
	default:
		return eris.Errorf("pipeline: unknown task kind %q", task.Kind)
	}
}

// Discover registers a single content item and queues its metadata
// fetch. Idempotent by source id: re-discovery of a known item is a
// no-op past the upsert.
func (r *Runner) Discover(ctx context.Context, sourceID, channelID string) (*model.ContentItem, error) {
	if sourceID == "" {
		return nil, eris.New("pipeline: source id is required")
	}

	item, err := r.store.UpsertContentItem(ctx, sourceID, channelID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: discover %s", sourceID)
	}

	if item.Status == model.StatusDiscovered {
		task := schedule.Task{Kind: schedule.TaskFetchMetadata, ContentID: item.ID}
		if err := r.queue.Enqueue(ctx, task, schedule.Options{Unique: true}); err != nil {
			return nil, eris.Wrapf(err, "pipeline: enqueue metadata for %s", item.ID)
		}
	}

	zap.L().Info("content item discovered",
		zap.String("content_id", item.ID),
		zap.String("source_id", sourceID),
		zap.String("status", string(item.Status)),
	)
	return item, nil
}

// discoverChannel lists a channel's recent uploads and discovers each.
func (r *Runner) discoverChannel(ctx context.Context, channelID string) error {
	if channelID == "" {
		return eris.New("pipeline: channel id is required")
	}

	cutoff := time.Time{}
	if r.cfg.DiscoveryLookback > 0 {
		cutoff = time.Now().Add(-r.cfg.DiscoveryLookback)
	}

	ids, err := r.videos.ChannelUploads(ctx, channelID, cutoff, r.cfg.DiscoveryMax)
	if err != nil {
		return eris.Wrapf(err, "pipeline: list uploads for channel %s", channelID)
	}

	for _, sourceID := range ids {
		if _, err := r.Discover(ctx, sourceID, channelID); err != nil {
			return err
		}
	}

	zap.L().Info("channel poll complete",
		zap.String("channel_id", channelID),
		zap.Int("uploads", len(ids)),
	)
	return nil
}

// fetchMetadata runs the metadata stage: claim the item, fetch provider
// metadata, publish metadata_ready. A transient failure releases the
// claim so the redelivery finds the item back at discovered.
func (r *Runner) fetchMetadata(ctx context.Context, contentID string) error {
	item, err := r.store.GetContentItem(ctx, contentID)
	if err != nil {
		return eris.Wrapf(err, "pipeline: metadata: get %s", contentID)
	}
	if item == nil {
		return r.failValidation(ctx, "", resilience.NewValidationError(
			eris.Errorf("pipeline: metadata: item %s not found", contentID)))
	}
	if item.Status != model.StatusDiscovered && item.Status != model.StatusInitializing {
		zap.L().Debug("metadata task is stale, skipping",
			zap.String("content_id", contentID),
			zap.String("status", string(item.Status)),
		)
		return nil
	}

	// Claim. A lost race means another delivery owns the item.
	if item.Status == model.StatusDiscovered {
		claimed, err := r.store.TransitionContent(ctx, contentID, model.StatusDiscovered, model.StatusInitializing, nil)
		if err != nil {
			return eris.Wrapf(err, "pipeline: metadata: claim %s", contentID)
		}
		if !claimed {
			return nil
		}
	}

	meta, err := r.videos.VideoDetails(ctx, item.SourceID)
	if err != nil {
		if eris.Is(err, youtube.ErrNotFound) {
			return r.failValidation(ctx, contentID, resilience.NewValidationError(err))
		}
		// Release the claim before surfacing the retryable error.
		if _, revertErr := r.store.TransitionContent(ctx, contentID, model.StatusInitializing, model.StatusDiscovered, nil); revertErr != nil {
			zap.L().Error("failed to release metadata claim",
				zap.String("content_id", contentID),
				zap.Error(revertErr),
			)
		}
		return eris.Wrapf(err, "pipeline: metadata: fetch %s", item.SourceID)
	}

	now := time.Now()
	upd := &model.StatusUpdate{
		Title:           meta.Title,
		Description:     meta.Description,
		DurationSeconds: meta.DurationSeconds,
		ViewCount:       meta.ViewCount,
		PublishedAt:     meta.PublishedAt,
		MetadataReadyAt: &now,
	}
	ok, err := r.store.TransitionContent(ctx, contentID, model.StatusInitializing, model.StatusMetadataReady, upd)
	if err != nil {
		return eris.Wrapf(err, "pipeline: metadata: publish %s", contentID)
	}
	if !ok {
		zap.L().Debug("metadata publish lost its claim, skipping",
			zap.String("content_id", contentID))
		return nil
	}

	zap.L().Info("metadata ready",
		zap.String("content_id", contentID),
		zap.String("source_id", item.SourceID),
		zap.Int("duration_seconds", meta.DurationSeconds),
	)
	return nil
}

// scanReady pages items at metadata_ready, fans out one insight task per
// chunk, and advances each item to insights_queued.
func (r *Runner) scanReady(ctx context.Context) error {
	items, err := r.store.ListContentByStatus(ctx, model.StatusMetadataReady, r.cfg.ScanPageSize)
	if err != nil {
		return eris.Wrap(err, "pipeline: scan: list metadata_ready")
	}

	for _, item := range items {
		if err := r.queueInsights(ctx, item); err != nil {
			return err
		}
	}
	if len(items) > 0 {
		zap.L().Info("readiness scan pass complete", zap.Int("items", len(items)))
	}
	return nil
}

func (r *Runner) queueInsights(ctx context.Context, item model.ContentItem) error {
	chunks := PlanChunks(item.DurationSeconds, r.cfg.ChunkSeconds)
	if len(chunks) == 0 {
		return r.failValidation(ctx, item.ID, resilience.NewValidationError(
			eris.Errorf("pipeline: scan: item %s has no usable duration (%ds)", item.ID, item.DurationSeconds)))
	}

	// Tasks first, then the status write. A delivery that outruns the
	// write retries against the not-yet-advanced status; duplicates of
	// the enqueue itself collapse on the dedupe key.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, chunk := range chunks {
		g.Go(func() error {
			task := schedule.Task{
				Kind:       schedule.TaskGatherInsight,
				ContentID:  item.ID,
				ChunkIndex: chunk.Index,
			}
			return r.queue.Enqueue(gctx, task, schedule.Options{Unique: true})
		})
	}
	if err := g.Wait(); err != nil {
		return eris.Wrapf(err, "pipeline: scan: fan out insights for %s", item.ID)
	}

	now := time.Now()
	upd := &model.StatusUpdate{InsightsQueuedAt: &now, ChunkTotal: len(chunks)}
	ok, err := r.store.TransitionContent(ctx, item.ID, model.StatusMetadataReady, model.StatusInsightsQueued, upd)
	if err != nil {
		return eris.Wrapf(err, "pipeline: scan: advance %s", item.ID)
	}
	if !ok {
		zap.L().Debug("scan lost the advance race, skipping",
			zap.String("content_id", item.ID))
		return nil
	}

	zap.L().Info("insights queued",
		zap.String("content_id", item.ID),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

// gatherInsight runs one chunk through the model and stores the insight.
// When the last chunk lands the item advances and research fans out.
func (r *Runner) gatherInsight(ctx context.Context, contentID string, chunkIndex int) error {
	item, err := r.store.GetContentItem(ctx, contentID)
	if err != nil {
		return eris.Wrapf(err, "pipeline: insight: get %s", contentID)
	}
	if item == nil {
		return r.failValidation(ctx, "", resilience.NewValidationError(
			eris.Errorf("pipeline: insight: item %s not found", contentID)))
	}
	switch item.Status {
	case model.StatusInsightsQueued:
	case model.StatusMetadataReady:
		// The scan's status write has not landed yet; retry later.
		return eris.Errorf("pipeline: insight: item %s not yet queued", contentID)
	default:
		zap.L().Debug("insight task is stale, skipping",
			zap.String("content_id", contentID),
			zap.String("status", string(item.Status)),
		)
		return nil
	}

	chunks := PlanChunks(item.DurationSeconds, r.cfg.ChunkSeconds)
	if chunkIndex < 0 || chunkIndex >= len(chunks) {
		return r.failValidation(ctx, contentID, resilience.NewValidationError(
			eris.Errorf("pipeline: insight: chunk %d out of range for %s (%d chunks)", chunkIndex, contentID, len(chunks))))
	}
	chunk := chunks[chunkIndex]

	prompt := insightPrompt(r.cfg.InsightPrompt, videoURL(item.SourceID), chunk.StartSeconds, chunk.EndSeconds)
	estimated := r.estimator.ChunkTokens(prompt, chunk.EndSeconds-chunk.StartSeconds)

	pick, err := r.selector.Select(ctx, estimated, nil)
	if err != nil {
		return err
	}

	resp, err := r.generator.GenerateContent(ctx, gemini.Request{
		Model:    pick.Model,
		Contents: []gemini.Content{{Role: "user", Parts: []gemini.Part{{Text: prompt}}}},
	})
	if err != nil {
		return r.classifyGenerate(ctx, pick.Model, err)
	}

	rec := &model.InsightRecord{
		ContentID:  contentID,
		ChunkIndex: chunk.Index,
		StartSec:   chunk.StartSeconds,
		EndSec:     chunk.EndSeconds,
		Model:      pick.Model,
		Text:       resp.Text,
	}
	if err := r.store.UpsertInsight(ctx, rec); err != nil {
		return eris.Wrapf(err, "pipeline: insight: store %s/%d", contentID, chunk.Index)
	}

	if err := r.ledger.RecordUsage(ctx, pick.Model, actualTokens(resp, estimated)); err != nil {
		zap.L().Error("failed to record usage",
			zap.String("model", pick.Model),
			zap.Error(err),
		)
	}

	count, err := r.store.CountInsights(ctx, contentID)
	if err != nil {
		return eris.Wrapf(err, "pipeline: insight: count for %s", contentID)
	}
	zap.L().Info("insight stored",
		zap.String("content_id", contentID),
		zap.Int("chunk_index", chunk.Index),
		zap.String("model", pick.Model),
		zap.Int("gathered", count),
		zap.Int("total", item.ChunkTotal),
	)
	if count < item.ChunkTotal {
		return nil
	}

	now := time.Now()
	upd := &model.StatusUpdate{InsightsGatheredAt: &now}
	ok, err := r.store.TransitionContent(ctx, contentID, model.StatusInsightsQueued, model.StatusInsightsGathered, upd)
	if err != nil {
		return eris.Wrapf(err, "pipeline: insight: advance %s", contentID)
	}
	if !ok {
		// Another chunk's delivery advanced it first.
		return nil
	}

	for _, p := range r.cfg.ResearchPrompts {
		task := schedule.Task{Kind: schedule.TaskRunResearch, ContentID: contentID, PromptID: p.ID}
		if err := r.queue.Enqueue(ctx, task, schedule.Options{Unique: true}); err != nil {
			return eris.Wrapf(err, "pipeline: insight: enqueue research %s/%s", contentID, p.ID)
		}
	}
	zap.L().Info("insights gathered, research queued",
		zap.String("content_id", contentID),
		zap.Int("prompts", len(r.cfg.ResearchPrompts)),
	)
	return nil
}

// runResearch aggregates the item's insights and runs one research
// prompt over them. A malformed structured response degrades to raw
// text rather than failing the task.
func (r *Runner) runResearch(ctx context.Context, contentID, promptID string) error {
	item, err := r.store.GetContentItem(ctx, contentID)
	if err != nil {
		return eris.Wrapf(err, "pipeline: research: get %s", contentID)
	}
	if item == nil {
		return r.failValidation(ctx, "", resilience.NewValidationError(
			eris.Errorf("pipeline: research: item %s not found", contentID)))
	}
	switch item.Status {
	case model.StatusInsightsGathered:
	case model.StatusInsightsQueued:
		return eris.Errorf("pipeline: research: item %s insights not yet gathered", contentID)
	default:
		zap.L().Debug("research task is stale, skipping",
			zap.String("content_id", contentID),
			zap.String("status", string(item.Status)),
		)
		return nil
	}

	prompt, ok := r.promptByID(promptID)
	if !ok {
		// A removed prompt invalidates the task, not the item.
		zap.L().Warn("research prompt no longer configured, dropping task",
			zap.String("content_id", contentID),
			zap.String("prompt_id", promptID),
		)
		return nil
	}

	insights, err := r.store.ListInsights(ctx, contentID)
	if err != nil {
		return eris.Wrapf(err, "pipeline: research: list insights for %s", contentID)
	}
	if len(insights) == 0 {
		return r.failValidation(ctx, contentID, resilience.NewValidationError(
			eris.Errorf("pipeline: research: item %s has no insights", contentID)))
	}

	var joined strings.Builder
	for _, ins := range insights {
		joined.WriteString(ins.Text)
		joined.WriteString("\n\n")
	}

	text := researchPrompt(prompt, joined.String())
	estimated := r.estimator.ResearchTokens(prompt.Template, joined.String())

	pick, err := r.selector.Select(ctx, estimated, nil)
	if err != nil {
		return err
	}

	req := gemini.Request{
		Model:    pick.Model,
		Contents: []gemini.Content{{Role: "user", Parts: []gemini.Part{{Text: text}}}},
	}
	if schema := prompt.SchemaJSON(); schema != nil {
		req.ResponseSchema = schema
		req.ResponseMIMEType = "application/json"
	}

	resp, err := r.generator.GenerateContent(ctx, req)
	if err != nil {
		return r.classifyGenerate(ctx, pick.Model, err)
	}

	rec := &model.ResearchResult{
		ContentID: contentID,
		PromptID:  promptID,
		Model:     pick.Model,
	}
	if prompt.Schema != "" && json.Valid([]byte(resp.Text)) {
		rec.Structured = []byte(resp.Text)
	} else {
		if prompt.Schema != "" {
			perr := &resilience.ParseError{Err: eris.Errorf("pipeline: research: %s/%s response is not valid JSON", contentID, promptID)}
			zap.L().Warn("structured research response unparseable, storing raw text",
				zap.String("content_id", contentID),
				zap.String("prompt_id", promptID),
				zap.Error(perr),
			)
		}
		rec.RawText = resp.Text
	}
	if err := r.store.UpsertResearchResult(ctx, rec); err != nil {
		return eris.Wrapf(err, "pipeline: research: store %s/%s", contentID, promptID)
	}

	if err := r.ledger.RecordUsage(ctx, pick.Model, actualTokens(resp, estimated)); err != nil {
		zap.L().Error("failed to record usage",
			zap.String("model", pick.Model),
			zap.Error(err),
		)
	}

	zap.L().Info("research stored",
		zap.String("content_id", contentID),
		zap.String("prompt_id", promptID),
		zap.String("model", pick.Model),
		zap.Bool("structured", rec.Structured != nil),
	)
	return nil
}

// Reset returns an item to metadata_ready and purges its insight and
// research children so the pipeline can rerun them.
func (r *Runner) Reset(ctx context.Context, contentID string) error {
	if err := r.store.ResetContent(ctx, contentID); err != nil {
		return eris.Wrapf(err, "pipeline: reset %s", contentID)
	}
	zap.L().Info("content item reset", zap.String("content_id", contentID))
	return nil
}

func (r *Runner) purgeExpired(ctx context.Context) error {
	n, err := r.store.PurgeExpired(ctx)
	if err != nil {
		return eris.Wrap(err, "pipeline: purge expired")
	}
	zap.L().Info("expired quota rows purged", zap.Int64("rows", n))
	return nil
}

func (r *Runner) promptByID(id string) (ResearchPrompt, bool) {
	for _, p := range r.cfg.ResearchPrompts {
		if p.ID == id {
			return p, true
		}
	}
	return ResearchPrompt{}, false
}

func videoURL(sourceID string) string {
	return "https://www.youtube.com/watch?v=" + sourceID
}

// actualTokens prefers the provider-reported usage, falling back to the
// admission estimate when the response carries none.
func actualTokens(resp *gemini.Response, estimated int) int {
	if resp.Usage.TotalTokens > 0 {
		return resp.Usage.TotalTokens
	}
	return estimated
}
