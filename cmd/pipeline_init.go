package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/simargl-labs/content-pipeline/internal/cost"
	"github.com/simargl-labs/content-pipeline/internal/overload"
	"github.com/simargl-labs/content-pipeline/internal/pipeline"
	"github.com/simargl-labs/content-pipeline/internal/quota"
	"github.com/simargl-labs/content-pipeline/internal/schedule"
	"github.com/simargl-labs/content-pipeline/internal/selector"
	"github.com/simargl-labs/content-pipeline/internal/store"
	"github.com/simargl-labs/content-pipeline/pkg/gemini"
	"github.com/simargl-labs/content-pipeline/pkg/youtube"
)

// pipelineEnv holds the initialized store, queue, and stage runner shared
// by the worker/discover/serve commands.
type pipelineEnv struct {
	Store   store.Store
	Queue   *schedule.TemporalQueue
	Runner  *pipeline.Runner
	Ledger  *quota.Ledger
	Tracker *overload.Tracker
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Queue != nil {
		pe.Queue.Close()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "pipeline.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPipeline sets up the store, the Temporal queue, both provider
// clients, and the stage runner. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	queue, err := schedule.Dial(cfg.Temporal)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var youtubeOpts []youtube.Option
	if cfg.YouTube.BaseURL != "" {
		youtubeOpts = append(youtubeOpts, youtube.WithBaseURL(cfg.YouTube.BaseURL))
	}
	if cfg.YouTube.RatePerSecond > 0 {
		youtubeOpts = append(youtubeOpts, youtube.WithRateLimit(cfg.YouTube.RatePerSecond, cfg.YouTube.RateBurst))
	}
	videos := youtube.NewClient(cfg.YouTube.Key, youtubeOpts...)

	var geminiOpts []gemini.Option
	if cfg.Gemini.BaseURL != "" {
		geminiOpts = append(geminiOpts, gemini.WithBaseURL(cfg.Gemini.BaseURL))
	}
	generator := gemini.NewClient(cfg.Gemini.Key, geminiOpts...)

	tier := quota.Tier(cfg.Quota.NormalizedTier())
	if len(quota.ModelsInTier(tier)) == 0 {
		queue.Close()
		_ = st.Close()
		return nil, eris.Errorf("unknown quota tier: %s", cfg.Quota.Tier)
	}

	ledger := quota.NewLedger(st, tier)
	tracker := overload.NewTracker()
	sel := selector.New(ledger, tracker, cfg.Quota.DefaultModel, cfg.Quota.Preference)
	estimator := cost.NewEstimator(cfg.Cost)

	pipeCfg := cfg.Pipeline
	if promptsPath != "" {
		pf, err := pipeline.LoadPromptsFile(promptsPath)
		if err != nil {
			queue.Close()
			_ = st.Close()
			return nil, err
		}
		pipeCfg = pf.Apply(pipeCfg)
	}

	runner := pipeline.NewRunner(st, queue, videos, generator, sel, ledger, tracker, estimator, pipeCfg)

	zap.L().Info("pipeline initialized",
		zap.String("store", cfg.Store.Driver),
		zap.String("tier", string(tier)),
		zap.String("task_queue", cfg.Temporal.TaskQueue),
	)

	return &pipelineEnv{
		Store:   st,
		Queue:   queue,
		Runner:  runner,
		Ledger:  ledger,
		Tracker: tracker,
	}, nil
}
