package quota

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/simargl-labs/content-pipeline/internal/model"
)

// Store is the slice of the persistence layer the ledger needs. All
// counter mutation goes through a single atomic increment-or-create so
// concurrent writers within the same minute never lose updates.
type Store interface {
	IncrementQuotaWindow(ctx context.Context, inc WindowIncrement) error
	GetQuotaWindow(ctx context.Context, modelName, minuteKey, dayKey string) (*model.QuotaWindow, error)
	InsertQuotaViolation(ctx context.Context, v *model.QuotaViolation) error
}

// WindowIncrement describes one usage recording.
type WindowIncrement struct {
	Model     string
	MinuteKey string
	DayKey    string
	Tokens    int
	ExpiresAt time.Time
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed bool
	// Dimension names the first violated limit when denied.
	Dimension model.QuotaDimension
	// WaitSeconds is how long until the violated window rolls over.
	WaitSeconds int
}

// Snapshot is a read-only view of a model's current usage.
type Snapshot struct {
	Model            string `json:"model"`
	Tier             string `json:"tier"`
	MinuteKey        string `json:"minute_key"`
	RequestsInWindow int    `json:"requests_in_window"`
	TokensInWindow   int    `json:"tokens_in_window"`
	RequestsToday    int    `json:"requests_today"`
	LimitRPM         int    `json:"limit_rpm"`
	LimitTPM         int    `json:"limit_tpm"`
	LimitRPD         int    `json:"limit_rpd,omitempty"`
}

const (
	windowTTL    = 24 * time.Hour
	violationTTL = 7 * 24 * time.Hour
)

// Ledger decides admission against the tier's limit table and records
// actual usage. It is the authority on hard limits; soft overload
// tracking lives elsewhere.
type Ledger struct {
	store Store
	tier  Tier

	nowFunc func() time.Time
}

// NewLedger creates a ledger for the active tier.
func NewLedger(store Store, tier Tier) *Ledger {
	return &Ledger{
		store:   store,
		tier:    tier,
		nowFunc: time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (l *Ledger) WithNow(fn func() time.Time) *Ledger {
	l.nowFunc = fn
	return l
}

// Tier returns the active quota tier.
func (l *Ledger) Tier() Tier {
	return l.tier
}

// TryAdmit checks whether a request with the given estimated token cost
// may proceed for modelName. Check order is fixed and first-violation-wins:
// RPM, then TPM, then RPD. A denial is recorded as a proactive violation
// audit row.
func (l *Ledger) TryAdmit(ctx context.Context, modelName string, estimatedTokens int) (Decision, error) {
	limits, ok := LimitsFor(l.tier, modelName)
	if !ok {
		return Decision{}, eris.Errorf("ledger: model %s not available in tier %s", modelName, l.tier)
	}

	now := l.nowFunc()
	window, err := l.store.GetQuotaWindow(ctx, modelName, MinuteKey(now), DayKey(now))
	if err != nil {
		return Decision{}, eris.Wrap(err, "ledger: get quota window")
	}

	var requests, tokens, today int
	if window != nil {
		requests = window.RequestsInWindow
		tokens = window.TokensInWindow
		today = window.RequestsToday
	}

	if requests+1 > limits.RPM {
		return l.deny(ctx, modelName, model.DimensionRPM, secondsToMinuteRollover(now), now), nil
	}
	if tokens+estimatedTokens > limits.TPM {
		return l.deny(ctx, modelName, model.DimensionTPM, secondsToMinuteRollover(now), now), nil
	}
	if limits.RPD > 0 && today+1 > limits.RPD {
		return l.deny(ctx, modelName, model.DimensionRPD, secondsToDayRollover(now), now), nil
	}

	return Decision{Allowed: true}, nil
}

// RecordUsage atomically increments the current minute window and day
// counter with the actual token cost of a completed call, refreshing the
// row expiry to 24h out. Callers must invoke this exactly once per
// admitted and executed request.
func (l *Ledger) RecordUsage(ctx context.Context, modelName string, actualTokens int) error {
	now := l.nowFunc()
	inc := WindowIncrement{
		Model:     modelName,
		MinuteKey: MinuteKey(now),
		DayKey:    DayKey(now),
		Tokens:    actualTokens,
		ExpiresAt: now.Add(windowTTL),
	}
	if err := l.store.IncrementQuotaWindow(ctx, inc); err != nil {
		return eris.Wrapf(err, "ledger: record usage for %s", modelName)
	}
	return nil
}

// Usage returns the current window snapshot for a model.
func (l *Ledger) Usage(ctx context.Context, modelName string) (*Snapshot, error) {
	limits, ok := LimitsFor(l.tier, modelName)
	if !ok {
		return nil, eris.Errorf("ledger: model %s not available in tier %s", modelName, l.tier)
	}

	now := l.nowFunc()
	window, err := l.store.GetQuotaWindow(ctx, modelName, MinuteKey(now), DayKey(now))
	if err != nil {
		return nil, eris.Wrap(err, "ledger: get quota window")
	}

	snap := &Snapshot{
		Model:     modelName,
		Tier:      string(l.tier),
		MinuteKey: MinuteKey(now),
		LimitRPM:  limits.RPM,
		LimitTPM:  limits.TPM,
		LimitRPD:  limits.RPD,
	}
	if window != nil {
		snap.RequestsInWindow = window.RequestsInWindow
		snap.TokensInWindow = window.TokensInWindow
		snap.RequestsToday = window.RequestsToday
	}
	return snap, nil
}

// RecordProviderViolation persists an audit row for a quota rejection that
// came back from the provider itself, after admission. Both denial paths
// converge on the same record shape.
func (l *Ledger) RecordProviderViolation(ctx context.Context, modelName string, v *Violation, raw []byte) {
	now := l.nowFunc()
	rec := &model.QuotaViolation{
		Model:      modelName,
		Proactive:  false,
		RawPayload: string(raw),
		CreatedAt:  now,
		ExpiresAt:  now.Add(violationTTL),
	}
	if v != nil {
		rec.Dimension = v.QuotaType
		rec.QuotaID = v.QuotaID
		rec.Tier = v.Tier
		rec.RetryDelaySeconds = v.RetryDelaySeconds
	} else {
		rec.Dimension = model.DimensionUnknown
	}

	if err := l.store.InsertQuotaViolation(ctx, rec); err != nil {
		zap.L().Warn("ledger: failed to persist provider violation",
			zap.String("model", modelName),
			zap.Error(err),
		)
	}
}

func (l *Ledger) deny(ctx context.Context, modelName string, dim model.QuotaDimension, wait int, now time.Time) Decision {
	rec := &model.QuotaViolation{
		Model:             modelName,
		Dimension:         dim,
		Tier:              string(l.tier),
		RetryDelaySeconds: wait,
		Proactive:         true,
		CreatedAt:         now,
		ExpiresAt:         now.Add(violationTTL),
	}
	if err := l.store.InsertQuotaViolation(ctx, rec); err != nil {
		zap.L().Warn("ledger: failed to persist proactive violation",
			zap.String("model", modelName),
			zap.String("dimension", string(dim)),
			zap.Error(err),
		)
	}

	return Decision{Allowed: false, Dimension: dim, WaitSeconds: wait}
}
