package model

import "time"

// QuotaDimension identifies which rate limit a decision or violation is about.
type QuotaDimension string

const (
	DimensionRPM     QuotaDimension = "RPM"
	DimensionTPM     QuotaDimension = "TPM"
	DimensionRPD     QuotaDimension = "RPD"
	DimensionUnknown QuotaDimension = "UNKNOWN"
)

// QuotaWindow is the persisted counter row for one (model, minute-bucket).
// Counters only grow within a window; reset happens by key rollover, never
// by zeroing in place. Rows expire 24h after their last increment.
type QuotaWindow struct {
	Model            string    `json:"model"`
	MinuteKey        string    `json:"minute_key"`
	DayKey           string    `json:"day_key"`
	RequestsInWindow int       `json:"requests_in_window"`
	TokensInWindow   int       `json:"tokens_in_window"`
	RequestsToday    int       `json:"requests_today"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// QuotaViolation is the append-only audit record written whenever a limit
// is hit, whether the ledger denied admission proactively or the provider
// rejected the call after admission. Rows expire after 7 days.
type QuotaViolation struct {
	ID                string         `json:"id"`
	Model             string         `json:"model"`
	Dimension         QuotaDimension `json:"dimension"`
	QuotaID           string         `json:"quota_id,omitempty"`
	Tier              string         `json:"tier,omitempty"`
	RetryDelaySeconds int            `json:"retry_delay_seconds,omitempty"`
	RawPayload        string         `json:"raw_payload,omitempty"`
	Proactive         bool           `json:"proactive"` // denied before the call was sent
	CreatedAt         time.Time      `json:"created_at"`
	ExpiresAt         time.Time      `json:"expires_at"`
}
