package quota

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/simargl-labs/content-pipeline/internal/model"
	"github.com/simargl-labs/content-pipeline/pkg/gemini"
)

// Violation is the structured description recovered from a provider
// quota-rejection payload.
type Violation struct {
	QuotaType         model.QuotaDimension
	QuotaID           string
	Tier              string
	RetryDelaySeconds int
}

// Known tier labels as they appear inside quota ids.
var tierLabels = []string{"FreeTier", "Tier1", "Tier2", "Tier3"}

var (
	quotaIDRe    = regexp.MustCompile(`"quotaId"\s*:\s*"([^"]+)"`)
	retryDelayRe = regexp.MustCompile(`"retryDelay"\s*:\s*"([^"]+)"`)
)

// errorPayload is the subset of the provider error envelope the parser
// inspects. The envelope may appear bare or wrapped under an "error" key,
// and Message may itself be a JSON string nesting another envelope.
type errorPayload struct {
	Message string            `json:"message"`
	Details []json.RawMessage `json:"details"`
}

type detailEntry struct {
	Type       string `json:"@type"`
	RetryDelay string `json:"retryDelay"`
	Violations []struct {
		QuotaMetric string `json:"quotaMetric"`
		QuotaID     string `json:"quotaId"`
		QuotaValue  string `json:"quotaValue"`
	} `json:"violations"`
}

// ParseAPIError recovers a quota violation from a typed provider error.
func ParseAPIError(apiErr *gemini.APIError) (*Violation, bool) {
	if apiErr == nil {
		return nil, false
	}
	if len(apiErr.Raw) > 0 {
		return ParseViolation(apiErr.Raw)
	}
	// Re-encode the typed fields when the raw body was not captured.
	raw, err := json.Marshal(map[string]any{
		"message": apiErr.Message,
		"details": apiErr.Details,
	})
	if err != nil {
		return nil, false
	}
	return ParseViolation(raw)
}

// ParseViolation inspects a raw provider error payload and extracts the
// quota violation it describes, if any. The provider's error shape is not
// contractually stable, so this is a best-effort heuristic layer: it
// unwraps up to two levels of string-encoded JSON inside the message
// field, prefers structured detail entries, and falls back to regex
// extraction from the message text. It never panics; any internal failure
// reports "no violation found".
func ParseViolation(raw []byte) (v *Violation, found bool) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Debug("violation parser: recovered", zap.Any("panic", r))
			v, found = nil, false
		}
	}()

	levels := unwrapLevels(raw)

	// Structured details win, shallowest level first.
	for _, lvl := range levels {
		if v, ok := fromDetails(lvl.Details); ok {
			return v, true
		}
	}

	// Regex fallback: the (possibly once-unwrapped) message text, then the
	// raw original payload.
	for _, lvl := range levels {
		if v, ok := fromText(lvl.Message); ok {
			return v, true
		}
	}
	if v, ok := fromText(string(raw)); ok {
		return v, true
	}

	return nil, false
}

// unwrapLevels decodes the payload and follows string-encoded JSON inside
// message fields, up to two levels deep.
func unwrapLevels(raw []byte) []errorPayload {
	var levels []errorPayload

	current, ok := decodePayload(raw)
	if !ok {
		return nil
	}
	levels = append(levels, current)

	for depth := 0; depth < 2; depth++ {
		msg := strings.TrimSpace(current.Message)
		if msg == "" || (!strings.HasPrefix(msg, "{") && !strings.HasPrefix(msg, "[")) {
			break
		}
		next, ok := decodePayload([]byte(msg))
		if !ok {
			break
		}
		levels = append(levels, next)
		current = next
	}
	return levels
}

// decodePayload accepts either a bare error object or one wrapped under
// an "error" key.
func decodePayload(raw []byte) (errorPayload, bool) {
	var wrapped struct {
		Error *errorPayload `json:"error"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Error != nil {
		return *wrapped.Error, true
	}

	var bare errorPayload
	if err := json.Unmarshal(raw, &bare); err == nil && (bare.Message != "" || len(bare.Details) > 0) {
		return bare, true
	}
	return errorPayload{}, false
}

// fromDetails extracts the violation from typed detail entries: a
// QuotaFailure entry carrying violations and a RetryInfo entry carrying a
// duration string like "56s".
func fromDetails(details []json.RawMessage) (*Violation, bool) {
	var quotaID string
	var retryDelay string

	for _, raw := range details {
		var entry detailEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		switch {
		case strings.HasSuffix(entry.Type, "QuotaFailure"):
			if len(entry.Violations) > 0 && quotaID == "" {
				quotaID = entry.Violations[0].QuotaID
			}
		case strings.HasSuffix(entry.Type, "RetryInfo"):
			if retryDelay == "" {
				retryDelay = entry.RetryDelay
			}
		}
	}

	if quotaID == "" {
		return nil, false
	}
	return build(quotaID, retryDelay), true
}

// fromText regex-extracts quotaId and retryDelay from unstructured text.
func fromText(text string) (*Violation, bool) {
	m := quotaIDRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	quotaID := m[1]

	retryDelay := ""
	if rm := retryDelayRe.FindStringSubmatch(text); rm != nil {
		retryDelay = rm[1]
	}
	return build(quotaID, retryDelay), true
}

func build(quotaID, retryDelay string) *Violation {
	return &Violation{
		QuotaType:         classifyQuotaType(quotaID),
		QuotaID:           quotaID,
		Tier:              classifyTier(quotaID),
		RetryDelaySeconds: parseRetryDelay(retryDelay),
	}
}

// classifyQuotaType buckets a quota id by substring heuristics. PerDay is
// checked before the Token heuristic so a daily token quota classifies as
// RPD, matching the window that actually has to roll over.
func classifyQuotaType(quotaID string) model.QuotaDimension {
	switch {
	case strings.Contains(quotaID, "PerMinute"):
		return model.DimensionRPM
	case strings.Contains(quotaID, "PerDay"):
		return model.DimensionRPD
	case strings.Contains(quotaID, "Token"):
		return model.DimensionTPM
	default:
		return model.DimensionUnknown
	}
}

func classifyTier(quotaID string) string {
	for _, label := range tierLabels {
		if strings.Contains(quotaID, label) {
			return label
		}
	}
	return "Unknown"
}

// parseRetryDelay parses a duration string of the form "<integer>s" into
// seconds, defaulting to 0 when absent or malformed.
func parseRetryDelay(s string) int {
	s = strings.TrimSpace(s)
	if s == "" || !strings.HasSuffix(s, "s") {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSuffix(s, "s"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
