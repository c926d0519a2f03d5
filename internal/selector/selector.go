// Package selector picks a model for a task by composing the admission
// ledger, the overload tracker, and a configured preference order.
package selector

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/simargl-labs/content-pipeline/internal/overload"
	"github.com/simargl-labs/content-pipeline/internal/quota"
)

// DenialReason summarizes why no model could be selected.
type DenialReason string

const (
	DeniedAllExcluded   DenialReason = "all_excluded"
	DeniedAllOverloaded DenialReason = "all_overloaded"
	DeniedQuotaLimited  DenialReason = "quota_limited"
)

// Pick is a successful selection.
type Pick struct {
	Model string
}

// Denial explains an exhausted candidate list. MaxWaitSeconds is the
// largest wait hint seen across quota denials, usable as a retry delay.
type Denial struct {
	Reason         DenialReason
	Detail         string
	MaxWaitSeconds int
}

func (d *Denial) Error() string {
	return "selector: no model available (" + string(d.Reason) + "): " + d.Detail
}

// Selector iterates candidates in preference order and returns the first
// model the ledger admits. It never calls RecordUsage; the caller records
// actual cost once the provider call completes.
type Selector struct {
	ledger  *quota.Ledger
	tracker *overload.Tracker

	defaultModel string
	preference   []string
}

// New creates a selector. The candidate order is the configured default
// model first, then the static preference list, deduplicated and filtered
// to models available in the active tier.
func New(ledger *quota.Ledger, tracker *overload.Tracker, defaultModel string, preference []string) *Selector {
	return &Selector{
		ledger:       ledger,
		tracker:      tracker,
		defaultModel: defaultModel,
		preference:   preference,
	}
}

// Candidates returns the effective candidate order.
func (s *Selector) Candidates() []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range append([]string{s.defaultModel}, s.preference...) {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		if _, ok := quota.LimitsFor(s.ledger.Tier(), m); !ok {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Select returns the first candidate that is not excluded, not
// overloaded, and admitted by the ledger for the estimated cost. When the
// candidate list exhausts, the returned error is a *Denial aggregating
// the kind of exhaustion.
func (s *Selector) Select(ctx context.Context, estimatedTokens int, excluded map[string]bool) (*Pick, error) {
	candidates := s.Candidates()
	if len(candidates) == 0 {
		return nil, eris.Errorf("selector: no models configured for tier %s", s.ledger.Tier())
	}

	var excludedCount, overloadedCount, deniedCount int
	var deniedModels []string
	maxWait := 0

	for _, m := range candidates {
		if excluded[m] {
			excludedCount++
			continue
		}
		if s.tracker.IsOverloaded(m) {
			overloadedCount++
			zap.L().Debug("selector: skipping overloaded model", zap.String("model", m))
			continue
		}

		decision, err := s.ledger.TryAdmit(ctx, m, estimatedTokens)
		if err != nil {
			return nil, eris.Wrapf(err, "selector: admit %s", m)
		}
		if decision.Allowed {
			return &Pick{Model: m}, nil
		}

		deniedCount++
		deniedModels = append(deniedModels, m+"("+string(decision.Dimension)+")")
		if decision.WaitSeconds > maxWait {
			maxWait = decision.WaitSeconds
		}
	}

	denial := &Denial{MaxWaitSeconds: maxWait}
	switch {
	case deniedCount > 0:
		denial.Reason = DeniedQuotaLimited
		denial.Detail = "quota denied: " + strings.Join(deniedModels, ", ")
	case overloadedCount > 0:
		denial.Reason = DeniedAllOverloaded
		denial.Detail = "all remaining candidates overloaded"
	default:
		denial.Reason = DeniedAllExcluded
		denial.Detail = "all candidates excluded"
	}
	return nil, denial
}
