// Package overload tracks soft, time-bounded per-model overload marks.
//
// The tracker is a best-effort optimization that steers model selection
// away from a provider endpoint that just rejected with an overload
// signal. It is process-local and never persisted; the admission ledger
// remains the authority on hard limits. In a multi-process deployment
// each process keeps its own view, which is an accepted, bounded
// degradation rather than a correctness defect.
package overload

import (
	"sync"
	"time"
)

// DefaultTimeout is how long a mark is honored before it is treated as
// absent, whether or not it was explicitly swept.
const DefaultTimeout = 5 * time.Minute

// Tracker records per-model overload marks with a fixed timeout.
type Tracker struct {
	mu      sync.Mutex
	marks   map[string]time.Time
	timeout time.Duration

	nowFunc func() time.Time
}

// NewTracker creates a tracker with the default timeout.
func NewTracker() *Tracker {
	return &Tracker{
		marks:   make(map[string]time.Time),
		timeout: DefaultTimeout,
		nowFunc: time.Now,
	}
}

// WithTimeout overrides the mark timeout.
func (t *Tracker) WithTimeout(d time.Duration) *Tracker {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = d
	return t
}

// WithNow sets a fixed clock for testing.
func (t *Tracker) WithNow(fn func() time.Time) *Tracker {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nowFunc = fn
	return t
}

// Timeout returns the mark timeout.
func (t *Tracker) Timeout() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timeout
}

// Mark records that the model just rejected with an overload signal.
func (t *Tracker) Mark(model string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.marks[model] = t.nowFunc()
}

// IsOverloaded reports whether the model carries a live mark. Expired
// entries are deleted on read so the map self-cleans even without the
// scheduled sweep.
func (t *Tracker) IsOverloaded(model string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	markedAt, ok := t.marks[model]
	if !ok {
		return false
	}
	if t.nowFunc().Sub(markedAt) >= t.timeout {
		delete(t.marks, model)
		return false
	}
	return true
}

// Sweep proactively clears the model's entry if it has expired. Scheduled
// as a delayed one-shot task after each mark so memory does not grow
// unbounded between reads.
func (t *Tracker) Sweep(model string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	markedAt, ok := t.marks[model]
	if ok && t.nowFunc().Sub(markedAt) >= t.timeout {
		delete(t.marks, model)
	}
}

// Marked returns the models currently carrying a live mark.
func (t *Tracker) Marked() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowFunc()
	var models []string
	for model, markedAt := range t.marks {
		if now.Sub(markedAt) < t.timeout {
			models = append(models, model)
		}
	}
	return models
}
