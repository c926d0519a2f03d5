// Package quota implements the admission ledger that keeps provider calls
// inside tiered per-minute and per-day rate budgets, and the defensive
// parser for provider quota-violation payloads.
package quota

import "time"

// Bucket key formats. Minute keys are collision-free at minute
// granularity and sort lexicographically in time order; day keys do the
// same at day granularity.
const (
	minuteKeyFormat = "2006-01-02T15:04"
	dayKeyFormat    = "2006-01-02"
)

// MinuteKey returns the minute-bucket key for t in local time.
func MinuteKey(t time.Time) string {
	return t.Format(minuteKeyFormat)
}

// DayKey returns the day-bucket key for t in local time.
func DayKey(t time.Time) string {
	return t.Format(dayKeyFormat)
}

// secondsToMinuteRollover approximates the wait until the RPM/TPM window
// resets as the seconds remaining in the current wall-clock minute.
func secondsToMinuteRollover(t time.Time) int {
	return 60 - t.Second()
}

// secondsToDayRollover returns the seconds until the next local midnight,
// when the RPD counter rolls to a fresh day bucket.
func secondsToDayRollover(t time.Time) int {
	next := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
	return int(next.Sub(t).Seconds())
}
