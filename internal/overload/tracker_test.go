package overload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTracker_MarkAndRead(t *testing.T) {
	tr := NewTracker()

	assert.False(t, tr.IsOverloaded("gemini-2.5-pro"))
	tr.Mark("gemini-2.5-pro")
	assert.True(t, tr.IsOverloaded("gemini-2.5-pro"))
	assert.False(t, tr.IsOverloaded("gemini-2.5-flash"))
}

func TestTracker_MarkExpires(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	tr := NewTracker().WithNow(func() time.Time { return now })

	tr.Mark("gemini-2.5-pro")
	assert.True(t, tr.IsOverloaded("gemini-2.5-pro"))

	now = now.Add(DefaultTimeout - time.Second)
	assert.True(t, tr.IsOverloaded("gemini-2.5-pro"))

	now = now.Add(2 * time.Second)
	assert.False(t, tr.IsOverloaded("gemini-2.5-pro"))
	// Expired entry was removed on read.
	assert.Empty(t, tr.Marked())
}

func TestTracker_RemarkResetsClock(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	tr := NewTracker().WithNow(func() time.Time { return now })

	tr.Mark("gemini-2.5-pro")
	now = now.Add(4 * time.Minute)
	tr.Mark("gemini-2.5-pro")

	now = now.Add(4 * time.Minute)
	assert.True(t, tr.IsOverloaded("gemini-2.5-pro"))
}

func TestTracker_Sweep(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	tr := NewTracker().WithNow(func() time.Time { return now })

	tr.Mark("gemini-2.5-pro")

	// A sweep before the timeout leaves the mark alone.
	tr.Sweep("gemini-2.5-pro")
	assert.True(t, tr.IsOverloaded("gemini-2.5-pro"))

	now = now.Add(DefaultTimeout)
	tr.Sweep("gemini-2.5-pro")
	assert.Empty(t, tr.Marked())
}

func TestTracker_CustomTimeout(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	tr := NewTracker().WithTimeout(time.Second).WithNow(func() time.Time { return now })

	tr.Mark("gemini-2.5-flash")
	now = now.Add(time.Second)
	assert.False(t, tr.IsOverloaded("gemini-2.5-flash"))
}

func TestTracker_Marked(t *testing.T) {
	tr := NewTracker()
	tr.Mark("a")
	tr.Mark("b")
	assert.ElementsMatch(t, []string{"a", "b"}, tr.Marked())
}
