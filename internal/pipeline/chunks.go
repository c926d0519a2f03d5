// Package pipeline implements the content state machine and the stage
// workers that drive items through it. Workers are stateless and safe
// under at-least-once delivery: every status write is a compare-and-set
// and every child write is an upsert.
package pipeline

import (
	"github.com/simargl-labs/content-pipeline/internal/model"
)

// PlanChunks splits a duration into contiguous fixed-size windows.
// Ranges are half-open [start, end); the last chunk is clipped to the
// duration. A 1200s item at 300s per chunk yields exactly four chunks.
func PlanChunks(durationSeconds, chunkSeconds int) []model.Chunk {
	if durationSeconds <= 0 || chunkSeconds <= 0 {
		return nil
	}

	total := (durationSeconds + chunkSeconds - 1) / chunkSeconds
	chunks := make([]model.Chunk, 0, total)
	for i := 0; i < total; i++ {
		start := i * chunkSeconds
		end := start + chunkSeconds
		if end > durationSeconds {
			end = durationSeconds
		}
		chunks = append(chunks, model.Chunk{Index: i, StartSeconds: start, EndSeconds: end})
	}
	return chunks
}
