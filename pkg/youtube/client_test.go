package youtube

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotisserie/eris"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key",
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithRateLimit(1000, 1000),
	)
}

func TestVideoDetails_MapsFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/videos", r.URL.Path)
		assert.Equal(t, "vid1", r.URL.Query().Get("id"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "snippet,contentDetails,statistics", r.URL.Query().Get("part"))

		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{{
				"id": "vid1",
				"snippet": map[string]any{
					"title":       "A talk",
					"description": "About things",
					"channelId":   "chan1",
					"publishedAt": "2025-05-01T00:00:00Z",
				},
				"contentDetails": map[string]any{"duration": "PT15M33S"},
				"statistics":     map[string]any{"viewCount": "9001"},
			}},
		})
	})

	meta, err := c.VideoDetails(context.Background(), "vid1")
	require.NoError(t, err)
	assert.Equal(t, "vid1", meta.VideoID)
	assert.Equal(t, "A talk", meta.Title)
	assert.Equal(t, "chan1", meta.ChannelID)
	assert.Equal(t, 15*60+33, meta.DurationSeconds)
	assert.Equal(t, int64(9001), meta.ViewCount)
	require.NotNil(t, meta.PublishedAt)
	assert.Equal(t, 2025, meta.PublishedAt.Year())
}

func TestVideoDetails_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"items": []any{}})
	})

	_, err := c.VideoDetails(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestVideoDetails_EmptyID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := c.VideoDetails(context.Background(), "")
	require.Error(t, err)
}

func TestVideoDetails_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{{
				"id":             "vid1",
				"snippet":        map[string]any{"title": "A talk"},
				"contentDetails": map[string]any{"duration": "PT1M"},
				"statistics":     map[string]any{"viewCount": "1"},
			}},
		})
	})

	meta, err := c.VideoDetails(context.Background(), "vid1")
	require.NoError(t, err)
	assert.Equal(t, 60, meta.DurationSeconds)
	assert.Equal(t, int32(2), calls.Load())
}

func TestChannelUploads_PagesUntilMax(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/channels":
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{{
					"contentDetails": map[string]any{
						"relatedPlaylists": map[string]any{"uploads": "UU123"},
					},
				}},
			})
		case "/playlistItems":
			assert.Equal(t, "UU123", r.URL.Query().Get("playlistId"))
			if r.URL.Query().Get("pageToken") == "" {
				json.NewEncoder(w).Encode(map[string]any{
					"nextPageToken": "page2",
					"items": []map[string]any{
						{"contentDetails": map[string]any{"videoId": "v1", "videoPublishedAt": "2025-06-03T00:00:00Z"}},
						{"contentDetails": map[string]any{"videoId": "v2", "videoPublishedAt": "2025-06-02T00:00:00Z"}},
					},
				})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{"contentDetails": map[string]any{"videoId": "v3", "videoPublishedAt": "2025-06-01T00:00:00Z"}},
				},
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	ids, err := c.ChannelUploads(context.Background(), "chan1", time.Time{}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2", "v3"}, ids)
}

func TestChannelUploads_StopsAtCutoff(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/channels":
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{{
					"contentDetails": map[string]any{
						"relatedPlaylists": map[string]any{"uploads": "UU123"},
					},
				}},
			})
		case "/playlistItems":
			// Newest first; the third item predates the cutoff.
			json.NewEncoder(w).Encode(map[string]any{
				"nextPageToken": "never-fetched",
				"items": []map[string]any{
					{"contentDetails": map[string]any{"videoId": "v1", "videoPublishedAt": "2025-06-03T00:00:00Z"}},
					{"contentDetails": map[string]any{"videoId": "v2", "videoPublishedAt": "2025-06-02T00:00:00Z"}},
					{"contentDetails": map[string]any{"videoId": "old", "videoPublishedAt": "2025-01-01T00:00:00Z"}},
				},
			})
		}
	})

	cutoff := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ids, err := c.ChannelUploads(context.Background(), "chan1", cutoff, 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2"}, ids)
}

func TestChannelUploads_ChannelNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"items": []any{}})
	})

	_, err := c.ChannelUploads(context.Background(), "ghost", time.Time{}, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestParseISO8601Duration(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"PT1H5M10S", 3910, false},
		{"PT15M33S", 933, false},
		{"PT45S", 45, false},
		{"PT2H", 7200, false},
		{"P1DT2H", 93600, false},
		{"PT0S", 0, false},
		{"", 0, true},
		{"15m", 0, true},
		{"PT", 0, true},
		{"P1M", 0, true}, // month-scope minutes are ambiguous, rejected
		{"PT5X", 0, true},
	}
	for _, tc := range tests {
		got, err := ParseISO8601Duration(tc.in)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}
