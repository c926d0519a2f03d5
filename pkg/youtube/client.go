// Package youtube provides a client for the YouTube Data API used to
// fetch video metadata and channel uploads.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/simargl-labs/content-pipeline/internal/resilience"
)

// Client defines the metadata provider operations.
type Client interface {
	// VideoDetails returns metadata for a single video.
	VideoDetails(ctx context.Context, videoID string) (*VideoMetadata, error)
	// ChannelUploads lists recent upload video ids for a channel, newest
	// first, bounded by max.
	ChannelUploads(ctx context.Context, channelID string, publishedAfter time.Time, max int) ([]string, error)
}

// VideoMetadata is the normalized metadata for one video.
type VideoMetadata struct {
	VideoID         string     `json:"video_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	ChannelID       string     `json:"channel_id"`
	DurationSeconds int        `json:"duration_seconds"`
	ViewCount       int64      `json:"view_count"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
}

// ErrNotFound is returned when the video id does not resolve.
var ErrNotFound = eris.New("youtube: video not found")

// Option configures the YouTube client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the client-side request rate limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a YouTube Data API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://www.googleapis.com/youtube/v3",
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		retry:   resilience.DefaultRetryConfig("youtube"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type videoListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string    `json:"title"`
			Description string    `json:"description"`
			ChannelID   string    `json:"channelId"`
			PublishedAt time.Time `json:"publishedAt"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
		Statistics struct {
			ViewCount string `json:"viewCount"`
		} `json:"statistics"`
	} `json:"items"`
}

func (c *httpClient) VideoDetails(ctx context.Context, videoID string) (*VideoMetadata, error) {
	if videoID == "" {
		return nil, eris.New("youtube: video id is required")
	}

	q := url.Values{}
	q.Set("part", "snippet,contentDetails,statistics")
	q.Set("id", videoID)

	var vr videoListResponse
	if err := c.get(ctx, "/videos", q, &vr); err != nil {
		return nil, err
	}
	if len(vr.Items) == 0 {
		return nil, ErrNotFound
	}

	item := vr.Items[0]
	duration, err := ParseISO8601Duration(item.ContentDetails.Duration)
	if err != nil {
		return nil, eris.Wrapf(err, "youtube: video %s duration", videoID)
	}

	views, _ := strconv.ParseInt(item.Statistics.ViewCount, 10, 64)

	meta := &VideoMetadata{
		VideoID:         item.ID,
		Title:           item.Snippet.Title,
		Description:     item.Snippet.Description,
		ChannelID:       item.Snippet.ChannelID,
		DurationSeconds: duration,
		ViewCount:       views,
	}
	if !item.Snippet.PublishedAt.IsZero() {
		published := item.Snippet.PublishedAt
		meta.PublishedAt = &published
	}
	return meta, nil
}

type channelListResponse struct {
	Items []struct {
		ContentDetails struct {
			RelatedPlaylists struct {
				Uploads string `json:"uploads"`
			} `json:"relatedPlaylists"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type playlistItemsResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ContentDetails struct {
			VideoID          string    `json:"videoId"`
			VideoPublishedAt time.Time `json:"videoPublishedAt"`
		} `json:"contentDetails"`
	} `json:"items"`
}

func (c *httpClient) ChannelUploads(ctx context.Context, channelID string, publishedAfter time.Time, max int) ([]string, error) {
	if channelID == "" {
		return nil, eris.New("youtube: channel id is required")
	}
	if max <= 0 {
		max = 50
	}

	q := url.Values{}
	q.Set("part", "contentDetails")
	q.Set("id", channelID)

	var cr channelListResponse
	if err := c.get(ctx, "/channels", q, &cr); err != nil {
		return nil, err
	}
	if len(cr.Items) == 0 {
		return nil, eris.Errorf("youtube: channel %s not found", channelID)
	}
	uploads := cr.Items[0].ContentDetails.RelatedPlaylists.Uploads
	if uploads == "" {
		return nil, eris.Errorf("youtube: channel %s has no uploads playlist", channelID)
	}

	var ids []string
	pageToken := ""
	for len(ids) < max {
		pq := url.Values{}
		pq.Set("part", "contentDetails")
		pq.Set("playlistId", uploads)
		pq.Set("maxResults", "50")
		if pageToken != "" {
			pq.Set("pageToken", pageToken)
		}

		var pr playlistItemsResponse
		if err := c.get(ctx, "/playlistItems", pq, &pr); err != nil {
			return nil, err
		}

		for _, item := range pr.Items {
			if !publishedAfter.IsZero() && item.ContentDetails.VideoPublishedAt.Before(publishedAfter) {
				// Uploads playlists are newest-first; everything past this
				// point is older than the cutoff.
				return ids, nil
			}
			ids = append(ids, item.ContentDetails.VideoID)
			if len(ids) >= max {
				return ids, nil
			}
		}

		if pr.NextPageToken == "" {
			break
		}
		pageToken = pr.NextPageToken
	}
	return ids, nil
}

func (c *httpClient) get(ctx context.Context, path string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "youtube: rate limit wait")
	}

	q.Set("key", c.apiKey)
	reqURL := c.baseURL + path + "?" + q.Encode()

	body, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "youtube: create request")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "youtube: execute request")
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		if err != nil {
			return nil, eris.Wrap(err, "youtube: read response")
		}
		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("youtube: %s returned %d: %s", path, resp.StatusCode, truncate(string(data), 200))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "youtube: decode response")
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ParseISO8601Duration parses a duration like "PT1H5M10S" into seconds.
func ParseISO8601Duration(d string) (int, error) {
	if !strings.HasPrefix(d, "PT") {
		// Day-scope durations ("P1DT2H") show up on premieres.
		if !strings.HasPrefix(d, "P") {
			return 0, fmt.Errorf("invalid ISO 8601 duration %q", d)
		}
	}

	var total, num int
	var sawDigit bool
	inTime := false
	for _, r := range d[1:] {
		switch {
		case r >= '0' && r <= '9':
			num = num*10 + int(r-'0')
			sawDigit = true
		case r == 'T':
			inTime = true
		case r == 'D':
			total += num * 86400
			num = 0
		case r == 'H':
			total += num * 3600
			num = 0
		case r == 'M':
			if !inTime {
				return 0, fmt.Errorf("invalid ISO 8601 duration %q", d)
			}
			total += num * 60
			num = 0
		case r == 'S':
			total += num
			num = 0
		default:
			return 0, fmt.Errorf("invalid ISO 8601 duration %q", d)
		}
	}
	if !sawDigit {
		return 0, fmt.Errorf("invalid ISO 8601 duration %q", d)
	}
	return total, nil
}
