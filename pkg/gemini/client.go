// Package gemini provides a client for the Gemini generateContent API.
package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the inference operations used by the pipeline.
type Client interface {
	// GenerateContent runs a single-response generation request.
	GenerateContent(ctx context.Context, req Request) (*Response, error)
	// GenerateContentStream runs a streaming request, invoking fn once per
	// text chunk. The concatenation of chunks equals the full response text.
	// Stage workers use GenerateContent; streaming is for interactive
	// callers that surface long research output as it arrives.
	GenerateContentStream(ctx context.Context, req Request, fn func(chunk string) error) (*Response, error)
}

// Part is one section of a templated prompt.
type Part struct {
	Text string `json:"text,omitempty"`
}

// Content is an ordered group of prompt parts.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Request describes a generation call.
type Request struct {
	Model            string          `json:"-"`
	Contents         []Content       `json:"contents"`
	ResponseSchema   json.RawMessage `json:"-"`
	ResponseMIMEType string          `json:"-"`
}

// Usage reports actual token consumption for a completed call.
type Usage struct {
	PromptTokens     int `json:"promptTokenCount"`
	CandidatesTokens int `json:"candidatesTokenCount"`
	TotalTokens      int `json:"totalTokenCount"`
}

// Response is the parsed generation result.
type Response struct {
	Text  string `json:"-"`
	Usage Usage  `json:"usageMetadata"`
}

// APIError is the provider's error envelope. Details may carry typed
// entries (QuotaFailure violations, RetryInfo), and Message may itself be
// a JSON string nesting a further such envelope.
type APIError struct {
	Code    int               `json:"code"`
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Details []json.RawMessage `json:"details,omitempty"`
	Raw     []byte            `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini: %s (%d): %s", e.Status, e.Code, e.Message)
}

// IsResourceExhausted reports a quota rejection (HTTP 429).
func (e *APIError) IsResourceExhausted() bool {
	return e.Code == http.StatusTooManyRequests || e.Status == "RESOURCE_EXHAUSTED"
}

// IsUnavailable reports a model-overload style rejection (HTTP 503).
func (e *APIError) IsUnavailable() bool {
	return e.Code == http.StatusServiceUnavailable || e.Status == "UNAVAILABLE"
}

// Option configures the Gemini client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Gemini client with the given API key.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://generativelanguage.googleapis.com/v1beta",
		http:    &http.Client{Timeout: 180 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generationConfig struct {
	ResponseMIMEType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

type generateBody struct {
	Contents         []Content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type candidate struct {
	Content Content `json:"content"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
	Usage      Usage       `json:"usageMetadata"`
}

type errorEnvelope struct {
	Error *APIError `json:"error"`
}

func (c *httpClient) GenerateContent(ctx context.Context, req Request) (*Response, error) {
	raw, err := c.post(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer raw.Close()

	body, err := io.ReadAll(raw)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: read response")
	}

	var gr generateResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, eris.Wrap(err, "gemini: decode response")
	}

	return &Response{Text: candidateText(gr.Candidates), Usage: gr.Usage}, nil
}

func (c *httpClient) GenerateContentStream(ctx context.Context, req Request, fn func(chunk string) error) (*Response, error) {
	raw, err := c.post(ctx, req, true)
	if err != nil {
		return nil, err
	}
	defer raw.Close()

	var full strings.Builder
	var usage Usage

	scanner := bufio.NewScanner(raw)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var gr generateResponse
		if err := json.Unmarshal([]byte(payload), &gr); err != nil {
			return nil, eris.Wrap(err, "gemini: decode stream chunk")
		}
		if gr.Usage.TotalTokens > 0 {
			usage = gr.Usage
		}
		chunk := candidateText(gr.Candidates)
		if chunk == "" {
			continue
		}
		full.WriteString(chunk)
		if fn != nil {
			if err := fn(chunk); err != nil {
				return nil, eris.Wrap(err, "gemini: stream callback")
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "gemini: read stream")
	}

	return &Response{Text: full.String(), Usage: usage}, nil
}

func (c *httpClient) post(ctx context.Context, req Request, stream bool) (io.ReadCloser, error) {
	if req.Model == "" {
		return nil, eris.New("gemini: model is required")
	}

	body := generateBody{Contents: req.Contents}
	if req.ResponseMIMEType != "" || len(req.ResponseSchema) > 0 {
		body.GenerationConfig = &generationConfig{
			ResponseMIMEType: req.ResponseMIMEType,
			ResponseSchema:   req.ResponseSchema,
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: marshal request")
	}

	method := "generateContent"
	if stream {
		method = "streamGenerateContent?alt=sse"
	}
	url := fmt.Sprintf("%s/models/%s:%s", c.baseURL, req.Model, method)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: execute request")
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp.Body, nil
}

// decodeAPIError extracts the provider error envelope, falling back to a
// synthetic APIError when the body is not the documented shape.
func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		env.Error.Raw = body
		if env.Error.Code == 0 {
			env.Error.Code = resp.StatusCode
		}
		return env.Error
	}

	return &APIError{
		Code:    resp.StatusCode,
		Status:  http.StatusText(resp.StatusCode),
		Message: string(body),
		Raw:     body,
	}
}

func candidateText(cands []candidate) string {
	var b strings.Builder
	for _, cand := range cands {
		for _, p := range cand.Content.Parts {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}
