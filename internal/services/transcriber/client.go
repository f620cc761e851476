package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"scribe/internal/config"
	"scribe/internal/services"
)

const (
	defaultHTTPTimeout = 5 * time.Minute
	transcribePath     = "/v1/transcribe"
)

// Request carries the per-job knobs forwarded to the vendor.
type Request struct {
	Language       string `json:"language,omitempty"`
	Format         string `json:"format,omitempty"`
	Timestamps     bool   `json:"timestamps"`
	WordTimestamps bool   `json:"word_timestamps"`
}

// Segment is one timed span of transcript text, boundaries in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Word is one word-level timing entry.
type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

// Result is the normalized transcription output. SRT and VTT are rendered
// locally from segments when the vendor omits them.
type Result struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
	Words    []Word    `json:"words"`
	SRT      string    `json:"srt,omitempty"`
	VTT      string    `json:"vtt,omitempty"`
}

// Client wraps the external speech-to-text HTTP API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option customizes the transcription client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a transcription API client.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// NewFromConfig builds a client from daemon configuration.
func NewFromConfig(cfg *config.Config) *Client {
	timeout := defaultHTTPTimeout
	if cfg.Transcriber.RequestTimeout > 0 {
		timeout = time.Duration(cfg.Transcriber.RequestTimeout) * time.Second
	}
	return NewClient(cfg.Transcriber.BaseURL, cfg.Transcriber.APIKey,
		WithHTTPClient(&http.Client{Timeout: timeout}))
}

type transcribeRequest struct {
	AudioURL string `json:"audio_url"`
	Request
}

// TranscribeFromURL submits a remote audio file for transcription and blocks
// until the vendor responds. Non-success vendor responses surface as upstream
// errors.
func (c *Client) TranscribeFromURL(ctx context.Context, audioURL string, req Request) (*Result, error) {
	if strings.TrimSpace(audioURL) == "" {
		return nil, services.Wrap(services.ErrValidation, "transcriber", "transcribe", "audio url required", nil)
	}

	endpoint, err := url.JoinPath(c.baseURL, transcribePath)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "transcriber", "transcribe", "build url", err)
	}
	encoded, err := json.Marshal(transcribeRequest{AudioURL: audioURL, Request: req})
	if err != nil {
		return nil, fmt.Errorf("encode transcribe request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build transcribe request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstream, "transcriber", "transcribe", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstream, "transcriber", "transcribe", "read response", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, services.Wrap(services.ErrUpstream, "transcriber", "transcribe",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, services.Wrap(services.ErrUpstream, "transcriber", "transcribe", "decode response", err)
	}

	normalize(&result, req.Format)
	return &result, nil
}

// normalize fills fields the vendor response may omit: duration derived from
// the final segment boundary, and subtitle renderings when the requested
// format calls for them.
func normalize(result *Result, format string) {
	if result.Duration == 0 && len(result.Segments) > 0 {
		result.Duration = result.Segments[len(result.Segments)-1].End
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "srt":
		if result.SRT == "" {
			result.SRT = RenderSRT(result.Segments)
		}
	case "vtt":
		if result.VTT == "" {
			result.VTT = RenderVTT(result.Segments)
		}
	}
}
