package staging

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
	defaultHTTPTimeout  = 60 * time.Second
	defaultPollInterval = 5 * time.Second
	defaultReadyTimeout = 20 * time.Minute
)

// Video processing states reported by the staging service.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusError      = "error"
)

// Video describes a staged media resource.
type Video struct {
	UID    string `json:"uid"`
	Status string `json:"status"`
}

// UploadMeta tags a staging resource so operators can trace it back to a job.
type UploadMeta struct {
	Name  string `json:"name,omitempty"`
	JobID string `json:"jobId,omitempty"`
}

// Client wraps the external video-processing service: upload a video by URL,
// wait for audio extraction, resolve the audio download URL, delete.
type Client struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	readyTimeout time.Duration
}

// Option customizes the staging client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithPollInterval overrides how often WaitForProcessing polls.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// WithReadyTimeout bounds how long WaitForProcessing blocks.
func WithReadyTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.readyTimeout = timeout
		}
	}
}

// NewClient constructs a staging service client.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:       strings.TrimSpace(apiKey),
		baseURL:      strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient:   &http.Client{Timeout: defaultHTTPTimeout},
		pollInterval: defaultPollInterval,
		readyTimeout: defaultReadyTimeout,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// NewFromConfig builds a client from daemon configuration.
func NewFromConfig(cfg *config.Config) *Client {
	opts := []Option{}
	if cfg.Staging.RequestTimeout > 0 {
		opts = append(opts, WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Staging.RequestTimeout) * time.Second,
		}))
	}
	if cfg.Staging.PollInterval > 0 {
		opts = append(opts, WithPollInterval(time.Duration(cfg.Staging.PollInterval)*time.Second))
	}
	if cfg.Staging.ReadyTimeout > 0 {
		opts = append(opts, WithReadyTimeout(time.Duration(cfg.Staging.ReadyTimeout)*time.Second))
	}
	return NewClient(cfg.Staging.BaseURL, cfg.Staging.APIKey, opts...)
}

type uploadRequest struct {
	URL  string     `json:"url"`
	Meta UploadMeta `json:"meta"`
}

// UploadVideoFromURL asks the staging service to pull and ingest a remote
// video. The returned UID identifies the staging resource for all later calls.
func (c *Client) UploadVideoFromURL(ctx context.Context, videoURL string, meta UploadMeta) (*Video, error) {
	if strings.TrimSpace(videoURL) == "" {
		return nil, services.Wrap(services.ErrValidation, "staging", "upload", "video url required", nil)
	}

	var video Video
	if err := c.do(ctx, http.MethodPost, "/videos", uploadRequest{URL: videoURL, Meta: meta}, &video); err != nil {
		return nil, services.Wrap(services.ErrUpstream, "staging", "upload", "", err)
	}
	if video.UID == "" {
		return nil, services.Wrap(services.ErrUpstream, "staging", "upload", "response missing uid", nil)
	}
	return &video, nil
}

// WaitForProcessing polls the staging service until the resource is ready.
// It returns a timeout error when the ready deadline expires and an upstream
// error when the service reports a processing failure.
func (c *Client) WaitForProcessing(ctx context.Context, uid string) (*Video, error) {
	deadline := time.Now().Add(c.readyTimeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		var video Video
		if err := c.do(ctx, http.MethodGet, "/videos/"+url.PathEscape(uid), nil, &video); err != nil {
			return nil, services.Wrap(services.ErrUpstream, "staging", "wait", "", err)
		}
		switch video.Status {
		case StatusReady:
			return &video, nil
		case StatusError:
			return nil, services.Wrap(services.ErrUpstream, "staging", "wait",
				fmt.Sprintf("processing failed for %s", uid), nil)
		}

		if time.Now().After(deadline) {
			return nil, services.Wrap(services.ErrTimeout, "staging", "wait",
				fmt.Sprintf("media %s not ready within %s", uid, c.readyTimeout), nil)
		}
		select {
		case <-ctx.Done():
			return nil, services.Wrap(services.ErrTimeout, "staging", "wait", "", ctx.Err())
		case <-ticker.C:
		}
	}
}

type downloadResponse struct {
	AudioURL string `json:"audioUrl"`
}

// AudioDownloadURL resolves the extracted-audio download URL for a staged video.
func (c *Client) AudioDownloadURL(ctx context.Context, uid string) (string, error) {
	var resp downloadResponse
	if err := c.do(ctx, http.MethodGet, "/videos/"+url.PathEscape(uid)+"/audio", nil, &resp); err != nil {
		return "", services.Wrap(services.ErrUpstream, "staging", "audio url", "", err)
	}
	if resp.AudioURL == "" {
		return "", services.Wrap(services.ErrUpstream, "staging", "audio url", "response missing audio url", nil)
	}
	return resp.AudioURL, nil
}

// DeleteVideo removes a staged resource. Callers treat failures as
// best-effort cleanup problems, not pipeline failures.
func (c *Client) DeleteVideo(ctx context.Context, uid string) error {
	if err := c.do(ctx, http.MethodDelete, "/videos/"+url.PathEscape(uid), nil, nil); err != nil {
		return services.Wrap(services.ErrUpstream, "staging", "delete", "", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("build url: %w", err)
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
