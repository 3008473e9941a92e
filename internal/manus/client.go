// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package manus

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the LocalManus client.
type ClientConfig struct {
	// BaseURL is the backend base URL (default: http://127.0.0.1:8000)
	BaseURL string

	// AccessToken is the bearer credential. Empty means anonymous; the chat
	// request then omits the access_token parameter entirely.
	AccessToken string

	// ConnectTimeout bounds connection establishment and response headers for
	// the streaming chat request. The open body itself has no read deadline;
	// stream liveness is the transport's concern, not a protocol one.
	ConnectTimeout time.Duration

	// UploadTimeout bounds the whole multipart upload request (default: 60s).
	UploadTimeout time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:        "http://127.0.0.1:8000",
		ConnectTimeout: 10 * time.Second,
		UploadTimeout:  60 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the LocalManus backend.
//
// The Client is safe for concurrent use. Configuration can be swapped at
// runtime (config file reload) without disturbing streams already in flight.
type Client struct {
	mu     sync.RWMutex
	config *ClientConfig

	// streamClient has no overall timeout; a deadline would kill long
	// streams. uploadClient carries the upload timeout.
	streamClient *http.Client
	uploadClient *http.Client

	logger *slog.Logger
}

// NewClient creates a new client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:8000"
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	if config.UploadTimeout == 0 {
		config.UploadTimeout = 60 * time.Second
	}

	return &Client{
		config:       config,
		streamClient: newStreamClient(config.ConnectTimeout),
		uploadClient: &http.Client{Timeout: config.UploadTimeout},
		logger:       slog.Default(),
	}
}

// newStreamClient builds the client used for the chat stream. The header
// timeout bounds connection establishment; the open body deliberately has no
// read deadline, since a quiet stream is a liveness concern, not an error.
func newStreamClient(connectTimeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			ResponseHeaderTimeout: connectTimeout,
		},
	}
}

// SetLogger replaces the client's logger.
func (c *Client) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = logger
}

// UpdateConfig swaps the client configuration. In-flight streams keep the
// settings they were dispatched with.
func (c *Client) UpdateConfig(config *ClientConfig) {
	if config == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config = config
	c.streamClient = newStreamClient(config.ConnectTimeout)
	c.uploadClient = &http.Client{Timeout: config.UploadTimeout}
}

// SetAccessToken updates only the bearer credential.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cfg := *c.config
	cfg.AccessToken = token
	c.config = &cfg
}

func (c *Client) snapshot() (*ClientConfig, *slog.Logger) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config, c.logger
}

func (c *Client) httpClients() (stream, upload *http.Client) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.streamClient, c.uploadClient
}

// =============================================================================
// CHAT STREAMING
// =============================================================================

// ChatParams describes one outbound turn.
type ChatParams struct {
	// Input is the user's literal text. May be empty when attachments carry
	// the whole submission.
	Input string

	// SessionID is the conversation identity current at dispatch time.
	SessionID string

	// FilePaths are server-known attachment paths, sent comma-joined.
	FilePaths []string
}

// ChatStream is one open answer stream. Process must be called exactly once;
// it closes the body when it returns.
type ChatStream struct {
	body   io.ReadCloser
	reader *StreamReader
}

// Chat issues the streaming chat request and returns once response headers
// arrive, i.e. once the answer has started. A non-success status is reported
// as a *ClientError with ErrTypeStatus; no stream is returned in that case.
func (c *Client) Chat(ctx context.Context, params ChatParams) (*ChatStream, error) {
	config, logger := c.snapshot()

	query := url.Values{}
	query.Set("input", params.Input)
	query.Set("session_id", params.SessionID)
	if len(params.FilePaths) > 0 {
		query.Set("file_paths", strings.Join(params.FilePaths, ","))
	}
	if config.AccessToken != "" {
		query.Set("access_token", config.AccessToken)
	}

	endpoint := strings.TrimRight(config.BaseURL, "/") + "/api/chat?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "failed to build chat request", Cause: err}
	}
	req.Header.Set("Accept", "text/event-stream")

	streamClient, _ := c.httpClients()
	resp, err := streamClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, &ClientError{Type: ErrTypeConnection, Message: "chat request failed", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &ClientError{
			Type:    ErrTypeStatus,
			Message: "unexpected status from backend: " + resp.Status,
		}
	}

	return &ChatStream{
		body:   resp.Body,
		reader: NewStreamReader(resp.Body, logger),
	}, nil
}

// Process drains the stream, delivering events to the callback in arrival
// order, then closes the body. See StreamReader.Process for semantics.
func (s *ChatStream) Process(ctx context.Context, callback EventCallback) error {
	defer s.body.Close()
	return s.reader.Process(ctx, callback)
}

// Dropped returns how many malformed payloads the stream skipped.
func (s *ChatStream) Dropped() int {
	return s.reader.Dropped()
}

// =============================================================================
// FILE UPLOAD
// =============================================================================

// Upload sends one local file to the backend and returns its attachment
// reference. The token travels in an Authorization header here, unlike the
// chat request's query parameter; the backend accepts both forms.
func (c *Client) Upload(ctx context.Context, path string) (*UploadedFile, error) {
	config, _ := c.snapshot()

	file, err := os.Open(path)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "cannot open file", Cause: err}
	}
	defer file.Close()

	var body strings.Builder
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "cannot build upload form", Cause: err}
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "cannot read file", Cause: err}
	}
	if err := writer.Close(); err != nil {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "cannot finish upload form", Cause: err}
	}

	endpoint := strings.TrimRight(config.BaseURL, "/") + "/api/upload"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body.String()))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "failed to build upload request", Cause: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if config.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+config.AccessToken)
	}

	_, uploadClient := c.httpClients()
	resp, err := uploadClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, &ClientError{Type: ErrTypeConnection, Message: "upload request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ClientError{
			Type:    ErrTypeStatus,
			Message: "unexpected status from upload: " + resp.Status,
		}
	}

	var uploaded UploadedFile
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "malformed upload response", Cause: err}
	}
	return &uploaded, nil
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// CheckRunning verifies that the backend is reachable.
func (c *Client) CheckRunning(ctx context.Context) error {
	config, _ := c.snapshot()

	ctx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, config.BaseURL, nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	_, uploadClient := c.httpClients()
	resp, err := uploadClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ErrNotRunning
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:    ErrTypeStatus,
			Message: "unexpected status from backend: " + resp.Status,
		}
	}
	return nil
}
