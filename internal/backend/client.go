// Package backend talks to the RAG chat backend over HTTP.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Rorical/ragchat/internal/models"
	"github.com/Rorical/ragchat/internal/stream"
)

const (
	ChatPath   = "/chat-submit"
	StatusPath = "/status"
	UploadPath = "/upload"
	IngestPath = "/ingest"

	// Error bodies are only read for diagnostics.
	maxErrorBody = 4 << 10
)

type ClientConfig struct {
	BaseURL string
	// RequestTimeout bounds status, upload-trigger and ingest calls.
	RequestTimeout time.Duration
	// HeaderTimeout bounds the wait for chat response headers. The chat body
	// itself streams without a deadline.
	HeaderTimeout time.Duration
}

// Client is safe for concurrent use.
type Client struct {
	baseURL        string
	requestTimeout time.Duration
	httpClient     *http.Client
	logger         *zap.Logger
}

func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.HeaderTimeout > 0 {
		transport.ResponseHeaderTimeout = cfg.HeaderTimeout
	}
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		requestTimeout: cfg.RequestTimeout,
		httpClient:     &http.Client{Transport: transport},
		logger:         logger.Named("backend"),
	}
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

type chatRequest struct {
	Message string `json:"message"`
}

// OpenStream submits a chat message and returns the streamed reply body.
// Only a 200 response counts as accepted.
func (c *Client) OpenStream(ctx context.Context, message string) (stream.Source, error) {
	payload, err := json.Marshal(chatRequest{Message: message})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(ChatPath), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "chat-submit", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, newHTTPError("chat-submit", resp)
	}

	c.logger.Debug("chat stream opened", zap.String("content_type", resp.Header.Get("Content-Type")))
	return &bodySource{ReaderSource: stream.NewReaderSource(resp.Body)}, nil
}

// FetchStatus retrieves one status snapshot.
func (c *Client) FetchStatus(ctx context.Context) (models.StatusSnapshot, error) {
	var snap models.StatusSnapshot

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(StatusPath), nil)
	if err != nil {
		return snap, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return snap, &TransportError{Op: "status", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return snap, newHTTPError("status", resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return models.StatusSnapshot{}, fmt.Errorf("decode status: %w", err)
	}
	if !snap.IngestionStatus.Valid() {
		c.logger.Warn("unknown ingestion status", zap.String("status", string(snap.IngestionStatus)))
	}
	return snap, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}

func newHTTPError(op string, resp *http.Response) *HTTPError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &HTTPError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
}

// bodySource reports mid-stream read failures as transport errors.
type bodySource struct {
	*stream.ReaderSource
}

func (s *bodySource) Next(ctx context.Context) ([]byte, error) {
	chunk, err := s.ReaderSource.Next(ctx)
	if err != nil && !errors.Is(err, io.EOF) && ctx.Err() == nil {
		return nil, &TransportError{Op: "chat-read", Err: err}
	}
	return chunk, err
}
