// Package ollama implements a minimal client for ollama-compatible chat
// endpoints, shared by all classifier adapters.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	// DefaultEndpoint is the standard local ollama address.
	DefaultEndpoint = "http://localhost:11434"

	maxRetries = 2
	retryDelay = 200 * time.Millisecond
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// APIError represents a non-2xx response from the model service.
type APIError struct {
	StatusCode int
	Body       string // first 512 bytes
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures Client behavior.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// Client talks to an ollama-compatible /api/chat endpoint.
// The per-call deadline always comes from the caller's context; the
// client itself sets no timeout, so one budget governs retries too.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client for the given base URL. Empty means DefaultEndpoint.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultEndpoint
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatResponse struct {
	Message Message `json:"message"`
}

// Chat sends one conversation and returns the assistant reply text.
// Transport failures and 5xx responses are retried with a short constant
// backoff, bounded by the context deadline.
func (c *Client) Chat(ctx context.Context, model string, messages []Message) (string, error) {
	payload, err := json.Marshal(chatRequest{Model: model, Messages: messages, Stream: false})
	if err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}

	var reply string
	backoff := retry.WithMaxRetries(maxRetries, retry.NewConstant(retryDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return retry.RetryableError(err)
		}

		if resp.StatusCode >= 500 {
			return retry.RetryableError(apiError(resp.StatusCode, body))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return apiError(resp.StatusCode, body)
		}

		var cr chatResponse
		if err := json.Unmarshal(body, &cr); err != nil {
			return fmt.Errorf("ollama: decode response: %w", err)
		}
		reply = cr.Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}

func apiError(status int, body []byte) *APIError {
	s := string(body)
	if len(s) > 512 {
		s = s[:512]
	}
	return &APIError{StatusCode: status, Body: s}
}
