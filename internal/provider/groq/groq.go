// Package groq implements provider.Generator against any API that speaks the
// OpenAI chat completions interface (Groq, Mistral, DeepSeek, Together, vLLM,
// etc.) via a configurable base_url.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/inkonio/doppelbot/internal/provider"
)

// maxErrorBody bounds how much of an error response is read for diagnostics.
const maxErrorBody = 2048

// Compile-time interface guard.
var _ provider.Generator = (*Client)(nil)

// Client is an OpenAI-compatible chat completions client.
type Client struct {
	config Config
	http   *http.Client
	logger *slog.Logger
}

// New creates a Client with the given config. Defaults are applied; call
// Config.Validate before handing the config over.
func New(cfg Config, logger *slog.Logger) *Client {
	cfg.Defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config: cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With("component", "provider"),
	}
}

// ModelName implements provider.Generator.
func (c *Client) ModelName() string {
	return c.config.Model
}

// chat completions wire types.

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float64      `json:"temperature,omitempty"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate implements provider.Generator. It performs exactly one request
// with the configured timeout; the caller decides what to do on failure.
func (c *Client) Generate(ctx context.Context, req provider.Request) (string, error) {
	messages := make([]oaiMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = oaiMessage{Role: string(m.Role), Content: m.Content}
	}

	body, err := json.Marshal(oaiRequest{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("provider: marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("provider: create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return "", fmt.Errorf("%w: timeout after %s", provider.ErrBackendDown, c.config.Timeout)
		}
		return "", fmt.Errorf("%w: %w", provider.ErrBackendDown, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", c.classifyError(resp)
	}

	var oaiResp oaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaiResp); err != nil {
		return "", fmt.Errorf("provider: decode response: %w", err)
	}

	if len(oaiResp.Choices) == 0 {
		return "", provider.ErrEmptyCompletion
	}
	content := strings.TrimSpace(oaiResp.Choices[0].Message.Content)
	if content == "" {
		return "", provider.ErrEmptyCompletion
	}
	return content, nil
}

// classifyError maps a non-200 response to a sentinel error, keeping an
// excerpt of the body for operators.
func (c *Client) classifyError(resp *http.Response) error {
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	c.logger.Warn("backend error response",
		"status", resp.StatusCode,
		"body", string(excerpt),
	)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP 429", provider.ErrRateLimited)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d", provider.ErrBackendDown, resp.StatusCode)
	default:
		return fmt.Errorf("%w: HTTP %d", provider.ErrBadRequest, resp.StatusCode)
	}
}
