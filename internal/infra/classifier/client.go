// Package classifier talks to an OpenAI-compatible chat completion endpoint.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/vietddude/labeler/internal/core/config"
)

// maxBodySize caps how much of a reply is read.
const maxBodySize = 1 << 20

// Client sends one classification request per call. It does no retrying.
type Client struct {
	cfg        config.ClassifierConfig
	httpClient *http.Client
	now        func() time.Time
}

// New creates a client with separate connect and read timeouts.
func New(cfg config.ClassifierConfig) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			// Whole-exchange ceiling; the transport enforces each phase.
			Timeout: cfg.ConnectTimeout + cfg.ReadTimeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   cfg.ConnectTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   cfg.ConnectTimeout,
				ResponseHeaderTimeout: cfg.ReadTimeout,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   100,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		now: time.Now,
	}
}

// BuildPrompt embeds text, trimmed and cut to the configured rune limit,
// into the user prompt.
func (c *Client) BuildPrompt(text string) string {
	text = strings.TrimSpace(text)
	if max := c.cfg.MaxTextLength; max > 0 {
		if r := []rune(text); len(r) > max {
			text = string(r[:max])
		}
	}
	return strings.Replace(c.cfg.UserPrompt, config.TextPlaceholder, text, 1)
}

// Classify sends text to the service and returns the reply content.
// Non-2xx replies return *StatusError; transport failures return *NetworkError.
func (c *Client) Classify(ctx context.Context, text string) (string, error) {
	reqBody := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.cfg.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: c.BuildPrompt(text)},
		},
		Temperature:      c.cfg.Temperature,
		TopP:             c.cfg.TopP,
		FrequencyPenalty: c.cfg.FrequencyPenalty,
		MaxTokens:        c.cfg.MaxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", newNetworkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", newNetworkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		if resp.StatusCode == http.StatusTooManyRequests {
			statusErr.RetryAfter, statusErr.HasRetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), c.now())
		}
		return "", statusErr
	}

	var completion openai.ChatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformedReply)
	}

	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
