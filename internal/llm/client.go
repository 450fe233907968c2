// Package llm talks to an OpenAI-compatible chat completions service
// (OpenRouter by default).
//
// The client supports three operations: a single-shot completion, an
// SSE-streamed completion delivered through callbacks, and image
// generation. The API key is resolved from a CredentialSource on every
// call, and a missing key fails before any network traffic.
package llm

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

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/r3d91ll/innercritic/internal/telemetry"
)

// Placeholders returned instead of an empty answer.
const (
	CriticPlaceholder       = "The critic remains silent..."
	HealthyAdultPlaceholder = "The Healthy Adult is here with you."
	DefaultPlaceholder      = "I'm here with you."
)

// maxResponseBytes bounds how much of a non-streamed body is read.
const maxResponseBytes = 10 << 20

// Message is one chat turn sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest describes a completion. SystemPrompt and UserMessage are
// wrapped around History in that order; empty ones are left out.
type ChatRequest struct {
	// Task labels the call in logs and spans ("critic", "analysis", ...).
	Task         string
	Model        string // defaults to Config.ChatModel
	SystemPrompt string
	History      []Message
	UserMessage  string
	MaxTokens    int
	Temperature  float64
	// Placeholder replaces an empty answer. Defaults to DefaultPlaceholder.
	Placeholder string
	// ResponseFormat requests structured output. If the service rejects
	// it, the request is retried once without it.
	ResponseFormat *ResponseFormat
}

// Messages returns the wire message list for the request.
func (r ChatRequest) Messages() []Message {
	messages := make([]Message, 0, len(r.History)+2)
	if r.SystemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: r.SystemPrompt})
	}
	messages = append(messages, r.History...)
	if r.UserMessage != "" {
		messages = append(messages, Message{Role: "user", Content: r.UserMessage})
	}
	return messages
}

func (r ChatRequest) placeholder() string {
	if r.Placeholder == "" {
		return DefaultPlaceholder
	}
	return r.Placeholder
}

// Config holds connection settings for the model service.
type Config struct {
	BaseURL    string        `yaml:"base_url"`
	ChatModel  string        `yaml:"chat_model"`
	ImageModel string        `yaml:"image_model"`
	SiteURL    string        `yaml:"site_url"`  // sent as HTTP-Referer
	SiteName   string        `yaml:"site_name"` // sent as X-Title
	Timeout    time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the OpenRouter defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:    "https://openrouter.ai/api/v1",
		ChatModel:  "openai/gpt-5",
		ImageModel: "google/gemini-2.5-flash-image",
		SiteURL:    "http://localhost",
		SiteName:   "Inner Critic Builder",
		Timeout:    2 * time.Minute,
	}
}

// Client is a chat completions client. It is safe for concurrent use.
type Client struct {
	cfg        Config
	creds      CredentialSource
	httpClient *http.Client
	logger     *zap.Logger
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTracer sets the tracer used for model call spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// New creates a client.
func New(cfg Config, creds CredentialSource, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	c := &Client{
		cfg:        cfg,
		creds:      creds,
		httpClient: &http.Client{Timeout: timeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.creds == nil {
		c.creds = StaticKey("")
	}
	return c
}

// Config returns the client's configuration.
func (c *Client) Config() Config {
	return c.cfg
}

func (c *Client) apiKey(ctx context.Context) (string, error) {
	key, err := c.creds.APIKey(ctx)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", ErrNoCredential
	}
	return key, nil
}

func (c *Client) newRequest(ctx context.Context, method, path, key string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	if c.cfg.SiteURL != "" {
		req.Header.Set("HTTP-Referer", c.cfg.SiteURL)
	}
	if c.cfg.SiteName != "" {
		req.Header.Set("X-Title", c.cfg.SiteName)
	}
	return req, nil
}

// do sends req and turns transport and status failures into errors. The
// caller closes the returned body.
func (c *Client) do(ctx context.Context, req *http.Request, op string) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx.Err())
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		return nil, &StatusError{Operation: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return resp, nil
}

func (c *Client) model(req ChatRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return c.cfg.ChatModel
}

func (c *Client) chatPayload(req ChatRequest, messages []Message, stream bool) chatRequest {
	temp := req.Temperature
	return chatRequest{
		Model:          c.model(req),
		Messages:       messages,
		MaxTokens:      req.MaxTokens,
		Temperature:    &temp,
		Stream:         stream,
		ResponseFormat: req.ResponseFormat,
	}
}

// CompleteChat sends req and returns the whole answer. An empty or
// unreadable answer in a successful response yields req's placeholder.
func (c *Client) CompleteChat(ctx context.Context, req ChatRequest) (string, error) {
	ctx, span := telemetry.StartLLMSpan(ctx, c.tracer, "llm.complete", c.model(req), req.Task)
	defer span.End()

	key, err := c.apiKey(ctx)
	if err != nil {
		span.SetError(err)
		return "", err
	}

	messages := req.Messages()
	span.SetInputSize(len(messages), countChars(messages))

	content, err := c.complete(ctx, key, c.chatPayload(req, messages, false))
	var se *StatusError
	if errors.As(err, &se) && req.ResponseFormat != nil && rejectsResponseFormat(se) {
		c.logger.Warn("response_format rejected, retrying without it",
			zap.String("task", req.Task),
			zap.Int("status", se.StatusCode))
		payload := c.chatPayload(req, messages, false)
		payload.ResponseFormat = nil
		content, err = c.complete(ctx, key, payload)
	}
	if err != nil {
		span.SetError(err)
		c.logger.Error("completion failed", zap.String("task", req.Task), zap.Error(err))
		return "", err
	}

	if strings.TrimSpace(content) == "" {
		span.SetPlaceholder()
		content = req.placeholder()
	}
	span.SetOutputSize(len(content))
	c.logger.Debug("completion finished",
		zap.String("task", req.Task),
		zap.Int("chars", len(content)))
	return content, nil
}

func (c *Client) complete(ctx context.Context, key string, payload chatRequest) (string, error) {
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/chat/completions", key, payload)
	if err != nil {
		return "", err
	}
	resp, err := c.do(ctx, httpReq, "completion")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctx.Err() != nil {
			return "", cancelled(ctx.Err())
		}
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(data, &chatResp); err != nil {
		// A malformed body on a 200 is treated like an empty answer.
		c.logger.Warn("unreadable completion body", zap.Error(err))
		return "", nil
	}
	if chatResp.Error != nil {
		return "", chatResp.Error
	}
	if len(chatResp.Choices) == 0 {
		return "", nil
	}
	return chatResp.Choices[0].Message.Content, nil
}

func rejectsResponseFormat(se *StatusError) bool {
	if se.StatusCode != http.StatusBadRequest {
		return false
	}
	body := strings.ToLower(se.Body)
	return strings.Contains(body, "response_format") || strings.Contains(body, "json_schema")
}

func countChars(messages []Message) int {
	n := 0
	for _, m := range messages {
		n += len(m.Content)
	}
	return n
}
