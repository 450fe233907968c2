package analysis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/r3d91ll/innercritic/internal/llm"
	"github.com/r3d91ll/innercritic/internal/persona"
	"github.com/r3d91ll/innercritic/internal/prompts"
)

// Completer issues one non-streamed completion.
type Completer interface {
	CompleteChat(ctx context.Context, req llm.ChatRequest) (string, error)
}

// Config tunes analysis requests.
type Config struct {
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	// Structured asks the service for schema-constrained output.
	Structured bool `yaml:"structured"`
}

// DefaultConfig favors deterministic output.
func DefaultConfig() Config {
	return Config{MaxTokens: 2000, Temperature: 0.3, Structured: true}
}

// Mapper requests analyses and maps them onto their source messages.
type Mapper struct {
	llm    Completer
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Mapper) { m.logger = l }
}

// WithClock replaces time.Now for CreatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(m *Mapper) { m.now = now }
}

// NewMapper creates a mapper.
func NewMapper(c Completer, cfg Config, opts ...Option) *Mapper {
	m := &Mapper{llm: c, cfg: cfg, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Analyze asks the model to find critic phrases in message. Completion
// failures are returned. An answer that cannot be parsed is not an error:
// it yields an analysis with no segments and an empty response.
//
// The analysis prompt does not depend on the persona; p is accepted so
// callers need not special-case it.
func (m *Mapper) Analyze(ctx context.Context, p *persona.Persona, messageID, message string) (Analysis, error) {
	req := llm.ChatRequest{
		Task:         string(prompts.TaskAnalysis),
		SystemPrompt: prompts.Build(p, prompts.TaskAnalysis),
		UserMessage:  fmt.Sprintf("Analyze this message:\n\n%s", message),
		MaxTokens:    m.cfg.MaxTokens,
		Temperature:  m.cfg.Temperature,
		// An empty answer maps to the empty result.
		Placeholder: `{"critic_segments": [], "healthy_adult_response": ""}`,
	}
	if m.cfg.Structured {
		req.ResponseFormat = ResponseFormat()
	}

	raw, err := m.llm.CompleteChat(ctx, req)
	if err != nil {
		return Analysis{}, err
	}

	result, ok := ParseResult(raw)
	if !ok {
		m.logger.Warn("analysis output unparseable, using empty result",
			zap.String("message_id", messageID),
			zap.Int("chars", len(raw)))
	}

	a := Map(messageID, message, result, m.now())
	unresolved := 0
	for _, s := range a.Segments {
		if !s.Resolved(message) {
			unresolved++
		}
	}
	m.logger.Debug("analysis mapped",
		zap.String("message_id", messageID),
		zap.Int("segments", len(a.Segments)),
		zap.Int("unresolved", unresolved))
	return a, nil
}
