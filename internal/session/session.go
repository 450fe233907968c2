// Package session coordinates the persona, the conversation log, the model
// client and local storage for one user.
//
// Every mutation is persisted before the call returns. A failed model call
// leaves the log as it was at the moment of failure: a user message stays,
// and a partially streamed reply keeps whatever text arrived.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/r3d91ll/innercritic/internal/analysis"
	"github.com/r3d91ll/innercritic/internal/conversation"
	"github.com/r3d91ll/innercritic/internal/llm"
	"github.com/r3d91ll/innercritic/internal/persona"
	"github.com/r3d91ll/innercritic/internal/storage"
)

var (
	ErrNoPersona      = errors.New("no inner critic defined yet")
	ErrNotUserMessage = errors.New("only your own messages can be analyzed")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrNoDescription  = errors.New("describe the critic's appearance first")
)

// Model is the part of the llm client the session uses.
type Model interface {
	CompleteChat(ctx context.Context, req llm.ChatRequest) (string, error)
	StreamChat(ctx context.Context, req llm.ChatRequest, cb llm.StreamCallbacks) error
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// Analyzer produces distortion analyses.
type Analyzer interface {
	Analyze(ctx context.Context, p *persona.Persona, messageID, message string) (analysis.Analysis, error)
}

// Sampling holds per-task generation limits.
type Sampling struct {
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// Config tunes the session.
type Config struct {
	Critic       Sampling `yaml:"critic"`
	HealthyAdult Sampling `yaml:"healthy_adult"`
	Therapist    Sampling `yaml:"therapist"`
	// HealthyAdultReplies answers every critic reply with a healthy-adult
	// counter-response.
	HealthyAdultReplies bool `yaml:"healthy_adult_replies"`
	// HistoryTokens caps the history sent with each request. Zero sends
	// everything.
	HistoryTokens int `yaml:"history_tokens"`
}

// DefaultConfig returns the standard sampling settings.
func DefaultConfig() Config {
	return Config{
		Critic:              Sampling{MaxTokens: 500, Temperature: 0.8},
		HealthyAdult:        Sampling{MaxTokens: 1000, Temperature: 0.7},
		Therapist:           Sampling{MaxTokens: 1000, Temperature: 0.7},
		HealthyAdultReplies: true,
		HistoryTokens:       24000,
	}
}

// state is what gets persisted under storage.KeyCriticState.
type state struct {
	Persona  *persona.Persona       `json:"critic"`
	Messages []conversation.Message `json:"chatHistory"`
}

// Session is safe for concurrent use.
type Session struct {
	cfg      Config
	model    Model
	analyzer Analyzer
	store    storage.KV
	env      llm.EnvKey
	logger   *zap.Logger

	mu      sync.Mutex // guards persona and serializes saves
	persona *persona.Persona
	log     *conversation.Log
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithEnvKey overrides how environment keys are looked up for APIKeyStatus.
func WithEnvKey(env llm.EnvKey) Option {
	return func(s *Session) { s.env = env }
}

// New loads any persisted state from store.
func New(ctx context.Context, cfg Config, model Model, analyzer Analyzer, store storage.KV, opts ...Option) (*Session, error) {
	s := &Session{
		cfg:      cfg,
		model:    model,
		analyzer: analyzer,
		store:    store,
		env:      llm.EnvKey{Names: llm.DefaultKeyEnv},
		logger:   zap.NewNop(),
		log:      conversation.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	var st state
	err := storage.GetJSON(ctx, store, storage.KeyCriticState, &st)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to load session: %w", err)
	default:
		if st.Persona != nil {
			if err := st.Persona.Validate(); err != nil {
				return nil, fmt.Errorf("stored critic is invalid: %w", err)
			}
		}
		s.persona = st.Persona
		s.log.Restore(st.Messages)
		s.logger.Info("session restored",
			zap.Bool("has_persona", st.Persona != nil),
			zap.Int("messages", len(st.Messages)))
	}
	return s, nil
}

// saveLocked persists the current state. Caller must hold s.mu.
func (s *Session) saveLocked(ctx context.Context) error {
	st := state{Persona: s.persona, Messages: s.log.Snapshot()}
	if err := storage.PutJSON(ctx, s.store, storage.KeyCriticState, st); err != nil {
		s.logger.Error("failed to persist session", zap.Error(err))
		return err
	}
	return nil
}

func (s *Session) save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx)
}

// Persona returns a copy of the current persona.
func (s *Session) Persona() (persona.Persona, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persona == nil {
		return persona.Persona{}, false
	}
	return *s.persona, true
}

func (s *Session) personaRef() *persona.Persona {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persona == nil {
		return nil
	}
	p := *s.persona
	return &p
}

// Messages returns the conversation in order.
func (s *Session) Messages() []conversation.Message {
	return s.log.Messages()
}

// Message returns one message by id.
func (s *Session) Message(id string) (conversation.Message, bool) {
	return s.log.Get(id)
}

// InitializePersona starts over with an empty persona and an empty chat.
func (s *Session) InitializePersona(ctx context.Context) (persona.Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := persona.New()
	s.persona = &p
	s.log.Clear()
	return p, s.saveLocked(ctx)
}

// ResetPersona removes the persona and the chat.
func (s *Session) ResetPersona(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.persona = nil
	s.log.Clear()
	return s.saveLocked(ctx)
}

// UpdatePersona applies fn to the current persona and stores the result.
// Nothing changes when fn fails.
func (s *Session) UpdatePersona(ctx context.Context, fn func(persona.Persona) (persona.Persona, error)) (persona.Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.persona == nil {
		return persona.Persona{}, ErrNoPersona
	}
	next, err := fn(*s.persona)
	if err != nil {
		return *s.persona, err
	}
	s.persona = &next
	return next, s.saveLocked(ctx)
}

// ClearChat removes all messages and keeps the persona.
func (s *Session) ClearChat(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Clear()
	return s.saveLocked(ctx)
}

// SetAPIKey stores a user-provided key. An empty key removes it.
func (s *Session) SetAPIKey(ctx context.Context, key string) error {
	return llm.StoredKey{Store: s.store}.Set(ctx, key)
}

// APIKeyStatus reports where the active key comes from.
func (s *Session) APIKeyStatus(ctx context.Context) llm.KeySource {
	return llm.ResolveSource(ctx, s.env, llm.StoredKey{Store: s.store})
}

func cleanMessage(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	return text, nil
}
