package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/r3d91ll/innercritic/internal/analysis"
	"github.com/r3d91ll/innercritic/internal/conversation"
	"github.com/r3d91ll/innercritic/internal/llm"
	"github.com/r3d91ll/innercritic/internal/prompts"
)

// CriticExchange is the outcome of one critic-mode turn.
type CriticExchange struct {
	User         conversation.Message  `json:"user"`
	Critic       conversation.Message  `json:"critic"`
	HealthyAdult *conversation.Message `json:"healthyAdult,omitempty"`
}

// TalkToCritic sends text to the critic. When healthy-adult replies are
// enabled, the critic's answer is followed by a counter-response. The
// user message is kept even when the critic call fails.
func (s *Session) TalkToCritic(ctx context.Context, text string) (CriticExchange, error) {
	text, err := cleanMessage(text)
	if err != nil {
		return CriticExchange{}, err
	}
	p := s.personaRef()
	if p == nil {
		return CriticExchange{}, ErrNoPersona
	}

	history := s.log.Window(s.cfg.HistoryTokens, conversation.RoleUser, conversation.RoleCritic)
	ex := CriticExchange{User: s.log.Add(conversation.RoleUser, text)}
	if err := s.save(ctx); err != nil {
		return ex, err
	}

	reply, err := s.model.CompleteChat(ctx, llm.ChatRequest{
		Task:         string(prompts.TaskCritic),
		SystemPrompt: prompts.Critic(p),
		History:      history,
		UserMessage:  text,
		MaxTokens:    s.cfg.Critic.MaxTokens,
		Temperature:  s.cfg.Critic.Temperature,
		Placeholder:  llm.CriticPlaceholder,
	})
	if err != nil {
		return ex, err
	}
	ex.Critic = s.log.Add(conversation.RoleCritic, reply)
	if err := s.save(ctx); err != nil {
		return ex, err
	}

	if !s.cfg.HealthyAdultReplies {
		return ex, nil
	}

	counter, err := s.model.CompleteChat(ctx, llm.ChatRequest{
		Task:         string(prompts.TaskHealthyAdult),
		SystemPrompt: prompts.HealthyAdult(p),
		UserMessage:  prompts.HealthyAdultTurn(text, reply),
		MaxTokens:    s.cfg.HealthyAdult.MaxTokens,
		Temperature:  s.cfg.HealthyAdult.Temperature,
		Placeholder:  llm.HealthyAdultPlaceholder,
	})
	if err != nil {
		return ex, fmt.Errorf("healthy adult reply failed: %w", err)
	}
	msg := s.log.Add(conversation.RoleHealthyAdult, counter)
	ex.HealthyAdult = &msg
	return ex, s.save(ctx)
}

// StreamHandler observes a therapist reply as it streams.
type StreamHandler struct {
	// OnStart runs once both messages exist, before any request is sent.
	OnStart func(user, assistant conversation.Message)
	OnChunk func(delta string)
}

// TalkToTherapist sends text to the companion and streams the answer into
// a new assistant message, which is returned in its final state. The
// persona is optional here. On failure the assistant message keeps the
// text received so far.
func (s *Session) TalkToTherapist(ctx context.Context, text string, h StreamHandler) (conversation.Message, error) {
	text, err := cleanMessage(text)
	if err != nil {
		return conversation.Message{}, err
	}
	p := s.personaRef()

	history := s.log.Window(s.cfg.HistoryTokens, conversation.RoleUser, conversation.RoleAssistant)
	user := s.log.Add(conversation.RoleUser, text)
	reply := s.log.Add(conversation.RoleAssistant, "")
	if err := s.save(ctx); err != nil {
		return reply, err
	}
	if h.OnStart != nil {
		h.OnStart(user, reply)
	}

	err = s.model.StreamChat(ctx, llm.ChatRequest{
		Task:         string(prompts.TaskTherapist),
		SystemPrompt: prompts.Therapist(p),
		History:      history,
		UserMessage:  text,
		MaxTokens:    s.cfg.Therapist.MaxTokens,
		Temperature:  s.cfg.Therapist.Temperature,
		Placeholder:  llm.DefaultPlaceholder,
	}, llm.StreamCallbacks{
		OnChunk: func(delta string) {
			s.log.AppendContent(reply.ID, delta)
			if h.OnChunk != nil {
				h.OnChunk(delta)
			}
		},
		OnComplete: func(full string) {
			s.log.ReplaceContent(reply.ID, full)
		},
	})

	// Use a fresh context so a cancelled stream still persists its text.
	if saveErr := s.save(context.WithoutCancel(ctx)); saveErr != nil && err == nil {
		err = saveErr
	}
	final, _ := s.log.Get(reply.ID)
	if err != nil {
		s.logger.Warn("therapist reply incomplete",
			zap.String("message_id", reply.ID),
			zap.Int("chars", len(final.Content)),
			zap.Error(err))
	}
	return final, err
}

// Deconstruct analyzes one of the user's messages. A message keeps its
// first analysis; recompute requests a new one that replaces it.
func (s *Session) Deconstruct(ctx context.Context, messageID string, recompute bool) (analysis.Analysis, error) {
	msg, ok := s.log.Get(messageID)
	if !ok {
		return analysis.Analysis{}, conversation.ErrMessageNotFound
	}
	if msg.Role != conversation.RoleUser {
		return analysis.Analysis{}, ErrNotUserMessage
	}
	if msg.Analysis != nil && !recompute {
		return *msg.Analysis, nil
	}

	a, err := s.analyzer.Analyze(ctx, s.personaRef(), msg.ID, msg.Content)
	if err != nil {
		return analysis.Analysis{}, err
	}

	if recompute {
		err = s.log.ReplaceAnalysis(msg.ID, a)
	} else {
		err = s.log.AttachAnalysis(msg.ID, a)
	}
	if errors.Is(err, conversation.ErrAnalysisAttached) {
		// Another caller won the race; theirs is the cached one.
		msg, _ = s.log.Get(msg.ID)
		return *msg.Analysis, nil
	}
	if err != nil {
		return analysis.Analysis{}, err
	}

	stored, _ := s.log.Get(msg.ID)
	return *stored.Analysis, s.save(ctx)
}

// LastUserMessage returns the most recent message the user wrote.
func (s *Session) LastUserMessage() (conversation.Message, bool) {
	msgs := s.log.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == conversation.RoleUser {
			return msgs[i], true
		}
	}
	return conversation.Message{}, false
}
