package session

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/r3d91ll/innercritic/internal/analysis"
	"github.com/r3d91ll/innercritic/internal/conversation"
	"github.com/r3d91ll/innercritic/internal/llm"
	"github.com/r3d91ll/innercritic/internal/persona"
	"github.com/r3d91ll/innercritic/internal/storage"
)

// mockModel implements Model for testing.
type mockModel struct {
	mu        sync.Mutex
	responses []string
	chunks    []string
	streamErr error
	image     string
	imageErr  error
	requests  []llm.ChatRequest
	prompts   []string
}

func (m *mockModel) CompleteChat(_ context.Context, req llm.ChatRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if len(m.responses) == 0 {
		return req.Placeholder, nil
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	if resp == "ERR" {
		return "", &llm.StatusError{Operation: "completion", StatusCode: 500, Body: "boom"}
	}
	return resp, nil
}

func (m *mockModel) StreamChat(_ context.Context, req llm.ChatRequest, cb llm.StreamCallbacks) error {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	var full strings.Builder
	for _, c := range m.chunks {
		full.WriteString(c)
		cb.OnChunk(c)
	}
	if m.streamErr != nil {
		if cb.OnError != nil {
			cb.OnError(m.streamErr)
		}
		return m.streamErr
	}
	if cb.OnComplete != nil {
		cb.OnComplete(full.String())
	}
	return nil
}

func (m *mockModel) GenerateImage(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.image, m.imageErr
}

// mockAnalyzer counts calls and returns a fixed analysis.
type mockAnalyzer struct {
	calls int
	err   error
}

func (a *mockAnalyzer) Analyze(_ context.Context, _ *persona.Persona, messageID, message string) (analysis.Analysis, error) {
	a.calls++
	if a.err != nil {
		return analysis.Analysis{}, a.err
	}
	start, end := analysis.Anchor(message, "stupid")
	return analysis.Analysis{
		ID:        "analysis-" + string(rune('0'+a.calls)),
		MessageID: messageID,
		Segments: []analysis.Segment{
			{ID: "s1", Text: "stupid", StartIndex: start, EndIndex: end, PatternType: "labeling"},
		},
		HealthyAdultResponse: "I made a mistake, I am not stupid.",
	}, nil
}

func newTestSession(t *testing.T, model *mockModel, an *mockAnalyzer) (*Session, storage.KV) {
	t.Helper()
	kv, err := storage.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	s, err := New(context.Background(), DefaultConfig(), model, an, kv,
		WithEnvKey(llm.EnvKey{Names: []string{"UNSET"}, Lookup: func(string) (string, bool) { return "", false }}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, kv
}

func withPersona(t *testing.T, s *Session) persona.Persona {
	t.Helper()
	ctx := context.Background()
	if _, err := s.InitializePersona(ctx); err != nil {
		t.Fatalf("InitializePersona: %v", err)
	}
	p, err := s.UpdatePersona(ctx, func(p persona.Persona) (persona.Persona, error) {
		p = p.WithIdentity(persona.Identity{Name: "The Judge"})
		p, _, err := p.AddBelief("You are a fraud", "", 4)
		return p, err
	})
	if err != nil {
		t.Fatalf("UpdatePersona: %v", err)
	}
	return p
}

func TestTalkToCriticRequiresPersona(t *testing.T) {
	s, _ := newTestSession(t, &mockModel{}, &mockAnalyzer{})

	_, err := s.TalkToCritic(context.Background(), "hello")
	if !errors.Is(err, ErrNoPersona) {
		t.Errorf("Expected ErrNoPersona, got %v", err)
	}
	if _, err := s.TalkToCritic(context.Background(), "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("Expected ErrEmptyMessage, got %v", err)
	}
}

func TestTalkToCriticWithHealthyAdult(t *testing.T) {
	model := &mockModel{responses: []string{"Pathetic.", "That's labeling, not a fact."}}
	s, _ := newTestSession(t, model, &mockAnalyzer{})
	withPersona(t, s)
	ctx := context.Background()

	ex, err := s.TalkToCritic(ctx, "I sent the report late")
	if err != nil {
		t.Fatalf("TalkToCritic: %v", err)
	}
	if ex.Critic.Content != "Pathetic." || ex.Critic.Role != conversation.RoleCritic {
		t.Errorf("Unexpected critic message %+v", ex.Critic)
	}
	if ex.HealthyAdult == nil || ex.HealthyAdult.Content != "That's labeling, not a fact." {
		t.Errorf("Unexpected healthy adult message %+v", ex.HealthyAdult)
	}

	if len(model.requests) != 2 {
		t.Fatalf("Expected 2 requests, got %d", len(model.requests))
	}
	critic, counter := model.requests[0], model.requests[1]
	if critic.MaxTokens != 500 || critic.Temperature != 0.8 || critic.Placeholder != llm.CriticPlaceholder {
		t.Errorf("Unexpected critic sampling %+v", critic)
	}
	if !strings.Contains(critic.SystemPrompt, "Name: The Judge") {
		t.Error("Critic prompt should embed the persona")
	}
	if len(critic.History) != 0 {
		t.Errorf("First turn should carry no history, got %+v", critic.History)
	}
	if len(counter.History) != 0 || !strings.Contains(counter.UserMessage, `"Pathetic."`) {
		t.Errorf("Healthy adult request should be history-free and quote the critic: %+v", counter)
	}

	// Second turn carries the first exchange, without healthy-adult replies.
	model.responses = []string{"Again?", "Still not a fact."}
	if _, err := s.TalkToCritic(ctx, "I tried again"); err != nil {
		t.Fatalf("TalkToCritic: %v", err)
	}
	hist := model.requests[2].History
	if len(hist) != 2 || hist[0].Role != "user" || hist[1].Content != "Pathetic." {
		t.Errorf("Unexpected critic history %+v", hist)
	}
}

func TestTalkToCriticFailureKeepsUserMessage(t *testing.T) {
	model := &mockModel{responses: []string{"ERR"}}
	s, _ := newTestSession(t, model, &mockAnalyzer{})
	withPersona(t, s)

	_, err := s.TalkToCritic(context.Background(), "hello")
	var se *llm.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Expected StatusError, got %v", err)
	}
	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].Role != conversation.RoleUser {
		t.Errorf("Expected only the user message to remain, got %+v", msgs)
	}
}

func TestTalkToTherapistStreamsIntoMessage(t *testing.T) {
	model := &mockModel{chunks: []string{"Hel", "lo, ", "world"}}
	s, _ := newTestSession(t, model, &mockAnalyzer{})

	var started bool
	var deltas []string
	final, err := s.TalkToTherapist(context.Background(), "I feel stuck", StreamHandler{
		OnStart: func(user, assistant conversation.Message) {
			started = true
			if user.Content != "I feel stuck" || assistant.Content != "" {
				t.Errorf("Unexpected start messages %+v %+v", user, assistant)
			}
		},
		OnChunk: func(d string) { deltas = append(deltas, d) },
	})
	if err != nil {
		t.Fatalf("TalkToTherapist: %v", err)
	}
	if !started {
		t.Error("OnStart was not called")
	}
	if strings.Join(deltas, "") != "Hello, world" || final.Content != "Hello, world" {
		t.Errorf("Unexpected stream result %q / %q", deltas, final.Content)
	}

	req := model.requests[0]
	if strings.Contains(req.SystemPrompt, "CONTEXT") {
		t.Error("Therapist prompt without persona must omit the context block")
	}
	if req.MaxTokens != 1000 || req.Temperature != 0.7 {
		t.Errorf("Unexpected therapist sampling %+v", req)
	}
}

func TestTalkToTherapistPartialOnError(t *testing.T) {
	model := &mockModel{chunks: []string{"I hear "}, streamErr: errors.New("connection reset")}
	s, _ := newTestSession(t, model, &mockAnalyzer{})

	final, err := s.TalkToTherapist(context.Background(), "hi", StreamHandler{})
	if err == nil {
		t.Fatal("Expected error")
	}
	if final.Content != "I hear " {
		t.Errorf("Partial content should remain, got %q", final.Content)
	}
	if len(s.Messages()) != 2 {
		t.Errorf("Expected user and partial assistant message, got %d", len(s.Messages()))
	}
}

func TestDeconstructCachesAnalysis(t *testing.T) {
	an := &mockAnalyzer{}
	model := &mockModel{chunks: []string{"ok"}}
	s, _ := newTestSession(t, model, an)
	ctx := context.Background()

	s.TalkToTherapist(ctx, "I am so stupid", StreamHandler{})
	user, ok := s.LastUserMessage()
	if !ok {
		t.Fatal("Expected a user message")
	}

	first, err := s.Deconstruct(ctx, user.ID, false)
	if err != nil {
		t.Fatalf("Deconstruct: %v", err)
	}
	second, _ := s.Deconstruct(ctx, user.ID, false)
	if an.calls != 1 || first.ID != second.ID {
		t.Errorf("Expected cached analysis, calls=%d ids=%s/%s", an.calls, first.ID, second.ID)
	}
	if seg := first.Segments[0]; user.Content[seg.StartIndex:seg.EndIndex] != "stupid" {
		t.Errorf("Segment not anchored: %+v", seg)
	}

	third, _ := s.Deconstruct(ctx, user.ID, true)
	if an.calls != 2 || third.ID == first.ID {
		t.Errorf("Recompute should replace the analysis, calls=%d", an.calls)
	}

	msgs := s.Messages()
	if _, err := s.Deconstruct(ctx, msgs[1].ID, false); !errors.Is(err, ErrNotUserMessage) {
		t.Errorf("Expected ErrNotUserMessage, got %v", err)
	}
	if _, err := s.Deconstruct(ctx, "missing", false); !errors.Is(err, conversation.ErrMessageNotFound) {
		t.Errorf("Expected ErrMessageNotFound, got %v", err)
	}
}

func TestStatePersistsAcrossSessions(t *testing.T) {
	model := &mockModel{responses: []string{"Weak.", "Not true."}}
	s, kv := newTestSession(t, model, &mockAnalyzer{})
	withPersona(t, s)
	s.TalkToCritic(context.Background(), "hello")

	restored, err := New(context.Background(), DefaultConfig(), model, &mockAnalyzer{}, kv)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p, ok := restored.Persona()
	if !ok || p.Identity.Name != "The Judge" || len(p.Beliefs) != 1 {
		t.Errorf("Persona not restored: %+v", p)
	}
	if len(restored.Messages()) != 3 {
		t.Errorf("Expected 3 restored messages, got %d", len(restored.Messages()))
	}

	if err := restored.ResetPersona(context.Background()); err != nil {
		t.Fatalf("ResetPersona: %v", err)
	}
	if _, ok := restored.Persona(); ok || len(restored.Messages()) != 0 {
		t.Error("Reset should clear persona and chat")
	}
}

func TestUpdatePersonaErrorLeavesPersona(t *testing.T) {
	s, _ := newTestSession(t, &mockModel{}, &mockAnalyzer{})
	before := withPersona(t, s)

	_, err := s.UpdatePersona(context.Background(), func(p persona.Persona) (persona.Persona, error) {
		p, _, err := p.AddBelief("too strong", "", 9)
		return p, err
	})
	if !errors.Is(err, persona.ErrInvalidIntensity) {
		t.Errorf("Expected ErrInvalidIntensity, got %v", err)
	}
	after, _ := s.Persona()
	if len(after.Beliefs) != len(before.Beliefs) {
		t.Error("Failed update must not change the persona")
	}
}

func TestGeneratePortrait(t *testing.T) {
	model := &mockModel{image: "data:image/png;base64,AAAA"}
	s, _ := newTestSession(t, model, &mockAnalyzer{})
	ctx := context.Background()

	if _, err := s.GeneratePortrait(ctx, "grey"); !errors.Is(err, ErrNoPersona) {
		t.Errorf("Expected ErrNoPersona, got %v", err)
	}
	withPersona(t, s)
	if _, err := s.GeneratePortrait(ctx, ""); !errors.Is(err, ErrNoDescription) {
		t.Errorf("Expected ErrNoDescription, got %v", err)
	}

	p, err := s.GeneratePortrait(ctx, "a tall grey figure")
	if err != nil {
		t.Fatalf("GeneratePortrait: %v", err)
	}
	if p.Appearance.ImageURL != model.image || p.Appearance.PhysicalDescription != "a tall grey figure" {
		t.Errorf("Unexpected appearance %+v", p.Appearance)
	}
	if !strings.Contains(model.prompts[0], "a tall grey figure") {
		t.Error("Expected description in the image prompt")
	}

	model.imageErr = llm.ErrNoImage
	if _, err := s.GeneratePortrait(ctx, ""); !errors.Is(err, llm.ErrNoImage) {
		t.Errorf("Expected ErrNoImage, got %v", err)
	}
	p, _ = s.Persona()
	if p.Appearance.ImageURL != "data:image/png;base64,AAAA" {
		t.Error("Failed generation must keep the previous image")
	}
}

func TestAPIKeyStatus(t *testing.T) {
	s, _ := newTestSession(t, &mockModel{}, &mockAnalyzer{})
	ctx := context.Background()

	if got := s.APIKeyStatus(ctx); got != llm.KeySourceNone {
		t.Errorf("Expected no key, got %s", got)
	}
	if err := s.SetAPIKey(ctx, "sk-or-test"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}
	if got := s.APIKeyStatus(ctx); got != llm.KeySourceStored {
		t.Errorf("Expected stored key, got %s", got)
	}
}
