// Package conversation holds the chat log shared by the critic and
// therapist modes.
//
// A Log is an explicit value owned by its caller; nothing here is global.
// After a message is created only its content may change, either by
// appending stream deltas or by one full replacement, and its analysis may
// be attached once.
package conversation

import (
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/r3d91ll/innercritic/internal/analysis"
	"github.com/r3d91ll/innercritic/internal/llm"
)

// Role identifies who wrote a message.
type Role string

const (
	RoleUser         Role = "user"
	RoleAssistant    Role = "assistant"
	RoleCritic       Role = "critic"
	RoleHealthyAdult Role = "healthy-adult"
)

var (
	ErrMessageNotFound  = errors.New("message not found")
	ErrAnalysisAttached = errors.New("message already has an analysis")
)

// Message is one entry in the log.
type Message struct {
	ID        string             `json:"id"`
	Role      Role               `json:"role"`
	Content   string             `json:"content"`
	Timestamp time.Time          `json:"timestamp"`
	Analysis  *analysis.Analysis `json:"analysis,omitempty"`
}

// Log is an ordered, concurrency-safe message list.
type Log struct {
	mu       sync.RWMutex
	messages []Message
	index    map[string]int
	now      func() time.Time
}

// New creates an empty log.
func New() *Log {
	return &Log{
		messages: make([]Message, 0),
		index:    make(map[string]int),
		now:      time.Now,
	}
}

// SetClock replaces time.Now for message timestamps.
func (l *Log) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Add appends a message with a fresh time-ordered id and returns it.
func (l *Log) Add(role Role, content string) Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := Message{
		ID:        ulid.Make().String(),
		Role:      role,
		Content:   content,
		Timestamp: l.now(),
	}
	l.index[msg.ID] = len(l.messages)
	l.messages = append(l.messages, msg)
	return msg
}

// AppendContent adds a stream delta to the end of a message's content.
func (l *Log) AppendContent(id, delta string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.index[id]
	if !ok {
		return ErrMessageNotFound
	}
	l.messages[i].Content += delta
	return nil
}

// ReplaceContent sets a message's content in one step.
func (l *Log) ReplaceContent(id, content string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.index[id]
	if !ok {
		return ErrMessageNotFound
	}
	l.messages[i].Content = content
	return nil
}

// AttachAnalysis stores a for the message. A message keeps its first
// analysis; later calls return ErrAnalysisAttached.
func (l *Log) AttachAnalysis(id string, a analysis.Analysis) error {
	return l.setAnalysis(id, a, false)
}

// ReplaceAnalysis stores a even if the message already has one.
func (l *Log) ReplaceAnalysis(id string, a analysis.Analysis) error {
	return l.setAnalysis(id, a, true)
}

func (l *Log) setAnalysis(id string, a analysis.Analysis, replace bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.index[id]
	if !ok {
		return ErrMessageNotFound
	}
	if l.messages[i].Analysis != nil && !replace {
		return ErrAnalysisAttached
	}
	a.MessageID = id
	l.messages[i].Analysis = &a
	return nil
}

// Get returns a copy of the message with the given id.
func (l *Log) Get(id string) (Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i, ok := l.index[id]
	if !ok {
		return Message{}, false
	}
	return l.messages[i], true
}

// Messages returns a copy of all messages in order.
func (l *Log) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// History converts the log into wire messages. With roles given, only
// those roles are included. User messages stay "user"; every other role
// is sent as "assistant". Empty messages are skipped.
func (l *Log) History(roles ...Role) []llm.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keep := func(r Role) bool {
		if len(roles) == 0 {
			return true
		}
		for _, want := range roles {
			if r == want {
				return true
			}
		}
		return false
	}

	out := make([]llm.Message, 0, len(l.messages))
	for _, m := range l.messages {
		if m.Content == "" || !keep(m.Role) {
			continue
		}
		role := "assistant"
		if m.Role == RoleUser {
			role = "user"
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}

// Window is History trimmed to fit maxTokens. The newest message is
// always kept.
func (l *Log) Window(maxTokens int, roles ...Role) []llm.Message {
	return Trim(l.History(roles...), maxTokens)
}

// Clear removes all messages.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = make([]Message, 0)
	l.index = make(map[string]int)
}

// Snapshot returns the messages for persistence.
func (l *Log) Snapshot() []Message {
	return l.Messages()
}

// Restore replaces the log with persisted messages. Messages without an
// id are given one.
func (l *Log) Restore(msgs []Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = make([]Message, 0, len(msgs))
	l.index = make(map[string]int, len(msgs))
	for _, m := range msgs {
		if m.ID == "" {
			m.ID = ulid.Make().String()
		}
		if _, dup := l.index[m.ID]; dup {
			continue
		}
		l.index[m.ID] = len(l.messages)
		l.messages = append(l.messages, m)
	}
}
