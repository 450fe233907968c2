package journal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/r3d91ll/innercritic/internal/storage"
)

// state is persisted under storage.KeyJournalState.
type state struct {
	Entries []Entry            `json:"entries"`
	Items   []TrackableItem    `json:"trackableItems"`
	Prompts []ReflectionPrompt `json:"reflectionPrompts"`
}

// Store holds the journal and writes it through to a KV store on every
// change. It is safe for concurrent use.
type Store struct {
	kv     storage.KV
	now    func() time.Time
	logger *zap.Logger

	mu    sync.RWMutex
	state state
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used for "today" and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open loads the journal from kv, starting from the default items and
// prompts when nothing is stored.
func Open(ctx context.Context, kv storage.KV, opts ...Option) (*Store, error) {
	s := &Store{
		kv:     kv,
		now:    time.Now,
		logger: zap.NewNop(),
		state:  state{Items: DefaultItems(), Prompts: DefaultPrompts()},
	}
	for _, opt := range opts {
		opt(s)
	}

	var st state
	err := storage.GetJSON(ctx, kv, storage.KeyJournalState, &st)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load journal: %w", err)
	}
	if st.Items == nil {
		st.Items = DefaultItems()
	}
	if st.Prompts == nil {
		st.Prompts = DefaultPrompts()
	}
	s.state = st
	s.logger.Debug("journal loaded", zap.Int("entries", len(st.Entries)))
	return s, nil
}

func (s *Store) saveLocked(ctx context.Context) error {
	if err := storage.PutJSON(ctx, s.kv, storage.KeyJournalState, s.state); err != nil {
		s.logger.Error("failed to persist journal", zap.Error(err))
		return err
	}
	return nil
}

// Today returns the current date in DateLayout.
func (s *Store) Today() string {
	return s.now().Format(DateLayout)
}

// EntryByDate returns the entry for date.
func (s *Store) EntryByDate(date string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(date); i >= 0 {
		return cloneEntry(s.state.Entries[i]), true
	}
	return Entry{}, false
}

// TodayEntry returns today's entry.
func (s *Store) TodayEntry() (Entry, bool) {
	return s.EntryByDate(s.Today())
}

func (s *Store) indexOf(date string) int {
	for i, e := range s.state.Entries {
		if e.Date == date {
			return i
		}
	}
	return -1
}

// update finds or creates the entry for date, applies fn, and persists.
func (s *Store) update(ctx context.Context, date string, fn func(*Entry) error) (Entry, error) {
	if err := ValidDate(date); err != nil {
		return Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	i := s.indexOf(date)
	var e Entry
	if i >= 0 {
		e = cloneEntry(s.state.Entries[i])
	} else {
		e = Entry{
			ID:          uuid.NewString(),
			Date:        date,
			CreatedAt:   now,
			Trackings:   []TrackingEntry{},
			Reflections: []Reflection{},
		}
	}
	if err := fn(&e); err != nil {
		return Entry{}, err
	}
	e.UpdatedAt = now

	if i >= 0 {
		s.state.Entries[i] = e
	} else {
		s.state.Entries = append(s.state.Entries, e)
	}
	return cloneEntry(e), s.saveLocked(ctx)
}

// SetTracking records a rating for itemID on date, replacing any earlier
// rating for the same item.
func (s *Store) SetTracking(ctx context.Context, date, itemID string, r Rating) (Entry, error) {
	if !r.Valid() {
		return Entry{}, fmt.Errorf("%w: %q", ErrInvalidRating, r)
	}
	if _, ok := s.Item(itemID); !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	return s.update(ctx, date, func(e *Entry) error {
		for i := range e.Trackings {
			if e.Trackings[i].ItemID == itemID {
				e.Trackings[i].Rating = r
				return nil
			}
		}
		e.Trackings = append(e.Trackings, TrackingEntry{ItemID: itemID, Rating: r})
		return nil
	})
}

// SetReflection answers promptID on date.
func (s *Store) SetReflection(ctx context.Context, date, promptID, response string) (Entry, error) {
	p, ok := s.Prompt(promptID)
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownPrompt, promptID)
	}
	return s.update(ctx, date, func(e *Entry) error {
		r := Reflection{ID: promptID, Prompt: p.Prompt, Response: response}
		for i := range e.Reflections {
			if e.Reflections[i].ID == promptID {
				e.Reflections[i] = r
				return nil
			}
		}
		e.Reflections = append(e.Reflections, r)
		return nil
	})
}

// SetNotes replaces the free-form notes of date.
func (s *Store) SetNotes(ctx context.Context, date, notes string) (Entry, error) {
	return s.update(ctx, date, func(e *Entry) error {
		e.Notes = notes
		return nil
	})
}

// Entries returns all entries sorted by date.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.state.Entries))
	for i, e := range s.state.Entries {
		out[i] = cloneEntry(e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// EntriesInRange returns the entries with from <= date <= to, sorted.
func (s *Store) EntriesInRange(from, to string) []Entry {
	var out []Entry
	for _, e := range s.Entries() {
		if e.Date >= from && e.Date <= to {
			out = append(out, e)
		}
	}
	return out
}

// LastDays returns the entries of the last n days, today included.
func (s *Store) LastDays(n int) []Entry {
	now := s.now()
	from := now.AddDate(0, 0, -n).Format(DateLayout)
	return s.EntriesInRange(from, now.Format(DateLayout))
}

// StreakDays counts consecutive days with an entry, ending today or
// yesterday. A streak that ended earlier is 0.
func (s *Store) StreakDays() int {
	entries := s.Entries()
	if len(entries) == 0 {
		return 0
	}
	now := s.now()
	today := now.Format(DateLayout)
	yesterday := now.AddDate(0, 0, -1).Format(DateLayout)

	latest := entries[len(entries)-1].Date
	if latest != today && latest != yesterday {
		return 0
	}

	streak := 1
	prev, _ := time.Parse(DateLayout, latest)
	for i := len(entries) - 2; i >= 0; i-- {
		cur, err := time.Parse(DateLayout, entries[i].Date)
		if err != nil || !cur.AddDate(0, 0, 1).Equal(prev) {
			break
		}
		streak++
		prev = cur
	}
	return streak
}

// Items returns every trackable item, enabled or not.
func (s *Store) Items() []TrackableItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]TrackableItem(nil), s.state.Items...)
}

// EnabledItems returns the items the user currently tracks.
func (s *Store) EnabledItems() []TrackableItem {
	var out []TrackableItem
	for _, it := range s.Items() {
		if it.Enabled {
			out = append(out, it)
		}
	}
	return out
}

// Item looks up an item by id.
func (s *Store) Item(id string) (TrackableItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.state.Items {
		if it.ID == id {
			return it, true
		}
	}
	return TrackableItem{}, false
}

// ToggleItem flips whether itemID is tracked.
func (s *Store) ToggleItem(ctx context.Context, itemID string) (TrackableItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.Items {
		if s.state.Items[i].ID == itemID {
			s.state.Items[i].Enabled = !s.state.Items[i].Enabled
			return s.state.Items[i], s.saveLocked(ctx)
		}
	}
	return TrackableItem{}, fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
}

// AddCustomItem adds an enabled item with a fresh id.
func (s *Store) AddCustomItem(ctx context.Context, item TrackableItem) (TrackableItem, error) {
	if strings.TrimSpace(item.Name) == "" {
		return TrackableItem{}, errors.New("item name is required")
	}
	item.ID = uuid.NewString()
	item.Enabled = true

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Items = append(s.state.Items, item)
	return item, s.saveLocked(ctx)
}

// RemoveItem deletes an item. Past ratings for it stay in their entries.
func (s *Store) RemoveItem(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.Items {
		if s.state.Items[i].ID == itemID {
			s.state.Items = append(s.state.Items[:i:i], s.state.Items[i+1:]...)
			return s.saveLocked(ctx)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
}

// Prompts returns every reflection prompt.
func (s *Store) Prompts() []ReflectionPrompt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ReflectionPrompt(nil), s.state.Prompts...)
}

// EnabledPrompts returns the prompts shown each day.
func (s *Store) EnabledPrompts() []ReflectionPrompt {
	var out []ReflectionPrompt
	for _, p := range s.Prompts() {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// Prompt looks up a prompt by id.
func (s *Store) Prompt(id string) (ReflectionPrompt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.state.Prompts {
		if p.ID == id {
			return p, true
		}
	}
	return ReflectionPrompt{}, false
}

// TogglePrompt flips whether promptID is shown.
func (s *Store) TogglePrompt(ctx context.Context, promptID string) (ReflectionPrompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.Prompts {
		if s.state.Prompts[i].ID == promptID {
			s.state.Prompts[i].Enabled = !s.state.Prompts[i].Enabled
			return s.state.Prompts[i], s.saveLocked(ctx)
		}
	}
	return ReflectionPrompt{}, fmt.Errorf("%w: %s", ErrUnknownPrompt, promptID)
}

// AddCustomPrompt adds an enabled prompt with a fresh id.
func (s *Store) AddCustomPrompt(ctx context.Context, text string) (ReflectionPrompt, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ReflectionPrompt{}, errors.New("prompt text is required")
	}
	p := ReflectionPrompt{ID: uuid.NewString(), Prompt: text, Enabled: true}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Prompts = append(s.state.Prompts, p)
	return p, s.saveLocked(ctx)
}

// RemovePrompt deletes a prompt. Existing answers keep their question text.
func (s *Store) RemovePrompt(ctx context.Context, promptID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.Prompts {
		if s.state.Prompts[i].ID == promptID {
			s.state.Prompts = append(s.state.Prompts[:i:i], s.state.Prompts[i+1:]...)
			return s.saveLocked(ctx)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownPrompt, promptID)
}

func cloneEntry(e Entry) Entry {
	e.Trackings = append([]TrackingEntry{}, e.Trackings...)
	e.Reflections = append([]Reflection{}, e.Reflections...)
	return e
}
