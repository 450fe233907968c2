// Package journal is the daily relative-tracking journal: each day the user
// rates a set of items as better, same or worse than the day before and
// answers a few reflection prompts.
package journal

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the format of Entry.Date.
const DateLayout = "2006-01-02"

var (
	ErrUnknownPrompt = errors.New("unknown reflection prompt")
	ErrUnknownItem   = errors.New("unknown trackable item")
	ErrInvalidDate   = errors.New("date must be YYYY-MM-DD")
	ErrInvalidRating = errors.New("rating must be better, same or worse")
)

// Rating compares a day with the one before it.
type Rating string

const (
	RatingBetter Rating = "better"
	RatingSame   Rating = "same"
	RatingWorse  Rating = "worse"
	RatingUnset  Rating = ""
)

// Valid reports whether r is one of the defined ratings.
func (r Rating) Valid() bool {
	switch r {
	case RatingBetter, RatingSame, RatingWorse, RatingUnset:
		return true
	}
	return false
}

// ParseRating accepts the rating names plus the shorthands +, = and -.
func ParseRating(s string) (Rating, error) {
	switch s {
	case "better", "+", "up":
		return RatingBetter, nil
	case "same", "=", "0":
		return RatingSame, nil
	case "worse", "-", "down":
		return RatingWorse, nil
	case "", "unset", "none":
		return RatingUnset, nil
	}
	return RatingUnset, fmt.Errorf("%w: %q", ErrInvalidRating, s)
}

// Category groups trackable items.
type Category string

const (
	CategoryWellness  Category = "wellness"
	CategoryEmotional Category = "emotional"
	CategorySocial    Category = "social"
	CategoryGrowth    Category = "growth"
	CategoryPhysical  Category = "physical"
)

// TrackableItem is something the user rates daily.
type TrackableItem struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Icon        string   `json:"icon"`
	Enabled     bool     `json:"enabled"`
}

// ReflectionPrompt is a free-text question.
type ReflectionPrompt struct {
	ID      string `json:"id"`
	Prompt  string `json:"prompt"`
	Enabled bool   `json:"enabled"`
}

// TrackingEntry is one item's rating on one day.
type TrackingEntry struct {
	ItemID string `json:"itemId"`
	Rating Rating `json:"rating"`
}

// Reflection is the answer to a prompt. Prompt holds the question text as
// it read when answered.
type Reflection struct {
	ID       string `json:"id"`
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

// Entry is one day of the journal.
type Entry struct {
	ID          string          `json:"id"`
	Date        string          `json:"date"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Trackings   []TrackingEntry `json:"trackings"`
	Reflections []Reflection    `json:"reflections"`
	Notes       string          `json:"notes,omitempty"`
}

// Tracking returns the rating recorded for itemID.
func (e Entry) Tracking(itemID string) (Rating, bool) {
	for _, t := range e.Trackings {
		if t.ItemID == itemID {
			return t.Rating, true
		}
	}
	return RatingUnset, false
}

// Reflection returns the answer to promptID.
func (e Entry) Reflection(promptID string) (Reflection, bool) {
	for _, r := range e.Reflections {
		if r.ID == promptID {
			return r, true
		}
	}
	return Reflection{}, false
}

// ValidDate reports an error unless date is a YYYY-MM-DD calendar date.
func ValidDate(date string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return nil
}

// DefaultItems returns the built-in trackable items.
func DefaultItems() []TrackableItem {
	return []TrackableItem{
		{ID: "sleep", Name: "Sleep Quality", Description: "How restful was your sleep?", Category: CategoryWellness, Icon: "😴", Enabled: true},
		{ID: "energy", Name: "Energy Levels", Description: "How energized did you feel today?", Category: CategoryWellness, Icon: "⚡", Enabled: true},
		{ID: "self-care", Name: "Self-Care", Description: "Did you take time for yourself?", Category: CategoryWellness, Icon: "🛁", Enabled: true},
		{ID: "mood", Name: "Overall Mood", Description: "How was your emotional state?", Category: CategoryEmotional, Icon: "🌤️", Enabled: true},
		{ID: "anxiety", Name: "Anxiety Levels", Description: "How calm or anxious did you feel?", Category: CategoryEmotional, Icon: "🌊", Enabled: true},
		{ID: "self-compassion", Name: "Self-Compassion", Description: "Were you kind to yourself today?", Category: CategoryEmotional, Icon: "💝", Enabled: true},
		{ID: "stress", Name: "Stress Levels", Description: "How stressed did you feel?", Category: CategoryEmotional, Icon: "🧘", Enabled: true},
		{ID: "joy", Name: "Joy & Pleasure", Description: "Did you experience moments of joy?", Category: CategoryEmotional, Icon: "✨", Enabled: false},
		{ID: "connection", Name: "Social Connection", Description: "Did you feel connected to others?", Category: CategorySocial, Icon: "🤝", Enabled: true},
		{ID: "boundaries", Name: "Boundaries", Description: "Did you respect your own boundaries?", Category: CategorySocial, Icon: "🛡️", Enabled: false},
		{ID: "learning", Name: "Learning & Growth", Description: "Did you learn something new?", Category: CategoryGrowth, Icon: "🌱", Enabled: true},
		{ID: "gratitude", Name: "Gratitude", Description: "Did you practice gratitude?", Category: CategoryGrowth, Icon: "🙏", Enabled: true},
		{ID: "mindfulness", Name: "Mindfulness", Description: "Were you present in the moment?", Category: CategoryGrowth, Icon: "🧠", Enabled: true},
		{ID: "accomplishment", Name: "Accomplishment", Description: "Did you accomplish what you set out to do?", Category: CategoryGrowth, Icon: "🎯", Enabled: false},
		{ID: "movement", Name: "Physical Activity", Description: "Did you move your body?", Category: CategoryPhysical, Icon: "🏃", Enabled: true},
		{ID: "nutrition", Name: "Nutrition", Description: "Did you nourish your body well?", Category: CategoryPhysical, Icon: "🥗", Enabled: false},
	}
}

// DefaultPrompts returns the built-in reflection prompts.
func DefaultPrompts() []ReflectionPrompt {
	return []ReflectionPrompt{
		{ID: "learned", Prompt: "What did I learn today?", Enabled: true},
		{ID: "grateful", Prompt: "What am I grateful for?", Enabled: true},
		{ID: "proud", Prompt: "What am I proud of today?", Enabled: false},
		{ID: "challenge", Prompt: "What challenged me today?", Enabled: false},
		{ID: "tomorrow", Prompt: "What do I want to focus on tomorrow?", Enabled: false},
	}
}
