// Package persona models the inner critic a user builds and talks to.
//
// A Persona is treated as a value: every edit returns a new Persona and
// leaves the receiver untouched, so a prompt built from an older copy
// stays valid while the user keeps editing.
package persona

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidIntensity is returned for belief intensities outside 1..5.
	ErrInvalidIntensity = errors.New("belief intensity must be between 1 and 5")
	// ErrNotFound is returned when removing an id the persona does not hold.
	ErrNotFound = errors.New("persona item not found")
)

const (
	MinIntensity = 1
	MaxIntensity = 5
)

// Identity describes who the critic is and how it talks.
type Identity struct {
	Name               string `json:"name"`
	Voice              string `json:"voice"`
	PrimaryEmotion     string `json:"primaryEmotion"`
	CommunicationStyle string `json:"communicationStyle"`
}

// Appearance holds the generated portrait and the text it came from.
type Appearance struct {
	ImageURL            string `json:"imageUrl,omitempty"`
	ImagePrompt         string `json:"imagePrompt,omitempty"`
	PhysicalDescription string `json:"physicalDescription,omitempty"`
}

// Belief is something the critic holds to be true about the user.
type Belief struct {
	ID        string `json:"id"`
	Statement string `json:"belief"`
	Origin    string `json:"origin,omitempty"`
	Intensity int    `json:"intensity"`
}

// Trigger pairs a situation with what the critic typically says in it.
type Trigger struct {
	ID              string `json:"id"`
	Situation       string `json:"situation"`
	TypicalResponse string `json:"typicalResponse"`
}

// Persona is the full inner critic definition.
type Persona struct {
	ID               string     `json:"id"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	Identity         Identity   `json:"personality"`
	Appearance       Appearance `json:"appearance"`
	Beliefs          []Belief   `json:"beliefs"`
	Triggers         []Trigger  `json:"triggers"`
	Catchphrases     []string   `json:"catchphrases"`
	ProtectiveIntent string     `json:"protectiveIntent,omitempty"`
}

// New returns an empty persona with a fresh id.
func New() Persona {
	now := time.Now()
	return Persona{
		ID:           uuid.NewString(),
		CreatedAt:    now,
		UpdatedAt:    now,
		Beliefs:      []Belief{},
		Triggers:     []Trigger{},
		Catchphrases: []string{},
	}
}

// clone deep-copies the slices so edits never alias the receiver.
func (p Persona) clone() Persona {
	out := p
	out.Beliefs = append([]Belief(nil), p.Beliefs...)
	out.Triggers = append([]Trigger(nil), p.Triggers...)
	out.Catchphrases = append([]string(nil), p.Catchphrases...)
	return out
}

func (p Persona) touched() Persona {
	p.UpdatedAt = time.Now()
	return p
}

// WithIdentity merges the non-empty fields of id into the persona.
func (p Persona) WithIdentity(id Identity) Persona {
	out := p.clone()
	if id.Name != "" {
		out.Identity.Name = id.Name
	}
	if id.Voice != "" {
		out.Identity.Voice = id.Voice
	}
	if id.PrimaryEmotion != "" {
		out.Identity.PrimaryEmotion = id.PrimaryEmotion
	}
	if id.CommunicationStyle != "" {
		out.Identity.CommunicationStyle = id.CommunicationStyle
	}
	return out.touched()
}

// WithAppearance merges the non-empty fields of a into the persona.
func (p Persona) WithAppearance(a Appearance) Persona {
	out := p.clone()
	if a.ImageURL != "" {
		out.Appearance.ImageURL = a.ImageURL
	}
	if a.ImagePrompt != "" {
		out.Appearance.ImagePrompt = a.ImagePrompt
	}
	if a.PhysicalDescription != "" {
		out.Appearance.PhysicalDescription = a.PhysicalDescription
	}
	return out.touched()
}

// WithProtectiveIntent replaces the protective intent.
func (p Persona) WithProtectiveIntent(intent string) Persona {
	out := p.clone()
	out.ProtectiveIntent = strings.TrimSpace(intent)
	return out.touched()
}

// AddBelief appends a belief with a newly assigned id.
func (p Persona) AddBelief(statement, origin string, intensity int) (Persona, Belief, error) {
	if intensity < MinIntensity || intensity > MaxIntensity {
		return p, Belief{}, fmt.Errorf("%w: got %d", ErrInvalidIntensity, intensity)
	}
	b := Belief{
		ID:        uuid.NewString(),
		Statement: strings.TrimSpace(statement),
		Origin:    strings.TrimSpace(origin),
		Intensity: intensity,
	}
	out := p.clone()
	out.Beliefs = append(out.Beliefs, b)
	return out.touched(), b, nil
}

// RemoveBelief drops the belief with the given id.
func (p Persona) RemoveBelief(id string) (Persona, error) {
	out := p.clone()
	for i, b := range out.Beliefs {
		if b.ID == id {
			out.Beliefs = append(out.Beliefs[:i], out.Beliefs[i+1:]...)
			return out.touched(), nil
		}
	}
	return p, fmt.Errorf("belief %s: %w", id, ErrNotFound)
}

// AddTrigger appends a trigger with a newly assigned id.
func (p Persona) AddTrigger(situation, response string) (Persona, Trigger) {
	t := Trigger{
		ID:              uuid.NewString(),
		Situation:       strings.TrimSpace(situation),
		TypicalResponse: strings.TrimSpace(response),
	}
	out := p.clone()
	out.Triggers = append(out.Triggers, t)
	return out.touched(), t
}

// RemoveTrigger drops the trigger with the given id.
func (p Persona) RemoveTrigger(id string) (Persona, error) {
	out := p.clone()
	for i, t := range out.Triggers {
		if t.ID == id {
			out.Triggers = append(out.Triggers[:i], out.Triggers[i+1:]...)
			return out.touched(), nil
		}
	}
	return p, fmt.Errorf("trigger %s: %w", id, ErrNotFound)
}

// AddCatchphrase adds a phrase. Blank and duplicate phrases are ignored.
func (p Persona) AddCatchphrase(phrase string) Persona {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" || p.HasCatchphrase(phrase) {
		return p
	}
	out := p.clone()
	out.Catchphrases = append(out.Catchphrases, phrase)
	return out.touched()
}

// RemoveCatchphrase removes a phrase if present.
func (p Persona) RemoveCatchphrase(phrase string) Persona {
	if !p.HasCatchphrase(phrase) {
		return p
	}
	out := p.clone()
	kept := out.Catchphrases[:0]
	for _, c := range out.Catchphrases {
		if c != phrase {
			kept = append(kept, c)
		}
	}
	out.Catchphrases = kept
	return out.touched()
}

// HasCatchphrase reports whether phrase is already in the set.
func (p Persona) HasCatchphrase(phrase string) bool {
	for _, c := range p.Catchphrases {
		if c == phrase {
			return true
		}
	}
	return false
}

// Belief looks up a belief by id.
func (p Persona) Belief(id string) (Belief, bool) {
	for _, b := range p.Beliefs {
		if b.ID == id {
			return b, true
		}
	}
	return Belief{}, false
}

// Validate checks id uniqueness and intensity bounds. Used on state loaded
// from storage, which may have been edited by hand.
func (p Persona) Validate() error {
	seen := make(map[string]bool, len(p.Beliefs)+len(p.Triggers))
	for _, b := range p.Beliefs {
		if b.ID == "" || seen[b.ID] {
			return fmt.Errorf("belief id %q is empty or duplicated", b.ID)
		}
		seen[b.ID] = true
		if b.Intensity < MinIntensity || b.Intensity > MaxIntensity {
			return fmt.Errorf("belief %s: %w", b.ID, ErrInvalidIntensity)
		}
	}
	for _, t := range p.Triggers {
		if t.ID == "" || seen[t.ID] {
			return fmt.Errorf("trigger id %q is empty or duplicated", t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}
