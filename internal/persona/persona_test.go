package persona

import (
	"errors"
	"testing"
)

func TestNewPersonaIsEmpty(t *testing.T) {
	p := New()

	if p.ID == "" {
		t.Error("Expected persona id to be assigned")
	}
	if len(p.Beliefs) != 0 || len(p.Triggers) != 0 || len(p.Catchphrases) != 0 {
		t.Error("Expected empty collections")
	}
	if p.Identity != (Identity{}) {
		t.Errorf("Expected empty identity, got %+v", p.Identity)
	}
}

func TestWithIdentityMergesNonEmpty(t *testing.T) {
	p := New().WithIdentity(Identity{Name: "Judge", Voice: "cold"})
	p = p.WithIdentity(Identity{Voice: "icy"})

	if p.Identity.Name != "Judge" {
		t.Errorf("Expected name to survive partial update, got %q", p.Identity.Name)
	}
	if p.Identity.Voice != "icy" {
		t.Errorf("Expected voice 'icy', got %q", p.Identity.Voice)
	}
}

func TestAddBeliefDoesNotMutateReceiver(t *testing.T) {
	orig := New()
	updated, b, err := orig.AddBelief("You are lazy", "school", 4)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(orig.Beliefs) != 0 {
		t.Error("Receiver should be unchanged")
	}
	if len(updated.Beliefs) != 1 || updated.Beliefs[0].ID != b.ID {
		t.Errorf("Expected new belief in copy, got %+v", updated.Beliefs)
	}
	if b.ID == "" {
		t.Error("Expected belief id")
	}
}

func TestAddBeliefRejectsIntensity(t *testing.T) {
	for _, n := range []int{0, 6, -1} {
		_, _, err := New().AddBelief("x", "", n)
		if !errors.Is(err, ErrInvalidIntensity) {
			t.Errorf("intensity %d: expected ErrInvalidIntensity, got %v", n, err)
		}
	}
}

func TestRemoveByIDKeepsOrder(t *testing.T) {
	p := New()
	p, a, _ := p.AddBelief("a", "", 1)
	p, b, _ := p.AddBelief("b", "", 2)
	p, c, _ := p.AddBelief("c", "", 3)

	p, err := p.RemoveBelief(b.ID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(p.Beliefs) != 2 || p.Beliefs[0].ID != a.ID || p.Beliefs[1].ID != c.ID {
		t.Errorf("Unexpected beliefs after removal: %+v", p.Beliefs)
	}

	if _, err := p.RemoveBelief(b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second removal, got %v", err)
	}
}

func TestTriggers(t *testing.T) {
	p, tr := New().AddTrigger("Making a mistake at work", "See? You always mess up.")
	if len(p.Triggers) != 1 || p.Triggers[0].Situation != "Making a mistake at work" {
		t.Fatalf("Unexpected triggers: %+v", p.Triggers)
	}

	p, err := p.RemoveTrigger(tr.ID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(p.Triggers) != 0 {
		t.Error("Expected trigger to be removed")
	}
}

func TestCatchphrasesBehaveAsSet(t *testing.T) {
	p := New().
		AddCatchphrase("Not good enough").
		AddCatchphrase("Who do you think you are?").
		AddCatchphrase("Not good enough").
		AddCatchphrase("   ")

	if len(p.Catchphrases) != 2 {
		t.Fatalf("Expected 2 catchphrases, got %v", p.Catchphrases)
	}
	if p.Catchphrases[0] != "Not good enough" {
		t.Error("Expected insertion order to be preserved")
	}

	p = p.RemoveCatchphrase("Not good enough")
	if len(p.Catchphrases) != 1 || p.HasCatchphrase("Not good enough") {
		t.Errorf("Unexpected catchphrases after removal: %v", p.Catchphrases)
	}
}

func TestValidate(t *testing.T) {
	p := New()
	p, _, _ = p.AddBelief("a", "", 3)
	p, _ = p.AddTrigger("s", "r")
	if err := p.Validate(); err != nil {
		t.Errorf("Expected valid persona, got %v", err)
	}

	dup := p
	dup.Triggers = append([]Trigger(nil), p.Triggers...)
	dup.Triggers[0].ID = p.Beliefs[0].ID
	if err := dup.Validate(); err == nil {
		t.Error("Expected duplicate id to fail validation")
	}

	bad := p
	bad.Beliefs = []Belief{{ID: "x", Intensity: 9}}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidIntensity) {
		t.Errorf("Expected ErrInvalidIntensity, got %v", err)
	}
}
