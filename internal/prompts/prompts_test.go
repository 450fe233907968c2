package prompts

import (
	"strings"
	"testing"

	"github.com/r3d91ll/innercritic/internal/distortion"
	"github.com/r3d91ll/innercritic/internal/persona"
)

func samplePersona(t *testing.T) *persona.Persona {
	t.Helper()
	p := persona.New().WithIdentity(persona.Identity{
		Name:  "The Judge",
		Voice: "Cold and clipped",
	})
	p, _, err := p.AddBelief("You will never be good enough", "father", 5)
	if err != nil {
		t.Fatalf("AddBelief: %v", err)
	}
	p, _ = p.AddTrigger("Presenting at work", "Everyone can see you're a fraud.")
	p = p.AddCatchphrase("Pathetic.")
	p = p.WithProtectiveIntent("Being humiliated in public")
	return &p
}

func TestBuildIsDeterministic(t *testing.T) {
	p := samplePersona(t)
	for _, task := range []Task{TaskCritic, TaskHealthyAdult, TaskTherapist, TaskAnalysis} {
		first := Build(p, task)
		second := Build(p, task)
		if first != second {
			t.Errorf("task %s: prompt differs between calls", task)
		}
		if first == "" {
			t.Errorf("task %s: empty prompt", task)
		}
	}
}

func TestCriticDefaultsForEmptyIdentity(t *testing.T) {
	empty := persona.New()
	prompt := Critic(&empty)

	if !strings.Contains(prompt, "Name: The Critic\n") {
		t.Error("Expected fallback name 'The Critic'")
	}
	if !strings.Contains(prompt, "Voice/Tone: Critical and harsh\n") {
		t.Error("Expected fallback voice 'Critical and harsh'")
	}
	if strings.Contains(prompt, "Name: \n") {
		t.Error("Prompt must never contain an empty Name line")
	}
	if strings.Contains(prompt, "CORE BELIEFS") || strings.Contains(prompt, "TRIGGERS") {
		t.Error("Empty sections should be omitted")
	}
}

func TestCriticNilPersona(t *testing.T) {
	prompt := Critic(nil)
	if !strings.Contains(prompt, "Name: The Critic") {
		t.Error("Expected defaults for nil persona")
	}
}

func TestCriticEmbedsPersona(t *testing.T) {
	prompt := Critic(samplePersona(t))

	for _, want := range []string{
		"Name: The Judge",
		"Voice/Tone: Cold and clipped",
		`- "You will never be good enough" (intensity: 5/5)`,
		`- When: Presenting at work -> You say: "Everyone can see you're a fraud."`,
		`- "Pathetic."`,
		"Being humiliated in public",
		"1-3 sentences",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Expected prompt to contain %q", want)
		}
	}
}

func TestHealthyAdultOmitsTriggersAndCatchphrases(t *testing.T) {
	prompt := HealthyAdult(samplePersona(t))

	if !strings.Contains(prompt, "Name: The Judge") {
		t.Error("Expected critic name")
	}
	if !strings.Contains(prompt, `Core beliefs it pushes: "You will never be good enough"`) {
		t.Error("Expected beliefs")
	}
	if strings.Contains(prompt, "Pathetic.") || strings.Contains(prompt, "Presenting at work") {
		t.Error("Healthy adult prompt must not embed triggers or catchphrases")
	}
	if !strings.Contains(prompt, "2-4 complete sentences") {
		t.Error("Expected length instruction")
	}

	if !strings.Contains(HealthyAdult(nil), defaultBeliefsSummary) {
		t.Error("Expected belief fallback for nil persona")
	}
}

func TestHealthyAdultTurn(t *testing.T) {
	turn := HealthyAdultTurn("", "You failed again.")
	if !strings.Contains(turn, `"(starting the conversation)"`) {
		t.Error("Expected placeholder for empty user message")
	}
	if !strings.Contains(turn, `"You failed again."`) {
		t.Error("Expected critic message")
	}
}

func TestTherapistContextBlock(t *testing.T) {
	without := Therapist(nil)
	if strings.Contains(without, "CONTEXT") {
		t.Error("Context block must be omitted without a persona")
	}
	if strings.Contains(without, DefaultName) {
		t.Error("No placeholders should be rendered without a persona")
	}

	with := Therapist(samplePersona(t))
	if !strings.HasPrefix(with, without) {
		t.Error("Persona context should extend the core instructions")
	}
	if !strings.Contains(with, "Name: The Judge") || !strings.Contains(with, "Presenting at work") {
		t.Error("Expected persona details in context block")
	}
}

func TestAnalysisPrompt(t *testing.T) {
	prompt := Analysis()

	for _, d := range distortion.Taxonomy {
		if !strings.Contains(prompt, "- "+string(d.Pattern)+": ") {
			t.Errorf("Expected taxonomy entry for %s", d.Pattern)
		}
	}
	if !strings.Contains(prompt, `"critic_segments"`) || !strings.Contains(prompt, `"healthy_adult_response"`) {
		t.Error("Expected both output keys")
	}
	if !strings.Contains(prompt, `{"critic_segments": [], "healthy_adult_response": ""}`) {
		t.Error("Expected explicit empty-result shape")
	}
}

func TestPortraitPrompt(t *testing.T) {
	prompt := PortraitPrompt("  a tall grey figure  ")
	if !strings.HasPrefix(prompt, "A portrait of a personified inner critic figure: a tall grey figure.") {
		t.Errorf("Unexpected portrait prompt: %s", prompt)
	}
}
