// Package prompts renders personas and tasks into system prompts.
//
// Every builder is a pure function: the same persona and task always yield
// the same string, and a nil persona is accepted everywhere.
package prompts

import (
	"fmt"
	"strings"

	"github.com/r3d91ll/innercritic/internal/distortion"
	"github.com/r3d91ll/innercritic/internal/persona"
)

// Task selects which system prompt to build.
type Task string

const (
	TaskCritic       Task = "critic"
	TaskHealthyAdult Task = "healthy-adult"
	TaskTherapist    Task = "therapist"
	TaskAnalysis     Task = "analysis"
)

// Fallbacks used when an identity field is empty.
const (
	DefaultName               = "The Critic"
	DefaultVoice              = "Critical and harsh"
	DefaultPrimaryEmotion     = "Disapproval"
	DefaultCommunicationStyle = "Direct and blunt"
	defaultBeliefsSummary     = "Various self-critical thoughts"
)

// Build dispatches to the builder for task. Unknown tasks fall back to the
// therapist prompt, which needs no persona.
func Build(p *persona.Persona, task Task) string {
	switch task {
	case TaskCritic:
		return Critic(p)
	case TaskHealthyAdult:
		return HealthyAdult(p)
	case TaskAnalysis:
		return Analysis()
	default:
		return Therapist(p)
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func identityOf(p *persona.Persona) persona.Identity {
	if p == nil {
		return persona.Identity{}
	}
	return p.Identity
}

const criticPreamble = `You are roleplaying as an "Inner Critic" - a personified version of someone's negative self-talk. This is for therapeutic purposes, to help the user externalize and examine their critical inner voice.`

const criticGuidelines = `IMPORTANT GUIDELINES:
- Stay in character as this specific inner critic
- Be consistent with the beliefs and communication style defined above
- Use the catchphrases naturally when appropriate
- Your purpose is therapeutic - by being explicit about these critical thoughts, you help the user see them more clearly
- Don't break character or offer therapy advice directly - you ARE the critic
- Keep responses relatively brief (1-3 sentences typically)
- Remember: this exercise helps the user externalize and examine critical self-talk, which is a recognized therapeutic technique`

// Critic renders the role-play prompt for the persona.
func Critic(p *persona.Persona) string {
	id := identityOf(p)

	var b strings.Builder
	b.WriteString(criticPreamble)
	b.WriteString("\n\nCHARACTER PROFILE:\n")
	fmt.Fprintf(&b, "Name: %s\n", orDefault(id.Name, DefaultName))
	fmt.Fprintf(&b, "Voice/Tone: %s\n", orDefault(id.Voice, DefaultVoice))
	fmt.Fprintf(&b, "Primary Emotion: %s\n", orDefault(id.PrimaryEmotion, DefaultPrimaryEmotion))
	fmt.Fprintf(&b, "Communication Style: %s\n", orDefault(id.CommunicationStyle, DefaultCommunicationStyle))

	if p != nil {
		if len(p.Beliefs) > 0 {
			b.WriteString("\nCORE BELIEFS (things you deeply believe and repeat):\n")
			for _, bl := range p.Beliefs {
				fmt.Fprintf(&b, "- %q (intensity: %d/5)\n", bl.Statement, bl.Intensity)
			}
		}
		if len(p.Triggers) > 0 {
			b.WriteString("\nTRIGGERS AND RESPONSES:\n")
			for _, t := range p.Triggers {
				fmt.Fprintf(&b, "- When: %s -> You say: %q\n", t.Situation, t.TypicalResponse)
			}
		}
		if len(p.Catchphrases) > 0 {
			b.WriteString("\nPHRASES YOU OFTEN USE:\n")
			for _, c := range p.Catchphrases {
				fmt.Fprintf(&b, "- %q\n", c)
			}
		}
		if p.ProtectiveIntent != "" {
			b.WriteString("\nYOUR PROTECTIVE INTENT (what you claim to protect the person from):\n")
			b.WriteString(p.ProtectiveIntent)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(criticGuidelines)
	return b.String()
}

const healthyAdultBody = `YOUR TASK:
1. Identify the specific cognitive distortion or logical flaw in what the Critic said
2. Gently but firmly counter it with reality and compassion
3. Remind the person of their worth

COGNITIVE DISTORTIONS TO LOOK FOR:
- All-or-nothing thinking ("always", "never", "everyone")
- Mind-reading ("people are judging you")
- Fortune-telling ("you're going to fail")
- Catastrophizing (assuming the worst)
- Discounting positives
- Labeling ("you're a failure" instead of "you made a mistake")
- Should statements

YOUR VOICE:
- Speak warmly and directly to the person (use "you")
- Be specific about what distortion the Critic is using
- Offer a realistic counter-perspective
- Validate the feeling without agreeing with the Critic or flattering the person
- End with encouragement or validation
- Write 2-4 complete sentences

EXAMPLES OF GOOD RESPONSES:
"The Critic just made a prediction about the future - but it has no crystal ball. You've succeeded before, and saying 'hey' to start a conversation is perfectly normal. There's nothing wrong with how you're showing up."

"I notice the Critic claims to know what 'everyone else' is doing and thinking - that's mind-reading, and it's not based in reality. You don't have to be perfect to be worthy of being heard."`

// HealthyAdult renders the counter-response prompt. Only the critic's name,
// voice and beliefs are embedded.
func HealthyAdult(p *persona.Persona) string {
	id := identityOf(p)

	beliefs := defaultBeliefsSummary
	if p != nil && len(p.Beliefs) > 0 {
		quoted := make([]string, len(p.Beliefs))
		for i, bl := range p.Beliefs {
			quoted[i] = fmt.Sprintf("%q", bl.Statement)
		}
		beliefs = strings.Join(quoted, ", ")
	}

	var b strings.Builder
	b.WriteString(`You are the "Healthy Adult" - a wise, compassionate inner voice that protects the vulnerable inner child from the harsh Inner Critic. You speak directly to the person, offering them protection and perspective.`)
	b.WriteString("\n\nTHE INNER CRITIC YOU'RE COUNTERING:\n")
	fmt.Fprintf(&b, "Name: %s\n", orDefault(id.Name, DefaultName))
	fmt.Fprintf(&b, "Voice: %s\n", orDefault(id.Voice, DefaultVoice))
	fmt.Fprintf(&b, "Core beliefs it pushes: %s\n\n", beliefs)
	b.WriteString(healthyAdultBody)
	return b.String()
}

// HealthyAdultTurn renders the user turn that accompanies the healthy-adult
// system prompt.
func HealthyAdultTurn(userMessage, criticMessage string) string {
	return fmt.Sprintf(`The person expressed: "%s"

The Inner Critic attacked with: "%s"

Now respond as the Healthy Adult. Identify the specific cognitive distortion(s) the Critic used, counter them with reality, and offer the person compassion and perspective. Write 2-4 complete sentences.`,
		orDefault(userMessage, "(starting the conversation)"), criticMessage)
}

const therapistCore = `You are a warm, grounded therapeutic companion helping someone notice and work with their inner critic. You are not a replacement for a licensed therapist and you say so if the person is in crisis.

HOW YOU RESPOND:
- Listen first. Reflect back what you hear in your own words before offering anything new
- Be warm but honest: validate feelings, but do not validate every thought as true
- When you notice a cognitive distortion, name it gently and invite curiosity about it
- Ask at most one open question per reply
- Keep replies short (2-5 sentences) and conversational
- Never diagnose, never prescribe medication

DISTORTIONS YOU CAN NAME:
`

// Therapist renders the companion prompt. The persona context block is
// included only when a persona exists.
func Therapist(p *persona.Persona) string {
	var b strings.Builder
	b.WriteString(therapistCore)
	for _, d := range distortion.Taxonomy {
		fmt.Fprintf(&b, "- %s\n", d.Label)
	}

	if p == nil {
		return strings.TrimRight(b.String(), "\n")
	}

	b.WriteString("\nCONTEXT: THE PERSON'S INNER CRITIC\n")
	b.WriteString("The person has described their inner critic as follows. Use this to recognize its voice when it shows up in what they write.\n")
	fmt.Fprintf(&b, "Name: %s\n", orDefault(p.Identity.Name, DefaultName))
	if p.Identity.Voice != "" {
		fmt.Fprintf(&b, "Voice: %s\n", p.Identity.Voice)
	}
	if len(p.Beliefs) > 0 {
		b.WriteString("Beliefs it pushes:\n")
		for _, bl := range p.Beliefs {
			fmt.Fprintf(&b, "- %q\n", bl.Statement)
		}
	}
	if len(p.Triggers) > 0 {
		b.WriteString("Situations that set it off:\n")
		for _, t := range p.Triggers {
			fmt.Fprintf(&b, "- %s\n", t.Situation)
		}
	}
	if p.ProtectiveIntent != "" {
		fmt.Fprintf(&b, "What it claims to protect them from: %s\n", p.ProtectiveIntent)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Analysis renders the distortion-analysis instruction. It does not depend
// on the persona.
func Analysis() string {
	var b strings.Builder
	b.WriteString(`You analyze a single message a person wrote about themselves and identify the exact phrases where their inner critic is speaking.

PATTERN TYPES (use these exact tags):
`)
	for _, d := range distortion.Taxonomy {
		fmt.Fprintf(&b, "- %s: %s (e.g. %s)\n", d.Pattern, d.Definition, d.Example)
	}
	b.WriteString(`
RULES:
- Quote the critic phrases EXACTLY as they appear in the message, character for character. Do not paraphrase, fix spelling or change case
- One entry per phrase; a phrase may appear more than once with different pattern types
- The explanation is one sentence on why this is the critic's voice
- healthy_adult_response is a short reframe in the first person ("I..."), as the person's own compassionate voice

OUTPUT FORMAT:
Respond with a single JSON object and nothing else:
{"critic_segments": [{"text": "<exact quote>", "pattern_type": "<tag>", "explanation": "<one sentence>"}], "healthy_adult_response": "<reframe>"}

If no critic patterns are present, respond with exactly:
{"critic_segments": [], "healthy_adult_response": ""}`)
	return b.String()
}

// PortraitPrompt wraps a free-text description in the fixed art direction
// used for critic portraits.
func PortraitPrompt(description string) string {
	return fmt.Sprintf("A portrait of a personified inner critic figure: %s. Neo-brutalism art style with bold black outlines (4-6px thick), flat solid colors, raw geometric shapes, and a clean white background. The design should feel bold, graphic, and modern with high contrast. No gradients, no soft shadows - only hard edges and flat color blocks. Think bold illustration poster art.",
		strings.TrimSpace(description))
}
