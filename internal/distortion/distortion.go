// Package distortion defines the cognitive-distortion taxonomy used to
// tag critic-voice segments.
package distortion

// Pattern is a distortion tag. Values outside the known set are legal and
// carried through untouched; Label falls back to the raw tag.
type Pattern string

const (
	Labeling             Pattern = "labeling"
	Comparison           Pattern = "comparison"
	Catastrophizing      Pattern = "catastrophizing"
	ShouldTyranny        Pattern = "should-tyranny"
	MindReading          Pattern = "mind-reading"
	Overgeneralization   Pattern = "overgeneralization"
	DiscountingPositives Pattern = "discounting-positives"
	EmotionalReasoning   Pattern = "emotional-reasoning"
	Personalization      Pattern = "personalization"
)

// Definition is one taxonomy row as rendered into the analysis prompt.
type Definition struct {
	Pattern    Pattern
	Label      string
	Definition string
	Example    string
}

// Taxonomy lists the known patterns in prompt order.
var Taxonomy = []Definition{
	{Labeling, "Labeling", "Attaching a global, fixed label to oneself instead of describing a specific behavior", `"I'm so lazy", "I'm worthless"`},
	{Comparison, "Comparison", "Measuring oneself against others and coming up short", `"Everyone else manages this"`},
	{Catastrophizing, "Catastrophizing", "Predicting the worst possible outcome as if it were certain", `"This will never work"`},
	{ShouldTyranny, "Should-Tyranny", "Rigid rules about how one should or must be", `"I should have known better"`},
	{MindReading, "Mind-Reading", "Assuming what others think without evidence", `"They surely think I'm stupid"`},
	{Overgeneralization, "Overgeneralization", "Drawing sweeping conclusions from a single event, often with always/never", `"I always ruin everything"`},
	{DiscountingPositives, "Discounting Positives", "Dismissing achievements or good experiences as not counting", `"That was just luck"`},
	{EmotionalReasoning, "Emotional Reasoning", "Treating a feeling as proof of a fact", `"I feel like a failure, so I am one"`},
	{Personalization, "Personalization", "Blaming oneself for events outside one's control", `"It's my fault they're upset"`},
}

// Known reports whether p is one of the nine taxonomy tags.
func (p Pattern) Known() bool {
	for _, d := range Taxonomy {
		if d.Pattern == p {
			return true
		}
	}
	return false
}

// Label returns the display name, or the raw tag for unknown patterns.
func (p Pattern) Label() string {
	for _, d := range Taxonomy {
		if d.Pattern == p {
			return d.Label
		}
	}
	return string(p)
}
