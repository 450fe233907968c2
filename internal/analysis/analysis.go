// Package analysis turns the model's distortion analysis of a user message
// into segments anchored to byte offsets in that message.
package analysis

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/r3d91ll/innercritic/internal/distortion"
)

// Segment is one excerpt of the source message the model attributed to
// the inner critic. When the excerpt could not be found verbatim,
// StartIndex and EndIndex are both 0.
type Segment struct {
	ID          string             `json:"id"`
	Text        string             `json:"text"`
	StartIndex  int                `json:"startIndex"`
	EndIndex    int                `json:"endIndex"`
	PatternType distortion.Pattern `json:"patternType"`
	Explanation string             `json:"explanation"`
}

// Resolved reports whether the segment is anchored in source.
func (s Segment) Resolved(source string) bool {
	return s.EndIndex > s.StartIndex &&
		s.StartIndex >= 0 && s.EndIndex <= len(source) &&
		source[s.StartIndex:s.EndIndex] == s.Text
}

// Analysis is the mapped result for one message.
type Analysis struct {
	ID                   string    `json:"id"`
	MessageID            string    `json:"messageId"`
	Segments             []Segment `json:"segments"`
	HealthyAdultResponse string    `json:"healthyAdultResponse"`
	CreatedAt            time.Time `json:"createdAt"`
}

// Empty reports whether the analysis found nothing.
func (a Analysis) Empty() bool {
	return len(a.Segments) == 0 && strings.TrimSpace(a.HealthyAdultResponse) == ""
}

// Result is the JSON object the model is asked to return.
type Result struct {
	CriticSegments       []ReportedSegment `json:"critic_segments" jsonschema:"required"`
	HealthyAdultResponse string            `json:"healthy_adult_response" jsonschema:"required"`
}

// ReportedSegment is one entry of critic_segments as the model wrote it.
type ReportedSegment struct {
	Text        string `json:"text" jsonschema:"required"`
	PatternType string `json:"pattern_type" jsonschema:"required"`
	Explanation string `json:"explanation" jsonschema:"required"`
}

// Anchor finds the first occurrence of text in source and returns its byte
// range, or (0, 0) when text is empty or absent.
func Anchor(source, text string) (start, end int) {
	if text == "" {
		return 0, 0
	}
	idx := strings.Index(source, text)
	if idx < 0 {
		return 0, 0
	}
	return idx, idx + len(text)
}

// Map builds an Analysis from a parsed result. Every reported segment is
// kept, in report order, whether or not it could be anchored.
func Map(messageID, source string, r Result, now time.Time) Analysis {
	a := Analysis{
		ID:                   uuid.NewString(),
		MessageID:            messageID,
		Segments:             make([]Segment, 0, len(r.CriticSegments)),
		HealthyAdultResponse: r.HealthyAdultResponse,
		CreatedAt:            now,
	}
	for _, rs := range r.CriticSegments {
		start, end := Anchor(source, rs.Text)
		a.Segments = append(a.Segments, Segment{
			ID:          uuid.NewString(),
			Text:        rs.Text,
			StartIndex:  start,
			EndIndex:    end,
			PatternType: distortion.Pattern(strings.TrimSpace(rs.PatternType)),
			Explanation: rs.Explanation,
		})
	}
	return a
}
