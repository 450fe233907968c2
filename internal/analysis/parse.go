package analysis

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ParseResult reads the model's raw answer. It tries the whole text first
// and then the span from the first '{' to the last '}', keeping the first
// candidate with the expected shape. The boolean is false when neither
// worked, and the returned Result is then the empty result.
//
// The shape check requires an object with an array critic_segments and a
// string healthy_adult_response. Entries of critic_segments that are not
// objects with a non-empty string text are dropped.
func ParseResult(raw string) (Result, bool) {
	for _, candidate := range candidates(raw) {
		if res, ok := parseCandidate(candidate); ok {
			return res, true
		}
	}
	return Result{CriticSegments: []ReportedSegment{}}, false
}

func candidates(raw string) []string {
	out := []string{strings.TrimSpace(raw)}
	first := strings.Index(raw, "{")
	last := strings.LastIndex(raw, "}")
	if first >= 0 && last > first {
		if inner := raw[first : last+1]; inner != out[0] {
			out = append(out, inner)
		}
	}
	return out
}

func parseCandidate(s string) (Result, bool) {
	if s == "" || !gjson.Valid(s) {
		return Result{}, false
	}
	doc := gjson.Parse(s)
	if !doc.IsObject() {
		return Result{}, false
	}

	segs := doc.Get("critic_segments")
	resp := doc.Get("healthy_adult_response")
	if !segs.IsArray() || resp.Type != gjson.String {
		return Result{}, false
	}

	res := Result{
		CriticSegments:       []ReportedSegment{},
		HealthyAdultResponse: resp.String(),
	}
	for _, item := range segs.Array() {
		if !item.IsObject() {
			continue
		}
		text := item.Get("text")
		if text.Type != gjson.String || text.String() == "" {
			continue
		}
		res.CriticSegments = append(res.CriticSegments, ReportedSegment{
			Text:        text.String(),
			PatternType: stringField(item, "pattern_type"),
			Explanation: stringField(item, "explanation"),
		})
	}
	return res, true
}

func stringField(obj gjson.Result, key string) string {
	v := obj.Get(key)
	if v.Type != gjson.String {
		return ""
	}
	return v.String()
}
