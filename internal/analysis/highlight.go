package analysis

import (
	"sort"
	"strings"
)

// Span is a highlight range in the source message.
type Span struct {
	Start   int     `json:"start"`
	End     int     `json:"end"`
	Segment Segment `json:"segment"`
}

// Highlights picks non-overlapping ranges to render. Candidates are taken
// by start offset, then longest first, then report order; a candidate that
// overlaps one already placed is skipped. Unresolved segments are never
// highlighted. The segments themselves are not modified.
func Highlights(source string, segments []Segment) []Span {
	type candidate struct {
		seg   Segment
		order int
	}
	var cands []candidate
	for i, s := range segments {
		if s.Resolved(source) {
			cands = append(cands, candidate{seg: s, order: i})
		}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i].seg, cands[j].seg
		if a.StartIndex != b.StartIndex {
			return a.StartIndex < b.StartIndex
		}
		if la, lb := a.EndIndex-a.StartIndex, b.EndIndex-b.StartIndex; la != lb {
			return la > lb
		}
		return cands[i].order < cands[j].order
	})

	var spans []Span
	end := 0
	for _, c := range cands {
		if c.seg.StartIndex < end {
			continue
		}
		spans = append(spans, Span{Start: c.seg.StartIndex, End: c.seg.EndIndex, Segment: c.seg})
		end = c.seg.EndIndex
	}
	return spans
}

// Mark rewrites source with every span replaced by wrap's output.
func Mark(source string, spans []Span, wrap func(text string, seg Segment) string) string {
	var b strings.Builder
	pos := 0
	for _, sp := range spans {
		b.WriteString(source[pos:sp.Start])
		b.WriteString(wrap(source[sp.Start:sp.End], sp.Segment))
		pos = sp.End
	}
	b.WriteString(source[pos:])
	return b.String()
}
