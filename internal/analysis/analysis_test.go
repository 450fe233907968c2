package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3d91ll/innercritic/internal/distortion"
	"github.com/r3d91ll/innercritic/internal/llm"
)

type stubCompleter struct {
	answer string
	err    error
	got    []llm.ChatRequest
}

func (s *stubCompleter) CompleteChat(_ context.Context, req llm.ChatRequest) (string, error) {
	s.got = append(s.got, req)
	return s.answer, s.err
}

func TestAnchor(t *testing.T) {
	source := "I am so stupid and worthless"

	start, end := Anchor(source, "so stupid")
	assert.Equal(t, 5, start)
	assert.Equal(t, 14, end)
	assert.Equal(t, "so stupid", source[start:end])

	start, end = Anchor(source, "I'm an idiot")
	assert.Zero(t, start)
	assert.Zero(t, end)

	start, end = Anchor(source, "")
	assert.Zero(t, start+end)
}

func TestAnchorFirstOccurrenceMultibyte(t *testing.T) {
	source := "Ich bin dumm, wirklich dumm – völlig dumm"
	start, end := Anchor(source, "völlig dumm")
	require.Equal(t, "völlig dumm", source[start:end])

	start, _ = Anchor(source, "dumm")
	assert.Equal(t, 8, start, "first occurrence wins")
}

func TestParseResult(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		ok       bool
		segments int
		response string
	}{
		{
			name: "empty shape",
			raw:  `{"critic_segments":[],"healthy_adult_response":""}`,
			ok:   true,
		},
		{
			name: "leading prose",
			raw:  `Sure! {"critic_segments":[],"healthy_adult_response":""}`,
			ok:   true,
		},
		{
			name:     "code fence",
			raw:      "```json\n{\"critic_segments\":[{\"text\":\"so stupid\",\"pattern_type\":\"labeling\",\"explanation\":\"x\"}],\"healthy_adult_response\":\"I am learning.\"}\n```",
			ok:       true,
			segments: 1,
			response: "I am learning.",
		},
		{
			name:     "malformed items dropped",
			raw:      `{"critic_segments":["oops",{"text":""},{"text":42},{"text":"keep"}],"healthy_adult_response":"ok"}`,
			ok:       true,
			segments: 1,
			response: "ok",
		},
		{name: "not json", raw: "I could not analyze that.", ok: false},
		{name: "missing response key", raw: `{"critic_segments":[]}`, ok: false},
		{name: "wrong segment type", raw: `{"critic_segments":{},"healthy_adult_response":""}`, ok: false},
		{name: "wrong response type", raw: `{"critic_segments":[],"healthy_adult_response":7}`, ok: false},
		{name: "top-level array", raw: `[{"critic_segments":[]}]`, ok: false},
		{name: "empty", raw: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := ParseResult(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Len(t, res.CriticSegments, tt.segments)
			assert.NotNil(t, res.CriticSegments)
			assert.Equal(t, tt.response, res.HealthyAdultResponse)
		})
	}
}

func TestParseResultKeepsItemFields(t *testing.T) {
	res, ok := ParseResult(`{"critic_segments":[{"text":"always fail","pattern_type":"overgeneralization","explanation":"One event becomes a rule."}],"healthy_adult_response":"I failed once."}`)
	require.True(t, ok)
	require.Len(t, res.CriticSegments, 1)
	assert.Equal(t, ReportedSegment{
		Text:        "always fail",
		PatternType: "overgeneralization",
		Explanation: "One event becomes a rule.",
	}, res.CriticSegments[0])
}

func TestMapKeepsUnresolvedSegments(t *testing.T) {
	source := "I am so stupid and worthless"
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	a := Map("msg-1", source, Result{
		CriticSegments: []ReportedSegment{
			{Text: "so stupid", PatternType: "labeling"},
			{Text: "completely useless", PatternType: "labeling"},
			{Text: "stupid", PatternType: " catastrophizing "},
		},
		HealthyAdultResponse: "I made a mistake.",
	}, now)

	require.Len(t, a.Segments, 3)
	assert.Equal(t, "msg-1", a.MessageID)
	assert.Equal(t, now, a.CreatedAt)
	assert.NotEmpty(t, a.ID)

	for _, s := range a.Segments {
		assert.True(t, s.StartIndex >= 0 && s.StartIndex <= s.EndIndex && s.EndIndex <= len(source))
		if s.Resolved(source) {
			assert.Equal(t, s.Text, source[s.StartIndex:s.EndIndex])
		}
	}
	assert.Equal(t, 5, a.Segments[0].StartIndex)
	assert.Equal(t, 14, a.Segments[0].EndIndex)
	assert.Zero(t, a.Segments[1].StartIndex)
	assert.Zero(t, a.Segments[1].EndIndex)
	assert.False(t, a.Segments[1].Resolved(source))
	assert.Equal(t, distortion.Catastrophizing, a.Segments[2].PatternType)
	assert.NotEqual(t, a.Segments[0].ID, a.Segments[2].ID)
}

func TestAnalyzeEmptyRoundTrip(t *testing.T) {
	stub := &stubCompleter{answer: `{"critic_segments":[],"healthy_adult_response":""}`}
	m := NewMapper(stub, DefaultConfig())

	a, err := m.Analyze(context.Background(), nil, "msg-1", "Today was fine.")
	require.NoError(t, err)
	assert.Empty(t, a.Segments)
	assert.Equal(t, "", a.HealthyAdultResponse)
	assert.True(t, a.Empty())

	require.Len(t, stub.got, 1)
	req := stub.got[0]
	assert.Equal(t, 0.3, req.Temperature)
	assert.Equal(t, 2000, req.MaxTokens)
	assert.Contains(t, req.UserMessage, "Today was fine.")
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, "json_schema", req.ResponseFormat.Type)
}

func TestAnalyzeUnparseableIsNotAnError(t *testing.T) {
	stub := &stubCompleter{answer: "Sorry, I can't help with that."}
	m := NewMapper(stub, Config{MaxTokens: 100, Temperature: 0.3})

	a, err := m.Analyze(context.Background(), nil, "msg-1", "I always mess up")
	require.NoError(t, err)
	assert.Empty(t, a.Segments)
	assert.Nil(t, stub.got[0].ResponseFormat, "unstructured config sends no response_format")
}

func TestAnalyzePropagatesCompletionErrors(t *testing.T) {
	stub := &stubCompleter{err: llm.ErrNoCredential}
	m := NewMapper(stub, DefaultConfig())

	_, err := m.Analyze(context.Background(), nil, "msg-1", "anything")
	assert.True(t, errors.Is(err, llm.ErrNoCredential))
}

func TestSchemaIsStrict(t *testing.T) {
	s := Schema()
	assert.Equal(t, "object", s["type"])
	assert.Equal(t, false, s["additionalProperties"])
	assert.ElementsMatch(t, []string{"critic_segments", "healthy_adult_response"}, s["required"])

	props := s["properties"].(map[string]any)
	items := props["critic_segments"].(map[string]any)["items"].(map[string]any)
	assert.Equal(t, false, items["additionalProperties"])
	assert.ElementsMatch(t, []string{"text", "pattern_type", "explanation"}, items["required"])
}

func TestHighlightsTieBreak(t *testing.T) {
	source := "You always ruin everything, you idiot"
	seg := func(id, text string) Segment {
		start, end := Anchor(source, text)
		return Segment{ID: id, Text: text, StartIndex: start, EndIndex: end}
	}

	segments := []Segment{
		seg("short", "always"),
		seg("long", "always ruin everything"),
		seg("dup", "always ruin everything"),
		seg("tail", "you idiot"),
		seg("ghost", "not in source"),
		seg("inner", "ruin"),
	}

	spans := Highlights(source, segments)
	require.Len(t, spans, 2)
	assert.Equal(t, "long", spans[0].Segment.ID, "longest wins a shared start, earliest report breaks ties")
	assert.Equal(t, "tail", spans[1].Segment.ID)
	assert.Len(t, segments, 6, "segments are not modified")

	marked := Mark(source, spans, func(text string, _ Segment) string { return "[" + text + "]" })
	assert.Equal(t, "You [always ruin everything], [you idiot]", marked)
}

func TestHighlightsIgnoresStaleOffsets(t *testing.T) {
	spans := Highlights("short", []Segment{{Text: "short text", StartIndex: 0, EndIndex: 10}})
	assert.Empty(t, spans)
}
