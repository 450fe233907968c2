package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3d91ll/innercritic/internal/analysis"
	"github.com/r3d91ll/innercritic/internal/journal"
	"github.com/r3d91ll/innercritic/internal/llm"
	"github.com/r3d91ll/innercritic/internal/session"
	"github.com/r3d91ll/innercritic/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var noEnv = llm.EnvKey{Names: []string{"UNSET"}, Lookup: func(string) (string, bool) { return "", false }}

// upstream fakes the chat completions service.
type upstream struct {
	status int // non-zero forces an error response
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if u.status != 0 {
		w.WriteHeader(u.status)
		io.WriteString(w, `{"error":{"message":"upstream down"}}`)
		return
	}
	var req map[string]any
	json.NewDecoder(r.Body).Decode(&req)

	if req["stream"] == true {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range []string{"I hear ", "you."} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", c)
		}
		io.WriteString(w, "data: [DONE]\n\n")
		return
	}

	content := "Pathetic."
	if _, ok := req["response_format"]; ok {
		content = `{"critic_segments":[{"text":"stupid","pattern_type":"labeling","explanation":"a label"}],"healthy_adult_response":"You made a mistake."}`
	} else if msgs, _ := req["messages"].([]any); len(msgs) > 0 {
		sys, _ := msgs[0].(map[string]any)["content"].(string)
		if strings.Contains(sys, "Healthy Adult") {
			content = "That's not true."
		}
	}
	body, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	w.Write(body)
}

type testEnv struct {
	router   *gin.Engine
	session  *session.Session
	upstream *upstream
}

func newTestEnv(t *testing.T, withKey bool) *testEnv {
	t.Helper()
	up := &upstream{}
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)

	kv, err := storage.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	ctx := context.Background()

	cfg := llm.DefaultConfig()
	cfg.BaseURL = srv.URL
	client := llm.New(cfg, llm.Chain{noEnv, llm.StoredKey{Store: kv}})
	mapper := analysis.NewMapper(client, analysis.DefaultConfig())

	sess, err := session.New(ctx, session.DefaultConfig(), client, mapper, kv, session.WithEnvKey(noEnv))
	require.NoError(t, err)
	if withKey {
		require.NoError(t, sess.SetAPIKey(ctx, "sk-or-test"))
	}
	clock := func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	j, err := journal.Open(ctx, kv, journal.WithClock(clock))
	require.NoError(t, err)

	router := NewRouter([]string{"http://localhost:5173"}, Deps{Session: sess, Journal: j, Models: client})
	return &testEnv{router: router, session: sess, upstream: up}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestHealthAndCORS(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	for origin, want := range map[string]int{
		"http://localhost:5173":  http.StatusNoContent,
		"http://127.0.0.1:9999":  http.StatusNoContent,
		"https://evil.example":   http.StatusForbidden,
		"http://localhost.evil/": http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodOptions, "/api/health", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", "GET")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, origin)
	}
}

func TestPersonaLifecycle(t *testing.T) {
	env := newTestEnv(t, true)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/critic", nil).Code)
	assert.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/critic", nil).Code)

	w := env.do(t, http.MethodPatch, "/api/critic/identity", map[string]string{"name": "The Judge"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/critic/beliefs", map[string]any{"belief": "You are lazy", "intensity": 9})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/critic/beliefs", map[string]any{"belief": "You are lazy", "intensity": 4})
	require.Equal(t, http.StatusOK, w.Code)
	var p struct {
		Personality struct{ Name string } `json:"personality"`
		Beliefs     []struct{ ID string } `json:"beliefs"`
	}
	decode(t, w, &p)
	assert.Equal(t, "The Judge", p.Personality.Name)
	require.Len(t, p.Beliefs, 1)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/api/critic/beliefs/"+p.Beliefs[0].ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/critic/beliefs/"+p.Beliefs[0].ID, nil).Code)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/critic/catchphrases", map[string]string{"phrase": "Typical."}).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/api/critic/catchphrases?phrase=Typical.", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/critic/catchphrases?phrase=Typical.", nil).Code)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/critic", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/critic", nil).Code)
}

func TestCriticExchange(t *testing.T) {
	env := newTestEnv(t, true)
	env.do(t, http.MethodPost, "/api/critic", nil)

	w := env.do(t, http.MethodPost, "/api/critic/messages", map[string]string{"content": "I missed the deadline"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var ex struct {
		User         struct{ Content string } `json:"user"`
		Critic       struct{ Content string } `json:"critic"`
		HealthyAdult *struct{ Content string } `json:"healthyAdult"`
	}
	decode(t, w, &ex)
	assert.Equal(t, "Pathetic.", ex.Critic.Content)
	require.NotNil(t, ex.HealthyAdult)
	assert.Equal(t, "That's not true.", ex.HealthyAdult.Content)

	w = env.do(t, http.MethodPost, "/api/critic/messages", map[string]string{"content": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpstreamFailureIsBadGateway(t *testing.T) {
	env := newTestEnv(t, true)
	env.do(t, http.MethodPost, "/api/critic", nil)
	env.upstream.status = http.StatusInternalServerError

	w := env.do(t, http.MethodPost, "/api/critic/messages", map[string]string{"content": "hello"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "500")
}

func TestTherapistRequiresKey(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodPost, "/api/therapist/messages", map[string]string{"content": "hello"})
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Empty(t, env.session.Messages())
}

func TestTherapistStreamsEvents(t *testing.T) {
	env := newTestEnv(t, true)
	// c.Stream needs a real connection.
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/therapist/messages", "application/json", strings.NewReader(`{"content":"I feel stuck"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	stream := string(body)

	iMessage := strings.Index(stream, "event:message")
	iDelta := strings.Index(stream, "event:delta")
	iDone := strings.Index(stream, "event:done")
	require.True(t, iMessage >= 0 && iDelta > iMessage && iDone > iDelta, stream)
	assert.NotContains(t, stream, "event:error")

	msgs := env.session.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "I hear you.", msgs[1].Content)
}

func TestDeconstructEndpoint(t *testing.T) {
	env := newTestEnv(t, true)
	env.do(t, http.MethodPost, "/api/critic", nil)
	env.do(t, http.MethodPost, "/api/critic/messages", map[string]string{"content": "I am so stupid"})
	msgs := env.session.Messages()
	require.Len(t, msgs, 3)

	w := env.do(t, http.MethodPost, "/api/messages/"+msgs[0].ID+"/analysis", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got struct {
		MessageID  string `json:"messageId"`
		Segments   []analysis.Segment
		Highlights []analysis.Span `json:"highlights"`
	}
	decode(t, w, &got)
	assert.Equal(t, msgs[0].ID, got.MessageID)
	require.Len(t, got.Highlights, 1)
	assert.Equal(t, "stupid", msgs[0].Content[got.Highlights[0].Start:got.Highlights[0].End])

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/messages/"+msgs[1].ID+"/analysis", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/messages/nope/analysis", nil).Code)
}

func TestJournalEndpoints(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodPut, "/api/journal/entries/today/trackings/sleep", map[string]string{"rating": "better"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var e journal.Entry
	decode(t, w, &e)
	assert.Equal(t, "2025-03-10", e.Date)

	assert.Equal(t, http.StatusBadRequest,
		env.do(t, http.MethodPut, "/api/journal/entries/today/trackings/sleep", map[string]string{"rating": "great"}).Code)
	assert.Equal(t, http.StatusNotFound,
		env.do(t, http.MethodPut, "/api/journal/entries/today/trackings/juggling", map[string]string{"rating": "same"}).Code)
	assert.Equal(t, http.StatusBadRequest,
		env.do(t, http.MethodPut, "/api/journal/entries/2025-13-01/notes", map[string]string{"notes": "x"}).Code)
	assert.Equal(t, http.StatusNotFound,
		env.do(t, http.MethodPut, "/api/journal/entries/today/reflections/nope", map[string]string{"response": "x"}).Code)

	w = env.do(t, http.MethodGet, "/api/journal/stats?days=7", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		Streak  int
		Summary journal.Summary
		Series  []journal.Point
	}
	decode(t, w, &stats)
	assert.Equal(t, 1, stats.Streak)
	assert.Equal(t, 1, stats.Summary.Better)
	assert.Equal(t, []journal.Point{{Date: "2025-03-10", Score: 1}}, stats.Series)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/journal/stats?days=0", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/journal/entries/2025-01-01", nil).Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusPreconditionFailed, statusFor(fmt.Errorf("wrapped: %w", llm.ErrNoCredential)))
	assert.Equal(t, http.StatusBadGateway, statusFor(&llm.StatusError{StatusCode: 429}))
	assert.Equal(t, http.StatusNotFound, statusFor(session.ErrNoPersona))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.ErrUnexpectedEOF))
}
