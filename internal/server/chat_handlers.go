package server

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/r3d91ll/innercritic/internal/analysis"
	"github.com/r3d91ll/innercritic/internal/conversation"
	"github.com/r3d91ll/innercritic/internal/llm"
	"github.com/r3d91ll/innercritic/internal/session"
)

type messageRequest struct {
	Content string `json:"content"`
}

func (h *handlers) listMessages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"messages": h.session.Messages()})
}

func (h *handlers) clearMessages(c *gin.Context) {
	if err := h.session.ClearChat(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) talkToCritic(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	ex, err := h.session.TalkToCritic(c.Request.Context(), req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ex)
}

type sseEvent struct {
	name string
	data any
}

// talkToTherapist relays the streamed reply as server-sent events:
// message (the ids of both new messages), delta (each chunk), then done
// or error with the final assistant message.
func (h *handlers) talkToTherapist(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		h.fail(c, session.ErrEmptyMessage)
		return
	}
	ctx := c.Request.Context()
	if h.session.APIKeyStatus(ctx) == llm.KeySourceNone {
		h.fail(c, llm.ErrNoCredential)
		return
	}

	events := make(chan sseEvent, 16)
	send := func(ev sseEvent) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(events)
		final, err := h.session.TalkToTherapist(ctx, req.Content, session.StreamHandler{
			OnStart: func(user, assistant conversation.Message) {
				send(sseEvent{"message", gin.H{"userMessageId": user.ID, "assistantMessageId": assistant.ID}})
			},
			OnChunk: func(delta string) {
				send(sseEvent{"delta", gin.H{"content": delta}})
			},
		})
		if err != nil {
			send(sseEvent{"error", gin.H{"error": err.Error(), "message": final}})
			return
		}
		send(sseEvent{"done", gin.H{"message": final}})
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent(ev.name, ev.data)
		return true
	})
}

type analysisResponse struct {
	analysis.Analysis
	Highlights []analysis.Span `json:"highlights"`
}

func (h *handlers) deconstruct(c *gin.Context) {
	recompute, _ := strconv.ParseBool(c.Query("recompute"))
	id := c.Param("id")

	a, err := h.session.Deconstruct(c.Request.Context(), id, recompute)
	if err != nil {
		h.fail(c, err)
		return
	}
	msg, _ := h.session.Message(id)
	spans := analysis.Highlights(msg.Content, a.Segments)
	if spans == nil {
		spans = []analysis.Span{}
	}
	c.JSON(http.StatusOK, analysisResponse{Analysis: a, Highlights: spans})
}
