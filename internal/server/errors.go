package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/r3d91ll/innercritic/internal/conversation"
	"github.com/r3d91ll/innercritic/internal/journal"
	"github.com/r3d91ll/innercritic/internal/llm"
	"github.com/r3d91ll/innercritic/internal/persona"
	"github.com/r3d91ll/innercritic/internal/session"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var statusErr *llm.StatusError
	var apiErr *llm.APIError
	switch {
	case errors.Is(err, llm.ErrNoCredential):
		return http.StatusPreconditionFailed
	case errors.As(err, &statusErr), errors.As(err, &apiErr), errors.Is(err, llm.ErrNoImage):
		return http.StatusBadGateway
	case errors.Is(err, session.ErrNoPersona),
		errors.Is(err, conversation.ErrMessageNotFound),
		errors.Is(err, persona.ErrNotFound),
		errors.Is(err, journal.ErrUnknownItem),
		errors.Is(err, journal.ErrUnknownPrompt):
		return http.StatusNotFound
	case errors.Is(err, session.ErrEmptyMessage),
		errors.Is(err, session.ErrNotUserMessage),
		errors.Is(err, session.ErrNoDescription),
		errors.Is(err, persona.ErrInvalidIntensity),
		errors.Is(err, journal.ErrInvalidDate),
		errors.Is(err, journal.ErrInvalidRating):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Sugar().Errorw("request failed", "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
