package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/r3d91ll/innercritic/internal/journal"
	"github.com/r3d91ll/innercritic/internal/persona"
	"github.com/r3d91ll/innercritic/internal/session"
)

type handlers struct {
	session *session.Session
	journal *journal.Store
	models  ModelLister
	logger  *zap.Logger
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) listModels(c *gin.Context) {
	if h.models == nil {
		c.JSON(http.StatusOK, gin.H{"models": []any{}})
		return
	}
	models, err := h.models.ListModels(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}

func (h *handlers) keyStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"source": h.session.APIKeyStatus(c.Request.Context())})
}

func (h *handlers) setKey(c *gin.Context) {
	var req struct {
		Key string `json:"key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := h.session.SetAPIKey(c.Request.Context(), req.Key); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"source": h.session.APIKeyStatus(c.Request.Context())})
}

func (h *handlers) getPersona(c *gin.Context) {
	p, ok := h.session.Persona()
	if !ok {
		h.fail(c, session.ErrNoPersona)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) initializePersona(c *gin.Context) {
	p, err := h.session.InitializePersona(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *handlers) resetPersona(c *gin.Context) {
	if err := h.session.ResetPersona(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// edit applies fn to the persona and renders the result.
func (h *handlers) edit(c *gin.Context, fn func(persona.Persona) (persona.Persona, error)) {
	p, err := h.session.UpdatePersona(c.Request.Context(), fn)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) updateIdentity(c *gin.Context) {
	var id persona.Identity
	if err := c.ShouldBindJSON(&id); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	h.edit(c, func(p persona.Persona) (persona.Persona, error) {
		return p.WithIdentity(id), nil
	})
}

func (h *handlers) setIntent(c *gin.Context) {
	var req struct {
		ProtectiveIntent string `json:"protectiveIntent"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	h.edit(c, func(p persona.Persona) (persona.Persona, error) {
		return p.WithProtectiveIntent(req.ProtectiveIntent), nil
	})
}

func (h *handlers) addBelief(c *gin.Context) {
	var req struct {
		Belief    string `json:"belief" binding:"required"`
		Origin    string `json:"origin"`
		Intensity int    `json:"intensity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "belief is required")
		return
	}
	h.edit(c, func(p persona.Persona) (persona.Persona, error) {
		p, _, err := p.AddBelief(req.Belief, req.Origin, req.Intensity)
		return p, err
	})
}

func (h *handlers) removeBelief(c *gin.Context) {
	id := c.Param("id")
	h.edit(c, func(p persona.Persona) (persona.Persona, error) {
		return p.RemoveBelief(id)
	})
}

func (h *handlers) addTrigger(c *gin.Context) {
	var req struct {
		Situation       string `json:"situation" binding:"required"`
		TypicalResponse string `json:"typicalResponse"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "situation is required")
		return
	}
	h.edit(c, func(p persona.Persona) (persona.Persona, error) {
		p, _ = p.AddTrigger(req.Situation, req.TypicalResponse)
		return p, nil
	})
}

func (h *handlers) removeTrigger(c *gin.Context) {
	id := c.Param("id")
	h.edit(c, func(p persona.Persona) (persona.Persona, error) {
		return p.RemoveTrigger(id)
	})
}

type phraseRequest struct {
	Phrase string `json:"phrase" binding:"required"`
}

func (h *handlers) addCatchphrase(c *gin.Context) {
	var req phraseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "phrase is required")
		return
	}
	h.edit(c, func(p persona.Persona) (persona.Persona, error) {
		return p.AddCatchphrase(req.Phrase), nil
	})
}

func (h *handlers) removeCatchphrase(c *gin.Context) {
	phrase := c.Query("phrase")
	if phrase == "" {
		badRequest(c, "phrase is required")
		return
	}
	h.edit(c, func(p persona.Persona) (persona.Persona, error) {
		if !p.HasCatchphrase(phrase) {
			return p, persona.ErrNotFound
		}
		return p.RemoveCatchphrase(phrase), nil
	})
}

func (h *handlers) generatePortrait(c *gin.Context) {
	var req struct {
		Description string `json:"description"`
	}
	// An empty body redraws from the stored description.
	_ = c.ShouldBindJSON(&req)
	p, err := h.session.GeneratePortrait(c.Request.Context(), req.Description)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
