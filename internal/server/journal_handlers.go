package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/r3d91ll/innercritic/internal/journal"
)

func (h *handlers) listEntries(c *gin.Context) {
	from, to := c.Query("from"), c.Query("to")
	if from == "" && to == "" {
		c.JSON(http.StatusOK, gin.H{"entries": h.journal.Entries()})
		return
	}
	if to == "" {
		to = h.journal.Today()
	}
	for _, d := range []string{from, to} {
		if d == "" {
			continue
		}
		if err := journal.ValidDate(d); err != nil {
			h.fail(c, err)
			return
		}
	}
	entries := h.journal.EntriesInRange(from, to)
	if entries == nil {
		entries = []journal.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *handlers) getEntry(c *gin.Context) {
	date := c.Param("date")
	if date == "today" {
		date = h.journal.Today()
	}
	e, ok := h.journal.EntryByDate(date)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no entry for " + date})
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *handlers) entryDate(c *gin.Context) string {
	if d := c.Param("date"); d != "today" {
		return d
	}
	return h.journal.Today()
}

func (h *handlers) setTracking(c *gin.Context) {
	var req struct {
		Rating string `json:"rating"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	r, err := journal.ParseRating(req.Rating)
	if err != nil {
		h.fail(c, err)
		return
	}
	e, err := h.journal.SetTracking(c.Request.Context(), h.entryDate(c), c.Param("item"), r)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *handlers) setReflection(c *gin.Context) {
	var req struct {
		Response string `json:"response"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	e, err := h.journal.SetReflection(c.Request.Context(), h.entryDate(c), c.Param("prompt"), req.Response)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *handlers) setNotes(c *gin.Context) {
	var req struct {
		Notes string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	e, err := h.journal.SetNotes(c.Request.Context(), h.entryDate(c), req.Notes)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *handlers) listItems(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": h.journal.Items()})
}

func (h *handlers) addItem(c *gin.Context) {
	var item journal.TrackableItem
	if err := c.ShouldBindJSON(&item); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	item, err := h.journal.AddCustomItem(c.Request.Context(), item)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *handlers) toggleItem(c *gin.Context) {
	item, err := h.journal.ToggleItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *handlers) removeItem(c *gin.Context) {
	if err := h.journal.RemoveItem(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) listPrompts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"prompts": h.journal.Prompts()})
}

func (h *handlers) addPrompt(c *gin.Context) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	p, err := h.journal.AddCustomPrompt(c.Request.Context(), req.Prompt)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *handlers) togglePrompt(c *gin.Context) {
	p, err := h.journal.TogglePrompt(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) removePrompt(c *gin.Context) {
	if err := h.journal.RemovePrompt(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// journalStats summarizes the last ?days= days (14 by default), overall or
// for ?item=.
func (h *handlers) journalStats(c *gin.Context) {
	days := 14
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(c, "days must be a positive integer")
			return
		}
		days = n
	}
	item := c.Query("item")
	entries := h.journal.LastDays(days)

	c.JSON(http.StatusOK, gin.H{
		"days":    days,
		"streak":  h.journal.StreakDays(),
		"summary": journal.Trend(entries, item),
		"series":  journal.CumulativeSeries(entries, item),
		"items":   journal.ItemTrends(entries, h.journal.EnabledItems()),
	})
}
