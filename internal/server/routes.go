package server

import (
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter configures all routes and middleware.
func NewRouter(allowedOrigins []string, deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(deps.Logger), corsMiddleware(allowedOrigins))

	h := &handlers{session: deps.Session, journal: deps.Journal, models: deps.Models, logger: deps.Logger}

	api := r.Group("/api")
	api.GET("/health", h.health)
	api.GET("/models", h.listModels)
	api.GET("/key", h.keyStatus)
	api.PUT("/key", h.setKey)

	critic := api.Group("/critic")
	{
		critic.GET("", h.getPersona)
		critic.POST("", h.initializePersona)
		critic.DELETE("", h.resetPersona)
		critic.PATCH("/identity", h.updateIdentity)
		critic.PUT("/intent", h.setIntent)
		critic.POST("/beliefs", h.addBelief)
		critic.DELETE("/beliefs/:id", h.removeBelief)
		critic.POST("/triggers", h.addTrigger)
		critic.DELETE("/triggers/:id", h.removeTrigger)
		critic.POST("/catchphrases", h.addCatchphrase)
		critic.DELETE("/catchphrases", h.removeCatchphrase)
		critic.POST("/portrait", h.generatePortrait)
		critic.POST("/messages", h.talkToCritic)
	}

	api.POST("/therapist/messages", h.talkToTherapist)

	messages := api.Group("/messages")
	{
		messages.GET("", h.listMessages)
		messages.DELETE("", h.clearMessages)
		messages.POST("/:id/analysis", h.deconstruct)
	}

	j := api.Group("/journal")
	{
		j.GET("/entries", h.listEntries)
		j.GET("/entries/:date", h.getEntry)
		j.PUT("/entries/:date/trackings/:item", h.setTracking)
		j.PUT("/entries/:date/reflections/:prompt", h.setReflection)
		j.PUT("/entries/:date/notes", h.setNotes)
		j.GET("/items", h.listItems)
		j.POST("/items", h.addItem)
		j.POST("/items/:id/toggle", h.toggleItem)
		j.DELETE("/items/:id", h.removeItem)
		j.GET("/prompts", h.listPrompts)
		j.POST("/prompts", h.addPrompt)
		j.POST("/prompts/:id/toggle", h.togglePrompt)
		j.DELETE("/prompts/:id", h.removePrompt)
		j.GET("/stats", h.journalStats)
	}

	return r
}

// corsMiddleware admits the configured origins plus any loopback origin.
func corsMiddleware(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = true
	}
	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return allowed[origin] || isLoopbackOrigin(origin)
		},
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Cache-Control"},
		ExposeHeaders: []string{"Content-Type", "Cache-Control", "Connection"},
		MaxAge:        12 * time.Hour,
	})
}

func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// requestLogger logs one line per request. Bodies are never logged.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}
