package events

import (
	"context"
	"errors"
	"net/http"
	"time"

	"punishment-bridge/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Ingest is the HTTP adapter the game plugin posts moderation events to.
// Accepted events are acknowledged immediately and processed through the bus;
// the plugin side fires and forgets.
type Ingest struct {
	bus    *Bus
	token  string
	server *http.Server
	logger *zap.Logger
}

// NewIngest builds the ingest server. token guards the event endpoints; an
// empty token disables the check, for deployments where the listener is
// bound to localhost only.
func NewIngest(cfg model.IngestConfig, bus *Bus, logger *zap.Logger) *Ingest {
	ing := &Ingest{bus: bus, token: cfg.Token, logger: logger}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/v1/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authed := router.Group("/v1", ing.checkToken)
	authed.POST("/punishments", ing.handlePunishment)
	authed.POST("/revocations", ing.handleRevoke)

	ing.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ing
}

// Start begins serving in the background.
func (g *Ingest) Start() {
	go func() {
		g.logger.Info("Event ingest listening", zap.String("addr", g.server.Addr))
		if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("Event ingest server failed", zap.Error(err))
		}
	}()
}

// Stop shuts the listener down gracefully.
func (g *Ingest) Stop(ctx context.Context) {
	if err := g.server.Shutdown(ctx); err != nil {
		g.logger.Warn("Event ingest shutdown failed", zap.Error(err))
	}
}

func (g *Ingest) checkToken(c *gin.Context) {
	if g.token != "" && c.GetHeader("X-API-Token") != g.token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	}
}

func (g *Ingest) handlePunishment(c *gin.Context) {
	var event PunishmentEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event"})
		return
	}
	g.bus.PublishPunishment(event)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (g *Ingest) handleRevoke(c *gin.Context) {
	var event RevokeEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event"})
		return
	}
	g.bus.PublishRevoke(event)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
