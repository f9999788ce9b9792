// Package api exposes settings, team selection, missions and the
// authorization gate over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"agentric/internal/audit"
	"agentric/internal/logger"
	"agentric/internal/mission"
)

// Server is the operator HTTP surface.
type Server struct {
	orch   *mission.Orchestrator
	store  *audit.Store
	router *gin.Engine
	log    zerolog.Logger
	http   *http.Server
}

// NewServer wires the routes. store may be nil when auditing is disabled.
func NewServer(orch *mission.Orchestrator, store *audit.Store) *Server {
	router := gin.New()
	s := &Server{
		orch:   orch,
		store:  store,
		router: router,
		log:    logger.Component("api"),
	}
	router.Use(gin.Recovery(), s.requestLog())

	api := router.Group("/api")
	{
		api.GET("/settings", s.handleSettings)
		api.PUT("/settings/text", s.handleSetText)
		api.PUT("/settings/image", s.handleSetImage)

		api.GET("/roster", s.handleRoster)
		api.GET("/team", s.handleTeam)
		api.PUT("/team", s.handleSetTeam)
		api.POST("/team/select-all", s.handleSelectAll)
		api.POST("/team/:id/toggle", s.handleToggle)

		api.POST("/missions", s.handleSend)
		api.GET("/missions/current", s.handleCurrent)
		api.GET("/transcript", s.handleTranscript)

		api.GET("/authorization", s.handlePending)
		api.POST("/authorization/allow", s.handleDecision(true))
		api.POST("/authorization/deny", s.handleDecision(false))

		api.GET("/audit/counts", s.handleCounts)
		api.GET("/audit/missions/:id", s.handleMissionTrail)
		api.GET("/audit/agents/:name", s.handleAgentTrail)
		api.DELETE("/audit", s.handleClearAudit)
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("listening")
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}
