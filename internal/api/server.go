// Package api serves sync triggers, sync logs, health and synced data over HTTP.
package api

import (
	"context"
	"net/http"

	"datahub/domain/syncrun"
	"datahub/internal/health"
	"datahub/internal/worksheet"
	"datahub/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Syncer runs a set of worksheet connectors.
type Syncer interface {
	SyncAll(ctx context.Context, jobs []worksheet.Job, opts worksheet.Options) *syncrun.Summary
}

// HealthChecker builds a health report.
type HealthChecker interface {
	Run(ctx context.Context) (*health.Report, error)
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Syncer  Syncer
	Health  HealthChecker
	Catalog *worksheet.Catalog
	Store   ports.RecordStore
	Tables  ports.TableReader
	Logs    ports.SyncLogRepository
	// Options are the defaults for API-triggered syncs.
	Options worksheet.Options
	APIKey  string
}

// Server is the HTTP API.
type Server struct {
	router *gin.Engine
	deps   Deps
	logger zerolog.Logger
}

// NewServer builds the router. gin's mode is set by the caller.
func NewServer(deps Deps, logger zerolog.Logger) *Server {
	s := &Server{
		router: gin.New(),
		deps:   deps,
		logger: logger.With().Str("component", "api").Logger(),
	}
	s.router.Use(requestLogger(s.logger), recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api", apiKeyAuth(s.deps.APIKey, s.logger))
	{
		api.GET("/worksheets", s.handleWorksheets)
		api.POST("/sync", s.handleSyncAll)
		api.POST("/sync/:worksheet", s.handleSyncOne)
		api.GET("/sync/logs", s.handleSyncLogs)
		api.GET("/sync/health", s.handleSyncHealth)
		api.GET("/sync/report", s.handleSyncReport)

		api.GET("/data/:worksheet", s.handleData)
		api.GET("/data/:worksheet/summary", s.handleDataSummary)
		api.GET("/data/:worksheet/columns", s.handleDataColumns)
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "path": c.Request.URL.Path})
	})
}

// Handler exposes the router for http.Server and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
