package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"datahub/internal/errors"
	"datahub/internal/health"
	"datahub/internal/syncer"
	"datahub/internal/worksheet"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	defaultLogLimit  = 50
	maxLogLimit      = 500
	defaultDataLimit = 1000
	maxDataLimit     = 5000
	summarySyncs     = 5
)

// syncRequest is the optional body of POST /api/sync.
type syncRequest struct {
	Worksheets []string `json:"worksheets"`
	All        bool     `json:"all"`
	ProjectID  string   `json:"project_id"`
}

func (s *Server) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":   "DataHub API",
		"status": "running",
		"endpoints": gin.H{
			"health":     "/health",
			"worksheets": "/api/worksheets",
			"sync":       "/api/sync",
			"sync_logs":  "/api/sync/logs",
			"sync_check": "/api/sync/health",
			"report":     "/api/sync/report",
			"data":       "/api/data/:worksheet",
		},
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.deps.Store.Ping(c.Request.Context()); err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("Database ping failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "disconnected",
			"error":    err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleWorksheets(c *gin.Context) {
	scheduled := map[string]bool{}
	for _, j := range s.deps.Catalog.DefaultSync() {
		scheduled[j.Descriptor().Name] = true
	}

	type entry struct {
		worksheet.Descriptor
		AppendOnly  bool `json:"append_only"`
		DefaultSync bool `json:"default_sync"`
	}
	var out []entry
	for _, j := range s.deps.Catalog.All() {
		d := j.Descriptor()
		out = append(out, entry{Descriptor: d, AppendOnly: d.AppendOnly(), DefaultSync: scheduled[d.Name]})
	}
	c.JSON(http.StatusOK, gin.H{"worksheets": out, "count": len(out)})
}

func (s *Server) handleSyncAll(c *gin.Context) {
	var req syncRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, errors.InvalidInput("invalid request body: "+err.Error()))
			return
		}
	}

	jobs, err := syncer.Targets(s.deps.Catalog, req.Worksheets, req.All)
	if err != nil {
		respondError(c, err)
		return
	}
	s.runSync(c, jobs, req.ProjectID)
}

func (s *Server) handleSyncOne(c *gin.Context) {
	name := c.Param("worksheet")
	job, ok := s.deps.Catalog.Lookup(name)
	if !ok {
		respondError(c, errors.NotFound("worksheet "+name))
		return
	}
	s.runSync(c, []worksheet.Job{job}, c.Query("project_id"))
}

// runSync answers 200 when every worksheet synced and 500 otherwise. The
// summary is the body either way. A client hanging up does not abort the
// sync; only server shutdown ends it.
func (s *Server) runSync(c *gin.Context, jobs []worksheet.Job, projectID string) {
	opts := s.deps.Options
	if projectID != "" {
		opts.ProjectID = projectID
	}

	summary := s.deps.Syncer.SyncAll(context.WithoutCancel(c.Request.Context()), jobs, opts)
	status := http.StatusOK
	if !summary.Success {
		status = http.StatusInternalServerError
	}
	c.JSON(status, summary)
}

func (s *Server) handleSyncLogs(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultLogLimit, 1, maxLogLimit)
	if err != nil {
		respondError(c, err)
		return
	}

	name := c.Query("worksheet")
	if name != "" {
		if job, ok := s.deps.Catalog.Lookup(name); ok {
			name = job.Descriptor().Name
		}
	}

	runs, err := s.deps.Logs.Recent(c.Request.Context(), name, limit)
	if err != nil {
		respondError(c, errors.DatabaseError("failed to read sync log", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": runs, "count": len(runs)})
}

func (s *Server) handleSyncHealth(c *gin.Context) {
	report, err := s.deps.Health.Run(c.Request.Context())
	if err != nil {
		respondError(c, errors.DatabaseError("failed to check sync health", err))
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleSyncReport(c *gin.Context) {
	report, err := s.deps.Health.Run(c.Request.Context())
	if err != nil {
		respondError(c, errors.DatabaseError("failed to check sync health", err))
		return
	}
	if c.Query("format") == "markdown" {
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(health.Markdown(report)))
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", health.HTML(report))
}

// dataTable resolves the worksheet path parameter to its destination table.
func (s *Server) dataTable(c *gin.Context) (worksheet.Descriptor, bool) {
	name := c.Param("worksheet")
	job, ok := s.deps.Catalog.Lookup(name)
	if !ok {
		respondError(c, errors.NotFound("worksheet "+name))
		return worksheet.Descriptor{}, false
	}
	return job.Descriptor(), true
}

func (s *Server) handleData(c *gin.Context) {
	desc, ok := s.dataTable(c)
	if !ok {
		return
	}
	limit, err := queryInt(c, "limit", defaultDataLimit, 1, maxDataLimit)
	if err != nil {
		respondError(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0, 0, -1)
	if err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	rows, err := s.deps.Tables.Page(ctx, desc.Table, limit, offset)
	if err != nil {
		respondError(c, errors.DatabaseError("failed to read "+desc.Table, err))
		return
	}
	summary, err := s.deps.Tables.Summary(ctx, desc.Table)
	if err != nil {
		respondError(c, errors.DatabaseError("failed to count "+desc.Table, err))
		return
	}
	zerolog.Ctx(ctx).Debug().Str("table", desc.Table).Int("limit", limit).Int("offset", offset).Msg("Serving synced data")

	c.JSON(http.StatusOK, gin.H{
		"data": rows,
		"metadata": gin.H{
			"worksheet": desc.Name,
			"table":     desc.Table,
			"total":     summary.Total,
			"limit":     limit,
			"offset":    offset,
			"returned":  len(rows),
		},
	})
}

func (s *Server) handleDataSummary(c *gin.Context) {
	desc, ok := s.dataTable(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	summary, err := s.deps.Tables.Summary(ctx, desc.Table)
	if err != nil {
		respondError(c, errors.DatabaseError("failed to summarise "+desc.Table, err))
		return
	}
	runs, err := s.deps.Logs.Recent(ctx, desc.Name, summarySyncs)
	if err != nil {
		respondError(c, errors.DatabaseError("failed to read sync log", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"worksheet":    desc.Name,
		"table":        desc.Table,
		"statistics":   summary,
		"recent_syncs": runs,
	})
}

func (s *Server) handleDataColumns(c *gin.Context) {
	desc, ok := s.dataTable(c)
	if !ok {
		return
	}
	keys, err := s.deps.Tables.PayloadKeys(c.Request.Context(), desc.Table)
	if err != nil {
		respondError(c, errors.DatabaseError("failed to list columns of "+desc.Table, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"worksheet": desc.Name,
		"table":     desc.Table,
		"columns":   keys,
	})
}

// queryInt reads an integer query parameter, capping it at highest when
// highest > 0.
func queryInt(c *gin.Context, name string, def, lowest, highest int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lowest {
		return 0, errors.InvalidInput(fmt.Sprintf("%s must be an integer of at least %d", name, lowest)).
			WithDetail("value", raw)
	}
	if highest > 0 {
		n = min(n, highest)
	}
	return n, nil
}

// respondError answers with the status the error's code maps to.
func respondError(c *gin.Context, err error) {
	if !errors.IsAppError(err) {
		err = errors.Wrap(err, "request failed")
	}
	abortWithError(c, errors.HTTPStatus(err), err)
}

func abortWithError(c *gin.Context, status int, err error) {
	code := errors.GetCode(err)
	event := zerolog.Ctx(c.Request.Context()).Warn()
	if status >= http.StatusInternalServerError {
		event = zerolog.Ctx(c.Request.Context()).Error()
	}
	event.Err(err).Str("code", code).Str("path", c.Request.URL.Path).Msg("Request failed")

	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "code": code})
}
