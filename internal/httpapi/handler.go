// Package httpapi exposes the aggregation service over HTTP with gin.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/Sternrassler/event-aggregator/pkg/event"
	"github.com/gin-gonic/gin"
)

// Service is the aggregation surface the handlers call.
type Service interface {
	ListUnifiedPage(ctx context.Context, q event.Query, limit, page int) (event.Page, error)
	ListSinglePage(ctx context.Context, source event.SourceID, q event.Query, limit, page int) (event.Page, error)
	GetEvent(ctx context.Context, source event.SourceID, id string) (event.Event, error)
	Sources() []event.SourceID
}

// ThemeLister lists the shared theme taxonomy.
type ThemeLister interface {
	Themes() []event.ThemeRef
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the handlers.
type Options struct {
	DefaultLimit int
	MaxLimit     int

	// Themes is optional; without it /api/v1/themes returns an empty list.
	Themes ThemeLister

	// Redis is optional; without it /health reports redis as disabled.
	Redis Pinger
}

// Handler serves the HTTP API.
type Handler struct {
	svc  Service
	opts Options
}

// NewHandler creates a handler over svc.
func NewHandler(svc Service, opts Options) *Handler {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 20
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = opts.DefaultLimit
	}
	return &Handler{svc: svc, opts: opts}
}

// ListEvents serves GET /api/v1/events, the merged listing of all sources.
func (h *Handler) ListEvents(c *gin.Context) {
	q, limit, page, err := parseList(c, h.opts.DefaultLimit, h.opts.MaxLimit)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.svc.ListUnifiedPage(c.Request.Context(), q, limit, page)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListSourceEvents serves GET /api/v1/sources/:source/events.
func (h *Handler) ListSourceEvents(c *gin.Context) {
	q, limit, page, err := parseList(c, h.opts.DefaultLimit, h.opts.MaxLimit)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	source := event.SourceID(c.Param("source"))
	result, err := h.svc.ListSinglePage(c.Request.Context(), source, q, limit, page)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetEvent serves GET /api/v1/sources/:source/events/:id.
func (h *Handler) GetEvent(c *gin.Context) {
	source := event.SourceID(c.Param("source"))
	ev, err := h.svc.GetEvent(c.Request.Context(), source, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": ev})
}

// ListSources serves GET /api/v1/sources.
func (h *Handler) ListSources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.svc.Sources()})
}

// ListThemes serves GET /api/v1/themes.
func (h *Handler) ListThemes(c *gin.Context) {
	themes := []event.ThemeRef{}
	if h.opts.Themes != nil {
		themes = h.opts.Themes.Themes()
	}
	c.JSON(http.StatusOK, gin.H{"data": themes})
}

// Health serves GET /health. It fails with 503 when Redis is configured
// but unreachable.
func (h *Handler) Health(c *gin.Context) {
	if h.opts.Redis == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "redis": "disabled"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.opts.Redis.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "redis": "ok"})
}
