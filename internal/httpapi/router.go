package httpapi

import (
	"github.com/Sternrassler/event-aggregator/pkg/metrics"
	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with middleware and routes.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), Metrics(), AccessLog())

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/events", h.ListEvents)
		v1.GET("/sources", h.ListSources)
		v1.GET("/sources/:source/events", h.ListSourceEvents)
		v1.GET("/sources/:source/events/:id", h.GetEvent)
		v1.GET("/themes", h.ListThemes)
	}

	return r
}
