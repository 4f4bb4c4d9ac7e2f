package aggregator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for aggregate requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_aggregate_requests_total",
		Help: "Total aggregate requests by operation and outcome",
	}, []string{"operation", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "events_aggregate_request_duration_seconds",
		Help:    "Aggregate request duration in seconds by operation",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"operation"})

	sourceItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_source_items_total",
		Help: "Total items fetched and normalized by source",
	}, []string{"source"})

	sourceFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_source_failures_total",
		Help: "Total failed source calls by source and operation",
	}, []string{"source", "operation"})

	partialPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "events_partial_pages_total",
		Help: "Total pages served with at least one failed source",
	})
)

// Operation labels.
const (
	opUnified = "unified"
	opSingle  = "single"
	opGet     = "get"
)

// Outcome labels.
const (
	outcomeOK      = "ok"
	outcomePartial = "partial"
	outcomeError   = "error"
)
