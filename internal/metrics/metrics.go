// Package metrics holds the prometheus collectors for the view pipeline and
// the HTTP layer. Collectors register themselves with the default registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Exclusion reasons for ProjectionExcluded.
const (
	ReasonFetchFailed       = "fetch_failed"
	ReasonNotFound          = "not_found"
	ReasonEmptyEmbedding    = "empty_embedding"
	ReasonDimensionMismatch = "dimension_mismatch"
	ReasonUnsupportedType   = "unsupported_type"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neuronview_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "neuronview_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route"},
	)

	ProjectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "neuronview_projection_duration_seconds",
			Help:    "Time spent reducing embeddings to 2D, by reducer",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"reducer"},
	)

	ProjectionExcluded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neuronview_projection_excluded_nodes_total",
			Help: "Nodes left out of a projection, by reason",
		},
		[]string{"reason"},
	)

	ViewRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neuronview_view_runs_total",
			Help: "View pipeline runs by outcome (ready, error, superseded)",
		},
		[]string{"outcome"},
	)

	ViewNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "neuronview_view_nodes",
		Help: "Number of nodes in the committed view",
	})

	InferenceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "neuronview_inference_duration_seconds",
		Help:    "Round-trip time of inference backend calls",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	IndexedNeurons = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "neuronview_indexed_neurons",
		Help: "Neurons held in the similarity index",
	})
)

// Middleware records request counts and durations labelled by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
