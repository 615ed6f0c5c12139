package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total number of requests labelled by path and status",
}, []string{"path", "status"})

var ingestRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ingest_runs_total",
	Help: "Ingestion pipeline runs labelled by final status",
}, []string{"status"})

var indexedChunks = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "indexed_chunks",
	Help: "Number of chunks in the active collection",
})

var vectorBackend = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "vector_backend_selected",
	Help: "Set to 1 for the vector backend chosen at startup",
}, []string{"kind", "backend"})

var queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "query_duration_seconds",
	Help:    "Total time spent answering a question.",
	Buckets: []float64{.1, .5, 1, 2, 5, 10, 30},
}, []string{"mode"})

var dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "dependency_latency_seconds",
	Help:    "Latency of external service calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
}, []string{"service"})

type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *HttpStatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func CaptureExecutionMetrics(label string, timeElapsed time.Duration) {
	dependencyLatency.WithLabelValues(label).Observe(timeElapsed.Seconds())
}

// CaptureQueryMetrics records a query labelled by how the answer was produced.
func CaptureQueryMetrics(mode string, timeElapsed time.Duration) {
	queryDuration.WithLabelValues(mode).Observe(timeElapsed.Seconds())
}

func IncrementIngestRuns(status string) {
	ingestRunsTotal.WithLabelValues(status).Inc()
}

func SetIndexedChunks(n int) {
	indexedChunks.Set(float64(n))
}

func SetVectorBackend(kind, backend string) {
	vectorBackend.Reset()
	vectorBackend.WithLabelValues(kind, backend).Set(1)
}
