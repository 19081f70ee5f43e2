// Package metrics exposes Prometheus collectors for the HTTP API, the
// pipeline and the job worker on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector of the service.
type Metrics struct {
	registry         *prometheus.Registry
	requestTotal     *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	pipelinesTotal   *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
	framesProcessed  prometheus.Counter
	jobsTotal        *prometheus.CounterVec
}

// New creates the collectors and registers them together with the Go and
// process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gifproc_api_requests_total",
			Help: "Total HTTP requests handled by the API.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gifproc_api_request_duration_seconds",
			Help:    "API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		pipelinesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gifproc_pipeline_runs_total",
			Help: "Total pipeline invocations by output mode and outcome.",
		}, []string{"mode", "outcome"}),
		pipelineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gifproc_pipeline_duration_seconds",
			Help:    "Pipeline duration from decode to assembled output.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"mode"}),
		framesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gifproc_pipeline_frames_processed_total",
			Help: "Total frames run through a pipeline.",
		}),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gifproc_jobs_total",
			Help: "Total asynchronous jobs by final status.",
		}, []string{"status"}),
	}

	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.pipelinesTotal,
		m.pipelineDuration,
		m.framesProcessed,
		m.jobsTotal,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one handled HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	code := strconv.Itoa(status)
	m.requestTotal.WithLabelValues(method, route, code).Inc()
	m.requestDuration.WithLabelValues(method, route, code).Observe(d.Seconds())
}

// ObservePipeline records one pipeline invocation.
func (m *Metrics) ObservePipeline(mode, outcome string, frames int, d time.Duration) {
	m.pipelinesTotal.WithLabelValues(mode, outcome).Inc()
	m.pipelineDuration.WithLabelValues(mode).Observe(d.Seconds())
	m.framesProcessed.Add(float64(frames))
}

// ObserveJob records a job reaching a final status.
func (m *Metrics) ObserveJob(status string) {
	m.jobsTotal.WithLabelValues(status).Inc()
}
