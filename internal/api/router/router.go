package router

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"
	"go.opentelemetry.io/otel/trace"

	"github.com/aliskhannn/gif-processor/internal/api/handlers/job"
	"github.com/aliskhannn/gif-processor/internal/api/handlers/pipeline"
	"github.com/aliskhannn/gif-processor/internal/api/middleware"
	"github.com/aliskhannn/gif-processor/internal/metrics"
)

// Deps are the handlers and cross-cutting services the router wires.
// Jobs is nil when the asynchronous API is disabled.
type Deps struct {
	Pipeline *pipeline.Handler
	Jobs     *job.Handler
	Metrics  *metrics.Metrics
	Tracer   trace.Tracer
	Log      zerolog.Logger
}

// Setup builds the HTTP engine.
func Setup(d Deps) *ginext.Engine {
	r := ginext.New()

	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.RequestIDMiddleware(d.Log))
	if d.Metrics != nil {
		r.Use(middleware.MetricsMiddleware(d.Metrics))
	}
	if d.Tracer != nil {
		r.Use(middleware.TracingMiddleware(d.Tracer))
	}
	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())

	r.GET("/healthz", func(c *ginext.Context) {
		c.Status(http.StatusOK)
	})
	if d.Metrics != nil {
		h := d.Metrics.Handler()
		r.GET("/metrics", func(c *ginext.Context) {
			h.ServeHTTP(c.Writer, c.Request)
		})
	}

	api := r.Group("/api")

	api.POST("/process", d.Pipeline.Process) // run a pipeline over an upload

	if d.Jobs != nil {
		api.POST("/jobs", d.Jobs.Create) // submit a job over a stored object
		api.GET("/jobs/:id", d.Jobs.Get) // job status
	}

	return r
}
