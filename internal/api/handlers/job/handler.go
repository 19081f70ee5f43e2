package job

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/gif-processor/internal/api/respond"
	"github.com/aliskhannn/gif-processor/internal/model"
	jobrepo "github.com/aliskhannn/gif-processor/internal/repository/job"
	jobsvc "github.com/aliskhannn/gif-processor/internal/service/job"
)

// service defines the job operations exposed over HTTP.
type service interface {
	Submit(ctx context.Context, req jobsvc.SubmitRequest) (model.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (model.Job, error)
}

// Handler provides HTTP handlers for asynchronous pipeline jobs.
type Handler struct {
	service service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// Create submits a job for a source object already in storage and
// responds with the pending job.
func (h *Handler) Create(c *ginext.Context) {
	log := zerolog.Ctx(c.Request.Context())

	var req jobsvc.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("failed to decode job request")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	job, err := h.service.Submit(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, jobsvc.ErrSourceNotFound) {
			log.Warn().Str("source_key", req.SourceKey).Msg("source not found")
			respond.Fail(c, http.StatusNotFound, err)
			return
		}

		status := respond.Status(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Msg("failed to submit job")
			respond.Fail(c, status, fmt.Errorf("failed to submit job"))
			return
		}

		log.Warn().Err(err).Msg("job rejected")
		respond.Fail(c, status, err)
		return
	}

	respond.Accepted(c, job)
}

// Get returns the job with the ID from the path.
func (h *Handler) Get(c *ginext.Context) {
	log := zerolog.Ctx(c.Request.Context())

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid id: %v", err))
		return
	}

	job, err := h.service.GetJob(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, jobrepo.ErrJobNotFound) {
			respond.Fail(c, http.StatusNotFound, fmt.Errorf("job not found"))
			return
		}

		log.Error().Err(err).Str("job_id", id.String()).Msg("failed to get job")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to get job"))
		return
	}

	respond.OK(c, job)
}
