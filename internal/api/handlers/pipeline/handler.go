package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/gif-processor/internal/api/respond"
	"github.com/aliskhannn/gif-processor/internal/model"
	pipelinesvc "github.com/aliskhannn/gif-processor/internal/service/pipeline"
)

// multipartMemory is the part of a multipart form kept in memory; the rest spills to disk.
const multipartMemory = 10 << 20

// service runs a pipeline over an uploaded source.
type service interface {
	Process(ctx context.Context, src []byte, cfg model.PipelineConfig) (pipelinesvc.Result, error)
}

// Handler serves the synchronous pipeline endpoint.
type Handler struct {
	service        service
	maxUploadBytes int64
}

// NewHandler creates a new Handler. Uploads larger than maxUploadBytes are rejected.
func NewHandler(s service, maxUploadBytes int64) *Handler {
	return &Handler{service: s, maxUploadBytes: maxUploadBytes}
}

// Process accepts a multipart form with the source animation in "file" and
// the pipeline configuration JSON in "config", and responds with the
// produced GIF or ZIP as an attachment.
func (h *Handler) Process(c *ginext.Context) {
	log := zerolog.Ctx(c.Request.Context())

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Fail(c, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d bytes", h.maxUploadBytes))
			return
		}
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("parse multipart form failed: %v", err))
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		log.Warn().Err(err).Msg("missing source file")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("file field is required"))
		return
	}
	defer file.Close()

	rawConfig := c.PostForm("config")
	if rawConfig == "" {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("config field is required"))
		return
	}

	cfg, err := model.ParseConfig([]byte(rawConfig))
	if err != nil {
		log.Warn().Err(err).Msg("invalid pipeline config")
		respond.FailWith(c, err)
		return
	}

	src, err := io.ReadAll(file)
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("read uploaded file: %v", err))
		return
	}

	log.Info().
		Str("filename", header.Filename).
		Int("bytes", len(src)).
		Int("steps", len(cfg.Steps)).
		Bool("preview", cfg.CreatePreview).
		Msg("processing upload")

	res, err := h.service.Process(c.Request.Context(), src, cfg)
	if err != nil {
		status := respond.Status(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Msg("pipeline failed")
		} else {
			log.Warn().Err(err).Msg("pipeline rejected")
		}
		respond.Fail(c, status, err)
		return
	}

	respond.Attachment(c, res.ContentType(), res.Filename(cfg), res.Bytes())
}
