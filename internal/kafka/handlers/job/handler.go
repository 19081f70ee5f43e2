package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/aliskhannn/gif-processor/internal/model"
)

// runner executes a queued job, or marks it failed once it cannot be run.
type runner interface {
	Run(ctx context.Context, id uuid.UUID) error
	Fail(ctx context.Context, id uuid.UUID, reason string) error
}

// Handler consumes job announcements.
type Handler struct {
	service runner
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s runner) *Handler {
	return &Handler{service: s}
}

// Handle runs the job named by msg. Malformed payloads are logged and
// dropped since redelivering them cannot succeed.
func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	id, ok := jobID(ctx, msg)
	if !ok {
		return nil
	}

	if err := h.service.Run(ctx, id); err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	return nil
}

// Abandon marks the job named by msg failed with cause as its error.
func (h *Handler) Abandon(ctx context.Context, msg kafka.Message, cause error) error {
	id, ok := jobID(ctx, msg)
	if !ok {
		return nil
	}

	if err := h.service.Fail(ctx, id, cause.Error()); err != nil {
		return fmt.Errorf("fail job: %w", err)
	}

	return nil
}

func jobID(ctx context.Context, msg kafka.Message) (uuid.UUID, bool) {
	log := zerolog.Ctx(ctx)

	var jm model.JobMessage
	if err := json.Unmarshal(msg.Value, &jm); err != nil {
		log.Error().Err(err).Str("message", string(msg.Value)).Msg("dropping malformed job message")
		return uuid.Nil, false
	}
	if jm.ID == uuid.Nil {
		log.Error().Str("message", string(msg.Value)).Msg("dropping job message without id")
		return uuid.Nil, false
	}

	return jm.ID, true
}
