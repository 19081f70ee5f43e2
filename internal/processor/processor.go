package processor

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"github.com/aliskhannn/gif-processor/internal/model"
)

// Processor is responsible for applying pipeline steps to a single frame
// using the transforms of its registry.
type Processor struct {
	registry *Registry
	limits   model.Limits
}

// Option configures a Processor.
type Option func(*Processor)

// WithLimits bounds the frame size any step may produce. Without it only
// the GIF format limit applies.
func WithLimits(l model.Limits) Option {
	return func(p *Processor) { p.limits = l }
}

// New creates a new Processor backed by the given registry.
func New(r *Registry, opts ...Option) *Processor {
	p := &Processor{registry: r}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process applies the steps in order and returns the resulting frame.
// The input frame is never modified; with no steps a copy is returned.
//
// An unregistered step name aborts with *model.TransformNotFoundError; a
// step that would produce a frame beyond the limits aborts with
// *model.ValidationError before anything is allocated.
func (p *Processor) Process(ctx context.Context, frame *image.NRGBA, steps []model.PipelineStep) (*image.NRGBA, error) {
	if len(steps) == 0 {
		return imaging.Clone(frame), nil
	}

	log := zerolog.Ctx(ctx)
	out := frame

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		transform, ok := p.registry.Lookup(step.Name)
		if !ok {
			return nil, &model.TransformNotFoundError{Name: step.Name, Step: i}
		}

		if err := p.limits.CheckStep(i, step.Params, out.Bounds().Size()); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Name, err)
		}

		next, err := transform(out, step.Params)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Name, err)
		}

		log.Trace().
			Int("step", i).
			Str("transform", step.Name).
			Int("width", next.Bounds().Dx()).
			Int("height", next.Bounds().Dy()).
			Msg("step applied")

		out = next
	}

	return out, nil
}

// Check reports the first step whose name is not registered or whose
// explicit output size exceeds the limits.
func (p *Processor) Check(steps []model.PipelineStep) error {
	for i, step := range steps {
		if _, ok := p.registry.Lookup(step.Name); !ok {
			return &model.TransformNotFoundError{Name: step.Name, Step: i}
		}
	}
	return p.limits.CheckSteps(steps)
}
