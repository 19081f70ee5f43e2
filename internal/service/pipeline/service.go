package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aliskhannn/gif-processor/internal/animation"
	"github.com/aliskhannn/gif-processor/internal/model"
)

const tracerName = "github.com/aliskhannn/gif-processor/internal/service/pipeline"

// Output modes, used as metric and log labels.
const (
	ModePreview = "preview"
	ModeArchive = "archive"
)

// frameProcessor applies pipeline steps to a single frame.
type frameProcessor interface {
	Process(ctx context.Context, frame *image.NRGBA, steps []model.PipelineStep) (*image.NRGBA, error)
}

// recorder receives one observation per pipeline invocation.
type recorder interface {
	ObservePipeline(mode, outcome string, frames int, d time.Duration)
}

// Option configures a Service.
type Option func(*Service)

// WithWorkers processes up to n frames concurrently. n <= 1 keeps frames sequential.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 1 {
			s.workers = n
		}
	}
}

// WithMetrics reports every invocation to r.
func WithMetrics(r recorder) Option {
	return func(s *Service) { s.metrics = r }
}

// WithLimits bounds the decoded source. model.DefaultLimits apply otherwise.
func WithLimits(l model.Limits) Option {
	return func(s *Service) { s.limits = l }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// Service runs a pipeline over every frame of a source animation and
// assembles the processed frames into a single output.
type Service struct {
	processor frameProcessor
	workers   int
	limits    model.Limits
	metrics   recorder
	tracer    trace.Tracer
}

// NewService creates a new Service using the given frame processor.
func NewService(p frameProcessor, opts ...Option) *Service {
	s := &Service{
		processor: p,
		workers:   1,
		limits:    model.DefaultLimits,
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result holds the output of one invocation: exactly one of Animated and
// Archive is set.
type Result struct {
	Animated []byte
	Archive  []byte
}

// Bytes returns whichever output was produced.
func (r Result) Bytes() []byte {
	if r.Animated != nil {
		return r.Animated
	}
	return r.Archive
}

// ContentType returns the MIME type of the produced output.
func (r Result) ContentType() string {
	if r.Animated != nil {
		return "image/gif"
	}
	return "application/zip"
}

// Filename returns the download name of the output.
func (r Result) Filename(cfg model.PipelineConfig) string {
	if r.Animated != nil {
		return cfg.OutputFilename + ".gif"
	}
	return cfg.OutputFilename + ".zip"
}

// Process decodes src, applies cfg's steps to every frame in source order
// and assembles either an animated GIF (cfg.CreatePreview) or a ZIP archive
// of frames in cfg.OutputFormat. On any failure no output is returned.
func (s *Service) Process(ctx context.Context, src []byte, cfg model.PipelineConfig) (res Result, err error) {
	start := time.Now()
	mode := ModeArchive
	if cfg.CreatePreview {
		mode = ModePreview
	}
	frameCount := 0

	log := zerolog.Ctx(ctx).With().Str("mode", mode).Int("steps", len(cfg.Steps)).Logger()

	defer func() {
		if s.metrics != nil {
			s.metrics.ObservePipeline(mode, outcome(err), frameCount, time.Since(start))
		}
	}()

	_, span := s.tracer.Start(ctx, "pipeline.decode", trace.WithAttributes(attribute.Int("source.bytes", len(src))))
	anim, err := animation.DecodeLimited(src, s.limits)
	endSpan(span, err)
	if err != nil {
		return Result{}, fmt.Errorf("decode source: %w", err)
	}
	frameCount = len(anim.Frames)

	log.Debug().
		Int("frames", frameCount).
		Int("width", anim.Width).
		Int("height", anim.Height).
		Msg("source decoded")

	framesCtx, span := s.tracer.Start(ctx, "pipeline.frames", trace.WithAttributes(
		attribute.Int("frames", frameCount),
		attribute.Int("workers", s.workers),
	))
	processed, err := s.processFrames(log.WithContext(framesCtx), anim.Frames, cfg.Steps)
	endSpan(span, err)
	if err != nil {
		return Result{}, fmt.Errorf("process frames: %w", err)
	}

	_, span = s.tracer.Start(ctx, "pipeline.assemble", trace.WithAttributes(attribute.String("mode", mode)))
	if cfg.CreatePreview {
		res.Animated, err = animation.EncodeGIF(processed, animation.LoopForever)
	} else {
		res.Archive, err = animation.Archive(processed, cfg.ArchiveExtension())
	}
	endSpan(span, err)
	if err != nil {
		return Result{}, fmt.Errorf("assemble %s: %w", mode, err)
	}

	log.Debug().
		Int("bytes", len(res.Bytes())).
		Dur("elapsed", time.Since(start)).
		Msg("pipeline finished")

	return res, nil
}

// processFrames runs the steps over every frame. Output order always
// matches source order, also when frames are processed concurrently.
func (s *Service) processFrames(ctx context.Context, frames []animation.Frame, steps []model.PipelineStep) ([]animation.Frame, error) {
	out := make([]animation.Frame, len(frames))

	run := func(ctx context.Context, i int) error {
		img, err := s.processor.Process(ctx, frames[i].Image, steps)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		out[i] = animation.Frame{Image: img, Delay: frames[i].Delay}
		zerolog.Ctx(ctx).Trace().Int("frame", i).Msg("frame processed")
		return nil
	}

	if s.workers <= 1 || len(frames) < 2 {
		for i := range frames {
			if err := run(ctx, i); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	p := pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(s.workers)

	for i := range frames {
		p.Go(func(ctx context.Context) error {
			return run(ctx, i)
		})
	}

	if err := p.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// outcome labels an invocation result for metrics.
func outcome(err error) string {
	var (
		verr *model.ValidationError
		derr *model.DecodeError
		nerr *model.TransformNotFoundError
		aerr *model.AssemblyError
	)

	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr):
		return "invalid"
	case errors.As(err, &nerr):
		return "not_found"
	case errors.As(err, &derr):
		return "decode_error"
	case errors.As(err, &aerr):
		return "assembly_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
