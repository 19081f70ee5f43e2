package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aliskhannn/gif-processor/internal/model"
	jobrepo "github.com/aliskhannn/gif-processor/internal/repository/job"
	pipelinesvc "github.com/aliskhannn/gif-processor/internal/service/pipeline"
	"github.com/aliskhannn/gif-processor/internal/storage/file"
)

// ErrSourceNotFound is returned when a job names a source object that does not exist.
var ErrSourceNotFound = errors.New("source object not found")

// repository persists jobs.
type repository interface {
	CreateJob(ctx context.Context, job model.Job) (model.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (model.Job, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.JobStatus, errText string) error
}

// objectStorage holds the caller's source and output objects.
type objectStorage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// producer announces new jobs to the worker.
type producer interface {
	Produce(ctx context.Context, msg model.JobMessage) error
}

// pipeline runs a configuration over source bytes.
type pipeline interface {
	Process(ctx context.Context, src []byte, cfg model.PipelineConfig) (pipelinesvc.Result, error)
}

// stepChecker rejects configurations naming unregistered transforms.
type stepChecker interface {
	Check(steps []model.PipelineStep) error
}

// recorder counts jobs reaching a final status.
type recorder interface {
	ObserveJob(status string)
}

// SubmitRequest describes a job: the caller's source object, where to put
// the output, and the pipeline configuration JSON.
type SubmitRequest struct {
	SourceKey string          `json:"source_key"`
	OutputKey string          `json:"output_key"`
	Config    json.RawMessage `json:"config"`
}

// Service accepts pipeline jobs and executes them on the worker side.
//
// The caller owns both objects a job names: the source it uploaded and the
// output key it chose (or the default one next to the source). The service
// only reads the source and writes the output to that key. It keeps no
// media of its own and never deletes objects; the job row is its only state.
type Service struct {
	repo     repository
	storage  objectStorage
	producer producer
	pipeline pipeline
	checker  stepChecker
	metrics  recorder
}

// NewService creates a new Service. metrics may be nil.
func NewService(r repository, s objectStorage, p producer, pl pipeline, c stepChecker, m recorder) *Service {
	return &Service{
		repo:     r,
		storage:  s,
		producer: p,
		pipeline: pl,
		checker:  c,
		metrics:  m,
	}
}

// Submit validates the request, records a pending job and enqueues it.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (model.Job, error) {
	sourceKey := strings.TrimSpace(req.SourceKey)
	if sourceKey == "" {
		return model.Job{}, &model.ValidationError{Field: "source_key", Constraint: "required"}
	}
	if len(req.Config) == 0 {
		return model.Job{}, &model.ValidationError{Field: "config", Constraint: "required"}
	}

	cfg, err := model.ParseConfig(req.Config)
	if err != nil {
		return model.Job{}, err
	}
	if err := s.checker.Check(cfg.Steps); err != nil {
		return model.Job{}, err
	}

	outputKey := strings.TrimSpace(req.OutputKey)
	if outputKey == "" {
		outputKey = DefaultOutputKey(sourceKey, cfg)
	}
	if outputKey == sourceKey {
		return model.Job{}, &model.ValidationError{Field: "output_key", Constraint: "nefield=source_key"}
	}

	exists, err := s.storage.Exists(ctx, sourceKey)
	if err != nil {
		return model.Job{}, fmt.Errorf("submit: check source: %w", err)
	}
	if !exists {
		return model.Job{}, ErrSourceNotFound
	}

	job, err := s.repo.CreateJob(ctx, model.Job{
		ID:        uuid.New(),
		SourceKey: sourceKey,
		OutputKey: outputKey,
		Config:    req.Config,
		Status:    model.JobPending,
	})
	if err != nil {
		return model.Job{}, fmt.Errorf("submit: %w", err)
	}

	if err := s.producer.Produce(ctx, model.JobMessage{ID: job.ID}); err != nil {
		if uerr := s.repo.UpdateStatus(ctx, job.ID, model.JobFailed, "enqueue failed"); uerr != nil {
			zerolog.Ctx(ctx).Error().Err(uerr).Str("job_id", job.ID.String()).Msg("failed to mark job failed")
		}
		return model.Job{}, fmt.Errorf("submit: enqueue job: %w", err)
	}

	zerolog.Ctx(ctx).Info().
		Str("job_id", job.ID.String()).
		Str("source_key", job.SourceKey).
		Str("output_key", job.OutputKey).
		Msg("job submitted")

	return job, nil
}

// GetJob returns the job with the given ID.
func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (model.Job, error) {
	return s.repo.GetJob(ctx, id)
}

// Run executes a job. Failures caused by the job itself mark it failed
// and return nil; infrastructure failures are returned so the caller can
// retry the message, leaving the job processing until it runs again or
// Fail is called.
func (s *Service) Run(ctx context.Context, id uuid.UUID) error {
	log := zerolog.Ctx(ctx).With().Str("job_id", id.String()).Logger()

	job, err := s.repo.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, jobrepo.ErrJobNotFound) {
			log.Warn().Msg("job not found, dropping message")
			return nil
		}
		return fmt.Errorf("run: %w", err)
	}

	if job.Status == model.JobSucceeded || job.Status == model.JobFailed {
		log.Info().Str("status", string(job.Status)).Msg("job already finished")
		return nil
	}

	if err := s.repo.UpdateStatus(ctx, id, model.JobProcessing, ""); err != nil {
		return fmt.Errorf("run: mark processing: %w", err)
	}

	runErr := s.execute(log.WithContext(ctx), job)
	switch {
	case runErr == nil:
		if err := s.repo.UpdateStatus(ctx, id, model.JobSucceeded, ""); err != nil {
			return fmt.Errorf("run: mark succeeded: %w", err)
		}
		s.observe(model.JobSucceeded)
		log.Info().Str("output_key", job.OutputKey).Msg("job succeeded")
		return nil

	case model.IsPermanent(runErr) || errors.Is(runErr, file.ErrObjectNotFound):
		if err := s.repo.UpdateStatus(ctx, id, model.JobFailed, runErr.Error()); err != nil {
			return fmt.Errorf("run: mark failed: %w", err)
		}
		s.observe(model.JobFailed)
		log.Warn().Err(runErr).Msg("job failed")
		return nil

	default:
		return fmt.Errorf("run job %s: %w", id, runErr)
	}
}

// Fail marks an unfinished job failed with reason. It is used once a job
// has failed on every delivery attempt. Unknown and finished jobs are left
// alone.
func (s *Service) Fail(ctx context.Context, id uuid.UUID, reason string) error {
	log := zerolog.Ctx(ctx).With().Str("job_id", id.String()).Logger()

	job, err := s.repo.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, jobrepo.ErrJobNotFound) {
			return nil
		}
		return fmt.Errorf("fail: %w", err)
	}
	if job.Status == model.JobSucceeded || job.Status == model.JobFailed {
		return nil
	}

	if err := s.repo.UpdateStatus(ctx, id, model.JobFailed, reason); err != nil {
		return fmt.Errorf("fail: mark failed: %w", err)
	}
	s.observe(model.JobFailed)
	log.Warn().Str("reason", reason).Msg("job abandoned")

	return nil
}

func (s *Service) execute(ctx context.Context, job model.Job) error {
	cfg, err := model.ParseConfig(job.Config)
	if err != nil {
		return err
	}

	src, err := s.storage.Load(ctx, job.SourceKey)
	if err != nil {
		return fmt.Errorf("load source: %w", err)
	}

	res, err := s.pipeline.Process(ctx, src, cfg)
	if err != nil {
		return err
	}

	if err := s.storage.Save(ctx, job.OutputKey, res.Bytes(), res.ContentType()); err != nil {
		return fmt.Errorf("save output: %w", err)
	}

	return nil
}

func (s *Service) observe(status model.JobStatus) {
	if s.metrics != nil {
		s.metrics.ObserveJob(string(status))
	}
}

// DefaultOutputKey places the output next to the source, named after the
// configured output filename.
func DefaultOutputKey(sourceKey string, cfg model.PipelineConfig) string {
	ext := ".zip"
	if cfg.CreatePreview {
		ext = ".gif"
	}
	return path.Join(path.Dir(sourceKey), cfg.OutputFilename+ext)
}
