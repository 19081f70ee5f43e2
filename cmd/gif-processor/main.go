package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
	"go.opentelemetry.io/otel"

	jobhandler "github.com/aliskhannn/gif-processor/internal/api/handlers/job"
	"github.com/aliskhannn/gif-processor/internal/api/handlers/pipeline"
	"github.com/aliskhannn/gif-processor/internal/api/router"
	"github.com/aliskhannn/gif-processor/internal/api/server"
	"github.com/aliskhannn/gif-processor/internal/config"
	"github.com/aliskhannn/gif-processor/internal/infra/kafka/consumer"
	"github.com/aliskhannn/gif-processor/internal/infra/kafka/producer"
	jobmsg "github.com/aliskhannn/gif-processor/internal/kafka/handlers/job"
	"github.com/aliskhannn/gif-processor/internal/logger"
	"github.com/aliskhannn/gif-processor/internal/metrics"
	"github.com/aliskhannn/gif-processor/internal/processor"
	jobrepo "github.com/aliskhannn/gif-processor/internal/repository/job"
	jobsvc "github.com/aliskhannn/gif-processor/internal/service/job"
	pipelinesvc "github.com/aliskhannn/gif-processor/internal/service/pipeline"
	"github.com/aliskhannn/gif-processor/internal/storage/file"
	"github.com/aliskhannn/gif-processor/internal/telemetry"
)

const defaultConfigPath = "./config/config.yml"

func main() {
	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	zlog.Init()
	cfg := config.MustLoad(configPath)
	logger.Setup(cfg.Log)
	log := zlog.Logger

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  cfg.Tracing.ServiceName,
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}

	m := metrics.New()
	registry := processor.NewRegistry()
	limits := cfg.Pipeline.Limits()
	frameProcessor := processor.New(registry, processor.WithLimits(limits))
	pipelineService := pipelinesvc.NewService(frameProcessor,
		pipelinesvc.WithWorkers(cfg.Pipeline.Workers),
		pipelinesvc.WithLimits(limits),
		pipelinesvc.WithMetrics(m),
	)

	deps := router.Deps{
		Pipeline: pipeline.NewHandler(pipelineService, cfg.Pipeline.MaxUploadBytes),
		Metrics:  m,
		Tracer:   otel.Tracer("github.com/aliskhannn/gif-processor/internal/api"),
		Log:      log,
	}

	log.Info().Strs("transforms", registry.Names()).Bool("jobs", cfg.Jobs.Enabled).Msg("starting gif-processor")

	var (
		wg sync.WaitGroup
		db *dbpg.DB
		p  *producer.Producer
		c  *consumer.Consumer
	)

	if cfg.Jobs.Enabled {
		// Connect to PostgreSQL (master and slaves).
		opts := &dbpg.Options{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		}

		slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))
		for _, s := range cfg.Database.Slaves {
			slaveDSNs = append(slaveDSNs, s.DSN())
		}

		db, err = dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}

		repo := jobrepo.NewRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to ensure job schema")
		}

		storage, err := file.NewStorage(ctx, cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.BucketName, cfg.Storage.UseSSL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to storage")
		}

		// Retry strategy for Kafka and other external calls.
		strategy := retry.Strategy{
			Attempts: cfg.Retry.Attempts,
			Delay:    cfg.Retry.Delay,
			Backoff:  cfg.Retry.Backoff,
		}

		p = producer.New(&cfg.Kafka, strategy)
		jobService := jobsvc.NewService(repo, storage, p, pipelineService, frameProcessor, m)
		deps.Jobs = jobhandler.NewHandler(jobService)

		c = consumer.New(&cfg.Kafka, strategy, jobmsg.NewHandler(jobService), log)
		wg.Add(1)
		go c.Consume(ctx, &wg)
	}

	s := server.New(cfg.Server, router.Setup(deps))
	go func() {
		log.Info().Str("addr", cfg.Server.HTTPPort).Msg("http server listening")
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	// Graceful shutdown with timeout for HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		log.Info().Msg("timeout exceeded, forcing shutdown")
	}

	// Wait for the job consumer to finish its current message.
	wg.Wait()

	if c != nil {
		if err := c.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close kafka consumer client")
		}
	}
	if p != nil {
		if err := p.Client.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close kafka producer client")
		}
	}
	if db != nil {
		if err := db.Master.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close master DB")
		}
		for i, s := range db.Slaves {
			if err := s.Close(); err != nil {
				log.Error().Err(err).Int("slave", i).Msg("failed to close slave DB")
			}
		}
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to flush traces")
	}
}
