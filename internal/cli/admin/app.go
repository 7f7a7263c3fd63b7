package admin

import (
	"context"
	"fmt"
	"os"

	"github.com/cloo-solutions/studyforge/internal/config"
	"github.com/cloo-solutions/studyforge/internal/database"
	"github.com/cloo-solutions/studyforge/internal/jobs"
	"github.com/cloo-solutions/studyforge/internal/logger"
	"github.com/cloo-solutions/studyforge/internal/openai"
	"github.com/cloo-solutions/studyforge/internal/provider"
	"github.com/cloo-solutions/studyforge/internal/repository"
	"github.com/cloo-solutions/studyforge/internal/service"
	"github.com/cloo-solutions/studyforge/internal/storage"
	"github.com/cloo-solutions/studyforge/internal/telemetry"
	"github.com/cloo-solutions/studyforge/internal/vectorindex"
	"github.com/jackc/pgx/v5/pgxpool"
	goopenai "github.com/sashabaranov/go-openai"
)

// app holds the wired components shared by every studyd command.
type app struct {
	cfg  *config.Config
	log  *logger.Logger
	pool *pgxpool.Pool

	documents *repository.DocumentRepository
	segments  *repository.SegmentRepository
	vectors   *repository.VectorRecordRepository
	artifacts *repository.ArtifactRepository
	indexJobs *repository.IndexJobRepository

	index   *vectorindex.Index
	gateway *provider.Gateway

	documentSvc *service.DocumentService
	indexSvc    *service.IndexService
	retriever   *service.Retriever
	generator   *service.Generator
	artifactSvc *service.ArtifactService
	indexWorker *jobs.IndexWorker

	shutdownTelemetry func()
}

type appOptions struct {
	migrate bool
}

// loadConfig reads configuration and builds the process logger.
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	mode := cfg.LogMode
	if cfg.Debug {
		mode = "development"
	}
	log, err := logger.New(mode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, log, nil
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, shutdownTelemetry: func() {}}

	if cfg.SentryDSN != "" {
		// 10% sampling in production, everything elsewhere
		sampleRate := 1.0
		if cfg.Environment == "production" {
			sampleRate = 0.1
		}
		shutdown, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
			Logger:           log,
		})
		if err != nil {
			log.Warn("telemetry init failed, continuing without tracing", "error", err)
		} else {
			a.shutdownTelemetry = shutdown
		}
	}

	a.pool, err = database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		a.Close()
		return nil, err
	}
	log.Info("connected to database")

	if opts.migrate {
		if _, err := database.Migrate(cfg.DatabaseURL, database.DefaultMigrationsSource, database.MigrateUp, log); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	a.documents = repository.NewDocumentRepository(a.pool)
	a.segments = repository.NewSegmentRepository(a.pool)
	a.vectors = repository.NewVectorRecordRepository(a.pool)
	a.artifacts = repository.NewArtifactRepository(a.pool)
	a.indexJobs = repository.NewIndexJobRepository(a.pool)

	store, err := a.snapshotStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	embedder := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		RequestsPerSecond:   cfg.EmbeddingRPS,
		Logger:              log.With("component", "embeddings"),
	})
	if !cfg.HasOpenAI() {
		log.Warn("no embedding key configured, indexing and search will fail", "env", config.EnvName("OPENAI_API_KEY"))
	}

	a.index = vectorindex.New(embedder, store, a.vectors, vectorindex.Config{
		Dimensions:  cfg.EmbeddingDimensions,
		Concurrency: cfg.EmbedConcurrency,
		Locker:      repository.NewIndexLock(a.pool),
		Logger:      log.With("component", "vectorindex"),
	})
	if err := a.index.Load(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load vector index: %w", err)
	}
	log.Info("vector index loaded", "records", a.index.Len())

	a.gateway, err = buildGateway(cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.documentSvc = service.NewDocumentService(
		repository.NewTxRunner(a.pool),
		a.documents,
		a.segments,
		a.index,
		service.SegmentConfig{TargetChunkSize: cfg.ChunkSize, Overlap: cfg.ChunkOverlap},
		log,
	)
	a.indexSvc = service.NewIndexService(a.documents, a.segments, a.vectors, a.index, log)
	a.retriever = service.NewRetriever(embedder, a.index, a.segments, a.vectors, service.RetrievalConfig{
		TopK:            cfg.RetrievalTopK,
		MaxContextChars: cfg.MaxContextChars,
	}, log)
	a.generator = service.NewGenerator(a.documents, a.retriever, a.gateway, a.artifacts, service.GeneratorConfig{
		TopK:               cfg.RetrievalTopK,
		MaxContextChars:    cfg.MaxContextChars,
		DefaultTemperature: cfg.Temperature,
	}, log)
	a.artifactSvc = service.NewArtifactService(a.artifacts, a.documents)
	a.indexWorker = jobs.NewIndexWorker(a.indexJobs, a.indexSvc, log.With("component", "index-worker"))

	return a, nil
}

func (a *app) snapshotStore(ctx context.Context) (vectorindex.SnapshotStore, error) {
	if !a.cfg.HasS3() {
		a.log.Info("index snapshots stored on disk", "path", a.cfg.IndexSnapshotPath)
		return vectorindex.NewFileStore(a.cfg.IndexSnapshotPath), nil
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        a.cfg.S3Endpoint,
		Region:          a.cfg.S3Region,
		AccessKeyID:     a.cfg.S3AccessKey,
		SecretAccessKey: a.cfg.S3SecretKey,
		Bucket:          a.cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	a.log.Info("index snapshots stored in S3", "bucket", a.cfg.S3Bucket, "key", a.cfg.IndexSnapshotKey)
	return vectorindex.NewS3Store(s3Client, a.cfg.IndexSnapshotKey), nil
}

func buildGateway(cfg *config.Config, log *logger.Logger) (*provider.Gateway, error) {
	var fc *provider.FileConfig
	if cfg.ProvidersFile != "" {
		loaded, err := provider.LoadFile(cfg.ProvidersFile)
		if err != nil {
			return nil, err
		}
		fc = loaded
	} else {
		fc = provider.DefaultFileConfig(provider.EnvDefaults{
			OllamaBaseURL: cfg.OllamaBaseURL,
			Timeout:       cfg.ProviderTimeout,
		})
		if !cfg.HasGenerationProvider() {
			log.Warn("no generation provider configured, artifact generation will fail")
		}
	}
	gateway, err := provider.Build(fc, os.Getenv, log.With("component", "gateway"))
	if err != nil {
		return nil, fmt.Errorf("failed to build provider gateway: %w", err)
	}
	return gateway, nil
}

// Close releases the pool and flushes telemetry and logs.
func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
	a.shutdownTelemetry()
	a.log.Sync()
}
