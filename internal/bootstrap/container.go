package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yoockh/yoointerview/config"
	"github.com/yoockh/yoointerview/internal/cache"
	"github.com/yoockh/yoointerview/internal/providers/embedding"
	"github.com/yoockh/yoointerview/internal/providers/llm"
	"github.com/yoockh/yoointerview/internal/providers/stt"
	"github.com/yoockh/yoointerview/internal/providers/tts"
	"github.com/yoockh/yoointerview/internal/queue"
	"github.com/yoockh/yoointerview/internal/repositories"
	"github.com/yoockh/yoointerview/internal/repositories/cached"
	"github.com/yoockh/yoointerview/internal/repositories/filestore"
	mongorepo "github.com/yoockh/yoointerview/internal/repositories/mongo"
	"github.com/yoockh/yoointerview/internal/repositories/postgres"
	"github.com/yoockh/yoointerview/internal/resume"
	"github.com/yoockh/yoointerview/internal/services"
	"github.com/yoockh/yoointerview/internal/storage"
	"github.com/yoockh/yoointerview/internal/vectorindex"
	"github.com/yoockh/yoointerview/internal/workers"
)

// Container holds every back-end and service selected by the configuration.
type Container struct {
	Config *config.AppConfig
	Log    *logrus.Logger

	Store    repositories.SessionStore
	Vectors  vectorindex.Store
	Uploader storage.Uploader
	Queue    queue.Queue
	Reports  postgres.ReportRepository // nil unless REPORT_ARCHIVE

	LLM   llm.Provider
	Synth tts.Synthesizer // nil without ElevenLabs credentials
	STT   stt.Provider    // nil unless SPEECH_TO_TEXT

	Questions   services.QuestionService
	Transitions services.TransitionService
	Evaluator   services.EvaluationService
	Interview   services.InterviewService
	Sessions    services.SessionService

	closers []func() error
}

type Options struct {
	// LocalQueue forces the in-process queue whatever QUEUE_BACKEND says.
	// The CLI grades turns itself and never needs a broker.
	LocalQueue bool
}

func NewContainer(ctx context.Context, cfg *config.AppConfig, log *logrus.Logger, opts Options) (_ *Container, err error) {
	c := &Container{Config: cfg, Log: log}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	var (
		rdb *redis.Client
		pg  *gorm.DB
	)
	queueBackend := cfg.QueueBackend
	if opts.LocalQueue {
		queueBackend = "memory"
	}
	if cfg.CacheBackend == "redis" || queueBackend == "redis" {
		if rdb, err = config.InitRedis(ctx, cfg.RedisAddr); err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		c.onClose(rdb.Close)
		log.Info("redis connected")
	}
	if cfg.VectorBackend == "pgvector" || cfg.ReportArchive {
		if pg, err = config.InitPostgres(cfg.PostgresURI); err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if err = config.MigratePostgres(pg); err != nil {
			return nil, err
		}
		if sqlDB, derr := pg.DB(); derr == nil {
			c.onClose(sqlDB.Close)
		}
		log.Info("postgres connected")
	}

	if cfg.UnidocLicenseAPIKey != "" {
		if err = resume.SetPDFLicense(cfg.UnidocLicenseAPIKey); err != nil {
			return nil, fmt.Errorf("unidoc license: %w", err)
		}
	} else {
		log.Warn("UNIDOC_LICENSE_API_KEY not set; PDF resumes will be rejected")
	}

	if err = c.initStore(ctx, rdb); err != nil {
		return nil, err
	}
	if err = c.initProviders(ctx); err != nil {
		return nil, err
	}

	embedder, err := c.embedder(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.VectorBackend == "pgvector" {
		c.Vectors = vectorindex.NewPGVector(postgres.NewResumeChunkRepo(pg), embedder)
	} else {
		c.Vectors = vectorindex.NewMemory(embedder)
	}
	if cfg.ReportArchive {
		c.Reports = postgres.NewReportRepo(pg)
	}

	if err = c.initUploader(ctx); err != nil {
		return nil, err
	}

	c.Questions = services.NewQuestionService(c.LLM, log)
	c.Transitions = services.NewTransitionService(c.LLM, log)
	c.Evaluator = services.NewEvaluationService(c.LLM, log)
	c.Sessions = services.NewSessionService(c.Store, c.Vectors, c.Uploader, log)

	if err = c.initQueue(queueBackend, rdb); err != nil {
		return nil, err
	}
	c.Interview = services.NewInterviewService(services.InterviewDeps{
		Store:       c.Store,
		Processor:   resume.NewProcessor(c.Vectors, log),
		Questions:   c.Questions,
		Transitions: c.Transitions,
		Queue:       c.Queue,
		Vectors:     c.Vectors,
		Uploader:    c.Uploader,
		Archive:     c.Reports,
		Log:         log,
	})
	return c, nil
}

func (c *Container) initStore(ctx context.Context, rdb *redis.Client) error {
	cfg := c.Config
	switch cfg.SessionBackend {
	case "mongo":
		client, err := config.InitMongo(ctx, cfg.MongoURI)
		if err != nil {
			return fmt.Errorf("mongo: %w", err)
		}
		c.onClose(func() error { return client.Disconnect(context.Background()) })
		db := client.Database(cfg.MongoDatabase)
		if err := config.EnsureMongoIndexes(db); err != nil {
			return fmt.Errorf("mongo indexes: %w", err)
		}
		c.Store = mongorepo.NewSessionRepo(db)
		c.Log.WithField("database", cfg.MongoDatabase).Info("mongo session store ready")
	default:
		fs, err := filestore.New(cfg.StorageDir)
		if err != nil {
			return err
		}
		c.Store = fs
		c.Log.WithField("dir", fs.Dir()).Info("file session store ready")
	}

	switch cfg.CacheBackend {
	case "memory":
		c.Store = cached.New(c.Store, cache.NewMemoryCache(cfg.CacheTTL, 2*cfg.CacheTTL), cfg.CacheTTL, c.Log)
	case "redis":
		c.Store = cached.New(c.Store, cache.NewRedisCache(rdb, "interview:"), cfg.CacheTTL, c.Log)
	}
	return nil
}

func (c *Container) initProviders(ctx context.Context) error {
	cfg := c.Config
	var err error
	switch cfg.LLMProvider {
	case "vertex":
		c.LLM, err = llm.NewVertexGemini(ctx, cfg.GCPProject, cfg.GCPLocation, cfg.LLMModel)
	default:
		c.LLM, err = llm.NewGenAIGemini(ctx, cfg.GeminiAPIKey, cfg.LLMModel)
	}
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	c.onClose(c.LLM.Close)

	if cfg.SpeechEnabled() {
		synth, err := tts.NewElevenLabs(tts.ElevenLabsConfig{
			APIKey:  cfg.ElevenLabsAPIKey,
			VoiceID: cfg.ElevenLabsVoiceID,
			ModelID: cfg.ElevenLabsModel,
		})
		if err != nil {
			return fmt.Errorf("elevenlabs: %w", err)
		}
		c.Synth = synth
	}

	if cfg.SpeechToText {
		gs, err := stt.NewGoogleSpeech(ctx)
		if err != nil {
			return fmt.Errorf("speech-to-text: %w", err)
		}
		c.STT = gs
		c.onClose(gs.Close)
	}
	return nil
}

func (c *Container) embedder(ctx context.Context) (embedding.Provider, error) {
	if c.Config.EmbeddingProvider != "genai" {
		return embedding.NewHashing(0), nil
	}
	e, err := embedding.NewGenAI(ctx, c.Config.GeminiAPIKey, c.Config.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	return e, nil
}

func (c *Container) initUploader(ctx context.Context) error {
	cfg := c.Config
	if cfg.UploadBackend == "gcs" {
		u, err := storage.NewGCSUploader(ctx, cfg.GCSBucket)
		if err != nil {
			return fmt.Errorf("gcs: %w", err)
		}
		c.onClose(u.Close)
		c.Uploader = u
		return nil
	}
	u, err := storage.NewLocalUploader(cfg.UploadDir)
	if err != nil {
		return err
	}
	c.Uploader = u
	return nil
}

func (c *Container) initQueue(backend string, rdb *redis.Client) error {
	cfg := c.Config
	switch backend {
	case "redis":
		c.Queue = queue.NewRedisStream(rdb, c.Log)
	case "rabbitmq":
		conn, err := config.InitRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("rabbitmq: %w", err)
		}
		c.onClose(conn.Close)
		q, err := queue.NewRabbitMQ(conn, cfg.RabbitMQQueue, c.Log)
		if err != nil {
			return fmt.Errorf("rabbitmq: %w", err)
		}
		c.Queue = q
	default:
		q, err := queue.NewGoChannel(cfg.QueueBuffer, c.Log)
		if err != nil {
			return err
		}
		c.Queue = q
	}
	// the queue must close before the connections it rides on
	c.onClose(c.Queue.Close)
	c.Log.WithField("backend", backend).Info("evaluation queue ready")
	return nil
}

// WorkerPool returns an evaluation pool bound to the container's back-ends.
func (c *Container) WorkerPool() *workers.EvaluationWorkerPool {
	return &workers.EvaluationWorkerPool{
		Queue:      c.Queue,
		Store:      c.Store,
		Evaluator:  c.Evaluator,
		Reports:    c.Reports,
		NumWorkers: c.Config.EvaluationWorkers,
		Timeout:    c.Config.EvaluationTimeout,
		Logger:     c.Log,
	}
}

func (c *Container) onClose(fn func() error) { c.closers = append(c.closers, fn) }

// Close releases everything in reverse order of acquisition.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, queue.ErrClosed) {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// SweepSessions evicts sessions older than maxAge every interval until ctx
// is done.
func (c *Container) SweepSessions(ctx context.Context, maxAge, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := c.Sessions.Cleanup(ctx, maxAge)
			if err != nil {
				c.Log.WithError(err).Warn("session cleanup failed")
				continue
			}
			if n > 0 {
				c.Log.WithField("removed", n).Info("evicted expired sessions")
			}
		}
	}
}
