package bootstrap

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"lightgraph-rag/internal/ai"
	"lightgraph-rag/internal/app"
	"lightgraph-rag/internal/cache"
	"lightgraph-rag/internal/config"
	"lightgraph-rag/internal/engine"
	"lightgraph-rag/internal/model"
	databaseClient "lightgraph-rag/internal/platform/database"
	rabbitmqClient "lightgraph-rag/internal/platform/rabbitmq"
	redisClient "lightgraph-rag/internal/platform/redis"
)

// App holds the process-wide resources: config, logger, stores, the
// inference backend client, and the per-group engine registry.
type App struct {
	Config       *config.Config
	Log          *zap.Logger
	DB           *gorm.DB
	Backend      *ai.OllamaClient
	Registry     *engine.Registry
	HistoryCache app.HistoryCache
	Publisher    app.EventPublisher

	redisCli  *redis.Client
	mqConn    *amqp.Connection
	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	log, err := newLogger(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("build logger failed: %w", err)
	}

	db, err := databaseClient.New(ctx, cfg.Database, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.Group{}, &model.Document{}, &model.Conversation{}, &model.Message{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	backend := ai.NewOllamaClient(cfg.Ollama.BaseURL, time.Duration(cfg.Ollama.TimeoutSeconds)*time.Second)

	registry := engine.NewRegistry(cfg.Storage.DataDir, func(ctx context.Context, groupID, workingDir string) (engine.Engine, error) {
		return engine.New(engine.Config{
			WorkingDir:    workingDir,
			ChatModel:     cfg.Ollama.Model,
			EmbedModel:    cfg.Ollama.EmbedModel,
			ContextWindow: cfg.Engine.ContextWindow,
			EmbeddingDim:  cfg.Engine.EmbeddingDim,
			TopK:          cfg.Engine.TopK,
			ChunkSize:     cfg.Engine.ChunkSize,
			ChunkOverlap:  cfg.Engine.ChunkOverlap,
		}, backend)
	}, log)

	a := &App{
		Config:    cfg,
		Log:       log,
		DB:        db,
		Backend:   backend,
		Registry:  registry,
		StartedAt: time.Now(),
	}

	if cfg.Redis.Enabled {
		redisCli, err := redisClient.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.redisCli = redisCli
		a.HistoryCache = cache.NewHistoryCache(redisCli,
			time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
			time.Duration(cfg.Redis.DirtyTTLSeconds)*time.Second)
	}

	if cfg.RabbitMQ.Enabled {
		mqConn, err := rabbitmqClient.New(cfg.RabbitMQ.URL)
		if err != nil {
			return nil, err
		}
		a.mqConn = mqConn
		a.Publisher = rabbitmqClient.NewEventPublisher(mqConn, cfg.RabbitMQ.EventQueue)
	}

	log.Info("application bootstrapped",
		zap.String("env", cfg.App.Env),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("data_dir", filepath.Clean(cfg.Storage.DataDir)),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Bool("rabbitmq", cfg.RabbitMQ.Enabled))
	return a, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Registry != nil {
		a.Registry.EvictAll()
	}
	if a.redisCli != nil {
		if err := a.redisCli.Close(); err != nil {
			closeErr = err
		}
	}
	if a.mqConn != nil {
		if err := a.mqConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.Log != nil {
		_ = a.Log.Sync()
	}
	return closeErr
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "prod" || env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
