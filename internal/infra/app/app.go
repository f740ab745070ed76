package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/yuanzhaoK/admin-platform-auth/internal/core/port"
	"github.com/yuanzhaoK/admin-platform-auth/internal/infra/config"
	"github.com/yuanzhaoK/admin-platform-auth/internal/infra/database"
	"github.com/yuanzhaoK/admin-platform-auth/internal/infra/directory"
	kafkainfra "github.com/yuanzhaoK/admin-platform-auth/internal/infra/kafka"
	"github.com/yuanzhaoK/admin-platform-auth/internal/infra/logger"
	redisinfra "github.com/yuanzhaoK/admin-platform-auth/internal/infra/redis"
	"github.com/yuanzhaoK/admin-platform-auth/internal/infra/security"
	"github.com/yuanzhaoK/admin-platform-auth/internal/infra/telemetry"
	postgresrepo "github.com/yuanzhaoK/admin-platform-auth/internal/repository/postgres"
	redisrepo "github.com/yuanzhaoK/admin-platform-auth/internal/repository/redis"
	"github.com/yuanzhaoK/admin-platform-auth/internal/transport/http/middleware"
	"github.com/yuanzhaoK/admin-platform-auth/internal/transport/http/routes"
	"github.com/yuanzhaoK/admin-platform-auth/internal/usecase"
)

type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics, err := telemetry.Attach(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	dir, err := directory.NewClient(ctx, cfg.Directory, log)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init directory client: %w", err)
	}

	codec, err := security.NewTokenCodec(cfg.Auth.SigningSecret, cfg.App.Name, cfg.Auth.AccessTokenTTL)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init token codec: %w", err)
	}

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	sessionStore := redisrepo.NewSessionStore(redisClient.Client())
	attemptStore := redisrepo.NewLoginAttemptRepository(redisClient.Client())
	auditStore := postgresrepo.NewAuditRepository(pool)

	sessionManager := usecase.NewSessionManager(sessionStore, attemptStore, dir, codec, cfg.Auth, log).
		WithEvents(eventPublisher).
		WithAudit(auditStore).
		WithMetrics(metrics)

	authService := usecase.NewAuthService(sessionManager, dir, cfg.Directory, log).
		WithEvents(eventPublisher).
		WithMetrics(metrics)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: "auth:rate-limit",
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	contextBuilder := middleware.NewContextBuilder(sessionManager, dir, cfg.Auth, log)

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:         cfg,
		Logger:         log,
		RateLimiter:    rateLimiter,
		ContextBuilder: contextBuilder,
		HTTPMetrics:    httpMetrics,
		Database:       pool,
		Cache:          redisClient,
		Services: routes.ServiceSet{
			Auth:     authService,
			Sessions: sessionManager,
			Audit:    auditStore,
		},
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
