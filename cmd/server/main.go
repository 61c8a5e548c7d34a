package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"datavault/backend/internal/aliasgen"
	"datavault/backend/internal/auth"
	jwtpkg "datavault/backend/internal/auth/jwt"
	"datavault/backend/internal/config"
	"datavault/backend/internal/health"
	"datavault/backend/internal/logger"
	"datavault/backend/internal/mailer"
	"datavault/backend/internal/monitoring"
	"datavault/backend/internal/service"
	"datavault/backend/internal/smtp"
	"datavault/backend/internal/storage"
	"datavault/backend/internal/storage/memory"
	"datavault/backend/internal/storage/postgres"
	"datavault/backend/internal/storage/redis"
	sqlstore "datavault/backend/internal/storage/sql"
	httptransport "datavault/backend/internal/transport/http"
	"datavault/backend/internal/websocket"
)

var version = "dev"

// SMTP 入站的全局并发连接上限
const maxSMTPConnections = 100

// main 启动 HTTP API，可选启动 SMTP 入站服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	log, err := logger.NewLogger(logger.FromConfig(cfg.Log))
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting datavault server",
		zap.String("version", version),
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.String("forwarding_domain", cfg.Forwarding.Domain),
	)

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("Server error", zap.Error(err))
	}
	log.Info("Server exited cleanly")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	store, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer store.Close()

	metrics := monitoring.NewMetrics()
	healthChecker := health.NewHealthChecker(log)
	healthChecker.AddReadinessCheck("store", health.PingFunc(store.Health))

	hub := websocket.NewHub(cfg.CORS.AllowedOrigins, metrics, log)

	// 限流计数与事件推送：启用 Redis 时跨实例共享，否则使用进程内实现
	var (
		rateLimiter storage.RateLimitRepository = memory.NewRateLimiter()
		publisher   service.DeliveryPublisher   = hub
		redisClient *redis.Client
	)
	if cfg.Redis.Enabled {
		redisClient, err = redis.New(ctx, cfg.Redis, log)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()

		rateLimiter = redisClient
		publisher = redisClient
		healthChecker.AddReadinessCheck("redis", health.PingFunc(redisClient.Ping))
	}

	sender, err := mailer.New(ctx, cfg.Mail, log)
	if err != nil {
		return fmt.Errorf("create mail transport: %w", err)
	}
	sender = mailer.WithTimeout(sender, cfg.Mail.Timeout)
	if verifier, ok := sender.(mailer.Verifier); ok {
		healthChecker.AddTransportCheck(health.PingFunc(verifier.Verify))
	}
	log.Info("Mail transport configured", zap.String("transport", sender.Name()))

	// 服务层
	deliveryLog := service.NewDeliveryLog(store, store, log)
	forwarder := service.NewForwarder(sender, deliveryLog, cfg.Forwarding, log,
		service.WithPublisher(publisher),
		service.WithMetrics(metrics),
	)
	resolver := service.NewResolver(store, forwarder, metrics, log)
	aliasService := service.NewAliasService(store, aliasgen.New(store), cfg.Forwarding.Domain, metrics, log)

	jwtManager := jwtpkg.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry)
	authService := auth.NewService(store, jwtManager, metrics, log)

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:       cfg,
		AliasService: aliasService,
		Resolver:     resolver,
		DeliveryLog:  deliveryLog,
		AuthService:  authService,
		JWTManager:   jwtManager,
		Hub:          hub,
		Health:       healthChecker,
		Metrics:      metrics,
		RateLimiter:  rateLimiter,
		Sender:       sender,
		Logger:       log,
	})

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("Starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("Starting websocket hub")
		return hub.Run(groupCtx)
	})

	// 其他实例发布的转发事件经 Redis 进入本地 Hub
	if redisClient != nil {
		group.Go(func() error {
			return redisClient.SubscribeDeliveries(groupCtx, hub.Deliver)
		})
	}

	// SMTP 入站服务器 goroutine
	var closeSMTP func() error
	if cfg.SMTP.Enabled {
		limiter := smtp.NewConnectionLimiter(maxSMTPConnections, cfg.SMTP.ConnPerSecond, cfg.SMTP.ConnBurst)
		backend := smtp.NewBackend(cfg.Forwarding.Domain, resolver, limiter, log)
		smtpServer := smtp.NewServer(backend, cfg.SMTP.BindAddr, cfg.SMTP.Domain, cfg.SMTP.MaxMessageBytes)
		closeSMTP = smtpServer.Close

		group.Go(func() error {
			log.Info("Starting SMTP server",
				zap.String("address", cfg.SMTP.BindAddr),
				zap.String("domain", cfg.SMTP.Domain),
			)
			if err := smtpServer.ListenAndServe(); err != nil && groupCtx.Err() == nil {
				return fmt.Errorf("smtp server: %w", err)
			}
			return nil
		})
	}

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("Shutdown signal received, gracefully shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		if closeSMTP != nil {
			if err := closeSMTP(); err != nil {
				log.Warn("SMTP server close warning", zap.Error(err))
			}
		}

		log.Info("Servers stopped")
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openStore 根据数据库类型选择存储实现，未配置时使用内存存储
func openStore(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (storage.Store, error) {
	switch cfg.Type {
	case "":
		log.Warn("Using memory storage, data is lost on restart")
		return memory.NewStore(), nil

	case "pgx":
		pool, err := postgres.NewPool(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("open postgres pool: %w", err)
		}
		log.Info("Using PostgreSQL storage (pgx)")
		return postgres.NewStore(pool), nil

	default:
		store, err := sqlstore.NewStore(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open %s storage: %w", cfg.Type, err)
		}
		log.Info("Using SQL storage",
			zap.String("type", cfg.Type),
			zap.Bool("auto_migrate", cfg.AutoMigrate),
		)
		return store, nil
	}
}
