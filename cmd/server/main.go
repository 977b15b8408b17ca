package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	jwtpkg "github.com/fjfoyain/reservation-boss/internal/auth/jwt"
	"github.com/fjfoyain/reservation-boss/internal/cache"
	"github.com/fjfoyain/reservation-boss/internal/config"
	"github.com/fjfoyain/reservation-boss/internal/health"
	"github.com/fjfoyain/reservation-boss/internal/logger"
	"github.com/fjfoyain/reservation-boss/internal/mailer"
	"github.com/fjfoyain/reservation-boss/internal/middleware"
	"github.com/fjfoyain/reservation-boss/internal/monitoring"
	"github.com/fjfoyain/reservation-boss/internal/pool"
	"github.com/fjfoyain/reservation-boss/internal/service"
	"github.com/fjfoyain/reservation-boss/internal/storage"
	"github.com/fjfoyain/reservation-boss/internal/storage/memory"
	"github.com/fjfoyain/reservation-boss/internal/storage/postgres"
	redisstore "github.com/fjfoyain/reservation-boss/internal/storage/redis"
	httptransport "github.com/fjfoyain/reservation-boss/internal/transport/http"
)

// main 启动车位预订 HTTP API 服务。
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

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     "",
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting reservation boss server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.String("timezone", cfg.Reservation.Timezone),
	)

	// 初始化存储层
	store, err := initializeStorage(cfg, log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize storage: %v", err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("storage close warning", zap.Error(err))
		}
	}()

	// 初始化监控系统
	metrics := monitoring.NewMetrics()

	// 初始化健康检查
	healthChecker := health.NewHealthChecker(store, log)

	// 初始化周视图缓存
	viewCache, attemptCounter, err := initializeCache(cfg, log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize cache: %v", err))
	}
	viewCache = cache.NewMeteredCache(viewCache, metrics)

	// 初始化邮件发送器
	var sender mailer.Sender
	if cfg.SMTP.Enabled {
		sender = mailer.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
		log.Info("SMTP mailer enabled",
			zap.String("host", cfg.SMTP.Host),
			zap.Int("port", cfg.SMTP.Port))
	} else {
		sender = mailer.NewNoopSender(log)
		log.Info("SMTP disabled, emails will be logged only")
	}
	sender = mailer.NewInstrumentedSender(sender, metrics)

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 启动后台任务协程池（邮件发送等异步任务）
	workers := pool.NewWorkerPool(4, 64, log)
	workers.Start(ctx)
	defer workers.Stop()

	// 初始化服务层
	reservationService := service.NewReservationService(store, viewCache, sender, workers, cfg, log)
	cancellationService := service.NewCancellationService(store, viewCache, sender, workers, cfg, log)
	reportService := service.NewReportService(store, cfg, log)

	// 选用 redis 时验证尝试计数也走 redis，多实例间共享
	if attemptCounter != nil {
		cancellationService.UseAttemptCounter(attemptCounter)
		log.Info("cancellation attempt counter backed by redis")
	}

	// 初始化管理接口认证
	jwtManager := jwtpkg.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry)
	adminAuth := middleware.NewAdminAuth(jwtManager, log)

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:              cfg,
		ReservationService:  reservationService,
		CancellationService: cancellationService,
		ReportService:       reportService,
		AdminAuth:           adminAuth,
		Metrics:             metrics,
		HealthChecker:       healthChecker,
		Logger:              log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 定时清理可见周之前的历史预订 goroutine
	group.Go(func() error {
		interval := cfg.Reservation.CleanupInterval
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info("starting old reservation cleanup task", zap.Duration("interval", interval))

		for {
			select {
			case <-groupCtx.Done():
				log.Info("cleanup task stopped")
				return nil
			case <-ticker.C:
				count, before, err := reservationService.PurgeOld()
				if err != nil {
					log.Error("failed to purge old reservations", zap.Error(err))
				} else if count > 0 {
					metrics.RecordReservationsPurged(count)
					log.Info("old reservations purged",
						zap.Int("count", count),
						zap.String("before", before))
				}
			}
		}
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		log.Info("server stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// initializeStorage 根据配置选择数据库或内存存储。
func initializeStorage(cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	opts := postgres.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	switch cfg.Database.Type {
	case "postgres":
		store, err := postgres.NewStore(cfg.Database.DSN, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres store: %w", err)
		}
		log.Info("using postgres storage")
		return store, nil
	case "mysql":
		store, err := postgres.NewMySQLStore(cfg.Database.DSN, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create mysql store: %w", err)
		}
		log.Info("using mysql storage")
		return store, nil
	case "":
		log.Info("using memory storage (development mode)")
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Database.Type)
	}
}

// initializeCache 根据配置选择本地或 Redis 缓存。
//
// 选用 Redis 时同一客户端也作为取消验证的尝试计数器返回；
// 本地缓存时计数器为 nil，调用方退回存储层的进程内计数。
func initializeCache(cfg *config.Config, log *zap.Logger) (cache.Cache, storage.RateLimitRepository, error) {
	if cfg.Cache.Backend == "redis" {
		c, err := redisstore.NewCache(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Info("using redis cache", zap.String("address", cfg.Redis.Address))
		return c, c, nil
	}

	log.Info("using local in-process cache", zap.Duration("ttl", cfg.Cache.TTL))
	return cache.NewLocalCache(cfg.Cache.TTL), nil, nil
}
