package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pdv-service/config"
	"pdv-service/internal/api"
	"pdv-service/internal/broker"
	"pdv-service/internal/eventbus"
	"pdv-service/internal/redisclient"
	"pdv-service/internal/service"
	"pdv-service/internal/store"
	"pdv-service/internal/util"
	"pdv-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting PDV service", zap.String("instance", cfg.Server.InstanceID))

	if cfg.Observ.TracingEnabled {
		tp, err := util.InitTracer(cfg.Observ.JaegerEndpoint, cfg.Server.Env)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	db, err := store.NewStore(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database ready", zap.String("driver", db.Driver()))

	var (
		cache  service.SnapshotCache
		pinger api.Pinger
		locker worker.Locker
	)
	if cfg.Redis.Addr != "" {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("Redis unavailable, dashboard cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			cache, pinger, locker = redisClient, redisClient, redisClient
			logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))
		}
	}

	var busOpts []eventbus.Option
	if cfg.Business.EventBusAsync {
		busOpts = append(busOpts, eventbus.WithAsync())
	}
	bus := eventbus.New(busOpts...)
	defer bus.Close()

	assignment, err := service.ParseOrderNumberAssignment(cfg.Business.OrderNumberStrategy)
	if err != nil {
		logger.Fatal("Invalid order number strategy", zap.Error(err))
	}

	orderService := service.NewOrderService(db, bus, service.OrderServiceConfig{
		NumberAssignment:  assignment,
		MaxRetries:        cfg.Business.OrderNumberMaxRetries,
		StrictTransitions: cfg.Business.StrictStatusTransitions,
		InstanceID:        cfg.Server.InstanceID,
	})
	reportService := service.NewReportService(db, cache, service.ReportServiceConfig{
		Location:          cfg.Server.Location(),
		TopProductsLimit:  cfg.Business.TopProductsLimit,
		RecentOrdersLimit: cfg.Business.RecentOrdersLimit,
		CacheTTL:          cfg.Business.DashboardCacheTTL,
	})
	defer reportService.SubscribeTo(bus)()

	authService := service.NewAuthService(db, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	ctx := context.Background()
	if _, err := authService.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		logger.Error("Failed to ensure admin user", zap.Error(err))
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var refreshWorker *worker.RefreshWorker
	if len(cfg.Kafka.Brokers) > 0 {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicSales)
		defer producer.Close()
		defer broker.NewRelay(producer, cfg.Server.InstanceID).Attach(bus)()
		logger.Info("Kafka relay enabled", zap.Strings("brokers", cfg.Kafka.Brokers))

		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicSales, cfg.Kafka.ConsumerGroup)
		refreshWorker = worker.NewRefreshWorker(consumer, cfg.Server.InstanceID, reportService)
		go func() {
			if err := refreshWorker.Start(workerCtx); err != nil && err != context.Canceled {
				logger.Error("Refresh worker error", zap.Error(err))
			}
		}()
	}

	var scheduler *worker.Scheduler
	if cfg.Business.DashboardRefreshEvery > 0 {
		if cache == nil {
			logger.Info("Dashboard refresh disabled without a cache")
		} else {
			scheduler, err = worker.NewScheduler(reportService, cfg.Business.DashboardRefreshEvery, locker)
			if err != nil {
				logger.Fatal("Failed to create scheduler", zap.Error(err))
			}
			scheduler.Start()
		}
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if cfg.Server.Env != "production" {
		router.Use(gin.Logger())
	}
	handler := api.NewHandler(api.Services{
		Orders:   orderService,
		Reports:  reportService,
		Catalog:  service.NewCatalogService(db),
		Comments: service.NewCommentService(db),
		Auth:     authService,
	}, api.Options{
		AuthRequired: cfg.Auth.Required,
		Database:     db,
		Cache:        pinger,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if scheduler != nil {
		if err := scheduler.Stop(); err != nil {
			logger.Error("Scheduler shutdown failed", zap.Error(err))
		}
	}
	workerCancel()
	if refreshWorker != nil {
		refreshWorker.Stop()
	}

	logger.Info("Server exited")
}
