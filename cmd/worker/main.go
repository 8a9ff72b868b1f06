package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/sousei-dev/push-service/internal/access"
	"github.com/sousei-dev/push-service/internal/api"
	"github.com/sousei-dev/push-service/internal/clients"
	"github.com/sousei-dev/push-service/internal/config"
	"github.com/sousei-dev/push-service/internal/consumer"
	"github.com/sousei-dev/push-service/internal/delivery"
	"github.com/sousei-dev/push-service/internal/repository"
	"github.com/sousei-dev/push-service/internal/subscription"
	"github.com/sousei-dev/push-service/pkg/logger"
	"github.com/sousei-dev/push-service/pkg/metrics"
	"github.com/sousei-dev/push-service/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logr := logger.New(cfg.AppName, cfg.LogLevel)
	logr.Info("starting push service")
	if !cfg.VAPIDConfigured() {
		logr.Warn("VAPID keys not configured, subscriptions will be rejected")
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logr.Error("failed to connect database", slog.Any("error", err))
		os.Exit(1)
	}

	subStore, err := repository.NewSubscriptionStore(db)
	if err != nil {
		logr.Error("failed to initialize subscription store", slog.Any("error", err))
		os.Exit(1)
	}
	statusStore, err := repository.NewStatusStore(db)
	if err != nil {
		logr.Error("failed to initialize status store", slog.Any("error", err))
		os.Exit(1)
	}

	var (
		redisRepo *repository.RedisRepository
		registry  clients.Registry
	)
	if cfg.RedisURL != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		redisRepo = repository.NewRedisRepository(rdb, 24*time.Hour)
		registry = clients.NewRedisRegistry(rdb, cfg.SessionTTL, logr)
		defer rdb.Close()
	} else {
		logr.Warn("REDIS_URL not set, using in-process client registry")
		registry = clients.NewMemoryRegistry()
	}

	sender := delivery.NewWebPushSender(
		cfg.VAPIDSubscriber,
		cfg.VAPIDPublicKey,
		cfg.VAPIDPrivateKey,
		cfg.WebPushTTL,
		cfg.ProviderTimeout,
		logr,
	)
	metricsCollector := metrics.New()

	retryCfg := retry.Config{
		MaxAttempts:    cfg.RetryMaxAttempts,
		InitialBackoff: cfg.RetryInitialBackoff,
		MaxBackoff:     cfg.RetryMaxBackoff,
	}

	var (
		unread     delivery.UnreadStore
		suppressor delivery.EndpointSuppressor
		unreadAPI  api.UnreadCounter
	)
	if redisRepo != nil {
		unread = redisRepo
		suppressor = redisRepo
		unreadAPI = redisRepo
	}

	handler := delivery.NewHandler(
		registry,
		subStore,
		sender,
		delivery.NewStatusUpdater(statusStore, logr),
		unread,
		suppressor,
		metricsCollector,
		logr,
		retryCfg,
		cfg.PublicURL,
	)

	subSvc := subscription.NewService(subStore, cfg.VAPIDConfigured(), logr)

	server := api.NewServer(
		subSvc,
		handler,
		registry,
		unreadAPI,
		access.DefaultEngine,
		metricsCollector,
		logr,
		cfg.VAPIDPublicKey,
		cfg.JWTSecret,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler.AnnounceActivation(ctx)

	go func() {
		if err := server.Run(cfg.HTTPPort); err != nil {
			logr.Error("http server error", slog.Any("error", err))
			stop()
		}
	}()

	if cfg.RabbitURL != "" {
		conn, err := amqp.Dial(cfg.RabbitURL)
		if err != nil {
			logr.Error("failed to connect rabbitmq", slog.Any("error", err))
			os.Exit(1)
		}
		defer conn.Close()

		base := consumer.NewBaseConsumer(
			conn,
			cfg.PushQueue,
			cfg.DeadLetterQueue,
			cfg.PrefetchCount,
			cfg.WorkerCount,
			logr,
		)
		pushConsumer := consumer.NewPushConsumer(base, handler, logr)
		if err := pushConsumer.Start(ctx); err != nil {
			logr.Error("push consumer exited", slog.Any("error", err))
		}
	} else {
		logr.Warn("RABBITMQ_URL not set, accepting pushes over HTTP only")
		<-ctx.Done()
	}

	logr.Info("push service stopped")
}
