package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nytron88/streamix-sub000/internal/config"
	"github.com/nytron88/streamix-sub000/internal/consumer"
	"github.com/nytron88/streamix-sub000/internal/directory"
	"github.com/nytron88/streamix-sub000/internal/domain"
	"github.com/nytron88/streamix-sub000/internal/handler"
	"github.com/nytron88/streamix-sub000/internal/publisher"
	"github.com/nytron88/streamix-sub000/internal/queue"
	"github.com/nytron88/streamix-sub000/internal/repository"
	"github.com/nytron88/streamix-sub000/internal/viewers"
	"github.com/nytron88/streamix-sub000/internal/worker"
	"github.com/nytron88/streamix-sub000/pkg/database"
	pkglog "github.com/nytron88/streamix-sub000/pkg/log"
	"github.com/nytron88/streamix-sub000/pkg/pubsub"
	"github.com/nytron88/streamix-sub000/pkg/response"
)

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	pkglog.Init(pkglog.Config{Level: cfg.Log.Level, ServiceName: "notification-worker"})
	logger := pkglog.L()

	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting notification-worker")

	// Event queue (write-behind store shared with producers)
	eventQueue, err := queue.NewRedisEventQueue(queue.Config{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create event queue")
	}
	defer eventQueue.Close()

	// Durable storage
	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.AutoMigrate(db,
		&repository.NotificationModel{},
		&repository.ViewCountModel{},
		&directory.ChannelModel{},
		&directory.UserModel{},
	); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database connected")

	// Fan-out pub/sub
	broker, err := pubsub.NewRedisPubSub(pubsub.RedisConfig{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis pub/sub")
	}
	defer broker.Close()

	// Directory lookups go through a read-through cache
	dir := directory.NewCachedDirectory(
		directory.NewGormDirectory(db),
		broker.GetClient(),
		cfg.Directory.CacheTTL,
	)

	notificationRepo := repository.NewGormNotificationRepository(db)
	pub := publisher.New(broker)

	// Batch worker
	w := worker.New(eventQueue, dir, notificationRepo, pub, worker.Config{
		Interval:               cfg.Worker.Interval,
		BatchSize:              cfg.Worker.BatchSize,
		MaxConsecutiveFailures: cfg.Worker.MaxConsecutiveFailures,
	})

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	// Viewer-count sub-pipeline
	counterStore, err := viewers.NewRedisCounterStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create viewer counter store")
	}
	defer counterStore.Close()

	viewCountRepo := repository.NewGormViewCountRepository(db)

	viewerSub := viewers.NewSubscriber(broker, broker, counterStore, viewCountRepo)
	go viewerSub.Run(ctx)

	reconciler := viewers.NewReconciler(counterStore, viewCountRepo, viewers.ReconcilerConfig{
		Interval: cfg.Viewers.ReconcileInterval,
	})
	reconciler.Start(ctx)

	// Optional Kafka ingest alongside the HTTP endpoint
	var kafkaConsumer *consumer.ConfluentConsumer
	if cfg.Kafka.Enabled {
		kc, err := consumer.NewConfluentConsumer(
			cfg.Kafka.Brokers,
			cfg.Kafka.Topic,
			cfg.Kafka.GroupID,
			consumer.EventHandlerFunc(func(ctx context.Context, event *domain.EventRecord) error {
				return eventQueue.Enqueue(ctx, event)
			}),
		)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create kafka consumer, stream ingest disabled")
		} else if err := kc.Start(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to start kafka consumer")
		} else {
			kafkaConsumer = kc
			logger.Info().Str(pkglog.FieldTopic, cfg.Kafka.Topic).Msg("kafka consumer started")
		}
	}

	// HTTP ingest API
	ingestHandler := handler.NewIngestHandler(eventQueue)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	r.GET("/health", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok", "service": "notification-worker"})
	})
	r.POST("/api/v1/events", ingestHandler.IngestEvent)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("notification-worker listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down notification-worker")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown error")
		}

		// Stop the tick-driven loops before cancelling their context so a
		// tick already in flight completes with its dependencies intact.
		w.Stop()
		<-w.Done()
		reconciler.Stop()
		<-reconciler.Done()

		cancel() // stop kafka consumer + viewer subscriber

		if kafkaConsumer != nil {
			kafkaConsumer.Close() // wait for in-flight event
		}
		<-viewerSub.Done()
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("notification-worker stopped")
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("shutdown timed out after 30s")
	}
}
