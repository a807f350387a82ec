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

	"storefront-service/config"
	"storefront-service/internal/api"
	"storefront-service/internal/backend"
	"storefront-service/internal/broker"
	"storefront-service/internal/redisclient"
	"storefront-service/internal/service"
	"storefront-service/internal/store"
	"storefront-service/internal/submission"
	"storefront-service/internal/util"
	"storefront-service/internal/worker"

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
	logger.Info("Starting storefront service")

	tp, err := util.InitTracer("storefront-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	kv, closeStore, err := openStore(cfg)
	if err != nil {
		logger.Fatal("Failed to open session store", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
	}
	defer closeStore()
	logger.Info("Session store ready", zap.String("backend", cfg.Storage.Backend))

	backendClient := backend.NewClient(cfg.Backend.URL, cfg.BackendTimeout())

	ctx := context.Background()
	monitor := submission.NewMonitor(backendClient.Ping(ctx) == nil)

	var events service.EventSink
	var producer *broker.Producer
	if cfg.Kafka.Enabled {
		producer = broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
		events = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicOrder))
	}

	manager := service.NewManager(kv, backendClient, monitor, events, service.Options{
		ProductsTTL:      cfg.ProductsTTL(),
		ServicesTTL:      cfg.ServicesTTL(),
		MaxLineQuantity:  cfg.Business.MaxLineQuantity,
		MaxOfflineQueue:  cfg.Business.MaxOfflineQueue,
		ClubMonthlyPrice: cfg.Business.ClubMonthlyPrice,
		OfflinePolicy:    submission.OptimisticOfflineAck,
	})

	if loaded, err := manager.Preload(ctx); err != nil {
		logger.Warn("Failed to preload sessions", zap.Error(err))
	} else if loaded > 0 {
		logger.Info("Preloaded sessions with offline queues", zap.Int("sessions", loaded))
		if monitor.Online() {
			manager.DrainAll(ctx)
		}
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	connectivityWorker := worker.NewConnectivityWorker(backendClient, monitor, time.Duration(cfg.Backend.ProbeIntervalSeconds)*time.Second)
	go func() {
		if err := connectivityWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Connectivity worker error", zap.Error(err))
		}
	}()

	var statusWorker *worker.StatusWorker
	if cfg.Kafka.Enabled {
		statusConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicStatus, cfg.Kafka.ConsumerGroup)
		statusWorker = worker.NewStatusWorker(statusConsumer, manager)
		go func() {
			if err := statusWorker.Start(workerCtx); err != nil && err != context.Canceled {
				logger.Error("Status worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(manager)
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
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if statusWorker != nil {
		if err := statusWorker.Stop(); err != nil {
			logger.Warn("Error stopping status worker", zap.Error(err))
		}
	}
	manager.Wait()
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Warn("Error closing Kafka producer", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}

// openStore selects the session KV backend
func openStore(cfg *config.Config) (store.KV, func(), error) {
	switch cfg.Storage.Backend {
	case "redis":
		client, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		return client, func() { _ = client.Close() }, nil

	case "postgres":
		db, err := store.NewPostgresStore(cfg.Database.URL)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil

	case "memory", "":
		return store.NewMemoryStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}
