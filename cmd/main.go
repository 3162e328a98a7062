package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/turbofy/charge-engine/internal/alerts"
	"github.com/turbofy/charge-engine/internal/api"
	"github.com/turbofy/charge-engine/internal/config"
	"github.com/turbofy/charge-engine/internal/provider"
	"github.com/turbofy/charge-engine/internal/repository"
	"github.com/turbofy/charge-engine/internal/service"
	"github.com/turbofy/charge-engine/internal/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize telemetry
	if err := telemetry.Init("charge-engine"); err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	telemetry.Logger.Info("Starting Charge Engine")

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		telemetry.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := repository.InitDB(db); err != nil {
		telemetry.Logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	// Repositories
	chargeRepo := repository.NewChargeRepository(db)
	ruleRepo := repository.NewCommissionRuleRepository(db)
	webhookRepo := repository.NewWebhookRepository(db)
	providerConfigRepo := repository.NewProviderConfigRepository(db)
	settlementRepo := repository.NewSettlementRepository(db)
	interactionRepo := repository.NewInteractionRepository(db)
	providerEventRepo := repository.NewProviderEventRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
	})
	locker := service.NewRedisLocker(redisClient)

	// Connect to NATS
	nc, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		telemetry.Logger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer nc.Close()
	alerter := alerts.NewNatsAlerter(nc, telemetry.Logger)

	// Connect to Kafka
	kafkaWriter := &kafka.Writer{
		Addr:     kafka.TCP(cfg.KafkaBrokers),
		Topic:    cfg.EventsTopic,
		Balancer: &kafka.LeastBytes{},
	}
	defer kafkaWriter.Close()
	publisher := service.NewKafkaPublisher(kafkaWriter, telemetry.Logger)

	// Provider adapter
	providerClient := provider.NewClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey, cfg.ProviderTimeout, telemetry.Logger)

	// Services
	issuance := service.NewIssuanceService(chargeRepo, ruleRepo, interactionRepo, providerClient, publisher, locker, telemetry.Logger)
	dispatcher := service.NewDispatcher(webhookRepo, cfg.DeliveryTimeout, cfg.SuspendThreshold, telemetry.Logger)
	processor := service.NewInboundProcessor(chargeRepo, settlementRepo, providerEventRepo, providerConfigRepo,
		interactionRepo, locker, alerter, cfg.MatchWindow, telemetry.Logger)
	relay := service.NewOutboxRelay(outboxRepo, publisher, cfg.OutboxInterval, telemetry.Logger)

	// Background workers
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	consumer := service.NewEventConsumer(dispatcher, telemetry.Logger)
	go consumer.Run(workerCtx, cfg.KafkaBrokers, cfg.EventsTopic, cfg.ConsumerGroup)
	go processor.Run(workerCtx)
	go relay.Run(workerCtx)

	// Setup HTTP server
	r := api.NewRouter(issuance, processor)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		telemetry.Logger.Info("Charge Engine starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	telemetry.Logger.Info("Shutting down server...")
	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	telemetry.Logger.Info("Server exited")
}
