package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	httpapp "github.com/tumbleweedd/two_services_system/saga_service/internal/app/http"
	"github.com/tumbleweedd/two_services_system/saga_service/internal/cache"
	"github.com/tumbleweedd/two_services_system/saga_service/internal/config"
	"github.com/tumbleweedd/two_services_system/saga_service/internal/domain/models"
	"github.com/tumbleweedd/two_services_system/saga_service/internal/eventbus"
	"github.com/tumbleweedd/two_services_system/saga_service/internal/repository"
	"github.com/tumbleweedd/two_services_system/saga_service/internal/services"
	"github.com/tumbleweedd/two_services_system/saga_service/internal/services/idempotency"
	"github.com/tumbleweedd/two_services_system/saga_service/internal/services/inventory"
	"github.com/tumbleweedd/two_services_system/saga_service/internal/services/order"
	"github.com/tumbleweedd/two_services_system/saga_service/internal/services/payment"
	kafkaProducer "github.com/tumbleweedd/two_services_system/saga_service/pkg/brokers/kafka/producer"
	"github.com/tumbleweedd/two_services_system/saga_service/pkg/databases/postgres"
	"github.com/tumbleweedd/two_services_system/saga_service/pkg/logger"
)

func Run() {
	cfg := config.InitConfig()

	log := logger.NewSlogLogger(logger.SlogEnvironment(cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := setupDatabase(ctx, log, &cfg)

	repo := repository.New(log, db.GetDB())

	bus := eventbus.New(log, cfg.Bus.RedeliveryAttempts, cfg.Bus.RedeliveryDelay)

	// Every bus publish lands in the outbox table in the same call; the
	// relay binary forwards it to Kafka with delivery guarantees.
	bus.AddMirror(func(channel string, event models.Event) {
		if err := repo.OutBox.Insert(ctx, channel, event); err != nil {
			log.Error("outbox mirror insert failed",
				logger.String("channel", channel),
				logger.String("event_id", event.ID()),
				logger.String("error", err.Error()),
			)
		}
	})

	var mirror *kafkaProducer.Producer
	if len(cfg.Kafka.BrokerList) > 0 {
		var err error
		mirror, err = kafkaProducer.New(ctx, log, cfg.Kafka.BrokerList, cfg.Kafka.TopicPrefix)
		if err != nil {
			panic(fmt.Sprintf("failed to create kafka producer: %v", err))
		}

		go mirror.Run(ctx)
		bus.AddMirror(mirror.Mirror)
	}

	inventorySvc := inventory.New(log, repo.Inventory)
	for _, seed := range cfg.Inventory {
		if err := inventorySvc.Seed(ctx, seed.ProductID, seed.Quantity); err != nil {
			panic(fmt.Sprintf("failed to seed inventory: %v", err))
		}
	}

	idempotencySvc := idempotency.New(log, repo.Processed)

	orderCache := cache.NewLRU(expirable.NewLRU[string, *models.Order](512, nil, time.Minute*10))

	svc := services.New(
		order.New(log, repo.Orders, inventorySvc, idempotencySvc, bus, orderCache),
		payment.New(log, repo.Payments, idempotencySvc, bus, payment.Config{
			ProcessingDelay:  cfg.Payment.ProcessingDelay,
			TimeoutThreshold: cfg.Payment.TimeoutThreshold,
			EnableTimeout:    cfg.Payment.EnableTimeout,
			FailureRate:      cfg.Payment.FailureRate,
			MaxConcurrent:    int64(cfg.Payment.MaxConcurrent),
		}),
		inventorySvc,
		idempotencySvc,
	)
	svc.RegisterHandlers(bus)

	httpServer := httpapp.NewApp(log, svc.Order, svc.Inventory, svc.Payment, cfg.HTTP.Port)

	go httpServer.RunWithPanic()

	log.Info("saga service started", logger.String("env", cfg.Env))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		panic(fmt.Sprintf("failed to shutdown http server: %v", err))
	}

	// In-flight deliveries and abandoned payment attempts drain before the
	// stores go away.
	bus.Wait()
	svc.Payment.Wait()

	if mirror != nil {
		if err := mirror.Close(); err != nil {
			log.Error("failed to close kafka producer", logger.String("error", err.Error()))
		}
	}

	if err := db.Close(); err != nil {
		panic(fmt.Sprintf("failed to close postgres: %v", err))
	}

	log.Info("saga service stopped")
}

func postgresDSN(psqlCfg *config.PostgresConfig) string {
	return fmt.Sprintf("host=%s port=%s user=%s dbname=%s password=%s sslmode=%s",
		psqlCfg.Host, psqlCfg.Port, psqlCfg.User, psqlCfg.DbName, psqlCfg.Pwd, psqlCfg.SslMode)
}

func setupDatabase(ctx context.Context, log logger.Logger, cfg *config.Config) *postgres.PgDB {
	postgresDB, err := postgres.NewPostgresDB(ctx, log, postgresDSN(&cfg.Postgres))
	if err != nil {
		panic(fmt.Sprintf("failed to connect to postgres: %v", err))
	}

	return postgresDB
}
