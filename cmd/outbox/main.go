package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/tumbleweedd/two_services_system/saga_service/internal/config"
	outboxrepo "github.com/tumbleweedd/two_services_system/saga_service/internal/repository/outbox"
	outboxsvc "github.com/tumbleweedd/two_services_system/saga_service/internal/services/outbox"
	outboxProducer "github.com/tumbleweedd/two_services_system/saga_service/pkg/brokers/kafka/outbox_producer"
	"github.com/tumbleweedd/two_services_system/saga_service/pkg/databases/postgres"
	"github.com/tumbleweedd/two_services_system/saga_service/pkg/logger"
)

const relayInterval = time.Second

func main() {
	cfg := config.InitConfig()

	log := logger.NewSlogLogger(logger.SlogEnvironment(cfg.Env))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	db, err := postgres.NewPostgresDB(ctx, log, postgresDSN(&cfg.Postgres))
	if err != nil {
		panic(fmt.Sprintf("failed to connect to db: %v", err))
	}

	producer, err := outboxProducer.New(cfg.Kafka.BrokerList)
	if err != nil {
		panic(fmt.Sprintf("failed to create sync producer: %v", err))
	}

	repo := outboxrepo.New(log, db.GetDB())
	sender := outboxsvc.New(log, cfg.Kafka.TopicPrefix, producer, repo, repo)

	log.Info("outbox relay started")

	ticker := time.NewTicker(relayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err = sender.Send(ctx); err != nil {
				log.Error("outbox relay pass failed", logger.String("error", err.Error()))
			}
		case <-ctx.Done():
			log.Info("outbox relay stopped")

			if err = producer.Close(); err != nil {
				log.Error("failed to close producer", logger.String("error", err.Error()))
			}
			if err = db.Close(); err != nil {
				log.Error("failed to close postgres", logger.String("error", err.Error()))
			}
			return
		}
	}
}

func postgresDSN(psqlCfg *config.PostgresConfig) string {
	return fmt.Sprintf("host=%s port=%s user=%s dbname=%s password=%s sslmode=%s",
		psqlCfg.Host, psqlCfg.Port, psqlCfg.User, psqlCfg.DbName, psqlCfg.Pwd, psqlCfg.SslMode)
}
