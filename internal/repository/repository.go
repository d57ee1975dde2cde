package repository

import (
	"github.com/jmoiron/sqlx"

	inventoryRepo "github.com/tumbleweedd/two_services_system/saga_service/internal/repository/inventory"
	orderRepo "github.com/tumbleweedd/two_services_system/saga_service/internal/repository/order"
	outboxRepo "github.com/tumbleweedd/two_services_system/saga_service/internal/repository/outbox"
	paymentRepo "github.com/tumbleweedd/two_services_system/saga_service/internal/repository/payment"
	processedRepo "github.com/tumbleweedd/two_services_system/saga_service/internal/repository/processed"
	"github.com/tumbleweedd/two_services_system/saga_service/pkg/logger"
)

// Repository bundles the Postgres-backed stores. Each store satisfies the
// same interface the in-memory counterpart does, so services never know
// which backend they run on.
type Repository struct {
	Orders    *orderRepo.Repository
	Payments  *paymentRepo.Repository
	Inventory *inventoryRepo.Repository
	Processed *processedRepo.Repository
	OutBox    *outboxRepo.Repository
}

func New(log logger.Logger, db *sqlx.DB) *Repository {
	return &Repository{
		Orders:    orderRepo.New(log, db),
		Payments:  paymentRepo.New(log, db),
		Inventory: inventoryRepo.New(log, db),
		Processed: processedRepo.New(log, db),
		OutBox:    outboxRepo.New(log, db),
	}
}
