package saga_service_http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tumbleweedd/two_services_system/saga_service/internal/domain/models"
	internalErrors "github.com/tumbleweedd/two_services_system/saga_service/internal/lib/errors"
	"github.com/tumbleweedd/two_services_system/saga_service/pkg/logger"
)

type OrderService interface {
	CreateOrder(ctx context.Context, req models.CreateOrderRequest) (string, error)
	Order(ctx context.Context, orderID string) (*models.Order, error)
	OrderBySagaID(ctx context.Context, sagaID string) (*models.Order, error)
}

type InventoryService interface {
	Inventory(ctx context.Context, productID string) (*models.Inventory, error)
}

type PaymentService interface {
	PaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
}

type Handler struct {
	log logger.Logger

	orderService     OrderService
	inventoryService InventoryService
	paymentService   PaymentService
}

func NewHandler(
	log logger.Logger,
	orderService OrderService,
	inventoryService InventoryService,
	paymentService PaymentService,
) *Handler {
	return &Handler{
		log:              log,
		orderService:     orderService,
		inventoryService: inventoryService,
		paymentService:   paymentService,
	}
}

func (h *Handler) InitRoutes() http.Handler {
	mux := chi.NewRouter()

	mux.Route("/order", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/{orderID}", h.getOrder)
	})

	mux.Get("/saga/{sagaID}/order", h.getOrderBySaga)
	mux.Get("/inventory/{productID}", h.getInventory)
	mux.Get("/payment/{orderID}", h.getPayment)

	return mux
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("failed to encode response", logger.String("error", err.Error()))
	}
}

// respondError maps the domain error taxonomy onto HTTP statuses. Business
// rejections are client errors, everything unrecognized is a 500.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, internalErrors.ErrInsufficientInventory):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, internalErrors.ErrOrderNotFound),
		errors.Is(err, internalErrors.ErrPaymentNotFound),
		errors.Is(err, internalErrors.ErrProductNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
