package saga_service_http

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/tumbleweedd/two_services_system/saga_service/internal/domain/models"
	"github.com/tumbleweedd/two_services_system/saga_service/pkg/logger"
)

var validate = validator.New()

type CreateOrderRequest struct {
	CustomerID string  `json:"customer_id" validate:"required"`
	Amount     float64 `json:"amount" validate:"required,gt=0"`
	ProductID  string  `json:"product_id" validate:"required"`
	Quantity   int     `json:"quantity" validate:"required,gt=0"`
}

func (req *CreateOrderRequest) toDTO() models.CreateOrderRequest {
	return models.CreateOrderRequest{
		CustomerID: req.CustomerID,
		Amount:     req.Amount,
		ProductID:  req.ProductID,
		Quantity:   req.Quantity,
	}
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var request CreateOrderRequest

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.log.Error("failed to decode request", logger.String("error", err.Error()))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := validate.Struct(&request); err != nil {
		h.log.Error("failed to validate request", logger.String("error", err.Error()))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	orderID, err := h.orderService.CreateOrder(r.Context(), request.toDTO())
	if err != nil {
		h.log.Error("failed to create order", logger.String("error", err.Error()))
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusAccepted, map[string]string{
		"order_id": orderID,
	})
}
