package saga_service_http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tumbleweedd/two_services_system/saga_service/pkg/logger"
)

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		http.Error(w, "order id is required", http.StatusBadRequest)
		return
	}

	payment, err := h.paymentService.PaymentByOrderID(r.Context(), orderID)
	if err != nil {
		h.log.Error("failed to get payment", logger.String("order_id", orderID), logger.String("error", err.Error()))
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, payment)
}
