package saga_service_http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tumbleweedd/two_services_system/saga_service/pkg/logger"
)

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		http.Error(w, "order id is required", http.StatusBadRequest)
		return
	}

	order, err := h.orderService.Order(r.Context(), orderID)
	if err != nil {
		h.log.Error("failed to get order", logger.String("order_id", orderID), logger.String("error", err.Error()))
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, order)
}

func (h *Handler) getOrderBySaga(w http.ResponseWriter, r *http.Request) {
	sagaID := chi.URLParam(r, "sagaID")
	if sagaID == "" {
		http.Error(w, "saga id is required", http.StatusBadRequest)
		return
	}

	order, err := h.orderService.OrderBySagaID(r.Context(), sagaID)
	if err != nil {
		h.log.Error("failed to get order by saga", logger.String("saga_id", sagaID), logger.String("error", err.Error()))
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, order)
}
