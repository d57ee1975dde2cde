package saga_service_http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tumbleweedd/two_services_system/saga_service/pkg/logger"
)

func (h *Handler) getInventory(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	if productID == "" {
		http.Error(w, "product id is required", http.StatusBadRequest)
		return
	}

	inv, err := h.inventoryService.Inventory(r.Context(), productID)
	if err != nil {
		h.log.Error("failed to get inventory", logger.String("product_id", productID), logger.String("error", err.Error()))
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, inv)
}
