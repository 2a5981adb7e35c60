package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"ms-ordering/internal/admin"
	"ms-ordering/internal/auth"
	"ms-ordering/internal/logger"
	"ms-ordering/internal/models"
	"ms-ordering/internal/order"
	"ms-ordering/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Admin  *admin.Service
	Logger *logger.Logger
}

func NewHandler(svc *admin.Service, log *logger.Logger) *Handler {
	return &Handler{Admin: svc, Logger: log}
}

// OverrideOrder handles POST /api/v1/admin/orders/{orderId}/override.
func (h *Handler) OverrideOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req models.OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	updated, err := h.Admin.Override(auth.UserID(r.Context()), orderID, req)
	switch {
	case err == nil:
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Order overridden", updated))
	case errors.Is(err, order.ErrValidation):
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid override", err.Error()))
	case errors.Is(err, order.ErrNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Order not found", err.Error()))
	default:
		h.Logger.Error("ADMIN", fmt.Sprintf("Override of %s failed: %v", orderID, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to override order", "internal error"))
	}
}

// ListAudit handles GET /api/v1/admin/orders/{orderId}/audit.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.Admin.AuditTrail(orderID, limit, offset)
	if err != nil {
		h.Logger.Error("ADMIN", fmt.Sprintf("Audit lookup for %s failed: %v", orderID, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to fetch audit trail", "internal error"))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Audit trail fetched", entries))
}
