package order_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"ms-ordering/internal/auth"
	"ms-ordering/internal/logger"
	"ms-ordering/internal/models"
	"ms-ordering/internal/order"
	"ms-ordering/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	OrderService *order.OrderService
	Logger       *logger.Logger
}

func NewHandler(svc *order.OrderService, log *logger.Logger) *Handler {
	return &Handler{OrderService: svc, Logger: log}
}

// statusFor maps the service's sentinel errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, order.ErrValidation), errors.Is(err, order.ErrSignatureInvalid):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", message, err))
		utils.WriteJSON(w, status, utils.ErrorResponse(message, "internal error"))
		return
	}
	utils.WriteJSON(w, status, utils.ErrorResponse(message, err.Error()))
}

// CreateOrder handles POST /api/v1/orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	resp, err := h.OrderService.PlaceOrder(auth.UserID(r.Context()), req)
	if err != nil {
		h.writeError(w, "Failed to create order", err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Order created", resp))
}

// VerifyPayment handles POST /api/v1/orders/verify-payment.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	if err := h.OrderService.VerifyPayment(auth.UserID(r.Context()), req); err != nil {
		h.writeError(w, "Payment verification failed", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Payment verified", nil))
}

// Webhook handles POST /api/v1/orders/webhook. This route is unauthenticated;
// the HMAC over the raw body is the authentication.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("X-Razorpay-Signature")

	if whErr := h.OrderService.HandleWebhook(body, signature); whErr != nil {
		h.Logger.Error("WEBHOOK", whErr.InternalError)
		http.Error(w, whErr.PublicError, whErr.StatusCode)
		return
	}

	// The gateway only looks at the status code; no envelope here.
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// GetOrder handles GET /api/v1/orders/{orderId}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	result, err := h.OrderService.GetOrder(auth.UserID(r.Context()), orderID)
	if err != nil {
		h.writeError(w, "Failed to fetch order", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Order fetched", result))
}

// ListOrders handles GET /api/v1/orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.OrderService.ListOrders(auth.UserID(r.Context()))
	if err != nil {
		h.writeError(w, "Failed to fetch orders", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Orders fetched", orders))
}

// CancelOrder handles POST /api/v1/orders/{orderId}/cancel.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req models.CancelRequest
	if r.Body != nil {
		// The reason is optional; an empty body is fine.
		json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.OrderService.CancelOrder(auth.UserID(r.Context()), orderID, req.Reason); err != nil {
		h.writeError(w, "Failed to cancel order", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Order cancelled", nil))
}

// UpdateStatus handles PATCH /api/v1/orders/{orderId}/status, used by canteen
// staff to move an order through the fulfilment lifecycle.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req models.StatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	updated, err := h.OrderService.AdvanceStatus(orderID, req.Status)
	if err != nil {
		h.writeError(w, "Failed to update order status", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Order status updated", updated))
}
