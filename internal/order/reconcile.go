package order

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-ordering/internal/models"
	"ms-ordering/internal/order/db"
)

// Payment confirmations arrive on two independent channels: the client's
// verify call after checkout and the gateway's webhook. Either can arrive
// first, both can arrive, and each can arrive more than once. Everything in
// this file funnels into one conditional update in the ledger, so the order
// is confirmed exactly once no matter what the channels do.

// VerifyPayment handles the client-side confirmation. The caller must own the
// order, the gateway order id must match what we opened, and the signature
// must authenticate. A verify for an already-paid order is an idempotent
// success so client retries stay cheap.
func (s *OrderService) VerifyPayment(userID string, req models.VerifyPaymentRequest) error {
	if req.OrderID == "" || req.GatewayOrderID == "" || req.GatewayPaymentID == "" || req.GatewaySignature == "" {
		return fmt.Errorf("%w: all payment verification fields are required", ErrValidation)
	}

	order, err := s.DB.GetOrderByID(req.OrderID)
	if err != nil {
		if errors.Is(err, db.ErrOrderNotFound) {
			return fmt.Errorf("%w: order %s", ErrNotFound, req.OrderID)
		}
		return err
	}
	if order.UserID != userID {
		return fmt.Errorf("%w: order %s belongs to another user", ErrForbidden, req.OrderID)
	}

	if order.PaymentStatus == models.PaymentPaid {
		s.Logger.LogPayment("VERIFY", order.OrderID, "Order already paid, verify is a no-op")
		return nil
	}

	if order.GatewayOrderID == "" || order.GatewayOrderID != req.GatewayOrderID {
		return fmt.Errorf("%w: gateway order id does not match order %s", ErrValidation, req.OrderID)
	}

	if !s.Gateway.VerifyPaymentSignature(req.GatewayOrderID, req.GatewayPaymentID, req.GatewaySignature) {
		s.Logger.LogSecurity("SIGNATURE", fmt.Sprintf("Payment signature rejected for order %s", req.OrderID))
		if _, err := s.DB.MarkPaymentFailed(req.OrderID); err != nil {
			s.Logger.LogDatabase("UPDATE", "orders", fmt.Sprintf("Failed to mark payment failed for %s: %v", req.OrderID, err))
		}
		return fmt.Errorf("%w: order %s", ErrSignatureInvalid, req.OrderID)
	}

	return s.applyPaymentSuccess(order, req.GatewayPaymentID, req.GatewaySignature)
}

// HandleWebhook processes a raw gateway webhook. The signature is checked
// against the exact bytes received before anything is parsed; a bad signature
// causes zero state changes. The returned *WebhookError carries the status
// code and a gateway-safe message; nil means respond 200 so the gateway stops
// retrying.
func (s *OrderService) HandleWebhook(body []byte, signature string) *WebhookError {
	if !s.Gateway.VerifyWebhookSignature(body, signature) {
		s.Logger.LogSecurity("WEBHOOK", "Webhook signature verification failed")
		return &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "invalid signature",
			InternalError: "webhook signature verification failed",
		}
	}

	var payload models.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "malformed payload",
			InternalError: fmt.Sprintf("failed to parse webhook payload: %v", err),
			OriginalErr:   err,
		}
	}

	switch payload.Event {
	case models.EventPaymentCaptured, models.EventOrderPaid:
		return s.webhookPaymentSuccess(&payload)
	case models.EventPaymentFailed:
		return s.webhookPaymentFailure(&payload)
	default:
		// Unknown events are acknowledged: returning an error here would only
		// make the gateway retry something we will never handle.
		s.Logger.Info("WEBHOOK", fmt.Sprintf("Unhandled event type: %s", payload.Event))
		return nil
	}
}

func (s *OrderService) webhookPaymentSuccess(payload *models.WebhookPayload) *WebhookError {
	gatewayOrderID := payload.GatewayOrderID()
	if gatewayOrderID == "" {
		return &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "missing order reference",
			InternalError: fmt.Sprintf("%s event carries no gateway order id", payload.Event),
		}
	}

	order, err := s.DB.GetOrderByGatewayOrderID(gatewayOrderID)
	if err != nil {
		if errors.Is(err, db.ErrOrderNotFound) {
			return &WebhookError{
				Category:      "validation",
				StatusCode:    http.StatusBadRequest,
				PublicError:   "unknown order",
				InternalError: fmt.Sprintf("no order for gateway order %s", gatewayOrderID),
			}
		}
		return &WebhookError{
			Category:      "processing",
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "internal error",
			InternalError: fmt.Sprintf("lookup for gateway order %s failed: %v", gatewayOrderID, err),
			OriginalErr:   err,
		}
	}

	// The webhook body is already authenticated; the per-payment signature
	// only travels on the client channel, so the stored value stays empty on
	// this path unless the client verified first.
	if err := s.applyPaymentSuccess(order, payload.GatewayPaymentID(), order.GatewaySignature); err != nil {
		if errors.Is(err, ErrConflict) {
			// The payment already settled in a state this event cannot change
			// (e.g. captured after a durable failure). Retrying the delivery
			// will never succeed, so answer with a non-retryable status.
			return &WebhookError{
				Category:      "validation",
				StatusCode:    http.StatusConflict,
				PublicError:   "payment already settled",
				InternalError: fmt.Sprintf("cannot confirm payment for order %s: %v", order.OrderID, err),
				OriginalErr:   err,
			}
		}
		return &WebhookError{
			Category:      "processing",
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "internal error",
			InternalError: fmt.Sprintf("failed to confirm payment for order %s: %v", order.OrderID, err),
			OriginalErr:   err,
		}
	}
	return nil
}

func (s *OrderService) webhookPaymentFailure(payload *models.WebhookPayload) *WebhookError {
	gatewayOrderID := payload.GatewayOrderID()
	if gatewayOrderID == "" {
		return &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "missing order reference",
			InternalError: "payment.failed event carries no gateway order id",
		}
	}

	order, err := s.DB.GetOrderByGatewayOrderID(gatewayOrderID)
	if err != nil {
		if errors.Is(err, db.ErrOrderNotFound) {
			return &WebhookError{
				Category:      "validation",
				StatusCode:    http.StatusBadRequest,
				PublicError:   "unknown order",
				InternalError: fmt.Sprintf("no order for gateway order %s", gatewayOrderID),
			}
		}
		return &WebhookError{
			Category:      "processing",
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "internal error",
			InternalError: fmt.Sprintf("lookup for gateway order %s failed: %v", gatewayOrderID, err),
			OriginalErr:   err,
		}
	}

	// Paid is sticky: a success that already landed is never undone by a
	// late or duplicate failure signal.
	if order.PaymentStatus == models.PaymentPaid {
		s.Logger.LogPayment("WEBHOOK", order.OrderID, "Ignoring payment.failed for an already-paid order")
		return nil
	}

	marked, err := s.DB.MarkPaymentFailed(order.OrderID)
	if err != nil {
		return &WebhookError{
			Category:      "processing",
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "internal error",
			InternalError: fmt.Sprintf("failed to mark payment failed for order %s: %v", order.OrderID, err),
			OriginalErr:   err,
		}
	}
	if !marked {
		// The payment moved (paid or already failed) between the read and the
		// update; either way there is nothing left to record.
		s.Logger.LogPayment("WEBHOOK", order.OrderID, "payment.failed arrived after the payment already settled")
		return nil
	}

	if desc := payload.Payload.Payment.Entity.ErrorDescription; desc != "" {
		s.Logger.LogPayment("WEBHOOK", order.OrderID, fmt.Sprintf("Payment failed: %s", desc))
	} else {
		s.Logger.LogPayment("WEBHOOK", order.OrderID, "Payment failed")
	}
	return nil
}

// applyPaymentSuccess is the single confirmation path shared by both
// channels. The conditional update decides the winner; only the winner emits
// notifications, so downstream consumers see each order exactly once.
func (s *OrderService) applyPaymentSuccess(order *models.Order, gatewayPaymentID, gatewaySignature string) error {
	if order.PaymentStatus == models.PaymentPaid {
		return nil
	}

	// Best-effort serialization so the two channels do not both do the full
	// confirmation work. Lock failures are logged and ignored: the ledger's
	// conditional update stays correct without it.
	locked := false
	if s.Lock != nil {
		ok, err := s.Lock.LockPayment(order.OrderID)
		if err != nil {
			s.Logger.Warn("REDIS", fmt.Sprintf("Payment lock unavailable for %s: %v", order.OrderID, err))
		}
		locked = err == nil && ok
		if locked {
			defer func() {
				if err := s.Lock.UnlockPayment(order.OrderID); err != nil {
					s.Logger.Warn("REDIS", fmt.Sprintf("Failed to release payment lock for %s: %v", order.OrderID, err))
				}
			}()
		}
	}

	won, err := s.DB.MarkPaymentPaid(order.OrderID, gatewayPaymentID, gatewaySignature)
	if err != nil {
		return err
	}

	if !won {
		// Someone beat us to it. Re-read: if they confirmed the payment this
		// call is an idempotent success; anything else is a real conflict.
		current, err := s.DB.GetOrderByID(order.OrderID)
		if err != nil {
			return err
		}
		if current.PaymentStatus == models.PaymentPaid {
			s.Logger.LogPayment("CONFIRM", order.OrderID, "Duplicate confirmation, payment already recorded")
			return nil
		}
		return fmt.Errorf("%w: payment for order %s is %s", ErrConflict, order.OrderID, current.PaymentStatus)
	}

	s.Logger.LogPayment("CONFIRM", order.OrderID, fmt.Sprintf("Payment %s confirmed, order placed", gatewayPaymentID))

	full, err := s.DB.GetOrderWithItems(order.OrderID)
	if err != nil {
		s.Logger.LogDatabase("SELECT", "orders", fmt.Sprintf("Failed to load confirmed order %s for notification: %v", order.OrderID, err))
		return nil
	}

	if s.Kafka != nil {
		if err := s.Kafka.PublishOrderPlaced(*full); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish order.placed for %s: %v", order.OrderID, err))
		}
	}
	if s.Live != nil {
		s.Live.EmitOrderPlaced(*full)
	}

	return nil
}
