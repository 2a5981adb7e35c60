package models

// WebhookEvent is the closed set of gateway webhook event types this service
// reconciles. Anything else is acknowledged and ignored.
type WebhookEvent string

const (
	EventPaymentCaptured WebhookEvent = "payment.captured"
	EventPaymentFailed   WebhookEvent = "payment.failed"
	EventOrderPaid       WebhookEvent = "order.paid"
)

// WebhookPayload mirrors the gateway's webhook envelope. Only the fields the
// reconciliation engine needs are mapped.
type WebhookPayload struct {
	Event   WebhookEvent `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				Status           string `json:"status"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity struct {
				ID      string `json:"id"`
				Receipt string `json:"receipt"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
	CreatedAt int64 `json:"created_at"`
}

// GatewayOrderID extracts the gateway-side order identifier for the event,
// which is the only key the webhook channel can use to find our order.
func (w *WebhookPayload) GatewayOrderID() string {
	if id := w.Payload.Payment.Entity.OrderID; id != "" {
		return id
	}
	return w.Payload.Order.Entity.ID
}

// GatewayPaymentID extracts the gateway-side payment identifier, if present.
func (w *WebhookPayload) GatewayPaymentID() string {
	return w.Payload.Payment.Entity.ID
}
