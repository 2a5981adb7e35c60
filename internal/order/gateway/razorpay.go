package gateway

import (
	"errors"
	"fmt"
	"math"

	"ms-ordering/internal/config"
	"ms-ordering/internal/logger"
	"ms-ordering/internal/models"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

// Razorpay bridges to the payment processor. It is constructed once in main
// and injected wherever payment work happens, so tests can swap in a double.
type Razorpay struct {
	client        *razorpay.Client
	keySecret     string
	webhookSecret string
	currency      string
	log           *logger.Logger
}

func NewRazorpay(cfg config.GatewayConfig, log *logger.Logger) *Razorpay {
	client := razorpay.NewClient(cfg.KeyID, cfg.KeySecret)
	if cfg.Timeout > 0 {
		// The SDK takes whole seconds as an int16.
		client.SetTimeout(int16(cfg.Timeout.Seconds()))
	}

	return &Razorpay{
		client:        client,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
		currency:      cfg.Currency,
		log:           log,
	}
}

func (g *Razorpay) Currency() string {
	return g.currency
}

// OpenIntent creates the remote payment intent for the order's total, in
// minor currency units, with our order id as the receipt reference. The
// caller is responsible for rolling back the order if this fails.
func (g *Razorpay) OpenIntent(order *models.Order) (string, error) {
	amountMinor := int64(math.Round(order.TotalAmount * 100))

	data := map[string]interface{}{
		"amount":   amountMinor,
		"currency": g.currency,
		"receipt":  order.OrderID,
		"notes": map[string]interface{}{
			"order_id":   order.OrderID,
			"canteen_id": order.CanteenID,
		},
	}

	body, err := g.client.Order.Create(data, nil)
	if err != nil {
		g.log.Error("PAYMENT", fmt.Sprintf("Failed to create gateway order for %s: %v", order.OrderID, err))
		return "", fmt.Errorf("create gateway order: %w", err)
	}

	gatewayOrderID, ok := body["id"].(string)
	if !ok || gatewayOrderID == "" {
		g.log.Error("PAYMENT", fmt.Sprintf("Gateway response for %s is missing an order id", order.OrderID))
		return "", errors.New("gateway response missing order id")
	}

	g.log.LogPayment("INTENT", order.OrderID, fmt.Sprintf("Opened gateway order %s for %d %s (minor units)", gatewayOrderID, amountMinor, g.currency))
	return gatewayOrderID, nil
}

// VerifyPaymentSignature authenticates the client's post-payment callback.
// The signature is an HMAC-SHA256 over "<gatewayOrderID>|<gatewayPaymentID>"
// with the key secret; the SDK compares it in constant time.
func (g *Razorpay) VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	params := map[string]interface{}{
		"razorpay_order_id":   gatewayOrderID,
		"razorpay_payment_id": gatewayPaymentID,
	}
	return utils.VerifyPaymentSignature(params, signature, g.keySecret)
}

// VerifyWebhookSignature authenticates a webhook against the raw, unparsed
// body. The webhook secret is distinct from the key secret: the two channels
// carry different payloads and are verified independently.
func (g *Razorpay) VerifyWebhookSignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	return utils.VerifyWebhookSignature(string(body), signature, g.webhookSecret)
}
