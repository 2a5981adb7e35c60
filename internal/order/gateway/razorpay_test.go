package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"ms-ordering/internal/config"
	"ms-ordering/internal/logger"

	"github.com/stretchr/testify/assert"
)

const (
	testKeySecret     = "test_key_secret"
	testWebhookSecret = "test_webhook_secret"
)

func newTestGateway(t *testing.T) *Razorpay {
	t.Helper()
	return NewRazorpay(config.GatewayConfig{
		KeyID:         "rzp_test_key",
		KeySecret:     testKeySecret,
		WebhookSecret: testWebhookSecret,
		Currency:      "INR",
		Timeout:       5 * time.Second,
	}, logger.NewLogger())
}

func hmacHex(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyPaymentSignature(t *testing.T) {
	g := newTestGateway(t)

	orderID := "order_MkWq3b0Zl8Xg2f"
	paymentID := "pay_MkWqB7d9Sx1a4c"
	signature := hmacHex(testKeySecret, orderID+"|"+paymentID)

	assert.True(t, g.VerifyPaymentSignature(orderID, paymentID, signature))
}

func TestVerifyPaymentSignatureRejectsWrongPaymentID(t *testing.T) {
	g := newTestGateway(t)

	orderID := "order_MkWq3b0Zl8Xg2f"
	signature := hmacHex(testKeySecret, orderID+"|pay_real")

	// Signature computed over a different payment id must not verify.
	assert.False(t, g.VerifyPaymentSignature(orderID, "pay_forged", signature))
}

func TestVerifyPaymentSignatureRejectsWrongSecret(t *testing.T) {
	g := newTestGateway(t)

	orderID := "order_MkWq3b0Zl8Xg2f"
	paymentID := "pay_MkWqB7d9Sx1a4c"
	signature := hmacHex("not_the_secret", orderID+"|"+paymentID)

	assert.False(t, g.VerifyPaymentSignature(orderID, paymentID, signature))
}

func TestVerifyWebhookSignature(t *testing.T) {
	g := newTestGateway(t)

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_x","order_id":"order_x"}}}}`)
	signature := hmacHex(testWebhookSecret, string(body))

	assert.True(t, g.VerifyWebhookSignature(body, signature))
}

func TestVerifyWebhookSignatureRejectsTamperedBody(t *testing.T) {
	g := newTestGateway(t)

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_x","order_id":"order_x"}}}}`)
	signature := hmacHex(testWebhookSecret, string(body))

	tampered := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_y","order_id":"order_x"}}}}`)

	// Original header signature over a modified body must be rejected.
	assert.False(t, g.VerifyWebhookSignature(tampered, signature))
}

func TestVerifyWebhookSignatureRejectsEmptyHeader(t *testing.T) {
	g := newTestGateway(t)

	assert.False(t, g.VerifyWebhookSignature([]byte(`{}`), ""))
}
