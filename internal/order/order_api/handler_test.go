package order_api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ms-ordering/internal/logger"
	"ms-ordering/internal/models"
	"ms-ordering/internal/order"
	"ms-ordering/internal/order/db"
	"ms-ordering/internal/order/order_api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGateway accepts or rejects every signature wholesale; the HTTP tests
// only care about status mapping, not crypto.
type stubGateway struct {
	webhookOK bool
}

func (s *stubGateway) OpenIntent(o *models.Order) (string, error) { return "rzp_order_1", nil }
func (s *stubGateway) VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	return true
}
func (s *stubGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	return s.webhookOK
}
func (s *stubGateway) Currency() string { return "INR" }

// stubDB serves a single in-memory order.
type stubDB struct {
	order *models.Order
	paid  bool
}

func (s *stubDB) CreateOrder(o models.Order, items []models.OrderItem) error { return nil }
func (s *stubDB) GetOrderByID(id string) (*models.Order, error) {
	if s.order == nil || s.order.OrderID != id {
		return nil, db.ErrOrderNotFound
	}
	stored := *s.order
	return &stored, nil
}
func (s *stubDB) GetOrderByGatewayOrderID(gatewayOrderID string) (*models.Order, error) {
	if s.order == nil || s.order.GatewayOrderID != gatewayOrderID {
		return nil, db.ErrOrderNotFound
	}
	stored := *s.order
	return &stored, nil
}
func (s *stubDB) GetOrderWithItems(id string) (*models.OrderWithItems, error) {
	o, err := s.GetOrderByID(id)
	if err != nil {
		return nil, err
	}
	return &models.OrderWithItems{Order: *o, Items: []models.OrderItem{}}, nil
}
func (s *stubDB) GetOrdersByUserID(userID string) ([]models.OrderWithItems, error) {
	return []models.OrderWithItems{}, nil
}
func (s *stubDB) SetGatewayOrder(orderID, gatewayOrderID string) error { return nil }
func (s *stubDB) DeleteOrder(orderID string) error                     { return nil }
func (s *stubDB) MarkPaymentPaid(orderID, gatewayPaymentID, gatewaySignature string) (bool, error) {
	if s.paid {
		return false, nil
	}
	s.paid = true
	s.order.PaymentStatus = models.PaymentPaid
	s.order.Status = models.StatusPlaced
	return true, nil
}
func (s *stubDB) MarkPaymentFailed(orderID string) (bool, error) {
	if s.order.PaymentStatus != models.PaymentPending {
		return false, nil
	}
	s.order.PaymentStatus = models.PaymentFailed
	return true, nil
}
func (s *stubDB) AdvanceStatus(orderID string, from, to models.OrderStatus) (bool, error) {
	if s.order.Status != from {
		return false, nil
	}
	s.order.Status = to
	return true, nil
}
func (s *stubDB) CancelOrder(orderID, reason string, refundRequired bool) (bool, error) {
	return true, nil
}

func newWebhookHandler(gw *stubGateway, store *stubDB) *order_api.Handler {
	log := logger.NewLogger()
	svc := order.NewOrderService(store, gw, nil, nil, nil, nil, log)
	return order_api.NewHandler(svc, log)
}

func pendingStoredOrder() *models.Order {
	return &models.Order{
		OrderID:        "ord_1",
		UserID:         "user_1",
		CanteenID:      "cant_1",
		Status:         models.StatusPending,
		PaymentStatus:  models.PaymentPending,
		GatewayOrderID: "rzp_order_1",
	}
}

func TestWebhookInvalidSignature(t *testing.T) {
	h := newWebhookHandler(&stubGateway{webhookOK: false}, &stubDB{order: pendingStoredOrder()})

	body := []byte(`{"event":"payment.captured"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/webhook", bytes.NewReader(body))
	req.Header.Set("X-Razorpay-Signature", "bad")
	rec := httptest.NewRecorder()

	h.Webhook(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookCaptured(t *testing.T) {
	store := &stubDB{order: pendingStoredOrder()}
	h := newWebhookHandler(&stubGateway{webhookOK: true}, store)

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"rzp_pay_1","order_id":"rzp_order_1","status":"captured"}}}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/webhook", bytes.NewReader(body))
	req.Header.Set("X-Razorpay-Signature", "good")
	rec := httptest.NewRecorder()

	h.Webhook(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, models.PaymentPaid, store.order.PaymentStatus)
}

func TestWebhookDuplicateDeliveryStays200(t *testing.T) {
	store := &stubDB{order: pendingStoredOrder()}
	h := newWebhookHandler(&stubGateway{webhookOK: true}, store)

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"rzp_pay_1","order_id":"rzp_order_1","status":"captured"}}}}`)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/webhook", bytes.NewReader(body))
		req.Header.Set("X-Razorpay-Signature", "good")
		rec := httptest.NewRecorder()
		h.Webhook(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestWebhookUnknownOrder(t *testing.T) {
	h := newWebhookHandler(&stubGateway{webhookOK: true}, &stubDB{order: pendingStoredOrder()})

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"rzp_pay_1","order_id":"rzp_order_ghost","status":"captured"}}}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/webhook", bytes.NewReader(body))
	req.Header.Set("X-Razorpay-Signature", "good")
	rec := httptest.NewRecorder()

	h.Webhook(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrderRejectsBadBody(t *testing.T) {
	h := newWebhookHandler(&stubGateway{}, &stubDB{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader([]byte(`{`)))
	rec := httptest.NewRecorder()

	h.CreateOrder(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
