package order_test

import (
	"errors"
	"testing"

	"ms-ordering/internal/catalog"
	"ms-ordering/internal/logger"
	"ms-ordering/internal/models"
	"ms-ordering/internal/order"
	"ms-ordering/internal/order/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ---------------- MOCKS ----------------

type MockDB struct {
	mock.Mock
}

func (m *MockDB) CreateOrder(o models.Order, items []models.OrderItem) error {
	args := m.Called(o, items)
	return args.Error(0)
}

func (m *MockDB) GetOrderByID(id string) (*models.Order, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockDB) GetOrderByGatewayOrderID(gatewayOrderID string) (*models.Order, error) {
	args := m.Called(gatewayOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockDB) GetOrderWithItems(id string) (*models.OrderWithItems, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrderWithItems), args.Error(1)
}

func (m *MockDB) GetOrdersByUserID(userID string) ([]models.OrderWithItems, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OrderWithItems), args.Error(1)
}

func (m *MockDB) SetGatewayOrder(orderID, gatewayOrderID string) error {
	args := m.Called(orderID, gatewayOrderID)
	return args.Error(0)
}

func (m *MockDB) DeleteOrder(orderID string) error {
	args := m.Called(orderID)
	return args.Error(0)
}

func (m *MockDB) MarkPaymentPaid(orderID, gatewayPaymentID, gatewaySignature string) (bool, error) {
	args := m.Called(orderID, gatewayPaymentID, gatewaySignature)
	return args.Bool(0), args.Error(1)
}

func (m *MockDB) MarkPaymentFailed(orderID string) (bool, error) {
	args := m.Called(orderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDB) AdvanceStatus(orderID string, from, to models.OrderStatus) (bool, error) {
	args := m.Called(orderID, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockDB) CancelOrder(orderID, reason string, refundRequired bool) (bool, error) {
	args := m.Called(orderID, reason, refundRequired)
	return args.Bool(0), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) OpenIntent(o *models.Order) (string, error) {
	args := m.Called(o)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	args := m.Called(gatewayOrderID, gatewayPaymentID, signature)
	return args.Bool(0)
}

func (m *MockGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	args := m.Called(body, signature)
	return args.Bool(0)
}

func (m *MockGateway) Currency() string {
	args := m.Called()
	return args.String(0)
}

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) GetCanteen(canteenID string) (*models.Canteen, error) {
	args := m.Called(canteenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Canteen), args.Error(1)
}

func (m *MockCatalog) GetItems(canteenID string, itemIDs []string) (map[string]models.MenuItem, error) {
	args := m.Called(canteenID, itemIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]models.MenuItem), args.Error(1)
}

type MockLock struct {
	mock.Mock
}

func (m *MockLock) LockPayment(orderID string) (bool, error) {
	args := m.Called(orderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockLock) UnlockPayment(orderID string) error {
	args := m.Called(orderID)
	return args.Error(0)
}

type MockKafka struct {
	mock.Mock
}

func (m *MockKafka) PublishOrderPlaced(o models.OrderWithItems) error {
	args := m.Called(o)
	return args.Error(0)
}

func (m *MockKafka) PublishOrderCancelled(o models.Order) error {
	args := m.Called(o)
	return args.Error(0)
}

type MockLive struct {
	mock.Mock
}

func (m *MockLive) EmitOrderPlaced(o models.OrderWithItems) {
	m.Called(o)
}

type serviceFixture struct {
	db      *MockDB
	gateway *MockGateway
	catalog *MockCatalog
	lock    *MockLock
	kafka   *MockKafka
	live    *MockLive
	svc     *order.OrderService
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		db:      new(MockDB),
		gateway: new(MockGateway),
		catalog: new(MockCatalog),
		lock:    new(MockLock),
		kafka:   new(MockKafka),
		live:    new(MockLive),
	}
	f.svc = order.NewOrderService(f.db, f.gateway, f.catalog, f.lock, f.kafka, f.live, logger.NewLogger())
	return f
}

func openCanteen() *models.Canteen {
	return &models.Canteen{CanteenID: "cant_1", Name: "North Mess", Open: true, Approved: true}
}

func menuSnapshot() map[string]models.MenuItem {
	return map[string]models.MenuItem{
		"item_a": {ItemID: "item_a", CanteenID: "cant_1", Name: "Masala Dosa", Price: 100.0, Stock: 25},
	}
}

// ---------------- PLACE ORDER ----------------

func TestPlaceOrder(t *testing.T) {
	f := newServiceFixture()

	f.catalog.On("GetCanteen", "cant_1").Return(openCanteen(), nil)
	f.catalog.On("GetItems", "cant_1", []string{"item_a"}).Return(menuSnapshot(), nil)
	f.db.On("CreateOrder", mock.AnythingOfType("models.Order"), mock.AnythingOfType("[]models.OrderItem")).Return(nil)
	f.gateway.On("OpenIntent", mock.AnythingOfType("*models.Order")).Return("rzp_order_123", nil)
	f.db.On("SetGatewayOrder", mock.AnythingOfType("string"), "rzp_order_123").Return(nil)
	f.gateway.On("Currency").Return("INR")

	resp, err := f.svc.PlaceOrder("user_1", models.OrderRequest{
		CanteenID: "cant_1",
		Items:     []models.CartItem{{ItemID: "item_a", Quantity: 2}},
	})
	require.NoError(t, err)

	assert.Equal(t, "user_1", resp.Order.UserID)
	assert.Equal(t, models.StatusPending, resp.Order.Status)
	assert.Equal(t, models.PaymentPending, resp.Order.PaymentStatus)
	assert.Equal(t, 200.0, resp.Order.ItemTotal)
	assert.Equal(t, 10.0, resp.Order.Tax)
	assert.Equal(t, 20.0, resp.Order.DeliveryFee)
	assert.Equal(t, 230.0, resp.Order.TotalAmount)
	assert.Equal(t, "rzp_order_123", resp.Payment.GatewayOrderID)
	assert.Equal(t, 230.0, resp.Payment.Amount)
	assert.Equal(t, "INR", resp.Payment.Currency)
	require.Len(t, resp.Order.Items, 1)
	assert.Equal(t, "item_a", resp.Order.Items[0].MenuItemID)
	assert.Equal(t, 100.0, resp.Order.Items[0].UnitPrice)

	f.db.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
}

func TestPlaceOrderIgnoresClientPrices(t *testing.T) {
	// The request has no price fields at all; totals come from the snapshot.
	f := newServiceFixture()

	snapshot := map[string]models.MenuItem{
		"item_a": {ItemID: "item_a", CanteenID: "cant_1", Name: "Masala Dosa", Price: 62.5, Stock: 25},
	}
	f.catalog.On("GetCanteen", "cant_1").Return(openCanteen(), nil)
	f.catalog.On("GetItems", "cant_1", []string{"item_a"}).Return(snapshot, nil)
	f.db.On("CreateOrder", mock.Anything, mock.Anything).Return(nil)
	f.gateway.On("OpenIntent", mock.Anything).Return("rzp_order_456", nil)
	f.db.On("SetGatewayOrder", mock.Anything, "rzp_order_456").Return(nil)
	f.gateway.On("Currency").Return("INR")

	resp, err := f.svc.PlaceOrder("user_1", models.OrderRequest{
		CanteenID: "cant_1",
		Items:     []models.CartItem{{ItemID: "item_a", Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, 125.0, resp.Order.ItemTotal)
	assert.Equal(t, 6.25, resp.Order.Tax)
	assert.Equal(t, 151.25, resp.Order.TotalAmount)
}

func TestPlaceOrderGatewayFailureRollsBack(t *testing.T) {
	f := newServiceFixture()

	f.catalog.On("GetCanteen", "cant_1").Return(openCanteen(), nil)
	f.catalog.On("GetItems", "cant_1", []string{"item_a"}).Return(menuSnapshot(), nil)
	f.db.On("CreateOrder", mock.Anything, mock.Anything).Return(nil)
	f.gateway.On("OpenIntent", mock.Anything).Return("", errors.New("gateway timeout"))
	f.db.On("DeleteOrder", mock.AnythingOfType("string")).Return(nil)

	_, err := f.svc.PlaceOrder("user_1", models.OrderRequest{
		CanteenID: "cant_1",
		Items:     []models.CartItem{{ItemID: "item_a", Quantity: 1}},
	})
	assert.ErrorIs(t, err, order.ErrGatewayUnavailable)

	f.db.AssertCalled(t, "DeleteOrder", mock.AnythingOfType("string"))
}

func TestPlaceOrderUnknownCanteen(t *testing.T) {
	f := newServiceFixture()

	f.catalog.On("GetCanteen", "cant_missing").Return(nil, catalog.ErrNotFound)

	_, err := f.svc.PlaceOrder("user_1", models.OrderRequest{
		CanteenID: "cant_missing",
		Items:     []models.CartItem{{ItemID: "item_a", Quantity: 1}},
	})
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestPlaceOrderClosedCanteen(t *testing.T) {
	f := newServiceFixture()

	closed := &models.Canteen{CanteenID: "cant_1", Open: false, Approved: true}
	f.catalog.On("GetCanteen", "cant_1").Return(closed, nil)
	f.catalog.On("GetItems", "cant_1", []string{"item_a"}).Return(menuSnapshot(), nil)

	_, err := f.svc.PlaceOrder("user_1", models.OrderRequest{
		CanteenID: "cant_1",
		Items:     []models.CartItem{{ItemID: "item_a", Quantity: 1}},
	})
	assert.ErrorIs(t, err, order.ErrValidation)
	f.db.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	f := newServiceFixture()

	_, err := f.svc.PlaceOrder("user_1", models.OrderRequest{CanteenID: "cant_1"})
	assert.ErrorIs(t, err, order.ErrValidation)
}

// ---------------- READS ----------------

func TestGetOrderEnforcesOwnership(t *testing.T) {
	f := newServiceFixture()

	stored := &models.OrderWithItems{Order: models.Order{OrderID: "ord_1", UserID: "user_1"}}
	f.db.On("GetOrderWithItems", "ord_1").Return(stored, nil)

	got, err := f.svc.GetOrder("user_1", "ord_1")
	require.NoError(t, err)
	assert.Equal(t, "ord_1", got.OrderID)

	_, err = f.svc.GetOrder("user_2", "ord_1")
	assert.ErrorIs(t, err, order.ErrForbidden)
}

func TestGetOrderNotFound(t *testing.T) {
	f := newServiceFixture()

	f.db.On("GetOrderWithItems", "ord_missing").Return(nil, db.ErrOrderNotFound)

	_, err := f.svc.GetOrder("user_1", "ord_missing")
	assert.ErrorIs(t, err, order.ErrNotFound)
}

// ---------------- CANCEL ----------------

func TestCancelOrder(t *testing.T) {
	f := newServiceFixture()

	stored := &models.Order{OrderID: "ord_1", UserID: "user_1", Status: models.StatusPending, PaymentStatus: models.PaymentPending}
	f.db.On("GetOrderByID", "ord_1").Return(stored, nil)
	f.db.On("CancelOrder", "ord_1", "changed my mind", false).Return(true, nil)
	f.kafka.On("PublishOrderCancelled", mock.AnythingOfType("models.Order")).Return(nil)

	err := f.svc.CancelOrder("user_1", "ord_1", "changed my mind")
	require.NoError(t, err)
	f.db.AssertExpectations(t)
}

func TestCancelPaidOrderFlagsRefund(t *testing.T) {
	f := newServiceFixture()

	stored := &models.Order{OrderID: "ord_1", UserID: "user_1", Status: models.StatusPlaced, PaymentStatus: models.PaymentPaid}
	f.db.On("GetOrderByID", "ord_1").Return(stored, nil)
	f.db.On("CancelOrder", "ord_1", "", true).Return(true, nil)
	f.kafka.On("PublishOrderCancelled", mock.AnythingOfType("models.Order")).Return(nil)

	err := f.svc.CancelOrder("user_1", "ord_1", "")
	require.NoError(t, err)
	f.db.AssertCalled(t, "CancelOrder", "ord_1", "", true)
}

func TestCancelOrderWrongOwner(t *testing.T) {
	f := newServiceFixture()

	stored := &models.Order{OrderID: "ord_1", UserID: "user_1", Status: models.StatusPending}
	f.db.On("GetOrderByID", "ord_1").Return(stored, nil)

	err := f.svc.CancelOrder("user_2", "ord_1", "")
	assert.ErrorIs(t, err, order.ErrForbidden)
	f.db.AssertNotCalled(t, "CancelOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelOrderNotCancellable(t *testing.T) {
	f := newServiceFixture()

	stored := &models.Order{OrderID: "ord_1", UserID: "user_1", Status: models.StatusPreparing, PaymentStatus: models.PaymentPaid}
	f.db.On("GetOrderByID", "ord_1").Return(stored, nil)
	f.db.On("CancelOrder", "ord_1", "", true).Return(false, nil)

	err := f.svc.CancelOrder("user_1", "ord_1", "")
	assert.ErrorIs(t, err, order.ErrValidation)
	f.kafka.AssertNotCalled(t, "PublishOrderCancelled", mock.Anything)
}

// ---------------- STATUS ----------------

func TestAdvanceStatus(t *testing.T) {
	f := newServiceFixture()

	stored := &models.Order{OrderID: "ord_1", Status: models.StatusPlaced, PaymentStatus: models.PaymentPaid}
	f.db.On("GetOrderByID", "ord_1").Return(stored, nil)
	f.db.On("AdvanceStatus", "ord_1", models.StatusPlaced, models.StatusPreparing).Return(true, nil)

	updated, err := f.svc.AdvanceStatus("ord_1", models.StatusPreparing)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPreparing, updated.Status)
}

func TestAdvanceStatusBackwardsIsConflict(t *testing.T) {
	f := newServiceFixture()

	stored := &models.Order{OrderID: "ord_1", Status: models.StatusReady, PaymentStatus: models.PaymentPaid}
	f.db.On("GetOrderByID", "ord_1").Return(stored, nil)

	_, err := f.svc.AdvanceStatus("ord_1", models.StatusPreparing)
	assert.ErrorIs(t, err, order.ErrConflict)
	f.db.AssertNotCalled(t, "AdvanceStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestAdvanceStatusUnpaidOrder(t *testing.T) {
	f := newServiceFixture()

	stored := &models.Order{OrderID: "ord_1", Status: models.StatusPending, PaymentStatus: models.PaymentPending}
	f.db.On("GetOrderByID", "ord_1").Return(stored, nil)

	_, err := f.svc.AdvanceStatus("ord_1", models.StatusPreparing)
	assert.ErrorIs(t, err, order.ErrConflict)
}

func TestAdvanceStatusCancelledOrder(t *testing.T) {
	f := newServiceFixture()

	stored := &models.Order{OrderID: "ord_1", Status: models.StatusCancelled}
	f.db.On("GetOrderByID", "ord_1").Return(stored, nil)

	_, err := f.svc.AdvanceStatus("ord_1", models.StatusPreparing)
	assert.ErrorIs(t, err, order.ErrConflict)
}

func TestAdvanceStatusConcurrentMove(t *testing.T) {
	f := newServiceFixture()

	stored := &models.Order{OrderID: "ord_1", Status: models.StatusPlaced, PaymentStatus: models.PaymentPaid}
	f.db.On("GetOrderByID", "ord_1").Return(stored, nil)
	f.db.On("AdvanceStatus", "ord_1", models.StatusPlaced, models.StatusPreparing).Return(false, nil)

	_, err := f.svc.AdvanceStatus("ord_1", models.StatusPreparing)
	assert.ErrorIs(t, err, order.ErrConflict)
}

func TestAdvanceStatusRejectsCancelledTarget(t *testing.T) {
	f := newServiceFixture()

	_, err := f.svc.AdvanceStatus("ord_1", models.StatusCancelled)
	assert.ErrorIs(t, err, order.ErrValidation)
}
