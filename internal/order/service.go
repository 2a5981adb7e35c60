package order

import (
	"errors"
	"fmt"
	"time"

	"ms-ordering/internal/catalog"
	"ms-ordering/internal/logger"
	"ms-ordering/internal/models"
	"ms-ordering/internal/order/db"
	"ms-ordering/internal/pricing"
	"ms-ordering/internal/utils"

	"github.com/google/uuid"
)

// DBLayer is the ledger the service writes orders through. *db.DB satisfies it
// in production; tests inject a mock.
type DBLayer interface {
	CreateOrder(order models.Order, items []models.OrderItem) error
	GetOrderByID(id string) (*models.Order, error)
	GetOrderByGatewayOrderID(gatewayOrderID string) (*models.Order, error)
	GetOrderWithItems(id string) (*models.OrderWithItems, error)
	GetOrdersByUserID(userID string) ([]models.OrderWithItems, error)
	SetGatewayOrder(orderID, gatewayOrderID string) error
	DeleteOrder(orderID string) error
	MarkPaymentPaid(orderID, gatewayPaymentID, gatewaySignature string) (bool, error)
	MarkPaymentFailed(orderID string) (bool, error)
	AdvanceStatus(orderID string, from, to models.OrderStatus) (bool, error)
	CancelOrder(orderID, reason string, refundRequired bool) (bool, error)
}

// PaymentGateway abstracts the payment processor.
type PaymentGateway interface {
	OpenIntent(order *models.Order) (string, error)
	VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
	Currency() string
}

// CatalogGateway reads canteen and menu data for pricing.
type CatalogGateway interface {
	GetCanteen(canteenID string) (*models.Canteen, error)
	GetItems(canteenID string, itemIDs []string) (map[string]models.MenuItem, error)
}

// RedisLock serializes concurrent payment confirmations for one order. It is
// best effort; the ledger's conditional update is the real guard.
type RedisLock interface {
	LockPayment(orderID string) (bool, error)
	UnlockPayment(orderID string) error
}

// KafkaPublisher announces settled order events to downstream consumers.
type KafkaPublisher interface {
	PublishOrderPlaced(order models.OrderWithItems) error
	PublishOrderCancelled(order models.Order) error
}

// LiveOrderFeed pushes paid orders to canteen dashboards over SSE.
type LiveOrderFeed interface {
	EmitOrderPlaced(order models.OrderWithItems)
}

type OrderService struct {
	DB      DBLayer
	Gateway PaymentGateway
	Catalog CatalogGateway
	Lock    RedisLock
	Kafka   KafkaPublisher
	Live    LiveOrderFeed
	Logger  *logger.Logger
}

func NewOrderService(dbLayer DBLayer, gw PaymentGateway, cat CatalogGateway, lock RedisLock, kafka KafkaPublisher, live LiveOrderFeed, log *logger.Logger) *OrderService {
	return &OrderService{
		DB:      dbLayer,
		Gateway: gw,
		Catalog: cat,
		Lock:    lock,
		Kafka:   kafka,
		Live:    live,
		Logger:  log,
	}
}

// PlaceOrder prices the cart server-side, persists the order as
// pending/pending, and opens a payment intent at the gateway. Client-sent
// prices are never trusted; the catalog snapshot is the only price source.
// If the gateway call fails the freshly created order is rolled back, so no
// unpayable orders are left behind.
func (s *OrderService) PlaceOrder(userID string, req models.OrderRequest) (*models.OrderResponse, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user", ErrValidation)
	}
	if req.CanteenID == "" {
		return nil, fmt.Errorf("%w: canteen_id is required", ErrValidation)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", ErrValidation)
	}

	canteen, err := s.Catalog.GetCanteen(req.CanteenID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, fmt.Errorf("%w: canteen %s", ErrNotFound, req.CanteenID)
		}
		return nil, err
	}

	itemIDs := make([]string, len(req.Items))
	for i, entry := range req.Items {
		itemIDs[i] = entry.ItemID
	}
	snapshot, err := s.Catalog.GetItems(req.CanteenID, itemIDs)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, fmt.Errorf("%w: items for canteen %s", ErrNotFound, req.CanteenID)
		}
		return nil, err
	}

	lines, totals, err := pricing.Quote(*canteen, snapshot, req.Items)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	orderID := utils.GenerateOrderID()
	now := time.Now()

	order := models.Order{
		OrderID:             orderID,
		UserID:              userID,
		CanteenID:           req.CanteenID,
		Status:              models.StatusPending,
		PaymentStatus:       models.PaymentPending,
		ItemTotal:           totals.ItemTotal,
		Tax:                 totals.Tax,
		DeliveryFee:         totals.DeliveryFee,
		TotalAmount:         totals.TotalAmount,
		SpecialInstructions: req.SpecialInstructions,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	for i := range lines {
		lines[i].ItemID = uuid.New().String()
		lines[i].OrderID = orderID
	}

	if err := s.DB.CreateOrder(order, lines); err != nil {
		s.Logger.LogDatabase("INSERT", "orders", fmt.Sprintf("Failed to create order %s: %v", orderID, err))
		return nil, err
	}

	gatewayOrderID, err := s.Gateway.OpenIntent(&order)
	if err != nil {
		// Roll the order back so the user can simply retry.
		if delErr := s.DB.DeleteOrder(orderID); delErr != nil {
			s.Logger.Error("ORDER", fmt.Sprintf("Failed to roll back order %s after gateway error: %v", orderID, delErr))
		}
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if err := s.DB.SetGatewayOrder(orderID, gatewayOrderID); err != nil {
		s.Logger.LogDatabase("UPDATE", "orders", fmt.Sprintf("Failed to attach gateway order to %s: %v", orderID, err))
		return nil, err
	}
	order.GatewayOrderID = gatewayOrderID

	s.Logger.LogOrder("CREATE", orderID, fmt.Sprintf("Order created for user %s at canteen %s, total %.2f", userID, req.CanteenID, totals.TotalAmount))

	return &models.OrderResponse{
		Order: models.OrderWithItems{Order: order, Items: lines},
		Payment: models.PaymentInfo{
			GatewayOrderID: gatewayOrderID,
			Amount:         totals.TotalAmount,
			Currency:       s.Gateway.Currency(),
		},
	}, nil
}

// GetOrder returns one order with its items, enforcing ownership.
func (s *OrderService) GetOrder(userID, orderID string) (*models.OrderWithItems, error) {
	order, err := s.DB.GetOrderWithItems(orderID)
	if err != nil {
		if errors.Is(err, db.ErrOrderNotFound) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("%w: order %s belongs to another user", ErrForbidden, orderID)
	}
	return order, nil
}

// ListOrders returns the caller's order history, newest first.
func (s *OrderService) ListOrders(userID string) ([]models.OrderWithItems, error) {
	return s.DB.GetOrdersByUserID(userID)
}

// CancelOrder cancels a pending or placed order owned by the caller. If the
// order was already paid the cancellation flags it for a manual refund; this
// core records the flag but never moves money.
func (s *OrderService) CancelOrder(userID, orderID, reason string) error {
	order, err := s.DB.GetOrderByID(orderID)
	if err != nil {
		if errors.Is(err, db.ErrOrderNotFound) {
			return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		return err
	}
	if order.UserID != userID {
		return fmt.Errorf("%w: order %s belongs to another user", ErrForbidden, orderID)
	}

	refundRequired := order.PaymentStatus == models.PaymentPaid

	ok, err := s.DB.CancelOrder(orderID, reason, refundRequired)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: order %s is not in a cancellable state", ErrValidation, orderID)
	}

	if refundRequired {
		s.Logger.LogOrder("CANCEL", orderID, "Paid order cancelled, flagged for manual refund")
	} else {
		s.Logger.LogOrder("CANCEL", orderID, "Order cancelled")
	}

	order.Status = models.StatusCancelled
	order.CancellationReason = reason
	order.RefundRequired = refundRequired
	if s.Kafka != nil {
		if err := s.Kafka.PublishOrderCancelled(*order); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish cancellation for %s: %v", orderID, err))
		}
	}

	return nil
}

// AdvanceStatus moves an order forward through the fulfilment lifecycle.
// Backwards moves, jumps from cancelled, and updates to unpaid orders are all
// conflicts; staff dashboards retry after a refresh.
func (s *OrderService) AdvanceStatus(orderID string, next models.OrderStatus) (*models.Order, error) {
	if next.Rank() <= 0 {
		return nil, fmt.Errorf("%w: %q is not a valid target status", ErrValidation, next)
	}

	order, err := s.DB.GetOrderByID(orderID)
	if err != nil {
		if errors.Is(err, db.ErrOrderNotFound) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		return nil, err
	}

	cur := order.Status
	if cur == models.StatusCancelled {
		return nil, fmt.Errorf("%w: order %s is cancelled", ErrConflict, orderID)
	}
	if cur == models.StatusPending {
		return nil, fmt.Errorf("%w: order %s is awaiting payment", ErrConflict, orderID)
	}
	if next.Rank() <= cur.Rank() {
		return nil, fmt.Errorf("%w: cannot move order %s from %s to %s", ErrConflict, orderID, cur, next)
	}

	ok, err := s.DB.AdvanceStatus(orderID, cur, next)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Someone else moved the order between our read and the update.
		return nil, fmt.Errorf("%w: order %s changed concurrently", ErrConflict, orderID)
	}

	s.Logger.LogOrder("STATUS", orderID, fmt.Sprintf("Order moved from %s to %s", cur, next))

	order.Status = next
	return order, nil
}
