package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ms-ordering/internal/models"

	"github.com/uptrace/bun"
)

var ErrOrderNotFound = errors.New("order not found")

type DB struct {
	Bun *bun.DB
}

// ---------------- ORDERS ----------------

// CreateOrder inserts the order and its line-item snapshots in one
// transaction. Orders are born pending/pending.
func (d *DB) CreateOrder(order models.Order, items []models.OrderItem) error {
	ctx := context.Background()
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&order).Exec(ctx); err != nil {
			return err
		}
		if len(items) > 0 {
			if _, err := tx.NewInsert().Model(&items).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *DB) GetOrderByID(id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("order_id = ?", id).
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByGatewayOrderID is the webhook lookup path: the gateway only knows
// its own order identifier, never ours.
func (d *DB) GetOrderByGatewayOrderID(gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("gateway_order_id = ?", gatewayOrderID).
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) GetOrderWithItems(id string) (*models.OrderWithItems, error) {
	order, err := d.GetOrderByID(id)
	if err != nil {
		return nil, err
	}

	var items []models.OrderItem
	err = d.Bun.NewSelect().
		Model(&items).
		Where("order_id = ?", id).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}

	return &models.OrderWithItems{
		Order: *order,
		Items: items,
	}, nil
}

// GetOrdersByUserID returns a user's order history, newest first, with line
// items attached.
func (d *DB) GetOrdersByUserID(userID string) ([]models.OrderWithItems, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}

	if len(orders) == 0 {
		return []models.OrderWithItems{}, nil
	}

	orderIDs := make([]string, len(orders))
	for i, order := range orders {
		orderIDs[i] = order.OrderID
	}

	var items []models.OrderItem
	err = d.Bun.NewSelect().
		Model(&items).
		Where("order_id IN (?)", bun.In(orderIDs)).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}

	itemsByOrder := make(map[string][]models.OrderItem)
	for _, item := range items {
		itemsByOrder[item.OrderID] = append(itemsByOrder[item.OrderID], item)
	}

	result := make([]models.OrderWithItems, len(orders))
	for i, order := range orders {
		result[i] = models.OrderWithItems{
			Order: order,
			Items: itemsByOrder[order.OrderID],
		}
		if result[i].Items == nil {
			result[i].Items = []models.OrderItem{}
		}
	}

	return result, nil
}

// SetGatewayOrder stores the remote intent identifier after it is opened.
func (d *DB) SetGatewayOrder(orderID, gatewayOrderID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("gateway_order_id = ?", gatewayOrderID).
		Set("updated_at = ?", time.Now()).
		Where("order_id = ?", orderID).
		Exec(context.Background())
	return err
}

// DeleteOrder removes an order and its items. Only the gateway-failure
// rollback at creation time uses this; settled orders are never hard-deleted.
func (d *DB) DeleteOrder(orderID string) error {
	ctx := context.Background()
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.OrderItem)(nil)).
			Where("order_id = ?", orderID).
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().
			Model((*models.Order)(nil)).
			Where("order_id = ?", orderID).
			Exec(ctx)
		return err
	})
}

// ---------------- PAYMENT TRANSITIONS ----------------

// MarkPaymentPaid is the single atomic confirmation point. The conditional
// WHERE makes it a compare-and-swap: exactly one caller can move an order
// from payment pending to paid, no matter how many confirmations race. The
// returned bool reports whether this call won.
func (d *DB) MarkPaymentPaid(orderID, gatewayPaymentID, gatewaySignature string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("payment_status = ?", models.PaymentPaid).
		Set("status = ?", models.StatusPlaced).
		Set("gateway_payment_id = ?", gatewayPaymentID).
		Set("gateway_signature = ?", gatewaySignature).
		Set("updated_at = ?", time.Now()).
		Where("order_id = ?", orderID).
		Where("payment_status = ?", models.PaymentPending).
		Exec(context.Background())
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// MarkPaymentFailed only applies while the payment is still pending. A paid
// order can never be downgraded by a late failure signal.
func (d *DB) MarkPaymentFailed(orderID string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("payment_status = ?", models.PaymentFailed).
		Set("updated_at = ?", time.Now()).
		Where("order_id = ?", orderID).
		Where("payment_status = ?", models.PaymentPending).
		Exec(context.Background())
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// ---------------- FULFILMENT ----------------

// AdvanceStatus moves the fulfilment status forward. The WHERE on the current
// status makes concurrent updates lose cleanly instead of double-applying.
func (d *DB) AdvanceStatus(orderID string, from, to models.OrderStatus) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now()).
		Where("order_id = ?", orderID).
		Where("status = ?", from).
		Exec(context.Background())
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// CancelOrder cancels an order that is still pending or placed. Cancellation
// is a status change with a reason, never a row removal. refundRequired is
// set when the order was already paid, flagging it for manual follow-up.
func (d *DB) CancelOrder(orderID, reason string, refundRequired bool) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", models.StatusCancelled).
		Set("cancellation_reason = ?", reason).
		Set("refund_required = ?", refundRequired).
		Set("updated_at = ?", time.Now()).
		Where("order_id = ?", orderID).
		Where("status IN (?)", bun.In([]models.OrderStatus{models.StatusPending, models.StatusPlaced})).
		Exec(context.Background())
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// ---------------- ADMIN ----------------

// OverrideOrder writes the order unconditionally. Only the admin override
// path uses this; everything else goes through the conditional transitions.
func (d *DB) OverrideOrder(order models.Order) error {
	_, err := d.Bun.NewUpdate().
		Model(&order).
		Column("canteen_id", "status", "payment_status", "cancellation_reason", "refund_required", "updated_at").
		Where("order_id = ?", order.OrderID).
		Exec(context.Background())
	return err
}
