package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPlaced    OrderStatus = "placed"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// statusRank orders the fulfilment lifecycle. Cancelled sits outside the
// ranking: it is reachable only through the cancel path or an admin override.
var statusRank = map[OrderStatus]int{
	StatusPending:   0,
	StatusPlaced:    1,
	StatusPreparing: 2,
	StatusReady:     3,
	StatusCompleted: 4,
}

// Rank returns the position of s in the forward-only lifecycle, or -1 for
// statuses outside it (cancelled, unknown values).
func (s OrderStatus) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

func (s OrderStatus) Valid() bool {
	return s == StatusCancelled || s.Rank() >= 0
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	OrderID             string        `bun:"order_id,pk" json:"order_id"`
	UserID              string        `bun:"user_id,notnull" json:"user_id"`
	CanteenID           string        `bun:"canteen_id,notnull" json:"canteen_id"`
	Status              OrderStatus   `bun:"status,notnull" json:"status"`
	PaymentStatus       PaymentStatus `bun:"payment_status,notnull" json:"payment_status"`
	ItemTotal           float64       `bun:"item_total" json:"item_total"`
	Tax                 float64       `bun:"tax" json:"tax"`
	DeliveryFee         float64       `bun:"delivery_fee" json:"delivery_fee"`
	TotalAmount         float64       `bun:"total_amount" json:"total_amount"`
	GatewayOrderID      string        `bun:"gateway_order_id,nullzero" json:"gateway_order_id,omitempty"`
	GatewayPaymentID    string        `bun:"gateway_payment_id,nullzero" json:"gateway_payment_id,omitempty"`
	GatewaySignature    string        `bun:"gateway_signature,nullzero" json:"-"`
	SpecialInstructions string        `bun:"special_instructions,nullzero" json:"special_instructions,omitempty"`
	CancellationReason  string        `bun:"cancellation_reason,nullzero" json:"cancellation_reason,omitempty"`
	RefundRequired      bool          `bun:"refund_required" json:"refund_required"`
	Reviewed            bool          `bun:"reviewed" json:"reviewed"`
	CreatedAt           time.Time     `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt           time.Time     `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// OrderItem is a priced line-item snapshot. Name and unit price are copied
// from the catalog at checkout time so later menu edits never change an
// existing order.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ItemID     string  `bun:"item_id,pk" json:"item_id"`
	OrderID    string  `bun:"order_id,notnull" json:"order_id"`
	MenuItemID string  `bun:"menu_item_id,notnull" json:"menu_item_id"`
	Name       string  `bun:"name,notnull" json:"name"`
	UnitPrice  float64 `bun:"unit_price,notnull" json:"unit_price"`
	Quantity   int     `bun:"quantity,notnull" json:"quantity"`
}

type OrderWithItems struct {
	Order
	Items []OrderItem `json:"items"`
}

type CartItem struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"qty"`
}

type OrderRequest struct {
	CanteenID           string     `json:"canteen_id"`
	Items               []CartItem `json:"items"`
	SpecialInstructions string     `json:"special_instructions,omitempty"`
}

type PaymentInfo struct {
	GatewayOrderID string  `json:"gateway_order_id"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
}

type OrderResponse struct {
	Order   OrderWithItems `json:"order"`
	Payment PaymentInfo    `json:"payment"`
}

type VerifyPaymentRequest struct {
	OrderID          string `json:"order_id"`
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	GatewaySignature string `json:"gateway_signature"`
}

type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

type StatusUpdateRequest struct {
	Status OrderStatus `json:"status"`
}

// OverrideRequest is the admin force-set payload. Nil fields are left
// untouched; Reason is mandatory.
type OverrideRequest struct {
	Status        *OrderStatus   `json:"status,omitempty"`
	PaymentStatus *PaymentStatus `json:"payment_status,omitempty"`
	CanteenID     *string        `json:"canteen_id,omitempty"`
	Reason        string         `json:"reason"`
}
