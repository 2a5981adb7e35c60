package pricing

import (
	"errors"
	"fmt"
	"math"

	"ms-ordering/internal/models"
)

// Pricing constants. Prices always come from the catalog snapshot, never from
// the client.
const (
	TaxRate     = 0.05
	DeliveryFee = 20.0
	MinQuantity = 1
	MaxQuantity = 10
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrCanteenClosed   = errors.New("canteen is not accepting orders")
	ErrItemUnavailable = errors.New("item unavailable")
)

type Totals struct {
	ItemTotal   float64
	Tax         float64
	DeliveryFee float64
	TotalAmount float64
}

// Round2 rounds a monetary amount to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ClampQuantity bounds a requested quantity to [MinQuantity, MaxQuantity].
// Out-of-range quantities are clamped silently rather than rejected.
func ClampQuantity(qty int) int {
	if qty < MinQuantity {
		return MinQuantity
	}
	if qty > MaxQuantity {
		return MaxQuantity
	}
	return qty
}

// Quote prices a cart against a catalog snapshot. It returns line-item
// snapshots and the authoritative totals. Deterministic: the same cart and
// the same snapshot always produce the same result.
func Quote(canteen models.Canteen, catalog map[string]models.MenuItem, cart []models.CartItem) ([]models.OrderItem, Totals, error) {
	if len(cart) == 0 {
		return nil, Totals{}, ErrEmptyCart
	}
	if !canteen.Open || !canteen.Approved {
		return nil, Totals{}, fmt.Errorf("%w: %s", ErrCanteenClosed, canteen.CanteenID)
	}

	lines := make([]models.OrderItem, 0, len(cart))
	itemTotal := 0.0

	for _, entry := range cart {
		item, ok := catalog[entry.ItemID]
		if !ok {
			return nil, Totals{}, fmt.Errorf("%w: %s not on the menu", ErrItemUnavailable, entry.ItemID)
		}

		qty := ClampQuantity(entry.Quantity)
		if item.Stock < qty {
			return nil, Totals{}, fmt.Errorf("%w: %s is out of stock", ErrItemUnavailable, entry.ItemID)
		}

		lines = append(lines, models.OrderItem{
			MenuItemID: item.ItemID,
			Name:       item.Name,
			UnitPrice:  item.Price,
			Quantity:   qty,
		})
		itemTotal += item.Price * float64(qty)
	}

	itemTotal = Round2(itemTotal)
	tax := Round2(itemTotal * TaxRate)
	total := Round2(itemTotal + tax + DeliveryFee)

	return lines, Totals{
		ItemTotal:   itemTotal,
		Tax:         tax,
		DeliveryFee: DeliveryFee,
		TotalAmount: total,
	}, nil
}
