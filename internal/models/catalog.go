package models

// Catalog read models. The catalog service owns these; this service only
// reads them at checkout time to price and validate a cart.

type Canteen struct {
	CanteenID string `json:"canteen_id"`
	Name      string `json:"name"`
	Open      bool   `json:"open"`
	Approved  bool   `json:"approved"`
}

type MenuItem struct {
	ItemID    string  `json:"item_id"`
	CanteenID string  `json:"canteen_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Stock     int     `json:"stock"`
}
