package domain

import "time"

// Cart is the single active cart. The repository enforces that at most one
// row ever exists; it is created lazily on the first successful add and only
// removed by a full reset.
type Cart struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CartItem binds the cart to a product with a quantity and the unit price
// captured at the time of the most recent add. The price is a snapshot, not
// a live reference to the product's current price.
type CartItem struct {
	ID        string    `json:"id"`
	CartID    string    `json:"cart_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int32     `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	AddedAt   time.Time `json:"added_at"`
}
