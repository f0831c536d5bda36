package domain

import "time"

type Product struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Price      float64   `json:"price"`
	Stock      int32     `json:"stock"`
	CategoryID *int64    `json:"category_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Available reports how much stock is left for new cart reservations.
// The stored stock column is already net of everything sitting in the cart,
// so this is just the column value.
func (p Product) Available() int32 {
	return p.Stock
}
