package service

import "errors"

var (
	// ErrInvalidRequest: malformed or missing input. Caller bug, never retried.
	ErrInvalidRequest = errors.New("invalid request")

	ErrProductNotFound = errors.New("product not found")
	ErrItemNotFound    = errors.New("item not found in cart")

	// ErrInsufficientStock: the requested quantity exceeds the product's
	// available stock. The caller may retry with a smaller quantity.
	ErrInsufficientStock = errors.New("not enough stock available")

	// ErrConsistencyFault: an invariant between cart and catalog state was
	// violated, e.g. a line item referencing a product that no longer
	// exists. Logged and surfaced, never silently repaired.
	ErrConsistencyFault = errors.New("cart/catalog consistency fault")
)
