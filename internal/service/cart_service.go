package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aimennsou/testecom/internal/cache"
	"github.com/aimennsou/testecom/internal/domain"
	"github.com/aimennsou/testecom/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Outbox event types emitted on cart mutations.
const (
	EventItemAdded   = "cart.item_added"
	EventItemRemoved = "cart.item_removed"
)

// CartEvent is the outbox payload for both mutation events. EventID lets
// consumers deduplicate; publishing is at-least-once.
type CartEvent struct {
	EventID    string    `json:"event_id"`
	CartID     string    `json:"cart_id"`
	ItemID     string    `json:"item_id"`
	ProductID  int64     `json:"product_id"`
	Quantity   int32     `json:"quantity"`
	UnitPrice  float64   `json:"unit_price"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CartService keeps product stock and cart line items consistent: every add
// reserves stock, every remove releases it, and both sides of each mutation
// commit in one transaction. It holds no state between calls.
type CartService struct {
	store  repository.CartStore
	cache  cache.CartCache
	logger *slog.Logger
	sfg    singleflight.Group // Prevents cache stampede on reads
}

func NewCartService(store repository.CartStore, cartCache cache.CartCache, logger *slog.Logger) *CartService {
	return &CartService{
		store:  store,
		cache:  cartCache,
		logger: logger,
	}
}

// AddItem puts quantity units of a product into the active cart and reserves
// that quantity against the product's stock. The cart is created lazily on
// the first successful add; repeated adds of the same product merge into one
// line item, with the unit price snapshot overwritten by the latest call.
// Returns the active cart's id.
func (s *CartService) AddItem(ctx context.Context, productID int64, quantity int32, unitPrice float64) (string, error) {
	if productID <= 0 || quantity <= 0 || unitPrice <= 0 {
		return "", ErrInvalidRequest
	}

	var cartID string
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		product, err := tx.GetProduct(ctx, productID)
		if errors.Is(err, repository.ErrProductNotFound) {
			return ErrProductNotFound
		}
		if err != nil {
			return err
		}

		// Check against the pre-mutation stock value so an oversized request
		// is rejected before anything is written.
		if product.Available() < quantity {
			return ErrInsufficientStock
		}

		cart, err := tx.GetOrCreateActiveCart(ctx)
		if err != nil {
			return err
		}

		item, err := tx.UpsertLineItem(ctx, cart.ID, productID, quantity, unitPrice)
		if err != nil {
			return err
		}

		// Paired with the line item write above; the guarded update also
		// catches a concurrent transaction winning the last units.
		if err := tx.DecrementStock(ctx, productID, quantity); err != nil {
			if errors.Is(err, repository.ErrInsufficientStock) {
				return ErrInsufficientStock
			}
			return err
		}

		if err := s.appendEvent(ctx, tx, EventItemAdded, cart.ID, item.ID, productID, quantity, unitPrice); err != nil {
			return err
		}

		cartID = cart.ID
		return nil
	})
	if err != nil {
		return "", err
	}

	s.invalidateCache()
	return cartID, nil
}

// RemoveItem deletes the whole line item and returns its full quantity to
// the product's available stock. Partial-quantity removal is not supported.
func (s *CartService) RemoveItem(ctx context.Context, itemID string) error {
	if itemID == "" {
		return ErrInvalidRequest
	}

	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		item, err := tx.FindLineItem(ctx, itemID)
		if errors.Is(err, repository.ErrLineItemNotFound) {
			return ErrItemNotFound
		}
		if err != nil {
			return err
		}

		if _, err := tx.GetProduct(ctx, item.ProductID); err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				// A line item must never outlive its product. Surface it,
				// don't repair it.
				s.logger.Error("consistency fault: line item references missing product",
					"item_id", item.ID,
					"product_id", item.ProductID)
				return fmt.Errorf("%w: line item %s references product %d: %w",
					ErrConsistencyFault, item.ID, item.ProductID, ErrProductNotFound)
			}
			return err
		}

		if err := tx.DeleteLineItem(ctx, itemID); err != nil {
			return err
		}

		if err := tx.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			return err
		}

		return s.appendEvent(ctx, tx, EventItemRemoved, item.CartID, item.ID, item.ProductID, item.Quantity, item.UnitPrice)
	})
	if err != nil {
		return err
	}

	s.invalidateCache()
	return nil
}

// ListItems returns all line items of the active cart, or an empty list if
// no cart has ever been created. Reads go through the cache; singleflight
// collapses concurrent misses into one repository query.
func (s *CartService) ListItems(ctx context.Context) ([]domain.CartItem, error) {
	v, err, _ := s.sfg.Do(cartListKey, func() (interface{}, error) {
		items, err := s.cache.Get(ctx)
		if err == nil {
			return items, nil
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("cart cache get failed", "error", err)
		}

		items, err = s.store.ListLineItems(ctx)
		if err != nil {
			return nil, err
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := s.cache.Set(ctx, items); err != nil {
				s.logger.Warn("cart cache set failed", "error", err)
			}
		}()

		return items, nil
	})
	if err != nil {
		return nil, err
	}

	return v.([]domain.CartItem), nil
}

// ComputeTotal sums unit price times quantity over the given items. Pure;
// no rounding beyond native float64 arithmetic.
func ComputeTotal(items []domain.CartItem) float64 {
	var total float64
	for _, item := range items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	return total
}

const cartListKey = "cart-items"

func (s *CartService) appendEvent(ctx context.Context, tx repository.Tx, eventType, cartID, itemID string, productID int64, quantity int32, unitPrice float64) error {
	payload, err := json.Marshal(CartEvent{
		EventID:    uuid.NewString(),
		CartID:     cartID,
		ItemID:     itemID,
		ProductID:  productID,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal cart event: %w", err)
	}
	return tx.InsertOutboxEvent(ctx, eventType, cartID, payload)
}

func (s *CartService) invalidateCache() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx); err != nil {
		s.logger.Warn("cart cache invalidate failed", "error", err)
	}
}
