package repository

import (
	"context"
	"errors"
	"time"

	"github.com/aimennsou/testecom/internal/domain"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrLineItemNotFound = errors.New("cart line item not found")
	ErrCategoryNotFound = errors.New("category not found")

	// ErrInsufficientStock is returned by Tx.DecrementStock when the guarded
	// update would drive the stock column negative.
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// OutboxEvent is one row of the cart_outbox table. Events are inserted in
// the same transaction as the cart mutation they describe and published
// asynchronously by the outbox poller.
type OutboxEvent struct {
	ID          int64
	EventType   string
	AggregateID string
	Payload     []byte
	CreatedAt   time.Time
}

// Tx carries the operations available inside one cart mutation transaction.
// Everything done through a Tx either commits together or not at all.
type Tx interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)

	// DecrementStock subtracts from the product's available stock, refusing
	// to go below zero. Returns ErrInsufficientStock when the guard fails.
	DecrementStock(ctx context.Context, productID int64, by int32) error
	IncrementStock(ctx context.Context, productID int64, by int32) error

	// GetOrCreateActiveCart returns the single active cart, creating it if
	// no cart exists yet. Two concurrent transactions can never create two
	// carts; the table has a singleton constraint.
	GetOrCreateActiveCart(ctx context.Context) (*domain.Cart, error)

	FindLineItem(ctx context.Context, itemID string) (*domain.CartItem, error)
	FindLineItemByProduct(ctx context.Context, cartID string, productID int64) (*domain.CartItem, error)

	// UpsertLineItem creates the line item for (cartID, productID) or merges
	// into the existing one: the quantity is added, the unit price is
	// overwritten with the supplied value (last write wins).
	UpsertLineItem(ctx context.Context, cartID string, productID int64, quantity int32, unitPrice float64) (*domain.CartItem, error)
	DeleteLineItem(ctx context.Context, itemID string) error

	InsertOutboxEvent(ctx context.Context, eventType, aggregateID string, payload []byte) error
}

// CartStore is the persistence surface the cart engine works against.
type CartStore interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	ListLineItems(ctx context.Context) ([]domain.CartItem, error)
}

type CatalogStore interface {
	CreateProduct(ctx context.Context, p *domain.Product) error
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	UpdateProduct(ctx context.Context, p *domain.Product) error
	DeleteProduct(ctx context.Context, id int64) error
}

type CategoryStore interface {
	CreateCategory(ctx context.Context, c *domain.Category) error
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	UpdateCategory(ctx context.Context, c *domain.Category) error
	DeleteCategory(ctx context.Context, id int64) error
}

// OutboxStore is consumed by the outbox poller.
type OutboxStore interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

// AdminStore wipes all catalog and cart state, returning the system to its
// initial empty state.
type AdminStore interface {
	Reset(ctx context.Context) error
}
