package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aimennsou/testecom/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Repository is a database/sql implementation of all store interfaces.
// It runs on either postgres (lib/pq) or sqlite (modernc); the SQL below is
// written against the dialect subset both support.
type Repository struct {
	db     *sql.DB
	driver string
}

func NewPostgresRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db, driver: "postgres"}, nil
}

func NewSQLiteRepository(dbPath string) (*Repository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// sqlite allows a single writer; funneling everything through one
	// connection avoids SQLITE_BUSY under concurrent transactions.
	db.SetMaxOpenConns(1)
	return &Repository{db: db, driver: "sqlite"}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	var err error
	var m *migrate.Migrate
	switch r.driver {
	case "postgres":
		driver, e2 := migratepg.WithInstance(r.db, &migratepg.Config{})
		if e2 != nil {
			return fmt.Errorf("could not create migration driver: %w", e2)
		}
		m, err = migrate.NewWithDatabaseInstance(
			fmt.Sprintf("file://%s", migrationsPath),
			"postgres",
			driver,
		)
	case "sqlite":
		driver, e2 := migratesqlite.WithInstance(r.db, &migratesqlite.Config{})
		if e2 != nil {
			return fmt.Errorf("could not create migration driver: %w", e2)
		}
		m, err = migrate.NewWithDatabaseInstance(
			fmt.Sprintf("file://%s", migrationsPath),
			"sqlite",
			driver,
		)
	default:
		return fmt.Errorf("unknown driver %q", r.driver)
	}
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// WithinTx runs fn inside a single transaction. Any error from fn rolls the
// whole transaction back, so paired writes (line item + stock) are never
// partially applied.
func (r *Repository) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&sqlTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *Repository) ListLineItems(ctx context.Context) ([]domain.CartItem, error) {
	query := `SELECT id, cart_id, product_id, quantity, unit_price, added_at
	          FROM cart_items ORDER BY added_at, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(
			&item.ID,
			&item.CartID,
			&item.ProductID,
			&item.Quantity,
			&item.UnitPrice,
			&item.AddedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return items, nil
}

// sqlTx implements Tx over one *sql.Tx.
type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return getProduct(ctx, t.tx, id)
}

func (t *sqlTx) DecrementStock(ctx context.Context, productID int64, by int32) error {
	query := `UPDATE products SET stock = stock - $1 WHERE id = $2 AND stock >= $1`
	res, err := t.tx.ExecContext(ctx, query, by, productID)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement stock rows affected: %w", err)
	}
	if affected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (t *sqlTx) IncrementStock(ctx context.Context, productID int64, by int32) error {
	query := `UPDATE products SET stock = stock + $1 WHERE id = $2`
	res, err := t.tx.ExecContext(ctx, query, by, productID)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment stock rows affected: %w", err)
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (t *sqlTx) GetOrCreateActiveCart(ctx context.Context) (*domain.Cart, error) {
	// The singleton column is unique and always 1, so the insert is a no-op
	// once any cart exists and two racing transactions converge on one row.
	now := time.Now().UTC()
	insert := `INSERT INTO carts (id, singleton, created_at, updated_at)
	           VALUES ($1, 1, $2, $3)
	           ON CONFLICT (singleton) DO NOTHING`
	if _, err := t.tx.ExecContext(ctx, insert, uuid.NewString(), now, now); err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}

	var cart domain.Cart
	query := `SELECT id, created_at, updated_at FROM carts LIMIT 1`
	if err := t.tx.QueryRowContext(ctx, query).Scan(&cart.ID, &cart.CreatedAt, &cart.UpdatedAt); err != nil {
		return nil, fmt.Errorf("query active cart: %w", err)
	}
	return &cart, nil
}

func (t *sqlTx) FindLineItem(ctx context.Context, itemID string) (*domain.CartItem, error) {
	query := `SELECT id, cart_id, product_id, quantity, unit_price, added_at
	          FROM cart_items WHERE id = $1`
	return scanLineItem(t.tx.QueryRowContext(ctx, query, itemID))
}

func (t *sqlTx) FindLineItemByProduct(ctx context.Context, cartID string, productID int64) (*domain.CartItem, error) {
	query := `SELECT id, cart_id, product_id, quantity, unit_price, added_at
	          FROM cart_items WHERE cart_id = $1 AND product_id = $2`
	return scanLineItem(t.tx.QueryRowContext(ctx, query, cartID, productID))
}

func (t *sqlTx) UpsertLineItem(ctx context.Context, cartID string, productID int64, quantity int32, unitPrice float64) (*domain.CartItem, error) {
	// Repeated adds of the same product merge into one row: quantity adds up,
	// the unit price snapshot is overwritten (last write wins).
	query := `INSERT INTO cart_items (id, cart_id, product_id, quantity, unit_price, added_at)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          ON CONFLICT (cart_id, product_id) DO UPDATE SET
	              quantity = cart_items.quantity + excluded.quantity,
	              unit_price = excluded.unit_price
	          RETURNING id, cart_id, product_id, quantity, unit_price, added_at`
	row := t.tx.QueryRowContext(ctx, query,
		uuid.NewString(), cartID, productID, quantity, unitPrice, time.Now().UTC())

	item, err := scanLineItem(row)
	if err != nil {
		return nil, fmt.Errorf("upsert line item: %w", err)
	}
	return item, nil
}

func (t *sqlTx) DeleteLineItem(ctx context.Context, itemID string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("delete line item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete line item rows affected: %w", err)
	}
	if affected == 0 {
		return ErrLineItemNotFound
	}
	return nil
}

func (t *sqlTx) InsertOutboxEvent(ctx context.Context, eventType, aggregateID string, payload []byte) error {
	query := `INSERT INTO cart_outbox (event_type, aggregate_id, payload, processed, created_at)
	          VALUES ($1, $2, $3, FALSE, $4)`
	if _, err := t.tx.ExecContext(ctx, query, eventType, aggregateID, payload, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func scanLineItem(row *sql.Row) (*domain.CartItem, error) {
	var item domain.CartItem
	err := row.Scan(
		&item.ID,
		&item.CartID,
		&item.ProductID,
		&item.Quantity,
		&item.UnitPrice,
		&item.AddedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLineItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan line item: %w", err)
	}
	return &item, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getProduct(ctx context.Context, q querier, id int64) (*domain.Product, error) {
	query := `SELECT id, name, price, stock, category_id, created_at
	          FROM products WHERE id = $1`

	var p domain.Product
	err := q.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Price,
		&p.Stock,
		&p.CategoryID,
		&p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}
