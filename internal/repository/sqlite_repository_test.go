package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aimennsou/testecom/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	repo, err := NewSQLiteRepository(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	require.NoError(t, repo.RunMigrations("../../migrations/sqlite"))
	return repo
}

func createProduct(t *testing.T, repo *Repository, name string, price float64, stock int32) *domain.Product {
	t.Helper()
	p := &domain.Product{Name: name, Price: price, Stock: stock}
	require.NoError(t, repo.CreateProduct(context.Background(), p))
	require.NotZero(t, p.ID)
	return p
}

func TestProductCRUD(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	p := createProduct(t, repo, "Laptop", 1299.99, 10)

	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Laptop", got.Name)
	assert.Equal(t, 1299.99, got.Price)
	assert.Equal(t, int32(10), got.Stock)

	got.Name = "Laptop Pro"
	got.Stock = 12
	require.NoError(t, repo.UpdateProduct(ctx, got))

	updated, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Laptop Pro", updated.Name)
	assert.Equal(t, int32(12), updated.Stock)

	products, err := repo.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 1)

	require.NoError(t, repo.DeleteProduct(ctx, p.ID))
	_, err = repo.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestGetProduct_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	_, err := repo.GetProduct(context.Background(), 999)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestUpdateProduct_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	err := repo.UpdateProduct(context.Background(), &domain.Product{ID: 999, Name: "x"})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCategoryCRUD(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	parent := &domain.Category{Name: "Electronics", Description: "gadgets"}
	require.NoError(t, repo.CreateCategory(ctx, parent))

	child := &domain.Category{Name: "Laptops", ParentID: &parent.ID}
	require.NoError(t, repo.CreateCategory(ctx, child))

	categories, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	require.NotNil(t, categories[1].ParentID)
	assert.Equal(t, parent.ID, *categories[1].ParentID)

	child.Name = "Notebooks"
	require.NoError(t, repo.UpdateCategory(ctx, child))

	require.NoError(t, repo.DeleteCategory(ctx, child.ID))
	assert.ErrorIs(t, repo.DeleteCategory(ctx, child.ID), ErrCategoryNotFound)
}

func TestGetOrCreateActiveCart_Singleton(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	var first, second *domain.Cart
	require.NoError(t, repo.WithinTx(ctx, func(tx Tx) error {
		var err error
		first, err = tx.GetOrCreateActiveCart(ctx)
		return err
	}))
	require.NoError(t, repo.WithinTx(ctx, func(tx Tx) error {
		var err error
		second, err = tx.GetOrCreateActiveCart(ctx)
		return err
	}))

	assert.Equal(t, first.ID, second.ID, "there is only ever one active cart")
}

func TestUpsertLineItem_MergesQuantityAndPrice(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	p := createProduct(t, repo, "Laptop", 1299.99, 10)

	var firstID string
	require.NoError(t, repo.WithinTx(ctx, func(tx Tx) error {
		cart, err := tx.GetOrCreateActiveCart(ctx)
		if err != nil {
			return err
		}
		item, err := tx.UpsertLineItem(ctx, cart.ID, p.ID, 2, 1299.99)
		if err != nil {
			return err
		}
		firstID = item.ID

		merged, err := tx.UpsertLineItem(ctx, cart.ID, p.ID, 3, 999.99)
		if err != nil {
			return err
		}
		assert.Equal(t, firstID, merged.ID)
		assert.Equal(t, int32(5), merged.Quantity)
		assert.Equal(t, 999.99, merged.UnitPrice)
		return nil
	}))

	items, err := repo.ListLineItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int32(5), items[0].Quantity)
}

func TestFindLineItem(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	p := createProduct(t, repo, "Mouse", 29.99, 10)

	var itemID, cartID string
	require.NoError(t, repo.WithinTx(ctx, func(tx Tx) error {
		cart, err := tx.GetOrCreateActiveCart(ctx)
		if err != nil {
			return err
		}
		cartID = cart.ID
		item, err := tx.UpsertLineItem(ctx, cart.ID, p.ID, 1, 29.99)
		if err != nil {
			return err
		}
		itemID = item.ID
		return nil
	}))

	require.NoError(t, repo.WithinTx(ctx, func(tx Tx) error {
		byID, err := tx.FindLineItem(ctx, itemID)
		require.NoError(t, err)
		assert.Equal(t, p.ID, byID.ProductID)

		byProduct, err := tx.FindLineItemByProduct(ctx, cartID, p.ID)
		require.NoError(t, err)
		assert.Equal(t, itemID, byProduct.ID)

		_, err = tx.FindLineItem(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrLineItemNotFound)
		return nil
	}))
}

func TestDecrementStock_Guard(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	p := createProduct(t, repo, "Laptop", 1299.99, 5)

	err := repo.WithinTx(ctx, func(tx Tx) error {
		return tx.DecrementStock(ctx, p.ID, 6)
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(5), got.Stock, "failed decrement must not change stock")

	require.NoError(t, repo.WithinTx(ctx, func(tx Tx) error {
		return tx.DecrementStock(ctx, p.ID, 5)
	}))
	got, err = repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(0), got.Stock)
}

func TestIncrementStock(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	p := createProduct(t, repo, "Laptop", 1299.99, 5)

	require.NoError(t, repo.WithinTx(ctx, func(tx Tx) error {
		return tx.IncrementStock(ctx, p.ID, 3)
	}))

	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(8), got.Stock)

	err = repo.WithinTx(ctx, func(tx Tx) error {
		return tx.IncrementStock(ctx, 999, 1)
	})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	p := createProduct(t, repo, "Laptop", 1299.99, 10)

	boom := errors.New("boom")
	err := repo.WithinTx(ctx, func(tx Tx) error {
		cart, err := tx.GetOrCreateActiveCart(ctx)
		if err != nil {
			return err
		}
		if _, err := tx.UpsertLineItem(ctx, cart.ID, p.ID, 2, 1299.99); err != nil {
			return err
		}
		if err := tx.DecrementStock(ctx, p.ID, 2); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// the paired writes were rolled back together
	items, err := repo.ListLineItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(10), got.Stock)
}

func TestDeleteLineItem(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	p := createProduct(t, repo, "Mouse", 29.99, 10)

	var itemID string
	require.NoError(t, repo.WithinTx(ctx, func(tx Tx) error {
		cart, err := tx.GetOrCreateActiveCart(ctx)
		if err != nil {
			return err
		}
		item, err := tx.UpsertLineItem(ctx, cart.ID, p.ID, 1, 29.99)
		if err != nil {
			return err
		}
		itemID = item.ID
		return nil
	}))

	require.NoError(t, repo.WithinTx(ctx, func(tx Tx) error {
		return tx.DeleteLineItem(ctx, itemID)
	}))

	err := repo.WithinTx(ctx, func(tx Tx) error {
		return tx.DeleteLineItem(ctx, itemID)
	})
	assert.ErrorIs(t, err, ErrLineItemNotFound)
}

func TestOutboxEvents(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.WithinTx(ctx, func(tx Tx) error {
		if err := tx.InsertOutboxEvent(ctx, "cart.item_added", "cart-1", []byte(`{"a":1}`)); err != nil {
			return err
		}
		return tx.InsertOutboxEvent(ctx, "cart.item_removed", "cart-1", []byte(`{"b":2}`))
	}))

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "cart.item_added", events[0].EventType)
	assert.Equal(t, []byte(`{"a":1}`), events[0].Payload)

	require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))

	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "cart.item_removed", events[0].EventType)

	assert.Error(t, repo.MarkEventAsProcessed(ctx, 12345))
}

func TestReset(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	p := createProduct(t, repo, "Laptop", 1299.99, 10)
	require.NoError(t, repo.CreateCategory(ctx, &domain.Category{Name: "Electronics"}))
	require.NoError(t, repo.WithinTx(ctx, func(tx Tx) error {
		cart, err := tx.GetOrCreateActiveCart(ctx)
		if err != nil {
			return err
		}
		_, err = tx.UpsertLineItem(ctx, cart.ID, p.ID, 1, 1299.99)
		return err
	}))

	require.NoError(t, repo.Reset(ctx))

	products, err := repo.ListProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)

	categories, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, categories)

	items, err := repo.ListLineItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	// the cart is gone too; the next add starts from scratch
	var newCart *domain.Cart
	require.NoError(t, repo.WithinTx(ctx, func(tx Tx) error {
		var err error
		newCart, err = tx.GetOrCreateActiveCart(ctx)
		return err
	}))
	assert.NotNil(t, newCart)
}

func TestConcurrentDecrements_NeverOversell(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	p := createProduct(t, repo, "Laptop", 1299.99, 10)

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.WithinTx(ctx, func(tx Tx) error {
				return tx.DecrementStock(ctx, p.ID, 1)
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got.Stock, int32(0))
	assert.Equal(t, int32(10)-got.Stock, int32(succeeded))
}
