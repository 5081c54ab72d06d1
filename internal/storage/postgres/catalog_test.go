package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/config"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Os testes daqui precisam de um Postgres real em TEST_DATABASE_URL.
func setupStore(t *testing.T) *CatalogStore {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL não definido")
	}

	db, err := NewDB(&config.Config{
		DatabaseURL:         url,
		DatabaseMaxConns:    4,
		DatabaseMinConns:    1,
		DatabaseMaxConnLife: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(context.Background()))
	return NewCatalogStore(db.Pool())
}

func TestCatalogStore_PutAndGet(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	id := uuid.New().String()
	require.NoError(t, store.PutProduct(ctx, domain.Product{
		ID:          id,
		Title:       "iPhone 13",
		Description: "Latest Apple iPhone",
		Price:       decimal.RequireFromString("999.99"),
	}))
	require.NoError(t, store.PutStock(ctx, domain.Stock{ProductID: id, Count: 10}))

	got, err := store.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "iPhone 13", got.Title)
	assert.True(t, decimal.RequireFromString("999.99").Equal(got.Price))
	assert.Equal(t, int64(10), got.Count)

	// upsert repetido não falha por chave duplicada
	require.NoError(t, store.PutStock(ctx, domain.Stock{ProductID: id, Count: 4}))
	got, err = store.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.Count)

	products, err := store.ListProducts(ctx, 1000, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, products)
}

func TestCatalogStore_GetProductNotFound(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	_, err := store.GetProduct(ctx, uuid.New().String())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.GetProduct(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
