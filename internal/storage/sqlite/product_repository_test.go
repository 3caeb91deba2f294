package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	"github.com/vladislavdragonenkov/ordercore/internal/storage/sqlite"
)

func openRepository(t *testing.T) domain.ProductRepository {
	t.Helper()

	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return sqlite.NewProductRepository(store)
}

func sampleProduct(id, name, category string, stock int) domain.Product {
	return domain.Product{
		ID:          id,
		Name:        name,
		Description: name + " description",
		Price:       decimal.RequireFromString("19.99"),
		Category:    category,
		Stock:       stock,
		IsAvailable: true,
		Tags:        []string{"new"},
	}
}

func TestProductRepository_SQLiteCreateGet(t *testing.T) {
	repo := openRepository(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, sampleProduct("p1", "Keyboard", "peripherals", 3))
	require.NoError(t, err)
	require.Equal(t, int64(1), created.Version)
	require.False(t, created.CreatedAt.IsZero())

	got, err := repo.Get(ctx, "p1")
	require.NoError(t, err)
	require.True(t, got.Price.Equal(decimal.RequireFromString("19.99")))
	require.Equal(t, []string{"new"}, got.Tags)
	require.True(t, got.IsAvailable)

	_, err = repo.Create(ctx, sampleProduct("p1", "Duplicate", "peripherals", 1))
	require.Error(t, err)

	_, err = repo.Get(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestProductRepository_SQLiteFindManyAndList(t *testing.T) {
	repo := openRepository(t)
	ctx := context.Background()

	for _, p := range []domain.Product{
		sampleProduct("p1", "Mechanical Keyboard", "peripherals", 1),
		sampleProduct("p2", "Gaming Mouse", "peripherals", 1),
		sampleProduct("p3", "100% Cotton Pad", "accessories", 1),
	} {
		_, err := repo.Create(ctx, p)
		require.NoError(t, err)
	}

	found, err := repo.FindMany(ctx, []string{"p1", "unknown", "p1", "p2"})
	require.NoError(t, err)
	require.Len(t, found, 2)

	empty, err := repo.FindMany(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, empty)

	all, err := repo.List(ctx, domain.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "p3", all[0].ID, "newest product first")

	byCategory, err := repo.List(ctx, domain.ProductFilter{Category: "peripherals", Search: "MOUSE"})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	require.Equal(t, "p2", byCategory[0].ID)

	literalPercent, err := repo.List(ctx, domain.ProductFilter{Search: "100%"})
	require.NoError(t, err)
	require.Len(t, literalPercent, 1)
	require.Equal(t, "p3", literalPercent[0].ID)
}

func TestProductRepository_SQLiteSaveVersionConflict(t *testing.T) {
	repo := openRepository(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, sampleProduct("p1", "Keyboard", "peripherals", 3))
	require.NoError(t, err)

	created.Name = "Keyboard v2"
	saved, err := repo.Save(ctx, created)
	require.NoError(t, err)
	require.Equal(t, int64(2), saved.Version)

	_, err = repo.Save(ctx, created)
	require.ErrorIs(t, err, domain.ErrProductVersionConflict)

	created.ID = "missing"
	_, err = repo.Save(ctx, created)
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestProductRepository_SQLiteAdjustStock(t *testing.T) {
	repo := openRepository(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, sampleProduct("p1", "Keyboard", "peripherals", 1))
	require.NoError(t, err)

	updated, err := repo.AdjustStock(ctx, "p1", -1)
	require.NoError(t, err)
	require.Equal(t, 0, updated.Stock)

	_, err = repo.AdjustStock(ctx, "p1", -1)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	_, err = repo.AdjustStock(ctx, "missing", 1)
	require.ErrorIs(t, err, domain.ErrProductNotFound)

	require.NoError(t, repo.Delete(ctx, "p1"))
	require.ErrorIs(t, repo.Delete(ctx, "p1"), domain.ErrProductNotFound)
}

func TestProductRepository_SQLiteConcurrentDecrements(t *testing.T) {
	repo := openRepository(t)
	ctx := context.Background()

	const stock = 20
	_, err := repo.Create(ctx, sampleProduct("p1", "Keyboard", "peripherals", stock))
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		rejected  atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.AdjustStock(ctx, "p1", -1)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(stock), succeeded.Load())
	require.Equal(t, int32(30), rejected.Load())

	final, err := repo.Get(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 0, final.Stock)
}
