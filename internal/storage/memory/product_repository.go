package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

var errProductExists = errors.New("product already exists")

type storedProduct struct {
	product domain.Product
	seq     uint64
}

// productRepositoryInMemory хранит каталог в памяти.
// Все изменения остатка идут под одной блокировкой, поэтому read-modify-write
// в AdjustStock не теряет параллельные обновления.
type productRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]storedProduct
	seq   uint64
	now   func() time.Time
}

// NewProductRepository создаёт in-memory реализацию ProductRepository.
func NewProductRepository() domain.ProductRepository {
	return &productRepositoryInMemory{
		items: make(map[string]storedProduct),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *productRepositoryInMemory) Create(_ context.Context, product domain.Product) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[product.ID]; exists {
		return domain.Product{}, errProductExists
	}

	now := r.now()
	product.CreatedAt = now
	product.UpdatedAt = now
	product.Version = 1

	r.seq++
	r.items[product.ID] = storedProduct{product: product.Clone(), seq: r.seq}
	return product.Clone(), nil
}

func (r *productRepositoryInMemory) Get(_ context.Context, id string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return stored.product.Clone(), nil
}

// FindMany возвращает найденные товары в порядке первого упоминания id.
func (r *productRepositoryInMemory) FindMany(_ context.Context, ids []string) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Product, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if stored, ok := r.items[id]; ok {
			result = append(result, stored.product.Clone())
		}
	}
	return result, nil
}

func (r *productRepositoryInMemory) List(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]storedProduct, 0, len(r.items))
	for _, stored := range r.items {
		if filter.Matches(stored.product) {
			matched = append(matched, stored)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].product.CreatedAt.Equal(matched[j].product.CreatedAt) {
			return matched[i].product.CreatedAt.After(matched[j].product.CreatedAt)
		}
		return matched[i].seq > matched[j].seq
	})

	result := make([]domain.Product, 0, len(matched))
	for _, stored := range matched {
		result = append(result, stored.product.Clone())
	}
	return result, nil
}

func (r *productRepositoryInMemory) Save(_ context.Context, product domain.Product) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[product.ID]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if current.product.Version != product.Version {
		return domain.Product{}, domain.ErrProductVersionConflict
	}

	product.Version++
	product.CreatedAt = current.product.CreatedAt
	product.UpdatedAt = r.now()
	r.items[product.ID] = storedProduct{product: product.Clone(), seq: current.seq}
	return product.Clone(), nil
}

func (r *productRepositoryInMemory) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(r.items, id)
	return nil
}

// AdjustStock применяет delta к остатку; отрицательный результат отклоняется без изменений.
func (r *productRepositoryInMemory) AdjustStock(_ context.Context, id string, delta int) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if stored.product.Stock+delta < 0 {
		return domain.Product{}, domain.ErrInsufficientStock
	}

	stored.product.Stock += delta
	stored.product.Version++
	stored.product.UpdatedAt = r.now()
	r.items[id] = stored
	return stored.product.Clone(), nil
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
