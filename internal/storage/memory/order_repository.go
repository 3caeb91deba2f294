package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

// errOrderExists — попытка повторно создать заказ с занятым ID.
var errOrderExists = errors.New("order already exists")

type storedOrder struct {
	order domain.Order
	seq   uint64
}

// orderRepositoryInMemory — in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]storedOrder
	seq   uint64
	now   func() time.Time
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items: make(map[string]storedOrder),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create сохраняет новый заказ, если ID ещё не занят.
func (r *orderRepositoryInMemory) Create(_ context.Context, order domain.Order) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return domain.Order{}, errOrderExists
	}

	now := r.now()
	order.CreatedAt = now
	order.UpdatedAt = now
	order.Version = 1

	r.seq++
	// Храним копию, чтобы вызывающий код не мутировал состояние хранилища.
	r.items[order.ID] = storedOrder{order: order.Clone(), seq: r.seq}
	return order.Clone(), nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return stored.order.Clone(), nil
}

// List возвращает заказы, новые первыми.
func (r *orderRepositoryInMemory) List(_ context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]storedOrder, 0, len(r.items))
	for _, stored := range r.items {
		if filter.Status != "" && stored.order.Status != filter.Status {
			continue
		}
		matched = append(matched, stored)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].order.CreatedAt.Equal(matched[j].order.CreatedAt) {
			return matched[i].order.CreatedAt.After(matched[j].order.CreatedAt)
		}
		return matched[i].seq > matched[j].seq
	})

	result := make([]domain.Order, 0, len(matched))
	for _, stored := range matched {
		result = append(result, stored.order.Clone())
	}
	return result, nil
}

// Save перезаписывает заказ, проверяя версию (optimistic locking).
func (r *orderRepositoryInMemory) Save(_ context.Context, order domain.Order) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[order.ID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if current.order.Version != order.Version {
		return domain.Order{}, domain.ErrOrderVersionConflict
	}

	order.Version++
	order.CreatedAt = current.order.CreatedAt
	order.UpdatedAt = r.now()
	r.items[order.ID] = storedOrder{order: order.Clone(), seq: current.seq}
	return order.Clone(), nil
}

// Delete удаляет заказ без возможности восстановления.
func (r *orderRepositoryInMemory) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return domain.ErrOrderNotFound
	}
	delete(r.items, id)
	return nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
