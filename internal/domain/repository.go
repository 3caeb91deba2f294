package domain

import "context"

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ; CreatedAt/UpdatedAt и Version=1 проставляет хранилище.
	Create(ctx context.Context, order Order) (Order, error)
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// List возвращает заказы, новые первыми, с опциональным фильтром по статусу.
	List(ctx context.Context, filter OrderFilter) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(ctx context.Context, order Order) (Order, error)
	// Delete физически удаляет заказ.
	Delete(ctx context.Context, id string) error
}

// ProductRepository описывает хранилище каталога товаров.
type ProductRepository interface {
	// Create сохраняет новый товар.
	Create(ctx context.Context, product Product) (Product, error)
	// Get возвращает товар или ErrProductNotFound.
	Get(ctx context.Context, id string) (Product, error)
	// FindMany возвращает существующие товары из списка; отсутствующие id пропускаются.
	FindMany(ctx context.Context, ids []string) ([]Product, error)
	// List возвращает товары по фильтру, новые первыми.
	List(ctx context.Context, filter ProductFilter) ([]Product, error)
	// Save перезаписывает товар с проверкой версии.
	Save(ctx context.Context, product Product) (Product, error)
	// Delete физически удаляет товар.
	Delete(ctx context.Context, id string) error
	// AdjustStock атомарно применяет stock += delta или возвращает ErrInsufficientStock.
	AdjustStock(ctx context.Context, id string, delta int) (Product, error)
}
