package catalogv1

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

// ErrMalformedProduct — товар в ответе нельзя разобрать.
var ErrMalformedProduct = errors.New("malformed product message")

// FromDomain переводит товар каталога в сообщение.
func FromDomain(p domain.Product) *Product {
	return &Product{
		Id:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.StringFixed(domain.MoneyScale),
		Category:    p.Category,
		Stock:       int64(p.Stock),
		Sku:         p.SKU,
		IsAvailable: p.IsAvailable,
		Tags:        append([]string(nil), p.Tags...),
		Version:     p.Version,
		CreatedAt:   formatTime(p.CreatedAt),
		UpdatedAt:   formatTime(p.UpdatedAt),
	}
}

// ToDomain разбирает сообщение обратно в товар и проверяет обязательные поля.
func (x *Product) ToDomain() (domain.Product, error) {
	if x == nil {
		return domain.Product{}, fmt.Errorf("%w: product is nil", ErrMalformedProduct)
	}
	if strings.TrimSpace(x.Id) == "" {
		return domain.Product{}, fmt.Errorf("%w: id is empty", ErrMalformedProduct)
	}
	price, err := decimal.NewFromString(x.Price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: product %s price %q: %v", ErrMalformedProduct, x.Id, x.Price, err)
	}

	product := domain.Product{
		ID:          x.Id,
		Name:        x.Name,
		Description: x.Description,
		Price:       price,
		Category:    x.Category,
		Stock:       int(x.Stock),
		SKU:         x.Sku,
		IsAvailable: x.IsAvailable,
		Tags:        append([]string(nil), x.Tags...),
		Version:     x.Version,
	}
	if product.CreatedAt, err = parseTime(x.CreatedAt); err != nil {
		return domain.Product{}, fmt.Errorf("%w: product %s createdAt: %v", ErrMalformedProduct, x.Id, err)
	}
	if product.UpdatedAt, err = parseTime(x.UpdatedAt); err != nil {
		return domain.Product{}, fmt.Errorf("%w: product %s updatedAt: %v", ErrMalformedProduct, x.Id, err)
	}
	return product, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
