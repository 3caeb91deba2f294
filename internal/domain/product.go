package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MoneyScale — количество знаков после запятой у денежных значений.
const MoneyScale = 2

// Product — запись каталога; Stock является авторитетным счётчиком остатка.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	Stock       int
	SKU         string
	IsAvailable bool
	Tags        []string
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate проверяет инварианты товара.
func (p Product) Validate() error {
	var chk fieldChecker
	chk.requiredLength("name", p.Name, 1, 200)
	chk.requiredLength("category", p.Category, 1, 100)
	if p.Price.IsNegative() {
		chk.addf("price must be non-negative")
	}
	if !p.Price.Equal(p.Price.Round(MoneyScale)) {
		chk.addf("price must have at most %d decimal places", MoneyScale)
	}
	if p.Stock < 0 {
		chk.addf("stock must be non-negative")
	}
	chk.maxLength("sku", p.SKU, 100)
	for i, tag := range p.Tags {
		if strings.TrimSpace(tag) == "" {
			chk.addf("tags[%d] must not be empty", i)
		}
	}
	return chk.err()
}

// Clone возвращает копию товара с собственным срезом тегов.
func (p Product) Clone() Product {
	dst := p
	dst.Tags = append([]string(nil), p.Tags...)
	return dst
}

// Snapshot фиксирует состояние товара для сохранения в заказе.
func (p Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Category:    p.Category,
		SKU:         p.SKU,
		Stock:       p.Stock,
		IsAvailable: p.IsAvailable,
		Tags:        append([]string(nil), p.Tags...),
	}
}

// ProductSnapshot — копия товара внутри заказа. Живой связи с каталогом нет.
type ProductSnapshot struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	SKU         string          `json:"sku,omitempty"`
	Stock       int             `json:"stock"`
	IsAvailable bool            `json:"isAvailable"`
	Tags        []string        `json:"tags,omitempty"`
}

// Clone возвращает копию снимка.
func (s ProductSnapshot) Clone() ProductSnapshot {
	dst := s
	dst.Tags = append([]string(nil), s.Tags...)
	return dst
}

// ProductInput — поля для создания товара.
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	Stock       int
	SKU         string
	IsAvailable *bool
	Tags        []string
}

// ProductPatch — частичное обновление товара.
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Category    *string
	Stock       *int
	SKU         *string
	IsAvailable *bool
	Tags        []string
}

// Apply накладывает переданные поля на товар и проверяет результат.
func (p ProductPatch) Apply(product *Product) error {
	setString(&product.Name, p.Name)
	setString(&product.Description, p.Description)
	setString(&product.Category, p.Category)
	setString(&product.SKU, p.SKU)
	if p.Price != nil {
		product.Price = *p.Price
	}
	if p.Stock != nil {
		product.Stock = *p.Stock
	}
	if p.IsAvailable != nil {
		product.IsAvailable = *p.IsAvailable
	}
	if p.Tags != nil {
		product.Tags = append([]string(nil), p.Tags...)
	}
	return product.Validate()
}

// ProductFilter — параметры выборки каталога.
// Category сравнивается точно, Search ищет подстроку в name или description без учёта регистра.
type ProductFilter struct {
	Category string
	Search   string
}

// Matches применяет фильтр к товару (для in-memory хранилища).
func (f ProductFilter) Matches(p Product) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.Search == "" {
		return true
	}
	needle := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(p.Name), needle) ||
		strings.Contains(strings.ToLower(p.Description), needle)
}
