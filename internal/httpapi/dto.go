package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	"github.com/vladislavdragonenkov/ordercore/internal/service/orders"
)

type createOrderRequest struct {
	CustomerName    string   `json:"customerName"`
	CustomerEmail   string   `json:"customerEmail"`
	CustomerPhone   string   `json:"customerPhone,omitempty"`
	ProductIDs      []string `json:"productIds"`
	ShippingAddress string   `json:"shippingAddress,omitempty"`
	City            string   `json:"city,omitempty"`
	PostalCode      string   `json:"postalCode,omitempty"`
	Notes           string   `json:"notes,omitempty"`
}

func (r createOrderRequest) toDomain() orders.CreateOrderRequest {
	return orders.CreateOrderRequest{
		Customer: domain.CustomerInfo{
			Name:            r.CustomerName,
			Email:           r.CustomerEmail,
			Phone:           r.CustomerPhone,
			ShippingAddress: r.ShippingAddress,
			City:            r.City,
			PostalCode:      r.PostalCode,
			Notes:           r.Notes,
		},
		ProductIDs: r.ProductIDs,
	}
}

type updateOrderRequest struct {
	CustomerName    *string  `json:"customerName"`
	CustomerEmail   *string  `json:"customerEmail"`
	CustomerPhone   *string  `json:"customerPhone"`
	ProductIDs      []string `json:"productIds"`
	ShippingAddress *string  `json:"shippingAddress"`
	City            *string  `json:"city"`
	PostalCode      *string  `json:"postalCode"`
	Notes           *string  `json:"notes"`
	Status          *string  `json:"status"`
}

func (r updateOrderRequest) toPatch() (domain.OrderPatch, error) {
	patch := domain.OrderPatch{
		CustomerName:    r.CustomerName,
		CustomerEmail:   r.CustomerEmail,
		CustomerPhone:   r.CustomerPhone,
		ShippingAddress: r.ShippingAddress,
		City:            r.City,
		PostalCode:      r.PostalCode,
		Notes:           r.Notes,
		ProductIDs:      r.ProductIDs,
	}
	if r.Status != nil {
		status, err := domain.ParseOrderStatus(*r.Status)
		if err != nil {
			return domain.OrderPatch{}, err
		}
		patch.Status = &status
	}
	return patch, nil
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// OrderResponse — JSON-представление заказа.
type OrderResponse struct {
	ID              string            `json:"id"`
	CustomerName    string            `json:"customerName"`
	CustomerEmail   string            `json:"customerEmail"`
	CustomerPhone   string            `json:"customerPhone,omitempty"`
	ProductIDs      []string          `json:"productIds"`
	ProductDetails  []ProductSnapshot `json:"productDetails"`
	TotalAmount     string            `json:"totalAmount"`
	Status          string            `json:"status"`
	ShippingAddress string            `json:"shippingAddress,omitempty"`
	City            string            `json:"city,omitempty"`
	PostalCode      string            `json:"postalCode,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	Version         int64             `json:"version"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// OrderWithProductsResponse — заказ с актуальными товарами.
type OrderWithProductsResponse struct {
	OrderResponse
	Products     []ProductSnapshot `json:"products"`
	ProductsLive bool              `json:"productsLive"`
}

// ProductSnapshot — товар в составе заказа.
type ProductSnapshot struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       string   `json:"price"`
	Category    string   `json:"category"`
	SKU         string   `json:"sku,omitempty"`
	Stock       int      `json:"stock"`
	IsAvailable bool     `json:"isAvailable"`
	Tags        []string `json:"tags,omitempty"`
}

// TimelineEventResponse — событие таймлайна заказа.
type TimelineEventResponse struct {
	OrderID    string    `json:"orderId"`
	Type       string    `json:"type"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

func toOrderResponse(o domain.Order) OrderResponse {
	return OrderResponse{
		ID:              o.ID,
		CustomerName:    o.Customer.Name,
		CustomerEmail:   o.Customer.Email,
		CustomerPhone:   o.Customer.Phone,
		ProductIDs:      nonNil(o.ProductIDs),
		ProductDetails:  toSnapshotResponses(o.ProductDetails),
		TotalAmount:     formatMoney(o.TotalAmount),
		Status:          string(o.Status),
		ShippingAddress: o.Customer.ShippingAddress,
		City:            o.Customer.City,
		PostalCode:      o.Customer.PostalCode,
		Notes:           o.Customer.Notes,
		Version:         o.Version,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toOrderResponses(list []domain.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(list))
	for _, o := range list {
		out = append(out, toOrderResponse(o))
	}
	return out
}

func toOrderWithProductsResponse(v orders.OrderWithProducts) OrderWithProductsResponse {
	return OrderWithProductsResponse{
		OrderResponse: toOrderResponse(v.Order),
		Products:      toSnapshotResponses(v.Products),
		ProductsLive:  v.Live,
	}
}

func toSnapshotResponses(list []domain.ProductSnapshot) []ProductSnapshot {
	out := make([]ProductSnapshot, 0, len(list))
	for _, s := range list {
		out = append(out, ProductSnapshot{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			Price:       formatMoney(s.Price),
			Category:    s.Category,
			SKU:         s.SKU,
			Stock:       s.Stock,
			IsAvailable: s.IsAvailable,
			Tags:        s.Tags,
		})
	}
	return out
}

func toTimelineResponses(events []domain.TimelineEvent) []TimelineEventResponse {
	out := make([]TimelineEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, TimelineEventResponse{
			OrderID:    e.OrderID,
			Type:       e.Type,
			Reason:     e.Reason,
			OccurredAt: e.Occurred,
		})
	}
	return out
}

type createProductRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price"`
	Category    string           `json:"category"`
	Stock       *int             `json:"stock"`
	SKU         string           `json:"sku,omitempty"`
	IsAvailable *bool            `json:"isAvailable,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
}

func (r createProductRequest) toDomain() (domain.ProductInput, error) {
	var problems []string
	if r.Price == nil {
		problems = append(problems, "price is required")
	}
	if r.Stock == nil {
		problems = append(problems, "stock is required")
	}
	if len(problems) > 0 {
		return domain.ProductInput{}, domain.NewValidationError(problems...)
	}
	return domain.ProductInput{
		Name:        r.Name,
		Description: r.Description,
		Price:       *r.Price,
		Category:    r.Category,
		Stock:       *r.Stock,
		SKU:         r.SKU,
		IsAvailable: r.IsAvailable,
		Tags:        r.Tags,
	}, nil
}

type updateProductRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category"`
	Stock       *int             `json:"stock"`
	SKU         *string          `json:"sku"`
	IsAvailable *bool            `json:"isAvailable"`
	Tags        []string         `json:"tags"`
}

func (r updateProductRequest) toPatch() domain.ProductPatch {
	return domain.ProductPatch{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Category:    r.Category,
		Stock:       r.Stock,
		SKU:         r.SKU,
		IsAvailable: r.IsAvailable,
		Tags:        r.Tags,
	}
}

type adjustStockRequest struct {
	Quantity *int `json:"quantity"`
}

// ProductResponse — JSON-представление товара.
type ProductResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       string    `json:"price"`
	Category    string    `json:"category"`
	Stock       int       `json:"stock"`
	SKU         string    `json:"sku,omitempty"`
	IsAvailable bool      `json:"isAvailable"`
	Tags        []string  `json:"tags"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toProductResponse(p domain.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       formatMoney(p.Price),
		Category:    p.Category,
		Stock:       p.Stock,
		SKU:         p.SKU,
		IsAvailable: p.IsAvailable,
		Tags:        nonNil(p.Tags),
		Version:     p.Version,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toProductResponses(list []domain.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toProductResponse(p))
	}
	return out
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(domain.MoneyScale)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
