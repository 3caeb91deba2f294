package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — начальный статус; заказ создан оркестратором.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed — заказ подтверждён оператором.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusProcessing — заказ собирается.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ вручён клиенту.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderStatuses перечисляет все допустимые статусы.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// ParseOrderStatus разбирает строковый статус; пустая строка недопустима.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", NewValidationError("status must be one of pending, confirmed, processing, shipped, delivered, cancelled")
	}
	return status, nil
}

// CustomerInfo — клиентские поля заказа.
type CustomerInfo struct {
	Name            string
	Email           string
	Phone           string
	ShippingAddress string
	City            string
	PostalCode      string
	Notes           string
}

// Validate проверяет клиентские поля.
func (c CustomerInfo) Validate() error {
	var chk fieldChecker
	c.check(&chk)
	return chk.err()
}

func (c CustomerInfo) check(chk *fieldChecker) {
	chk.requiredLength("customerName", c.Name, 1, 200)
	chk.email("customerEmail", c.Email)
	chk.maxLength("customerPhone", c.Phone, 20)
	chk.maxLength("city", c.City, 100)
	chk.maxLength("postalCode", c.PostalCode, 20)
}

// Order агрегирует состояние заказа.
//
// ProductDetails — копия товаров на момент создания; TotalAmount считается
// один раз из этого снимка и дальше не пересчитывается.
type Order struct {
	ID             string
	Customer       CustomerInfo
	ProductIDs     []string
	ProductDetails []ProductSnapshot
	TotalAmount    decimal.Decimal
	Status         OrderStatus
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Clone возвращает глубокую копию заказа.
func (o Order) Clone() Order {
	dst := o
	dst.ProductIDs = append([]string(nil), o.ProductIDs...)
	if o.ProductDetails != nil {
		dst.ProductDetails = make([]ProductSnapshot, len(o.ProductDetails))
		for i, snap := range o.ProductDetails {
			dst.ProductDetails[i] = snap.Clone()
		}
	}
	return dst
}

// ValidateNewOrder проверяет входные данные создания заказа целиком и
// возвращает все замечания одной ошибкой.
func ValidateNewOrder(customer CustomerInfo, productIDs []string) error {
	var chk fieldChecker
	customer.check(&chk)
	checkProductIDs(&chk, productIDs)
	return chk.err()
}

// ValidateProductIDs проверяет список идентификаторов товаров в заказе.
func ValidateProductIDs(ids []string) error {
	var chk fieldChecker
	checkProductIDs(&chk, ids)
	return chk.err()
}

func checkProductIDs(chk *fieldChecker, ids []string) {
	if len(ids) == 0 {
		chk.addf("productIds must contain at least one product id")
		return
	}
	for i, id := range ids {
		if strings.TrimSpace(id) == "" {
			chk.addf("productIds[%d] must not be empty", i)
		}
	}
}

// OrderPatch — частичное обновление заказа; nil означает "поле не передано".
type OrderPatch struct {
	CustomerName    *string
	CustomerEmail   *string
	CustomerPhone   *string
	ShippingAddress *string
	City            *string
	PostalCode      *string
	Notes           *string
	ProductIDs      []string
	Status          *OrderStatus
}

// Empty сообщает, что в патче нет ни одного поля.
func (p OrderPatch) Empty() bool {
	return p.CustomerName == nil && p.CustomerEmail == nil && p.CustomerPhone == nil &&
		p.ShippingAddress == nil && p.City == nil && p.PostalCode == nil &&
		p.Notes == nil && p.ProductIDs == nil && p.Status == nil
}

// Apply накладывает переданные поля на заказ и проверяет результат.
// TotalAmount и ProductDetails патч не трогает.
func (p OrderPatch) Apply(order *Order) error {
	setString(&order.Customer.Name, p.CustomerName)
	setString(&order.Customer.Email, p.CustomerEmail)
	setString(&order.Customer.Phone, p.CustomerPhone)
	setString(&order.Customer.ShippingAddress, p.ShippingAddress)
	setString(&order.Customer.City, p.City)
	setString(&order.Customer.PostalCode, p.PostalCode)
	setString(&order.Customer.Notes, p.Notes)
	if p.ProductIDs != nil {
		order.ProductIDs = append([]string(nil), p.ProductIDs...)
	}
	if p.Status != nil {
		order.Status = *p.Status
	}

	var chk fieldChecker
	order.Customer.check(&chk)
	if p.ProductIDs != nil {
		checkProductIDs(&chk, order.ProductIDs)
	}
	if !order.Status.Valid() {
		chk.addf("status %q is not supported", order.Status)
	}
	return chk.err()
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// OrderFilter задаёт фильтр выборки заказов; пустой Status не фильтрует.
type OrderFilter struct {
	Status OrderStatus
}

// SumSnapshotPrices складывает цены снимков товаров.
func SumSnapshotPrices(snapshots []ProductSnapshot) decimal.Decimal {
	total := decimal.Zero
	for _, snap := range snapshots {
		total = total.Add(snap.Price)
	}
	return total
}
