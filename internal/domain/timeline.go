package domain

import "time"

// Типы событий в таймлайне заказа.
const (
	TimelineOrderCreated         = "OrderCreated"
	TimelineStockDecremented     = "StockDecremented"
	TimelineStockDecrementFailed = "StockDecrementFailed"
	TimelineOrderUpdated         = "OrderUpdated"
	TimelineOrderStatusChanged   = "OrderStatusChanged"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}
