package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeSaleCompleted      = "sale.completed"
	EventTypeOrderStatusChanged = "order.status_changed"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}

// SaleCompletedEvent published once an order is persisted
type SaleCompletedEvent struct {
	BaseEvent
	OrderID       string          `json:"order_id"`
	OrderNumber   int64           `json:"order_number"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	ItemCount     int             `json:"item_count"`
}

// OrderStatusChangedEvent published after a status transition
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID     string      `json:"order_id"`
	OrderNumber int64       `json:"order_number"`
	From        OrderStatus `json:"from"`
	To          OrderStatus `json:"to"`
}
