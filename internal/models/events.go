package models

import "time"

// Event types
const (
	EventTypeOrderSubmitted     = "ORDER_SUBMITTED"
	EventTypeOrderReplayed      = "ORDER_REPLAYED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderSubmittedEvent published when an order lands in a session ledger
type OrderSubmittedEvent struct {
	BaseEvent
	SessionID     string          `json:"session_id"`
	OrderID       string          `json:"order_id"`
	RemoteOrderID string          `json:"remote_order_id"`
	Queued        bool            `json:"queued"`
	TotalAmount   int64           `json:"total_amount"`
	Items         []OrderItemData `json:"items"`
}

// OrderReplayedEvent published when a queued offline order reaches the endpoint
type OrderReplayedEvent struct {
	BaseEvent
	SessionID     string `json:"session_id"`
	Reference     string `json:"reference"`
	RemoteOrderID string `json:"remote_order_id"`
}

// OrderStatusChangedEvent is produced by the external order-tracking side
type OrderStatusChangedEvent struct {
	BaseEvent
	SessionID string      `json:"session_id"`
	OrderID   string      `json:"order_id"`
	Status    OrderStatus `json:"status"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID ID    `json:"product_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}
