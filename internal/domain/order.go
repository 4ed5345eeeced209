package domain

import "time"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "Buy"
	OrderSideSell OrderSide = "Sell"
)

// OrderKind indicates the execution style of the order. The engine only
// places resting limit orders.
type OrderKind string

const OrderKindLimit OrderKind = "Limit"

// OrderStatus tracks the order lifecycle.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderPurpose is the closed set of roles an order can play in the grid
// lifecycle. Fill routing switches exhaustively on this type; adding a new
// purpose without extending the fill handler is a compile-visible change,
// not a silently dropped string.
type OrderPurpose string

const (
	// PurposeGrid is the initial entry order resting at a grid level.
	PurposeGrid OrderPurpose = "grid"
	// PurposeClose is the exit order for an open position.
	PurposeClose OrderPurpose = "close"
	// PurposeAveraging is the loss-averaging order below the entry price.
	PurposeAveraging OrderPurpose = "averaging"
)

// Order represents a single resting order tracked by the engine.
type Order struct {
	ID        string
	Symbol    string
	Side      OrderSide
	Kind      OrderKind
	Quantity  float64
	Price     float64
	Purpose   OrderPurpose
	AccountID string
	Status    OrderStatus
	// LevelPrice is the grid level this order targets. Zero for close and
	// averaging orders, which belong to a position rather than a level.
	LevelPrice float64
	CreatedAt  time.Time
}

// MarkFilled transitions the order to the filled status.
func (o *Order) MarkFilled() {
	o.Status = OrderStatusFilled
}

// MarkCancelled transitions the order to the cancelled status.
func (o *Order) MarkCancelled() {
	o.Status = OrderStatusCancelled
}

// IsActive reports whether the order is still resting on the exchange.
func (o *Order) IsActive() bool {
	return o.Status == OrderStatusPending
}
