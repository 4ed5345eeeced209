package domain

import "context"

// Exchange is the contract the engine requires from the exchange
// connectivity layer. Every call may fail and is treated by the engine as a
// suspension point after which previously read state may be stale.
type Exchange interface {
	// GetAccountBalance returns the available quote-currency balance of a
	// trading account.
	GetAccountBalance(ctx context.Context, accountID string) (float64, error)

	// GetCurrentPrice returns the last traded price of a symbol.
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)

	// PlaceLimitOrder places a resting limit order and returns the
	// exchange-assigned order id.
	PlaceLimitOrder(ctx context.Context, accountID, symbol string, side OrderSide, qty, price float64) (string, error)

	// CancelOrder requests cancellation of a resting order. The returned
	// bool reports whether the exchange accepted the cancellation.
	CancelOrder(ctx context.Context, accountID, symbol, orderID string) (bool, error)

	// CheckOrderStatus returns the current lifecycle status of an order.
	CheckOrderStatus(ctx context.Context, accountID, symbol, orderID string) (OrderStatus, error)

	// CanPlaceOrder reports whether the account may take a new order on the
	// symbol given its current position (nil when opening fresh).
	CanPlaceOrder(ctx context.Context, accountID, symbol string, position *Position) (bool, error)

	// SetLeverage configures the leverage for the account on the symbol.
	SetLeverage(ctx context.Context, accountID, symbol string, leverage float64) error
}

// Notifier delivers operator notifications. Delivery is best-effort: a
// failing notifier must never abort engine operation.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}
