package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avetrov/gridbot/internal/domain"
)

// quantityFromQuote converts a quote-currency notional into a base quantity
// at the given price, truncated to three decimals. Truncation, not rounding:
// the order must never ask for more notional than the account was sized for.
func quantityFromQuote(quoteVolume, price float64) float64 {
	if price <= 0 {
		return 0
	}
	qty := decimal.NewFromFloat(quoteVolume).
		Div(decimal.NewFromFloat(price)).
		Truncate(3)
	return qty.InexactFloat64()
}

// PlaceGridOrders scans each symbol for active levels that need a resting
// buy order and funds them from the account pool. Levels closest to the
// current price are served first, so scarce accounts go where a fill is most
// likely. Per-level failures release the acquired account, are logged, and
// do not stop the scan.
func (e *GridEngine) PlaceGridOrders(ctx context.Context) (int, error) {
	placed := 0
	for _, s := range e.cfg.Symbols {
		symbol := s.Name
		price := e.CurrentPrice(symbol)
		if price <= 0 {
			continue
		}
		for _, levelPrice := range e.eligibleLevels(symbol, price) {
			if ctx.Err() != nil {
				return placed, ctx.Err()
			}
			ok, err := e.placeGridOrderAtLevel(ctx, symbol, levelPrice)
			if err != nil {
				e.logger.WarnContext(ctx, "grid order placement failed",
					slog.String("symbol", symbol),
					slog.Float64("level", levelPrice),
					slog.String("error", err.Error()),
				)
				continue
			}
			if ok {
				placed++
			}
		}
	}
	return placed, nil
}

// eligibleLevels returns the active levels below price that have spare
// capacity, no resting grid order, and no open position, sorted by distance
// from the current price and then by price for deterministic ordering.
func (e *GridEngine) eligibleLevels(symbol string, price float64) []float64 {
	var out []float64
	for _, level := range e.levels.Levels(symbol) {
		if !level.Active || level.Price >= price || !level.CanOpen() {
			continue
		}
		if e.orders.hasGridOrderAtLevel(symbol, level.Price) {
			continue
		}
		if e.isLevelOccupied(symbol, level.Price) {
			continue
		}
		out = append(out, level.Price)
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := price-out[i], price-out[j]
		if di != dj {
			return di < dj
		}
		return out[i] < out[j]
	})
	return out
}

// placeGridOrderAtLevel funds and places one resting buy order at the level.
// It acquires an account sized for the level's risk zone, revalidates the
// balance against the exchange (the pool's view may be stale), configures
// leverage, and places the order. The acquired account is released on every
// failure path; on success it stays out of the pool, tied to the resting
// order. Returns false without error when no account qualifies.
func (e *GridEngine) placeGridOrderAtLevel(ctx context.Context, symbol string, levelPrice float64) (bool, error) {
	sizing := e.zones.LevelConfig(symbol, levelPrice)
	required := sizing.RequiredBalance()

	account := e.queue.Acquire(required)
	if account == nil {
		e.logger.DebugContext(ctx, "no account can fund level",
			slog.String("symbol", symbol),
			slog.Float64("level", levelPrice),
			slog.Float64("required", required),
		)
		return false, nil
	}

	// The pool balance may predate a recent fill or withdrawal. Re-read it
	// before committing capital.
	balance, err := e.exchange.GetAccountBalance(ctx, account.ID)
	if err != nil {
		e.queue.Release(account)
		return false, fmt.Errorf("engine: revalidate balance for %s: %w", account.ID, err)
	}
	account.Balance = balance
	if balance < required {
		e.queue.Release(account)
		e.logger.DebugContext(ctx, "account balance stale, releasing",
			slog.String("account", account.ID),
			slog.Float64("balance", balance),
			slog.Float64("required", required),
		)
		return false, nil
	}

	allowed, err := e.exchange.CanPlaceOrder(ctx, account.ID, symbol, nil)
	if err != nil {
		e.queue.Release(account)
		return false, fmt.Errorf("engine: order precheck for %s: %w", account.ID, err)
	}
	if !allowed {
		e.queue.Release(account)
		return false, nil
	}

	if err := e.exchange.SetLeverage(ctx, account.ID, symbol, sizing.Leverage); err != nil {
		e.queue.Release(account)
		return false, fmt.Errorf("engine: set leverage for %s: %w", account.ID, err)
	}

	qty := quantityFromQuote(sizing.VolumeQuote, levelPrice)
	if qty <= 0 {
		e.queue.Release(account)
		return false, fmt.Errorf("engine: zero quantity for %s at %.4f: %w", symbol, levelPrice, domain.ErrInvalidOrder)
	}

	order, err := e.submitOrder(ctx, account.ID, symbol, domain.OrderSideBuy, domain.PurposeGrid, qty, levelPrice, levelPrice)
	if err != nil {
		e.queue.Release(account)
		return false, err
	}

	e.logger.InfoContext(ctx, "grid order placed",
		slog.String("symbol", symbol),
		slog.String("account", account.ID),
		slog.String("order_id", order.ID),
		slog.Float64("level", levelPrice),
		slog.Float64("qty", qty),
		slog.String("zone", string(sizing.Zone)),
	)
	return true, nil
}

// submitOrder places a limit order on the exchange and registers it in the
// order table. levelPrice is zero for orders that belong to a position
// rather than a grid level.
func (e *GridEngine) submitOrder(
	ctx context.Context,
	accountID, symbol string,
	side domain.OrderSide,
	purpose domain.OrderPurpose,
	qty, price, levelPrice float64,
) (*domain.Order, error) {
	id, err := e.exchange.PlaceLimitOrder(ctx, accountID, symbol, side, qty, price)
	if err != nil {
		return nil, fmt.Errorf("engine: place %s order: %w", purpose, err)
	}
	order := &domain.Order{
		ID:         id,
		Symbol:     symbol,
		Side:       side,
		Kind:       domain.OrderKindLimit,
		Quantity:   qty,
		Price:      price,
		Purpose:    purpose,
		AccountID:  accountID,
		Status:     domain.OrderStatusPending,
		LevelPrice: levelPrice,
		CreatedAt:  time.Now(),
	}
	e.orders.insert(order)
	return order, nil
}

// replaceGridOrder re-arms a level after its grid order filled, if the level
// still has spare capacity for another position.
func (e *GridEngine) replaceGridOrder(ctx context.Context, symbol string, levelPrice float64) {
	if !e.levels.CanOpen(symbol, levelPrice) {
		return
	}
	if e.orders.hasGridOrderAtLevel(symbol, levelPrice) {
		return
	}
	if _, err := e.placeGridOrderAtLevel(ctx, symbol, levelPrice); err != nil {
		e.logger.WarnContext(ctx, "grid order replacement failed",
			slog.String("symbol", symbol),
			slog.Float64("level", levelPrice),
			slog.String("error", err.Error()),
		)
	}
}

// placeNewGridOrderOnLevel re-arms a level after its position closed. The
// level is forced active: having just completed a full trade cycle, it does
// not wait out the activation threshold again.
func (e *GridEngine) placeNewGridOrderOnLevel(ctx context.Context, symbol string, levelPrice float64) {
	if level := e.levels.GetLevel(symbol, levelPrice); level != nil {
		level.Active = true
	}
	e.replaceGridOrder(ctx, symbol, levelPrice)
}
