package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avetrov/gridbot/internal/domain"
)

// CheckFilledOrders polls the exchange for the status of every tracked order
// and routes completed ones through the fill state machine. Exchange errors
// on a single order are logged and do not block the rest of the poll.
func (e *GridEngine) CheckFilledOrders(ctx context.Context) error {
	for _, order := range e.orders.snapshot() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// A handler earlier in this poll may have cancelled and removed the
		// order already.
		if e.orders.get(order.ID) == nil || !order.IsActive() {
			continue
		}
		status, err := e.exchange.CheckOrderStatus(ctx, order.AccountID, order.Symbol, order.ID)
		if err != nil {
			e.logger.WarnContext(ctx, "order status check failed",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		switch status {
		case domain.OrderStatusFilled:
			order.MarkFilled()
			e.orders.remove(order.ID)
			e.handleFill(ctx, order)
		case domain.OrderStatusCancelled:
			// Cancelled outside the engine (operator or exchange). Drop the
			// order and return the capital it was holding.
			order.MarkCancelled()
			e.orders.remove(order.ID)
			e.handleExternalCancel(ctx, order)
		case domain.OrderStatusPending:
			// Still resting.
		}
	}
	return nil
}

// handleFill journals the fill and dispatches on the order's purpose. The
// switch is exhaustive over the closed purpose set; anything else is a bug
// worth shouting about, not silently skipping.
func (e *GridEngine) handleFill(ctx context.Context, order *domain.Order) {
	e.recordFill(ctx, order)

	switch order.Purpose {
	case domain.PurposeGrid:
		e.handleGridFill(ctx, order)
	case domain.PurposeClose:
		e.handleCloseFill(ctx, order)
	case domain.PurposeAveraging:
		e.handleAveragingFill(ctx, order)
	default:
		e.logger.ErrorContext(ctx, "fill with unknown order purpose",
			slog.String("order_id", order.ID),
			slog.String("purpose", string(order.Purpose)),
		)
	}
}

// recordFill journals the fill best-effort. Persistence problems never feed
// back into trading decisions.
func (e *GridEngine) recordFill(ctx context.Context, order *domain.Order) {
	if e.fills == nil {
		return
	}
	f := domain.Fill{
		OrderID:    order.ID,
		AccountID:  order.AccountID,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Purpose:    order.Purpose,
		Quantity:   order.Quantity,
		Price:      order.Price,
		LevelPrice: order.LevelPrice,
		FilledAt:   time.Now(),
	}
	if err := e.fills.Record(ctx, f); err != nil {
		e.logger.WarnContext(ctx, "fill journal write failed",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
}

// handleGridFill opens a position from a filled grid entry: the account
// takes the position, the level's occupancy rises, a close order and an
// averaging order go out, and the level is re-armed if it has spare
// capacity.
func (e *GridEngine) handleGridFill(ctx context.Context, order *domain.Order) {
	account := e.queue.ByID(order.AccountID)
	if account == nil {
		e.logger.ErrorContext(ctx, "grid fill for unknown account",
			slog.String("order_id", order.ID),
			slog.String("account", order.AccountID),
		)
		return
	}
	if account.Position != nil {
		// The account already carries a position, which a grid fill must
		// never produce. Drop the fill rather than corrupt the busy-iff-
		// position invariant.
		e.logger.ErrorContext(ctx, "grid fill for busy account, dropping",
			slog.String("order_id", order.ID),
			slog.String("account", account.ID),
		)
		return
	}

	pos := domain.NewPosition(order.Symbol, order.Quantity, order.Price, order.LevelPrice)
	sizing := e.zones.LevelConfig(order.Symbol, order.Price)
	pos.Leverage = sizing.Leverage
	pos.RiskZone = sizing.Zone
	account.OpenPosition(pos)
	// The fill just consumed margin; re-read before sizing the averaging
	// order against this balance.
	e.refreshAccountBalance(ctx, account)

	if level := e.levels.GetLevel(order.Symbol, order.LevelPrice); level != nil {
		level.OpenPosition()
	}

	e.logger.InfoContext(ctx, "position opened",
		slog.String("symbol", order.Symbol),
		slog.String("account", account.ID),
		slog.Float64("entry", order.Price),
		slog.Float64("qty", order.Quantity),
		slog.String("zone", string(pos.RiskZone)),
	)
	e.notify(ctx, "position_opened", "Position opened",
		fmt.Sprintf("%s %s: %.3f @ %.4f (zone %s)", account.ID, order.Symbol, order.Quantity, order.Price, pos.RiskZone))

	e.placeCloseOrder(ctx, account, pos)
	e.placeAveragingOrder(ctx, account, pos)
	e.replaceGridOrder(ctx, order.Symbol, order.LevelPrice)
}

// handleCloseFill completes a trade cycle: the pending averaging order is
// cancelled, the position and level occupancy are released, the account
// returns to the pool, and the originating level is re-armed immediately.
func (e *GridEngine) handleCloseFill(ctx context.Context, order *domain.Order) {
	account := e.queue.ByID(order.AccountID)
	if account == nil || account.Position == nil {
		e.logger.ErrorContext(ctx, "close fill without open position",
			slog.String("order_id", order.ID),
			slog.String("account", order.AccountID),
		)
		return
	}
	pos := account.Position

	if pos.AveragingOrderID != "" {
		e.cancelAndCleanupOrder(ctx, account.ID, order.Symbol, pos.AveragingOrderID)
		pos.AveragingOrderID = ""
	}

	pnl := (order.Price - pos.AverageEntryPrice) * pos.TotalQuantity
	levelPrice := pos.LevelPrice

	if level := e.levels.GetLevel(order.Symbol, levelPrice); level != nil {
		level.ClosePosition()
	}
	account.ClosePosition()
	e.refreshAccountBalance(ctx, account)
	e.queue.Release(account)

	e.logger.InfoContext(ctx, "position closed",
		slog.String("symbol", order.Symbol),
		slog.String("account", account.ID),
		slog.Float64("exit", order.Price),
		slog.Float64("pnl", pnl),
	)
	e.notify(ctx, "position_closed", "Position closed",
		fmt.Sprintf("%s %s: exit %.4f, PnL %.2f", account.ID, order.Symbol, order.Price, pnl))

	e.placeNewGridOrderOnLevel(ctx, order.Symbol, levelPrice)
}

// handleAveragingFill folds the averaging fill into the position, replaces
// the stale close order with one at the new breakeven price, and leaves the
// position without a further averaging order.
func (e *GridEngine) handleAveragingFill(ctx context.Context, order *domain.Order) {
	account := e.queue.ByID(order.AccountID)
	if account == nil || account.Position == nil {
		e.logger.ErrorContext(ctx, "averaging fill without open position",
			slog.String("order_id", order.ID),
			slog.String("account", order.AccountID),
		)
		return
	}
	pos := account.Position

	pos.AddAveraging(order.Quantity, order.Price)
	pos.AveragingOrderID = ""

	if pos.CloseOrderID != "" {
		e.cancelAndCleanupOrder(ctx, account.ID, order.Symbol, pos.CloseOrderID)
		pos.CloseOrderID = ""
	}

	e.logger.InfoContext(ctx, "position averaged",
		slog.String("symbol", order.Symbol),
		slog.String("account", account.ID),
		slog.Float64("fill_price", order.Price),
		slog.Float64("avg_entry", pos.AverageEntryPrice),
		slog.Float64("total_qty", pos.TotalQuantity),
	)
	e.notify(ctx, "position_averaged", "Position averaged",
		fmt.Sprintf("%s %s: new avg entry %.4f, qty %.3f", account.ID, order.Symbol, pos.AverageEntryPrice, pos.TotalQuantity))

	e.placeBreakevenCloseOrder(ctx, account, pos)
}

// handleExternalCancel returns the capital behind an order the engine did
// not cancel itself. Only grid orders hold a pool account hostage; close and
// averaging orders belong to a position that remains open.
func (e *GridEngine) handleExternalCancel(ctx context.Context, order *domain.Order) {
	e.logger.WarnContext(ctx, "order cancelled externally",
		slog.String("order_id", order.ID),
		slog.String("purpose", string(order.Purpose)),
		slog.String("symbol", order.Symbol),
	)
	if order.Purpose != domain.PurposeGrid {
		return
	}
	account := e.queue.ByID(order.AccountID)
	if account == nil || account.Position != nil {
		return
	}
	e.refreshAccountBalance(ctx, account)
	e.queue.Release(account)
}

// placeCloseOrder places the profit-taking sell for a fresh position. In
// level mode it targets the next grid level above the entry, falling back to
// breakeven when the entry sits above the whole ladder.
func (e *GridEngine) placeCloseOrder(ctx context.Context, account *domain.TradingAccount, pos *domain.Position) {
	target := pos.BreakevenPrice()
	if e.cfg.ProfitCloseMode == CloseModeLevel {
		if above, ok := e.levels.NextLevelAbove(pos.Symbol, pos.AverageEntryPrice); ok {
			target = above
		}
	}
	order, err := e.submitOrder(ctx, account.ID, pos.Symbol, domain.OrderSideSell, domain.PurposeClose, pos.TotalQuantity, target, 0)
	if err != nil {
		e.logger.ErrorContext(ctx, "close order placement failed",
			slog.String("symbol", pos.Symbol),
			slog.String("account", account.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	pos.CloseOrderID = order.ID
}

// placeBreakevenCloseOrder places the post-averaging exit at the recomputed
// volume-weighted average entry price for the full position size.
func (e *GridEngine) placeBreakevenCloseOrder(ctx context.Context, account *domain.TradingAccount, pos *domain.Position) {
	order, err := e.submitOrder(ctx, account.ID, pos.Symbol, domain.OrderSideSell, domain.PurposeClose, pos.TotalQuantity, pos.BreakevenPrice(), 0)
	if err != nil {
		e.logger.ErrorContext(ctx, "breakeven close order placement failed",
			slog.String("symbol", pos.Symbol),
			slog.String("account", account.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	pos.CloseOrderID = order.ID
}

// placeAveragingOrder places the loss-averaging buy below the entry price.
// The order notional is position notional times (multiplier - 1), so a fill
// scales the position to multiplier times its size. When the account cannot
// fund it the position is flagged rather than failed: it still has a close
// order and can exit normally.
func (e *GridEngine) placeAveragingOrder(ctx context.Context, account *domain.TradingAccount, pos *domain.Position) {
	if e.cfg.AveragingMultiplier <= 1 || e.cfg.AveragingPriceDropPercent <= 0 {
		return
	}

	avgPrice := pos.AverageEntryPrice * (1 - e.cfg.AveragingPriceDropPercent/100)
	notional := pos.TotalQuantity * pos.AverageEntryPrice * (e.cfg.AveragingMultiplier - 1)
	qty := quantityFromQuote(notional, avgPrice)
	if qty <= 0 {
		return
	}

	// The averaging order rests lower, possibly in a different risk zone
	// than the entry. Fund it by the zone at its own price.
	sizing := e.zones.LevelConfig(pos.Symbol, avgPrice)
	required := notional
	if sizing.Leverage > 0 {
		required = notional / sizing.Leverage
	}
	canHold, err := e.exchange.CanPlaceOrder(ctx, account.ID, pos.Symbol, pos)
	if err != nil {
		e.logger.WarnContext(ctx, "averaging capacity check failed",
			slog.String("symbol", pos.Symbol),
			slog.String("account", account.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if !canHold || account.Balance < required {
		pos.AveragingFailedInsufficientBalance = true
		currentPrice := e.CurrentPrice(pos.Symbol)
		if pos.ShouldSendAveragingAlert(currentPrice, e.cfg.AveragingAlertROIStep) {
			pos.MarkAveragingAlertSent(currentPrice)
			reason := fmt.Sprintf("need %.2f, have %.2f", required, account.Balance)
			if !canHold {
				reason = "exchange refused additional size"
			}
			e.notify(ctx, "averaging_failed", "Averaging not funded",
				fmt.Sprintf("%s %s: %s (ROI %.2f%%)",
					account.ID, pos.Symbol, reason, pos.ROI(currentPrice)*100))
		}
		e.logger.WarnContext(ctx, "averaging order not funded",
			slog.String("symbol", pos.Symbol),
			slog.String("account", account.ID),
			slog.Float64("required", required),
			slog.Float64("balance", account.Balance),
			slog.Bool("capacity_ok", canHold),
		)
		return
	}

	order, err := e.submitOrder(ctx, account.ID, pos.Symbol, domain.OrderSideBuy, domain.PurposeAveraging, qty, avgPrice, 0)
	if err != nil {
		e.logger.ErrorContext(ctx, "averaging order placement failed",
			slog.String("symbol", pos.Symbol),
			slog.String("account", account.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	pos.AveragingOrderID = order.ID
}

// cancelAndCleanupOrder cancels a resting order and drops it from the order
// table regardless of the cancellation outcome: a cancel that failed because
// the order is already gone must not leave a ghost entry. A successful
// cancel waits out the settlement delay and refreshes the account balance.
func (e *GridEngine) cancelAndCleanupOrder(ctx context.Context, accountID, symbol, orderID string) bool {
	defer e.orders.remove(orderID)

	ok, err := e.exchange.CancelOrder(ctx, accountID, symbol, orderID)
	if err != nil {
		e.logger.WarnContext(ctx, "order cancellation failed",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		return false
	}
	if !ok {
		return false
	}

	select {
	case <-ctx.Done():
		return true
	case <-time.After(e.cfg.CancelSettleDelay):
	}
	if account := e.queue.ByID(accountID); account != nil {
		e.refreshAccountBalance(ctx, account)
	}
	return true
}

// refreshAccountBalance re-reads the account's balance from the exchange,
// keeping the stale value on error.
func (e *GridEngine) refreshAccountBalance(ctx context.Context, account *domain.TradingAccount) {
	balance, err := e.exchange.GetAccountBalance(ctx, account.ID)
	if err != nil {
		e.logger.WarnContext(ctx, "balance refresh failed",
			slog.String("account", account.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	account.Balance = balance
}
