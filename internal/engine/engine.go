package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avetrov/gridbot/internal/domain"
)

// GridEngine is the strategy orchestrator. It owns the account pool, the
// level ladders, the risk-zone classifier, and the engine-wide state (current
// prices and the active order table), and drives the single trading loop.
//
// All trading state is mutated only from the loop goroutine. The mutex guards
// nothing but the price map and read-only snapshots, which the WebSocket feed
// and the status API touch from other goroutines.
type GridEngine struct {
	cfg    Config
	logger *slog.Logger

	queue  *AccountQueue
	levels *LevelManager
	zones  *RiskZoneManager

	exchange domain.Exchange
	notifier domain.Notifier
	fills    domain.FillStore
	prices   domain.PriceCache

	mu            sync.RWMutex
	currentPrices map[string]float64
	orders        *orderTable

	running atomic.Bool
	// pollHint wakes the loop early when a webhook reports a fill.
	pollHint chan struct{}
}

// New creates a GridEngine from the immutable configuration. Collaborators
// are attached with the Set* methods before Initialize.
func New(cfg Config, logger *slog.Logger) *GridEngine {
	cfg = cfg.withDefaults()
	return &GridEngine{
		cfg:           cfg,
		logger:        logger.With(slog.String("component", "grid_engine")),
		queue:         NewAccountQueue(cfg.AccountIDs),
		levels:        NewLevelManager(cfg.Symbols, cfg.ActivationThreshold, cfg.MaxPositionsPerLevel),
		zones:         NewRiskZoneManager(cfg.Symbols, cfg.Zones),
		currentPrices: make(map[string]float64, len(cfg.Symbols)),
		orders:        newOrderTable(),
		pollHint:      make(chan struct{}, 1),
	}
}

// SetExchange attaches the exchange collaborator. Required before Initialize.
func (e *GridEngine) SetExchange(x domain.Exchange) { e.exchange = x }

// SetNotifier attaches the operator notification collaborator. Optional.
func (e *GridEngine) SetNotifier(n domain.Notifier) { e.notifier = n }

// SetFillStore attaches the optional fill journal.
func (e *GridEngine) SetFillStore(s domain.FillStore) { e.fills = s }

// SetPriceCache attaches the optional ticker price cache.
func (e *GridEngine) SetPriceCache(c domain.PriceCache) { e.prices = c }

// Initialize fetches every account's balance and every symbol's price, then
// initializes level activation. It fails only when the exchange collaborator
// is missing or a symbol price cannot be read; a failing balance fetch leaves
// that account at zero and is logged.
func (e *GridEngine) Initialize(ctx context.Context) error {
	if e.exchange == nil {
		return fmt.Errorf("engine: initialize: %w", domain.ErrExchangeNotSet)
	}

	for _, id := range e.cfg.AccountIDs {
		account := e.queue.ByID(id)
		balance, err := e.exchange.GetAccountBalance(ctx, id)
		if err != nil {
			e.logger.ErrorContext(ctx, "balance fetch failed, assuming zero",
				slog.String("account", id),
				slog.String("error", err.Error()),
			)
			balance = 0
		}
		account.Balance = balance
	}

	for _, s := range e.cfg.Symbols {
		price, err := e.exchange.GetCurrentPrice(ctx, s.Name)
		if err != nil {
			return fmt.Errorf("engine: initial price for %s: %w", s.Name, err)
		}
		e.setPrice(ctx, s.Name, price)
		e.levels.InitializeLevels(s.Name, price)
	}

	e.logger.InfoContext(ctx, "engine initialized",
		slog.Int("accounts", len(e.cfg.AccountIDs)),
		slog.Int("symbols", len(e.cfg.Symbols)),
	)
	return nil
}

// Run drives the trading loop until ctx is cancelled or Stop is called. Each
// iteration refreshes prices, activates eligible levels, places grid orders,
// and polls for fills; any iteration error is reported and the loop continues
// after the shorter retry interval.
func (e *GridEngine) Run(ctx context.Context) error {
	e.running.Store(true)
	e.logger.InfoContext(ctx, "trading loop started",
		slog.Duration("interval", e.cfg.LoopInterval),
	)

	// Seed the grid before the first tick, matching initialization order:
	// levels were just activated from fresh prices.
	if _, err := e.PlaceGridOrders(ctx); err != nil {
		e.reportCycleError(ctx, err)
	}

	for e.running.Load() {
		if err := e.runCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.reportCycleError(ctx, err)
			if !e.sleep(ctx, e.cfg.ErrorRetryInterval) {
				return ctx.Err()
			}
			continue
		}
		if !e.sleep(ctx, e.cfg.LoopInterval) {
			return ctx.Err()
		}
	}

	e.logger.Info("trading loop stopped")
	return nil
}

// Stop requests a prompt, cooperative exit of the trading loop. In-flight
// operations finish their current step. The hint wakes a loop parked in its
// interval sleep so the flag is observed without waiting it out.
func (e *GridEngine) Stop() {
	e.running.Store(false)
	select {
	case e.pollHint <- struct{}{}:
	default:
	}
}

// Running reports whether the trading loop is active.
func (e *GridEngine) Running() bool {
	return e.running.Load()
}

// NotifyFillHint wakes the loop early so a webhook-reported fill is picked up
// on the next poll without waiting out the full interval.
func (e *GridEngine) NotifyFillHint() {
	select {
	case e.pollHint <- struct{}{}:
	default:
	}
}

// runCycle executes one loop iteration: price refresh, level activation,
// placement, fill polling.
func (e *GridEngine) runCycle(ctx context.Context) error {
	if err := e.refreshPrices(ctx); err != nil {
		return err
	}
	e.activateNearestLevels(ctx)
	if _, err := e.PlaceGridOrders(ctx); err != nil {
		return err
	}
	return e.CheckFilledOrders(ctx)
}

// refreshPrices polls the exchange for every symbol's price and updates the
// engine state and (best-effort) the price cache.
func (e *GridEngine) refreshPrices(ctx context.Context) error {
	for _, s := range e.cfg.Symbols {
		price, err := e.exchange.GetCurrentPrice(ctx, s.Name)
		if err != nil {
			return fmt.Errorf("engine: refresh price for %s: %w", s.Name, err)
		}
		e.setPrice(ctx, s.Name, price)
	}
	return nil
}

// activateNearestLevels promotes the nearest eligible level below the
// current price of each symbol, if any.
func (e *GridEngine) activateNearestLevels(ctx context.Context) {
	for _, s := range e.cfg.Symbols {
		symbol := s.Name
		price := e.CurrentPrice(symbol)
		if price == 0 {
			continue
		}
		levelPrice, ok := e.levels.NearestEligibleLevelBelow(symbol, price,
			func(lp float64) bool { return e.orders.hasGridOrderAtLevel(symbol, lp) },
			func(lp float64) bool { return e.isLevelOccupied(symbol, lp) },
		)
		if ok {
			e.logger.DebugContext(ctx, "level activated",
				slog.String("symbol", symbol),
				slog.Float64("level", levelPrice),
			)
		}
	}
}

// isLevelOccupied reports whether any open position originated from the
// given level of the symbol.
func (e *GridEngine) isLevelOccupied(symbol string, levelPrice float64) bool {
	for _, a := range e.queue.All() {
		p := a.Position
		if p == nil || p.Symbol != symbol {
			continue
		}
		if p.LevelPrice == levelPrice {
			return true
		}
	}
	return false
}

// UpdatePrice records an externally observed ticker price (WebSocket feed).
// It does not touch level or order state; the loop re-reads prices itself.
func (e *GridEngine) UpdatePrice(ctx context.Context, symbol string, price float64) {
	e.setPrice(ctx, symbol, price)
}

func (e *GridEngine) setPrice(ctx context.Context, symbol string, price float64) {
	e.mu.Lock()
	e.currentPrices[symbol] = price
	e.mu.Unlock()

	if e.prices != nil {
		if err := e.prices.SetPrice(ctx, symbol, price, time.Now()); err != nil {
			e.logger.DebugContext(ctx, "price cache write failed",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
		}
	}
}

// CurrentPrice returns the last known price of the symbol, zero when none.
func (e *GridEngine) CurrentPrice(symbol string) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.currentPrices[symbol]
}

// reportCycleError logs the iteration error and forwards it to the opera-
// tor channel. Notification failure is swallowed: it must not amplify the
// original problem.
func (e *GridEngine) reportCycleError(ctx context.Context, err error) {
	e.logger.ErrorContext(ctx, "trading cycle error", slog.String("error", err.Error()))
	e.notify(ctx, "error", "Trading cycle error", err.Error())
}

// notify sends an operator notification if a notifier is attached, logging
// delivery failures at debug level.
func (e *GridEngine) notify(ctx context.Context, event, title, message string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, event, title, message); err != nil {
		e.logger.DebugContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// sleep waits for the duration, returning early (false) on ctx cancellation.
// A poll hint shortens the wait but still reports true.
func (e *GridEngine) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-e.pollHint:
		return true
	case <-time.After(d):
		return true
	}
}

// AccountSnapshot is a read-only view of one pool account for reporting.
type AccountSnapshot struct {
	ID       string  `json:"id"`
	Balance  float64 `json:"balance"`
	Status   string  `json:"status"`
	Symbol   string  `json:"symbol,omitempty"`
	Quantity float64 `json:"quantity,omitempty"`
	AvgEntry float64 `json:"avg_entry,omitempty"`
}

// Status is a point-in-time engine snapshot served by the status API.
type Status struct {
	Running      bool                      `json:"running"`
	Prices       map[string]float64        `json:"prices"`
	ActiveOrders int                       `json:"active_orders"`
	FreeAccounts int                       `json:"free_accounts"`
	Accounts     []AccountSnapshot         `json:"accounts"`
	Activation   map[string]ActivationInfo `json:"activation"`
}

// Snapshot assembles a Status. It is safe to call from outside the loop; the
// values are a consistent-enough view for operational dashboards, not a
// transactional read.
func (e *GridEngine) Snapshot() Status {
	e.mu.RLock()
	prices := make(map[string]float64, len(e.currentPrices))
	for k, v := range e.currentPrices {
		prices[k] = v
	}
	active := e.orders.size()
	e.mu.RUnlock()

	st := Status{
		Running:      e.running.Load(),
		Prices:       prices,
		ActiveOrders: active,
		FreeAccounts: e.queue.FreeCount(),
		Activation:   make(map[string]ActivationInfo, len(e.cfg.Symbols)),
	}
	for _, a := range e.queue.All() {
		snap := AccountSnapshot{ID: a.ID, Balance: a.Balance, Status: string(a.Status)}
		if p := a.Position; p != nil {
			snap.Symbol = p.Symbol
			snap.Quantity = p.TotalQuantity
			snap.AvgEntry = p.AverageEntryPrice
		}
		st.Accounts = append(st.Accounts, snap)
	}
	for _, s := range e.cfg.Symbols {
		if info, ok := e.levels.ActivationProgress(s.Name, prices[s.Name]); ok {
			st.Activation[s.Name] = info
		}
	}
	return st
}
