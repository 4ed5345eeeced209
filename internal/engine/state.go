package engine

import (
	"math"
	"sync"

	"github.com/avetrov/gridbot/internal/domain"
)

// orderTable tracks all resting orders the engine owns. It holds the primary
// order-id index and the secondary order-id to account-id index and mutates
// both under one lock in the same call, so the two can never drift apart
// mid-loop. The lock also covers reads from the status API goroutine.
type orderTable struct {
	mu        sync.RWMutex
	orders    map[string]*domain.Order
	accountOf map[string]string
}

func newOrderTable() *orderTable {
	return &orderTable{
		orders:    make(map[string]*domain.Order),
		accountOf: make(map[string]string),
	}
}

// insert registers an order under both indices.
func (t *orderTable) insert(o *domain.Order) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.orders[o.ID] = o
	t.accountOf[o.ID] = o.AccountID
}

// remove drops the order from both indices and returns it. The bool reports
// whether the order was tracked.
func (t *orderTable) remove(id string) (*domain.Order, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.orders[id]
	if !ok {
		// Still clear the secondary index in case of a partial entry.
		delete(t.accountOf, id)
		return nil, false
	}
	delete(t.orders, id)
	delete(t.accountOf, id)
	return o, true
}

// get returns the tracked order, or nil.
func (t *orderTable) get(id string) *domain.Order {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.orders[id]
}

// snapshot returns the currently tracked orders in unspecified order.
func (t *orderTable) snapshot() []*domain.Order {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*domain.Order, 0, len(t.orders))
	for _, o := range t.orders {
		out = append(out, o)
	}
	return out
}

// hasGridOrderAtLevel reports whether a grid-purpose order already targets
// the given level of the symbol.
func (t *orderTable) hasGridOrderAtLevel(symbol string, levelPrice float64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, o := range t.orders {
		if o.Purpose != domain.PurposeGrid || o.Symbol != symbol || o.LevelPrice == 0 {
			continue
		}
		if math.Abs(o.LevelPrice-levelPrice) < levelPriceEpsilon {
			return true
		}
	}
	return false
}

// size returns the number of tracked orders.
func (t *orderTable) size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.orders)
}
