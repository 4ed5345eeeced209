package engine

import (
	"sort"

	"github.com/avetrov/gridbot/internal/domain"
)

// AccountQueue owns the pool of trading accounts and an insertion-ordered
// working set of accounts not currently holding a position. It is only
// touched from the engine loop, so it needs no locking.
type AccountQueue struct {
	accounts map[string]*domain.TradingAccount
	// free is the working set. Order matters: ties on balance are resolved
	// by position in this slice, which keeps acquisition deterministic
	// within a process run.
	free []*domain.TradingAccount
}

// NewAccountQueue creates the pool from the configured account ids. All
// accounts start free with a zero balance.
func NewAccountQueue(ids []string) *AccountQueue {
	q := &AccountQueue{
		accounts: make(map[string]*domain.TradingAccount, len(ids)),
	}
	for _, id := range ids {
		a := domain.NewTradingAccount(id)
		q.accounts[a.ID] = a
		q.free = append(q.free, a)
	}
	return q
}

// ByID returns the account with the given id, or nil when unknown.
func (q *AccountQueue) ByID(id string) *domain.TradingAccount {
	return q.accounts[id]
}

// All returns every account in the pool, free or busy.
func (q *AccountQueue) All() []*domain.TradingAccount {
	out := make([]*domain.TradingAccount, 0, len(q.accounts))
	for _, id := range q.order() {
		out = append(out, q.accounts[id])
	}
	return out
}

// order returns account ids in a stable order for reporting.
func (q *AccountQueue) order() []string {
	ids := make([]string, 0, len(q.accounts))
	for id := range q.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Acquire removes and returns the free account with the highest balance among
// those with a free slot and balance >= minBalance. It returns nil when no
// account qualifies; the pool is left unchanged in that case. Equal balances
// resolve to the earliest-inserted account.
func (q *AccountQueue) Acquire(minBalance float64) *domain.TradingAccount {
	best := -1
	for i, a := range q.free {
		if !a.HasFreeSlot() || a.Balance < minBalance {
			continue
		}
		if best == -1 || a.Balance > q.free[best].Balance {
			best = i
		}
	}
	if best == -1 {
		return nil
	}
	a := q.free[best]
	q.free = append(q.free[:best], q.free[best+1:]...)
	return a
}

// Release re-adds the account to the working set. Releasing an account that
// is already present is a no-op, so double release cannot duplicate pool
// entries.
func (q *AccountQueue) Release(a *domain.TradingAccount) {
	if a == nil {
		return
	}
	for _, f := range q.free {
		if f == a {
			return
		}
	}
	q.free = append(q.free, a)
}

// FreeCount returns the size of the working set.
func (q *AccountQueue) FreeCount() int {
	return len(q.free)
}
