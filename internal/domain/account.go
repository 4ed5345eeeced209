package domain

// AccountStatus tracks whether a trading account currently holds a position.
type AccountStatus string

const (
	AccountStatusFree AccountStatus = "free"
	AccountStatusBusy AccountStatus = "busy"
)

// TradingAccount is one capital allocation unit from the configured pool.
// Invariant: Status is busy iff Position is non-nil.
type TradingAccount struct {
	ID      string
	Balance float64
	Status  AccountStatus
	// Position is the single open position held by this account, nil when
	// the account is free.
	Position *Position
}

// NewTradingAccount creates a free account with a zero balance; the real
// balance is fetched from the exchange at engine initialization.
func NewTradingAccount(id string) *TradingAccount {
	return &TradingAccount{ID: id, Status: AccountStatusFree}
}

// HasFreeSlot reports whether the account can take a new position.
func (a *TradingAccount) HasFreeSlot() bool {
	return a.Position == nil
}

// OpenPosition attaches a position to the account and marks it busy.
func (a *TradingAccount) OpenPosition(p *Position) {
	a.Position = p
	a.Status = AccountStatusBusy
}

// ClosePosition detaches the position and marks the account free.
func (a *TradingAccount) ClosePosition() {
	a.Position = nil
	a.Status = AccountStatusFree
}
