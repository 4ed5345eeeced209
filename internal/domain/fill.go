package domain

import "time"

// Fill is an immutable record of an order fill the engine has handled. Fills
// are journaled best-effort for audit; the engine itself never reads them
// back.
type Fill struct {
	OrderID    string
	AccountID  string
	Symbol     string
	Side       OrderSide
	Purpose    OrderPurpose
	Quantity   float64
	Price      float64
	LevelPrice float64
	FilledAt   time.Time
}
