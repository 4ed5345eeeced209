package domain

import "math"

// GridLevel is a fixed price on a symbol's ladder. Levels are created once at
// engine startup from static configuration and never destroyed during a run;
// only Active and PositionsCount change afterwards.
type GridLevel struct {
	Price        float64
	MaxPositions int
	Active       bool
	// PositionsCount is the number of currently open positions that
	// originated from this level. Invariant: PositionsCount <= MaxPositions.
	PositionsCount int
}

// NewGridLevel creates an inactive level with the given price and capacity.
func NewGridLevel(price float64, maxPositions int) *GridLevel {
	if maxPositions < 1 {
		maxPositions = 1
	}
	return &GridLevel{Price: price, MaxPositions: maxPositions}
}

// ActivationReached reports whether the current price has moved far enough
// away from the level, as a fraction of the level price, to make the level
// eligible for order placement.
func (l *GridLevel) ActivationReached(currentPrice, threshold float64) bool {
	deviation := math.Abs(currentPrice-l.Price) / l.Price
	return deviation >= threshold
}

// CanOpen reports whether the level has spare position capacity.
func (l *GridLevel) CanOpen() bool {
	return l.PositionsCount < l.MaxPositions
}

// OpenPosition increments the open-position counter.
func (l *GridLevel) OpenPosition() {
	l.PositionsCount++
}

// ClosePosition decrements the open-position counter, never below zero.
func (l *GridLevel) ClosePosition() {
	if l.PositionsCount > 0 {
		l.PositionsCount--
	}
}
