package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/avetrov/gridbot/internal/domain"
)

// levelPriceEpsilon is the tolerance used when matching a resting order's
// level price against a configured level.
const levelPriceEpsilon = 0.01

// LevelManager owns, per symbol, the set of configured grid levels. It
// decides level activation and answers capacity queries; it never talks to
// the exchange.
type LevelManager struct {
	threshold float64
	levels    map[string]map[float64]*domain.GridLevel
	// sorted keeps each symbol's level prices ascending for next-above scans.
	sorted map[string][]float64
}

// NewLevelManager builds the ladders from static configuration. Every level
// starts inactive until InitializeLevels runs with a live price.
func NewLevelManager(symbols []SymbolConfig, threshold float64, maxPositions int) *LevelManager {
	m := &LevelManager{
		threshold: threshold,
		levels:    make(map[string]map[float64]*domain.GridLevel, len(symbols)),
		sorted:    make(map[string][]float64, len(symbols)),
	}
	for _, s := range symbols {
		byPrice := make(map[float64]*domain.GridLevel, len(s.GridLevels))
		prices := make([]float64, 0, len(s.GridLevels))
		for _, p := range s.GridLevels {
			if _, dup := byPrice[p]; dup {
				continue
			}
			byPrice[p] = domain.NewGridLevel(p, maxPositions)
			prices = append(prices, p)
		}
		sort.Float64s(prices)
		m.levels[s.Name] = byPrice
		m.sorted[s.Name] = prices
	}
	return m
}

// InitializeLevels marks every level of the symbol active or inactive based
// on whether its distance from price meets the activation threshold.
func (m *LevelManager) InitializeLevels(symbol string, price float64) {
	for _, level := range m.levels[symbol] {
		level.Active = level.ActivationReached(price, m.threshold)
	}
}

// NearestEligibleLevelBelow returns the level closest below the current
// price, provided it passes the activation threshold, has no resting grid
// order targeting it, has open capacity, and is not occupied by an open
// position (checked through the supplied predicates). On success the level is
// activated and its price returned; otherwise ok is false.
func (m *LevelManager) NearestEligibleLevelBelow(
	symbol string,
	price float64,
	hasGridOrder func(levelPrice float64) bool,
	occupied func(levelPrice float64) bool,
) (float64, bool) {
	nearest, found := m.nearestBelow(symbol, price)
	if !found {
		return 0, false
	}
	level := m.levels[symbol][nearest]
	if !level.ActivationReached(price, m.threshold) {
		return 0, false
	}
	if hasGridOrder != nil && hasGridOrder(nearest) {
		return 0, false
	}
	if !level.CanOpen() {
		return 0, false
	}
	if occupied != nil && occupied(nearest) {
		return 0, false
	}
	level.Active = true
	return nearest, true
}

// nearestBelow returns the configured level with minimum distance below
// price. Ties cannot occur within one symbol (levels are unique prices), and
// scan order over the sorted slice keeps the result deterministic anyway.
func (m *LevelManager) nearestBelow(symbol string, price float64) (float64, bool) {
	prices := m.sorted[symbol]
	best := 0.0
	found := false
	for _, p := range prices {
		if p >= price {
			break
		}
		best = p
		found = true
	}
	return best, found
}

// NextLevelAbove returns the lowest configured level strictly greater than
// price, or ok=false when none exists.
func (m *LevelManager) NextLevelAbove(symbol string, price float64) (float64, bool) {
	for _, p := range m.sorted[symbol] {
		if p > price {
			return p, true
		}
	}
	return 0, false
}

// CanOpen reports whether the level at price has spare capacity.
func (m *LevelManager) CanOpen(symbol string, price float64) bool {
	level := m.GetLevel(symbol, price)
	return level != nil && level.CanOpen()
}

// GetLevel returns the level at exactly price, or nil when not configured.
func (m *LevelManager) GetLevel(symbol string, price float64) *domain.GridLevel {
	return m.levels[symbol][price]
}

// Levels returns the symbol's levels in ascending price order.
func (m *LevelManager) Levels(symbol string) []*domain.GridLevel {
	out := make([]*domain.GridLevel, 0, len(m.sorted[symbol]))
	for _, p := range m.sorted[symbol] {
		out = append(out, m.levels[symbol][p])
	}
	return out
}

// ActivationInfo is a diagnostic report on the nearest level below the
// current price. It feeds the status API and operator messages; the trading
// algorithm itself never reads it.
type ActivationInfo struct {
	LevelPrice       float64 `json:"level_price"`
	Distance         float64 `json:"distance"`
	DeviationPercent float64 `json:"deviation_percent"`
	ThresholdPercent float64 `json:"threshold_percent"`
	Progress         string  `json:"progress"`
	Activated        bool    `json:"activated"`
	Status           string  `json:"status"`
}

// ActivationProgress describes how close the nearest level below price is to
// activation. It returns ok=false when the symbol has no level below price.
func (m *LevelManager) ActivationProgress(symbol string, price float64) (ActivationInfo, bool) {
	nearest, found := m.nearestBelow(symbol, price)
	if !found {
		return ActivationInfo{}, false
	}
	distance := price - nearest
	deviation := distance / nearest
	activated := deviation >= m.threshold

	info := ActivationInfo{
		LevelPrice:       nearest,
		Distance:         round2(distance),
		DeviationPercent: round2(deviation * 100),
		ThresholdPercent: round2(m.threshold * 100),
		Progress:         fmt.Sprintf("%.1f%%", deviation/m.threshold*100),
		Activated:        activated,
	}
	if activated {
		info.Status = "activated"
	} else {
		info.Status = fmt.Sprintf("needs %.2f%% more", (m.threshold-deviation)*100)
	}
	return info, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
