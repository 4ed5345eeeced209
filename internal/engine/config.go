// Package engine implements the grid strategy core: the account pool, the
// per-symbol level ladders, risk-zone sizing, and the order-lifecycle state
// machine that ties them together in a single cooperative control loop.
package engine

import (
	"time"

	"github.com/avetrov/gridbot/internal/domain"
)

// CloseMode selects how the first close order of a position is priced.
type CloseMode string

const (
	// CloseModeLevel targets the next configured grid level above the entry
	// price, falling back to breakeven when no such level exists.
	CloseModeLevel CloseMode = "level"
	// CloseModeBreakeven targets the volume-weighted average entry price.
	CloseModeBreakeven CloseMode = "breakeven"
)

// SymbolConfig holds the static per-symbol strategy parameters.
type SymbolConfig struct {
	Name string
	// GridLevels are the ladder prices, in any order.
	GridLevels []float64
	// OversoldMax is the highest price still classified as oversold.
	OversoldMax float64
	// OverboughtMin is the lowest price classified as overbought.
	OverboughtMin float64
}

// ZoneParams maps a risk zone to its leverage multiplier and target notional
// volume in quote currency.
type ZoneParams struct {
	Leverage    float64
	VolumeQuote float64
}

// Config is the immutable engine configuration, constructed once at startup
// and passed by value into the engine and its sub-managers.
type Config struct {
	AccountIDs []string
	Symbols    []SymbolConfig

	// ActivationThreshold is the minimum price deviation from a level, as a
	// fraction of the level price, before the level becomes eligible.
	ActivationThreshold  float64
	MaxPositionsPerLevel int
	ProfitCloseMode      CloseMode

	// AveragingPriceDropPercent is the entry-price discount, in percent, at
	// which the averaging order rests.
	AveragingPriceDropPercent float64
	// AveragingMultiplier scales the position notional: the averaging order
	// notional is position notional times (multiplier - 1).
	AveragingMultiplier float64
	// AveragingAlertROIStep is the ROI movement, in percentage points,
	// required between repeated averaging-failure alerts.
	AveragingAlertROIStep float64

	Zones map[domain.RiskZone]ZoneParams

	LoopInterval       time.Duration
	ErrorRetryInterval time.Duration
	// CancelSettleDelay is the pause after a successful cancellation before
	// the account balance is refreshed, covering exchange settlement lag.
	CancelSettleDelay time.Duration
}

// withDefaults fills in zero-valued durations and counts so a sparse config
// still yields a working engine.
func (c Config) withDefaults() Config {
	if c.MaxPositionsPerLevel < 1 {
		c.MaxPositionsPerLevel = 1
	}
	if c.ProfitCloseMode == "" {
		c.ProfitCloseMode = CloseModeBreakeven
	}
	if c.LoopInterval <= 0 {
		c.LoopInterval = 5 * time.Second
	}
	if c.ErrorRetryInterval <= 0 {
		c.ErrorRetryInterval = time.Second
	}
	if c.CancelSettleDelay <= 0 {
		c.CancelSettleDelay = 500 * time.Millisecond
	}
	if c.AveragingAlertROIStep <= 0 {
		c.AveragingAlertROIStep = 1
	}
	return c
}
