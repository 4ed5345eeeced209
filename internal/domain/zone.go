package domain

// RiskZone classifies the current price of a symbol relative to its
// configured oversold/overbought boundaries. The zone drives leverage and
// target position size.
type RiskZone string

const (
	ZoneOversold   RiskZone = "oversold"
	ZoneNeutral    RiskZone = "neutral"
	ZoneOverbought RiskZone = "overbought"
)

// LevelConfig bundles the sizing parameters derived from a risk zone:
// the leverage multiplier and the target notional volume in quote currency.
type LevelConfig struct {
	Zone        RiskZone
	Leverage    float64
	VolumeQuote float64
}

// RequiredBalance returns the account balance needed to fund the target
// volume at the configured leverage.
func (c LevelConfig) RequiredBalance() float64 {
	if c.Leverage <= 0 {
		return c.VolumeQuote
	}
	return c.VolumeQuote / c.Leverage
}
