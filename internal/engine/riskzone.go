package engine

import "github.com/avetrov/gridbot/internal/domain"

// RiskZoneManager classifies prices into risk zones per symbol and maps each
// zone to its leverage and target notional volume.
type RiskZoneManager struct {
	bounds map[string]zoneBounds
	params map[domain.RiskZone]ZoneParams
}

type zoneBounds struct {
	oversoldMax   float64
	overboughtMin float64
}

// NewRiskZoneManager builds the classifier from static configuration.
func NewRiskZoneManager(symbols []SymbolConfig, params map[domain.RiskZone]ZoneParams) *RiskZoneManager {
	bounds := make(map[string]zoneBounds, len(symbols))
	for _, s := range symbols {
		bounds[s.Name] = zoneBounds{
			oversoldMax:   s.OversoldMax,
			overboughtMin: s.OverboughtMin,
		}
	}
	return &RiskZoneManager{bounds: bounds, params: params}
}

// Classify returns the risk zone for the symbol at price. Boundaries are
// inclusive: price <= oversold max is oversold, price >= overbought min is
// overbought. Unknown symbols classify as neutral.
func (m *RiskZoneManager) Classify(symbol string, price float64) domain.RiskZone {
	b, ok := m.bounds[symbol]
	if !ok {
		return domain.ZoneNeutral
	}
	switch {
	case price <= b.oversoldMax:
		return domain.ZoneOversold
	case price >= b.overboughtMin:
		return domain.ZoneOverbought
	default:
		return domain.ZoneNeutral
	}
}

// LevelConfig returns the sizing parameters for the symbol at price: the
// zone, its leverage, and its target notional volume.
func (m *RiskZoneManager) LevelConfig(symbol string, price float64) domain.LevelConfig {
	zone := m.Classify(symbol, price)
	p := m.params[zone]
	return domain.LevelConfig{
		Zone:        zone,
		Leverage:    p.Leverage,
		VolumeQuote: p.VolumeQuote,
	}
}
