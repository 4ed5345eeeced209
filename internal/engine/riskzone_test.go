package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/avetrov/gridbot/internal/domain"
)

func TestClassifyBoundariesAreInclusive(t *testing.T) {
	m := NewRiskZoneManager(
		[]SymbolConfig{{Name: "BTCUSDT", OversoldMax: 95, OverboughtMin: 105}},
		map[domain.RiskZone]ZoneParams{},
	)

	tests := []struct {
		price float64
		want  domain.RiskZone
	}{
		{90, domain.ZoneOversold},
		{95, domain.ZoneOversold},
		{95.01, domain.ZoneNeutral},
		{100, domain.ZoneNeutral},
		{104.99, domain.ZoneNeutral},
		{105, domain.ZoneOverbought},
		{120, domain.ZoneOverbought},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Classify("BTCUSDT", tt.price), "price=%v", tt.price)
	}
}

func TestClassifyUnknownSymbolIsNeutral(t *testing.T) {
	m := NewRiskZoneManager(nil, nil)
	assert.Equal(t, domain.ZoneNeutral, m.Classify("ETHUSDT", 1))
}

func TestLevelConfigResolvesZoneParams(t *testing.T) {
	m := NewRiskZoneManager(
		[]SymbolConfig{{Name: "BTCUSDT", OversoldMax: 95, OverboughtMin: 105}},
		map[domain.RiskZone]ZoneParams{
			domain.ZoneOversold: {Leverage: 3, VolumeQuote: 300},
			domain.ZoneNeutral:  {Leverage: 1, VolumeQuote: 100},
		},
	)

	cfg := m.LevelConfig("BTCUSDT", 94)
	assert.Equal(t, domain.ZoneOversold, cfg.Zone)
	assert.InDelta(t, 3.0, cfg.Leverage, 1e-9)
	assert.InDelta(t, 100.0, cfg.RequiredBalance(), 1e-9, "300 notional at 3x leverage")

	cfg = m.LevelConfig("BTCUSDT", 100)
	assert.Equal(t, domain.ZoneNeutral, cfg.Zone)
	assert.InDelta(t, 100.0, cfg.RequiredBalance(), 1e-9)
}
