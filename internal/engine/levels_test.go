package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLevels(t *testing.T, levels []float64, threshold float64, maxPositions int) *LevelManager {
	t.Helper()
	return NewLevelManager([]SymbolConfig{{Name: "BTCUSDT", GridLevels: levels}}, threshold, maxPositions)
}

func TestInitializeLevelsHonorsThreshold(t *testing.T) {
	m := newTestLevels(t, []float64{100, 110}, 0.01, 1)

	// 100.5 is 0.5% from level 100: below the 1% threshold.
	m.InitializeLevels("BTCUSDT", 100.5)
	assert.False(t, m.GetLevel("BTCUSDT", 100).Active)
	// 110 is 8.6% away from 100.5.
	assert.True(t, m.GetLevel("BTCUSDT", 110).Active)

	// 102 is 2% from level 100: above the threshold.
	m.InitializeLevels("BTCUSDT", 102)
	assert.True(t, m.GetLevel("BTCUSDT", 100).Active)
}

func TestNearestEligibleLevelBelow(t *testing.T) {
	m := newTestLevels(t, []float64{90, 100, 110}, 0.01, 1)

	got, ok := m.NearestEligibleLevelBelow("BTCUSDT", 102, nil, nil)
	require.True(t, ok)
	assert.InDelta(t, 100.0, got, 1e-9)
	assert.True(t, m.GetLevel("BTCUSDT", 100).Active, "eligibility activates the level")

	// Within the threshold the nearest level is not eligible, and the scan
	// does not fall through to a farther level.
	_, ok = m.NearestEligibleLevelBelow("BTCUSDT", 100.5, nil, nil)
	assert.False(t, ok)

	// No level below the price at all.
	_, ok = m.NearestEligibleLevelBelow("BTCUSDT", 89, nil, nil)
	assert.False(t, ok)
}

func TestNearestEligibleLevelBelowRespectsPredicates(t *testing.T) {
	m := newTestLevels(t, []float64{100}, 0.01, 1)

	_, ok := m.NearestEligibleLevelBelow("BTCUSDT", 102,
		func(float64) bool { return true }, nil)
	assert.False(t, ok, "a resting grid order blocks the level")

	_, ok = m.NearestEligibleLevelBelow("BTCUSDT", 102,
		nil, func(float64) bool { return true })
	assert.False(t, ok, "an open position blocks the level")

	m.GetLevel("BTCUSDT", 100).PositionsCount = 1
	_, ok = m.NearestEligibleLevelBelow("BTCUSDT", 102, nil, nil)
	assert.False(t, ok, "a full level blocks placement")
}

func TestLevelCapacity(t *testing.T) {
	m := newTestLevels(t, []float64{100}, 0.01, 2)
	level := m.GetLevel("BTCUSDT", 100)

	require.True(t, level.CanOpen())
	level.OpenPosition()
	assert.True(t, level.CanOpen())
	level.OpenPosition()
	assert.False(t, level.CanOpen())
	assert.Equal(t, 2, level.PositionsCount)

	level.ClosePosition()
	assert.True(t, level.CanOpen())
	level.ClosePosition()
	level.ClosePosition()
	assert.Equal(t, 0, level.PositionsCount, "count never drops below zero")
}

func TestNextLevelAbove(t *testing.T) {
	m := newTestLevels(t, []float64{90, 100, 110}, 0.01, 1)

	got, ok := m.NextLevelAbove("BTCUSDT", 100)
	require.True(t, ok)
	assert.InDelta(t, 110.0, got, 1e-9, "strictly greater, not equal")

	_, ok = m.NextLevelAbove("BTCUSDT", 110)
	assert.False(t, ok)
}

func TestDuplicateLevelPricesCollapse(t *testing.T) {
	m := newTestLevels(t, []float64{100, 100, 90}, 0.01, 1)
	assert.Len(t, m.Levels("BTCUSDT"), 2)
}

func TestActivationProgress(t *testing.T) {
	m := newTestLevels(t, []float64{100}, 0.01, 1)

	info, ok := m.ActivationProgress("BTCUSDT", 100.5)
	require.True(t, ok)
	assert.False(t, info.Activated)
	assert.InDelta(t, 0.5, info.DeviationPercent, 1e-9)
	assert.InDelta(t, 1.0, info.ThresholdPercent, 1e-9)

	info, ok = m.ActivationProgress("BTCUSDT", 102)
	require.True(t, ok)
	assert.True(t, info.Activated)
	assert.Equal(t, "activated", info.Status)

	_, ok = m.ActivationProgress("BTCUSDT", 99)
	assert.False(t, ok)
}
