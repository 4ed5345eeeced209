package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderActiveOnlyWhilePending(t *testing.T) {
	o := &Order{ID: "o-1", Status: OrderStatusPending}
	assert.True(t, o.IsActive())

	o.MarkFilled()
	assert.False(t, o.IsActive())

	o = &Order{ID: "o-2", Status: OrderStatusPending}
	o.MarkCancelled()
	assert.False(t, o.IsActive())
}

func TestAccountBusyIffPosition(t *testing.T) {
	a := NewTradingAccount("acc-1")
	assert.Equal(t, AccountStatusFree, a.Status)
	assert.True(t, a.HasFreeSlot())

	a.OpenPosition(NewPosition("BTCUSDT", 1, 100, 100))
	assert.Equal(t, AccountStatusBusy, a.Status)
	assert.NotNil(t, a.Position)
	assert.False(t, a.HasFreeSlot())

	a.ClosePosition()
	assert.Equal(t, AccountStatusFree, a.Status)
	assert.Nil(t, a.Position)
	assert.True(t, a.HasFreeSlot())
}

func TestGridLevelActivation(t *testing.T) {
	l := NewGridLevel(100, 1)

	assert.False(t, l.ActivationReached(100.5, 0.01))
	assert.True(t, l.ActivationReached(101, 0.01), "threshold is inclusive")
	assert.True(t, l.ActivationReached(102, 0.01))
	assert.True(t, l.ActivationReached(98, 0.01), "deviation counts in both directions")
}

func TestNewGridLevelClampsCapacity(t *testing.T) {
	assert.Equal(t, 1, NewGridLevel(100, 0).MaxPositions)
	assert.Equal(t, 1, NewGridLevel(100, -3).MaxPositions)
	assert.Equal(t, 4, NewGridLevel(100, 4).MaxPositions)
}
