package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquirePicksHighestQualifyingBalance(t *testing.T) {
	q := NewAccountQueue([]string{"a", "b", "c"})
	q.ByID("a").Balance = 500
	q.ByID("b").Balance = 2000
	q.ByID("c").Balance = 1500

	got := q.Acquire(1000)
	require.NotNil(t, got)
	assert.Equal(t, "b", got.ID)
	assert.Equal(t, 2, q.FreeCount())
}

func TestAcquireReturnsNilWhenNoBalanceSuffices(t *testing.T) {
	q := NewAccountQueue([]string{"a"})
	q.ByID("a").Balance = 1000

	assert.Nil(t, q.Acquire(1200))
	assert.Equal(t, 1, q.FreeCount(), "failed acquisition leaves the pool unchanged")
}

func TestAcquireBreaksTiesByInsertionOrder(t *testing.T) {
	q := NewAccountQueue([]string{"z-first", "a-second"})
	q.ByID("z-first").Balance = 100
	q.ByID("a-second").Balance = 100

	got := q.Acquire(100)
	require.NotNil(t, got)
	assert.Equal(t, "z-first", got.ID, "ties resolve by pool insertion order, not id")
}

func TestAcquireSkipsBusyAccounts(t *testing.T) {
	q := NewAccountQueue([]string{"a", "b"})
	q.ByID("a").Balance = 5000
	q.ByID("b").Balance = 100

	first := q.Acquire(100)
	require.Equal(t, "a", first.ID)

	second := q.Acquire(100)
	require.NotNil(t, second)
	assert.Equal(t, "b", second.ID)
	assert.Nil(t, q.Acquire(100))
}

func TestReleaseIsIdempotent(t *testing.T) {
	q := NewAccountQueue([]string{"a"})
	q.ByID("a").Balance = 100

	got := q.Acquire(100)
	require.NotNil(t, got)
	require.Equal(t, 0, q.FreeCount())

	q.Release(got)
	q.Release(got)
	assert.Equal(t, 1, q.FreeCount(), "double release must not duplicate the account")

	q.Release(nil)
	assert.Equal(t, 1, q.FreeCount())
}

func TestAllReturnsStableOrder(t *testing.T) {
	q := NewAccountQueue([]string{"beta", "alpha"})
	all := q.All()
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].ID)
	assert.Equal(t, "beta", all[1].ID)
}
