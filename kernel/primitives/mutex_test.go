package primitives_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-vrtos/kernel/primitives"
	"github.com/joeycumines/go-vrtos/kernel/status"
)

func TestMutex_UncontendedLockUnlock(t *testing.T) {
	k := newTestKernel()
	m := primitives.NewMutex(k, 8)

	var sawOwned bool
	k.spawn(1, "solo", 1, func() {
		require.Equal(t, status.Success, m.Lock(^uint32(0)))
		sawOwned = m.Owner() != nil
		require.Equal(t, status.Success, m.Unlock())
	})
	k.run()

	assert.True(t, sawOwned)
	assert.Nil(t, m.Owner())
}

func TestMutex_RecursiveLock(t *testing.T) {
	k := newTestKernel()
	m := primitives.NewMutex(k, 8)

	var stillHeldAfterOne bool
	k.spawn(1, "solo", 1, func() {
		require.Equal(t, status.Success, m.Lock(^uint32(0)))
		require.Equal(t, status.Success, m.Lock(^uint32(0)))
		require.Equal(t, status.Success, m.Unlock())
		stillHeldAfterOne = m.Owner() != nil
		require.Equal(t, status.Success, m.Unlock())
	})
	k.run()

	assert.True(t, stillHeldAfterOne)
	assert.Nil(t, m.Owner())
}

func TestMutex_UnlockByNonOwnerRejected(t *testing.T) {
	k := newTestKernel()
	m := primitives.NewMutex(k, 8)
	k.spawn(1, "solo", 1, func() {
		assert.Equal(t, status.InvalidState, m.Unlock())
	})
	k.run()
}

// TestMutex_ContendedOwnershipTransfer: a holder locks, a higher-priority
// waiter created afterward blocks on the same mutex, and releasing the
// mutex transfers ownership straight to the waiter.
func TestMutex_ContendedOwnershipTransfer(t *testing.T) {
	k := newTestKernel()
	m := primitives.NewMutex(k, 8)

	var waiterGotLock bool

	k.spawn(1, "holder", 1, func() {
		require.Equal(t, status.Success, m.Lock(^uint32(0)))

		k.spawn(2, "waiter", 5, func() {
			st := m.Lock(^uint32(0))
			waiterGotLock = st == status.Success
			require.Equal(t, status.Success, m.Unlock())
		})

		// The spawn above preempted this goroutine until the waiter
		// blocked on the mutex (it has no other way to proceed); by the
		// time control returns here, inheritance has already boosted us.
		require.Equal(t, status.Success, m.Unlock())
	})
	k.run()

	assert.True(t, waiterGotLock)
	assert.Nil(t, m.Owner())
}

// TestMutex_PriorityInheritance: a low-priority task holds the mutex; a
// higher-priority task created while it's held blocks on the same mutex,
// boosting the holder's effective priority for as long as it holds the
// lock, and restoring it to base once released.
func TestMutex_PriorityInheritance(t *testing.T) {
	k := newTestKernel()
	m := primitives.NewMutex(k, 8)

	var boostedPriority, restoredPriority int

	holder := k.spawn(1, "low", 1, func() {
		require.Equal(t, status.Success, m.Lock(^uint32(0)))

		k.spawn(2, "high", 5, func() {
			require.Equal(t, status.Success, m.Lock(^uint32(0)))
			require.Equal(t, status.Success, m.Unlock())
		})

		boostedPriority = holderEffPriority(k)
		require.Equal(t, status.Success, m.Unlock())
		restoredPriority = holderEffPriority(k)
	})
	k.run()

	assert.Equal(t, 5, boostedPriority)
	assert.Equal(t, 1, restoredPriority)
	assert.Equal(t, 1, holder.BasePriority)
}

func holderEffPriority(k *testKernel) int {
	return k.Current().EffPriority
}

// TestMutex_TransitiveInheritance: a (priority 9) blocks on mAB, held by b
// (priority 5), boosting b to 9; b, still holding mAB, then blocks on mBC,
// held by c (priority 1), and carries the inherited 9 on to c. b is Ready,
// not Blocked, when a blocks, so each boost here is a single hop of the
// walk.
func TestMutex_TransitiveInheritance(t *testing.T) {
	k := newTestKernel()
	mBC := primitives.NewMutex(k, 8) // b blocks on this, held by c
	mAB := primitives.NewMutex(k, 8) // a blocks on this, held by b

	var cEffWhileChainHeld int

	c := k.spawn(1, "c", 1, func() {
		require.Equal(t, status.Success, mBC.Lock(^uint32(0)))

		k.spawn(2, "b", 5, func() {
			require.Equal(t, status.Success, mAB.Lock(^uint32(0)))

			k.spawn(3, "a", 9, func() {
				require.Equal(t, status.Success, mAB.Lock(^uint32(0)))
				require.Equal(t, status.Success, mAB.Unlock())
			})

			// a is now blocked on mAB, having boosted b to priority 9;
			// blocking here propagates that boost to c, which owns mBC.
			require.Equal(t, status.Success, mBC.Lock(^uint32(0)))
			require.Equal(t, status.Success, mBC.Unlock())
			require.Equal(t, status.Success, mAB.Unlock())
		})

		cEffWhileChainHeld = k.Current().EffPriority
		require.Equal(t, status.Success, mBC.Unlock())
	})
	k.run()

	assert.Equal(t, 1, c.BasePriority)
	assert.Equal(t, 9, cEffWhileChainHeld)
}
