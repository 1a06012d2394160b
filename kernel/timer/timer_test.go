package timer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop() {}

func TestService_StartFires(t *testing.T) {
	var s Service
	var fired int
	tm := New(1, "t", func(t *Timer, param any) { fired++ }, nil, 10, OneShot)

	s.Start(tm, 0)
	assert.True(t, tm.Active())

	s.Tick(9, noop, noop)
	assert.Equal(t, 0, fired)

	s.Tick(10, noop, noop)
	assert.Equal(t, 1, fired)
	assert.False(t, tm.Active())
}

func TestService_StopPreventsFiring(t *testing.T) {
	var s Service
	var fired int
	tm := New(1, "t", func(t *Timer, param any) { fired++ }, nil, 5, OneShot)

	s.Start(tm, 0)
	s.Stop(tm)
	assert.False(t, tm.Active())

	s.Tick(100, noop, noop)
	assert.Equal(t, 0, fired)
}

func TestService_StopOnInactiveIsNoop(t *testing.T) {
	var s Service
	tm := New(1, "t", nil, nil, 5, OneShot)
	s.Stop(tm)
	assert.False(t, tm.Active())
}

func TestService_AutoReloadRearmsWithoutDrift(t *testing.T) {
	var s Service
	var fireCount int
	tm := New(1, "t", func(t *Timer, param any) { fireCount++ }, nil, 10, AutoReload)

	s.Start(tm, 0)
	for now := uint32(1); now <= 35; now++ {
		s.Tick(now, noop, noop)
	}
	// fired at 10, 20, 30; expiry lands on the exact multiple, not drifted
	assert.Equal(t, 3, fireCount)
	assert.Equal(t, uint32(40), tm.expiry)
}

func TestService_AutoReloadCatchesUpAfterLongGap(t *testing.T) {
	var s Service
	var fireCount int
	tm := New(1, "t", func(t *Timer, param any) { fireCount++ }, nil, 10, AutoReload)

	s.Start(tm, 0)
	// skip straight past several periods in one Tick call
	s.Tick(35, noop, noop)

	require.True(t, tm.Active())
	assert.Equal(t, 1, fireCount)
	assert.Equal(t, uint32(40), tm.expiry)
}

func TestService_ZeroPeriodAutoReloadDoesNotHang(t *testing.T) {
	var s Service
	var fireCount int
	tm := New(1, "t", func(t *Timer, param any) { fireCount++ }, nil, 0, AutoReload)

	s.Start(tm, 0)
	s.Tick(3, noop, noop)

	assert.Equal(t, 1, fireCount)
	assert.Equal(t, uint32(4), tm.expiry)
}

func TestService_ChangePeriodRearmsActiveTimer(t *testing.T) {
	var s Service
	tm := New(1, "t", func(t *Timer, param any) {}, nil, 10, OneShot)

	s.Start(tm, 5)
	s.ChangePeriod(tm, 20, 7)
	assert.Equal(t, uint32(20), tm.Period)
	assert.Equal(t, uint32(27), tm.expiry)
}

func TestService_ChangePeriodOnInactiveDoesNotArm(t *testing.T) {
	var s Service
	tm := New(1, "t", nil, nil, 10, OneShot)

	s.ChangePeriod(tm, 20, 7)
	assert.Equal(t, uint32(20), tm.Period)
	assert.False(t, tm.Active())
}

func TestService_Delete(t *testing.T) {
	var s Service
	var fired int
	tm := New(1, "t", func(t *Timer, param any) { fired++ }, nil, 5, OneShot)

	s.Start(tm, 0)
	s.Delete(tm)
	assert.False(t, tm.Active())

	s.Tick(100, noop, noop)
	assert.Equal(t, 0, fired)
}

func TestService_MultipleTimersOrderedByExpiry(t *testing.T) {
	var s Service
	var order []string

	a := New(1, "a", func(t *Timer, param any) { order = append(order, "a") }, nil, 30, OneShot)
	b := New(2, "b", func(t *Timer, param any) { order = append(order, "b") }, nil, 10, OneShot)
	c := New(3, "c", func(t *Timer, param any) { order = append(order, "c") }, nil, 20, OneShot)

	s.Start(a, 0)
	s.Start(b, 0)
	s.Start(c, 0)

	s.Tick(30, noop, noop)
	assert.Equal(t, []string{"b", "c", "a"}, order)
}

func TestService_RestartWhileActiveDetachesFirst(t *testing.T) {
	var s Service
	var fired int
	tm := New(1, "t", func(t *Timer, param any) { fired++ }, nil, 10, OneShot)

	s.Start(tm, 0)
	s.Start(tm, 5) // restart before first expiry: fresh expiry = 15, not 10

	s.Tick(10, noop, noop)
	assert.Equal(t, 0, fired)

	s.Tick(15, noop, noop)
	assert.Equal(t, 1, fired)
}

func TestService_ReleaseAcquireCalledAroundCallback(t *testing.T) {
	var s Service
	var releaseCalls, acquireCalls int
	var heldDuringCallback bool
	held := false

	tm := New(1, "t", func(t *Timer, param any) {
		heldDuringCallback = held
	}, nil, 5, OneShot)

	s.Start(tm, 0)
	s.Tick(5,
		func() { releaseCalls++; held = false },
		func() { acquireCalls++; held = true },
	)

	assert.Equal(t, 1, releaseCalls)
	assert.Equal(t, 1, acquireCalls)
	assert.False(t, heldDuringCallback)
}
