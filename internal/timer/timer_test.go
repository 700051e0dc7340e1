package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateValidation(t *testing.T) {
	for _, svc := range []Service{NewRuntime(), NewManual()} {
		_, err := svc.Create("zero", 0, OneShot, func() {})
		assert.ErrorIs(t, err, ErrZeroPeriod)

		_, err = svc.Create("nil", time.Second, OneShot, nil)
		assert.ErrorIs(t, err, ErrNilCallback)
	}
}

func TestRuntimeOneShot(t *testing.T) {
	fired := make(chan struct{}, 2)
	tm, err := NewRuntime().Create("once", 10*time.Millisecond, OneShot, func() { fired <- struct{}{} })
	require.NoError(t, err)

	assert.False(t, tm.Active())
	tm.Start()
	assert.True(t, tm.Active())

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.Eventually(t, func() bool { return !tm.Active() }, time.Second, 5*time.Millisecond)

	select {
	case <-fired:
		t.Fatal("one-shot timer fired twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRuntimeRepeating(t *testing.T) {
	var count atomic.Int32
	tm, err := NewRuntime().Create("tick", 5*time.Millisecond, Repeating, func() { count.Add(1) })
	require.NoError(t, err)

	tm.Start()
	assert.Eventually(t, func() bool { return count.Load() >= 3 }, time.Second, time.Millisecond)
	tm.Stop()
	assert.False(t, tm.Active())

	stopped := count.Load()
	time.Sleep(30 * time.Millisecond)
	// At most one in-flight callback may still land after Stop.
	assert.LessOrEqual(t, count.Load(), stopped+1)
}

func TestRuntimeStopInactiveIsNoop(t *testing.T) {
	tm, err := NewRuntime().Create("idle", time.Second, OneShot, func() {})
	require.NoError(t, err)

	tm.Stop()
	tm.Stop()
	assert.False(t, tm.Active())
}

func TestRuntimeReset(t *testing.T) {
	tm, err := NewRuntime().Create("reset", time.Hour, OneShot, func() {})
	require.NoError(t, err)

	assert.ErrorIs(t, tm.Reset(0), ErrZeroPeriod)
	require.NoError(t, tm.Reset(time.Minute))
	assert.Equal(t, time.Minute, tm.Period())
	assert.True(t, tm.Active())
	tm.Stop()
}

func TestManualOneShot(t *testing.T) {
	svc := NewManual()
	fired := 0
	tm, err := svc.Create("deadline", 60*time.Second, OneShot, func() { fired++ })
	require.NoError(t, err)

	tm.Start()
	svc.Advance(59 * time.Second)
	assert.Equal(t, 0, fired)
	assert.Equal(t, time.Second, svc.Timer("deadline").Remaining())

	svc.Advance(time.Second)
	assert.Equal(t, 1, fired)
	assert.False(t, tm.Active())

	svc.Advance(time.Hour)
	assert.Equal(t, 1, fired)
}

func TestManualRestartExtendsDeadline(t *testing.T) {
	svc := NewManual()
	fired := 0
	tm, err := svc.Create("deadline", 60*time.Second, OneShot, func() { fired++ })
	require.NoError(t, err)

	tm.Start()
	svc.Advance(50 * time.Second)
	tm.Restart()
	assert.Equal(t, 60*time.Second, svc.Timer("deadline").Remaining())

	svc.Advance(50 * time.Second)
	assert.Equal(t, 0, fired)
	svc.Advance(10 * time.Second)
	assert.Equal(t, 1, fired)
}

func TestManualRepeatingFiresOncePerPeriod(t *testing.T) {
	svc := NewManual()
	fired := 0
	tm, err := svc.Create("rescan", 30*time.Second, Repeating, func() { fired++ })
	require.NoError(t, err)

	tm.Start()
	svc.Advance(95 * time.Second)
	assert.Equal(t, 3, fired)
	assert.Equal(t, 95*time.Second, svc.Now())

	tm.Stop()
	svc.Advance(time.Minute)
	assert.Equal(t, 3, fired)
}

func TestManualCallbackMayStopItself(t *testing.T) {
	svc := NewManual()
	var tm Timer
	fired := 0
	tm, err := svc.Create("self", time.Second, Repeating, func() {
		fired++
		tm.Stop()
	})
	require.NoError(t, err)

	tm.Start()
	svc.Advance(10 * time.Second)
	assert.Equal(t, 1, fired)
}

func TestManualOrdering(t *testing.T) {
	svc := NewManual()
	var order []string
	a, _ := svc.Create("a", 2*time.Second, OneShot, func() { order = append(order, "a") })
	b, _ := svc.Create("b", time.Second, OneShot, func() { order = append(order, "b") })
	a.Start()
	b.Start()

	svc.Advance(5 * time.Second)
	assert.Equal(t, []string{"b", "a"}, order)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "one-shot", OneShot.String())
	assert.Equal(t, "repeating", Repeating.String())
}
