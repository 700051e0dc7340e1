// Package timer provides named software timers with one-shot and repeating
// modes.
//
// The Runtime service is backed by time.AfterFunc. Manual is a virtual-clock
// service for tests: timers only fire when the test advances the clock.
// Callbacks never run while a timer lock is held, so a callback may freely
// start, stop or reset any timer, including its own.
package timer

import (
	"errors"
	"sync"
	"time"
)

// Mode selects whether a timer fires once or keeps firing every period.
type Mode uint8

const (
	// OneShot timers go inactive after firing.
	OneShot Mode = iota
	// Repeating timers re-arm themselves after every firing.
	Repeating
)

// String returns the mode name.
func (m Mode) String() string {
	if m == Repeating {
		return "repeating"
	}
	return "one-shot"
}

var (
	// ErrZeroPeriod is returned when a timer is created or reset with a non-positive period.
	ErrZeroPeriod = errors.New("timer: period must be positive")

	// ErrNilCallback is returned when a timer is created without a callback.
	ErrNilCallback = errors.New("timer: callback is nil")
)

// Timer is a handle to one software timer.
//
// Start arms the timer for a full period, restarting it if it is already
// active. Stop disarms it; stopping an inactive timer is a no-op.
type Timer interface {
	Name() string
	Start()
	Stop()
	Restart()
	Reset(period time.Duration) error
	Active() bool
	Period() time.Duration
}

// Service creates timers.
type Service interface {
	Create(name string, period time.Duration, mode Mode, fn func()) (Timer, error)
}

// Runtime is a Service backed by the Go runtime timer.
type Runtime struct{}

// NewRuntime returns the wall-clock timer service.
func NewRuntime() *Runtime {
	return &Runtime{}
}

// Create returns a new, inactive timer.
func (*Runtime) Create(name string, period time.Duration, mode Mode, fn func()) (Timer, error) {
	if err := validate(period, fn); err != nil {
		return nil, err
	}
	return &runtimeTimer{name: name, period: period, mode: mode, fn: fn}, nil
}

func validate(period time.Duration, fn func()) error {
	if period <= 0 {
		return ErrZeroPeriod
	}
	if fn == nil {
		return ErrNilCallback
	}
	return nil
}

type runtimeTimer struct {
	name string
	mode Mode
	fn   func()

	mu     sync.Mutex
	period time.Duration
	t      *time.Timer
	active bool
	// gen invalidates callbacks of timers that were stopped or re-armed
	// after time.AfterFunc had already scheduled them.
	gen uint64
}

func (t *runtimeTimer) Name() string { return t.name }

func (t *runtimeTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.armLocked()
}

func (t *runtimeTimer) Restart() { t.Start() }

func (t *runtimeTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disarmLocked()
}

// Reset changes the period and starts the timer with it.
func (t *runtimeTimer) Reset(period time.Duration) error {
	if period <= 0 {
		return ErrZeroPeriod
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.period = period
	t.armLocked()
	return nil
}

func (t *runtimeTimer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

func (t *runtimeTimer) Period() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.period
}

func (t *runtimeTimer) armLocked() {
	t.disarmLocked()
	t.active = true
	gen := t.gen
	t.t = time.AfterFunc(t.period, func() { t.fire(gen) })
}

func (t *runtimeTimer) disarmLocked() {
	t.gen++
	t.active = false
	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
}

func (t *runtimeTimer) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || !t.active {
		t.mu.Unlock()
		return
	}
	if t.mode == Repeating {
		t.armLocked()
	} else {
		t.active = false
		t.t = nil
	}
	t.mu.Unlock()

	t.fn()
}
