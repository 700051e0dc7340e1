package timer

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Service driven by a virtual clock. Nothing fires until Advance
// is called. It is safe for concurrent use.
type Manual struct {
	mu     sync.Mutex
	now    time.Duration
	seq    uint64
	timers []*ManualTimer
}

// NewManual returns a virtual-clock timer service starting at zero.
func NewManual() *Manual {
	return &Manual{}
}

// Create returns a new, inactive timer.
func (m *Manual) Create(name string, period time.Duration, mode Mode, fn func()) (Timer, error) {
	if err := validate(period, fn); err != nil {
		return nil, err
	}
	t := &ManualTimer{svc: m, name: name, period: period, mode: mode, fn: fn}
	m.mu.Lock()
	m.timers = append(m.timers, t)
	m.mu.Unlock()
	return t, nil
}

// Now returns the virtual time elapsed since the service was created.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Timer returns the first timer created with name, or nil.
func (m *Manual) Timer(name string) *ManualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.timers {
		if t.name == name {
			return t
		}
	}
	return nil
}

// Advance moves the clock forward by d, firing every timer that falls due in
// deadline order. Callbacks run on the caller's goroutine.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := m.nextDueLocked(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = next.due
		if next.mode == Repeating {
			m.armLocked(next)
		} else {
			next.active = false
		}
		fn := next.fn
		m.mu.Unlock()

		fn()
	}
}

func (m *Manual) nextDueLocked(target time.Duration) *ManualTimer {
	var due []*ManualTimer
	for _, t := range m.timers {
		if t.active && t.due <= target {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].due != due[j].due {
			return due[i].due < due[j].due
		}
		return due[i].seq < due[j].seq
	})
	return due[0]
}

func (m *Manual) armLocked(t *ManualTimer) {
	m.seq++
	t.seq = m.seq
	t.active = true
	t.due = m.now + t.period
	t.starts++
}

// ManualTimer is a Timer created by Manual.
type ManualTimer struct {
	svc  *Manual
	name string
	mode Mode
	fn   func()

	// guarded by svc.mu
	period time.Duration
	active bool
	due    time.Duration
	seq    uint64
	starts int
}

func (t *ManualTimer) Name() string { return t.name }

func (t *ManualTimer) Start() {
	t.svc.mu.Lock()
	defer t.svc.mu.Unlock()
	t.svc.armLocked(t)
}

func (t *ManualTimer) Restart() { t.Start() }

func (t *ManualTimer) Stop() {
	t.svc.mu.Lock()
	defer t.svc.mu.Unlock()
	t.active = false
}

// Reset changes the period and starts the timer with it.
func (t *ManualTimer) Reset(period time.Duration) error {
	if period <= 0 {
		return ErrZeroPeriod
	}
	t.svc.mu.Lock()
	defer t.svc.mu.Unlock()
	t.period = period
	t.svc.armLocked(t)
	return nil
}

func (t *ManualTimer) Active() bool {
	t.svc.mu.Lock()
	defer t.svc.mu.Unlock()
	return t.active
}

func (t *ManualTimer) Period() time.Duration {
	t.svc.mu.Lock()
	defer t.svc.mu.Unlock()
	return t.period
}

// Remaining returns the virtual time until the timer fires, or zero when inactive.
func (t *ManualTimer) Remaining() time.Duration {
	t.svc.mu.Lock()
	defer t.svc.mu.Unlock()
	if !t.active {
		return 0
	}
	return t.due - t.svc.now
}

// Starts returns how many times the timer has been armed, including re-arms
// of a repeating timer.
func (t *ManualTimer) Starts() int {
	t.svc.mu.Lock()
	defer t.svc.mu.Unlock()
	return t.starts
}
