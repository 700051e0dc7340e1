package mediator

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/stalink/internal/timer"
)

// EventKind is the first dispatch level of an account handler.
type EventKind uint8

const (
	// EventSubscribePull asks the account to fill in the payload.
	EventSubscribePull EventKind = iota + 1
	// EventNotify pushes the payload to the account.
	EventNotify
	// EventTimer is the account's periodic timer firing.
	EventTimer
)

func (k EventKind) String() string {
	switch k {
	case EventSubscribePull:
		return "pull"
	case EventNotify:
		return "notify"
	case EventTimer:
		return "timer"
	default:
		return "unknown"
	}
}

// Event is delivered to an account's handler.
type Event struct {
	Kind EventKind
	// From is the name of the sending account, empty for timer events.
	From    string
	Payload any
}

// Handler handles the events addressed to an account.
type Handler interface {
	HandleEvent(a *Account, ev Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(a *Account, ev Event) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(a *Account, ev Event) error { return f(a, ev) }

// Routes dispatches on the event kind. Kinds without a route are ErrUnsupported.
type Routes map[EventKind]HandlerFunc

// HandleEvent calls the route for ev.Kind.
func (r Routes) HandleEvent(a *Account, ev Event) error {
	fn, ok := r[ev.Kind]
	if !ok {
		return fmt.Errorf("%w: %s has no %s handler", ErrUnsupported, a.Name(), ev.Kind)
	}
	return fn(a, ev)
}

type accountStats struct {
	pulls     atomic.Uint64
	notifies  atomic.Uint64
	timers    atomic.Uint64
	publishes atomic.Uint64
	failures  atomic.Uint64
}

// Stats counts traffic of one account.
type Stats struct {
	// Pulls, Notifies and Timers count events delivered to the account.
	Pulls    uint64 `json:"pulls"`
	Notifies uint64 `json:"notifies"`
	Timers   uint64 `json:"timers"`
	// Publishes counts payloads the account published.
	Publishes uint64 `json:"publishes"`
	// Failures counts failed deliveries sent by the account.
	Failures uint64 `json:"failures"`
}

// Account is a named producer/consumer of one topic.
type Account struct {
	m    *Mediator
	name string

	mu           sync.RWMutex
	handler      Handler
	timerPeriod  time.Duration
	timerEnabled bool
	tm           timer.Timer

	mailbox *ring
	stats   accountStats
}

// Name returns the account name, which is also its topic name.
func (a *Account) Name() string { return a.name }

// Subscribe declares that a consumes the topic published by the account named
// topic. The target need not be registered yet. Subscribing twice is a no-op.
func (a *Account) Subscribe(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: empty topic", ErrParam)
	}
	if topic == a.name {
		return fmt.Errorf("%w: %s cannot subscribe to itself", ErrParam, a.name)
	}
	if a.m.subscribe(a, topic) {
		a.m.logger.Debug("subscribed", "account", a.name, "topic", topic)
	}
	return nil
}

// Subscriptions returns the topics a subscribed to, in subscription order.
func (a *Account) Subscriptions() []string { return a.m.subscriptionsOf(a) }

// Subscribers returns the names of accounts subscribed to a, in subscription order.
func (a *Account) Subscribers() []string {
	subs := a.m.subscribersOf(a.name)
	out := make([]string, len(subs))
	for i, s := range subs {
		out[i] = s.name
	}
	return out
}

// Pull asks target to fill in payload, which is usually a pointer to the
// target's request type.
func (a *Account) Pull(target string, payload any) error {
	return a.m.deliver(a, target, EventSubscribePull, payload)
}

// Notify pushes payload to target and returns the target's result.
func (a *Account) Notify(target string, payload any) error {
	return a.m.deliver(a, target, EventNotify, payload)
}

// Publish delivers payload as a notify to every subscriber of a, in
// subscription order. Subscriber failures are logged and do not stop the
// fan-out. It returns the number of subscribers that accepted the payload.
func (a *Account) Publish(payload any) int {
	a.mailbox.push(payload)
	a.stats.publishes.Add(1)

	delivered := 0
	for _, sub := range a.m.subscribersOf(a.name) {
		err := sub.dispatch(Event{Kind: EventNotify, From: a.name, Payload: payload})
		if err != nil {
			a.stats.failures.Add(1)
			a.m.logger.Debug("publish not accepted",
				"from", a.name, "to", sub.name, "status", StatusOf(err).String(), "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// Latest returns the most recently published payload.
func (a *Account) Latest() (any, bool) { return a.mailbox.latest() }

// Recent returns up to the mailbox capacity of recently published payloads,
// oldest first.
func (a *Account) Recent() []any { return a.mailbox.items() }

// SetEventHandler replaces the handler. Last writer wins.
func (a *Account) SetEventHandler(h Handler) {
	a.mu.Lock()
	a.handler = h
	a.mu.Unlock()
}

// SetTimerPeriod sets the period of the account timer.
func (a *Account) SetTimerPeriod(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: timer period must be positive", ErrParam)
	}
	a.mu.Lock()
	a.timerPeriod = d
	tm := a.tm
	enabled := a.timerEnabled
	a.mu.Unlock()

	if tm != nil && enabled && a.m.isStarted() {
		return tm.Reset(d)
	}
	if tm != nil {
		a.mu.Lock()
		a.tm = nil
		a.mu.Unlock()
		tm.Stop()
	}
	return nil
}

// SetTimerEnabled turns the account timer on or off. Enabling a running
// timer keeps its phase. Disabling does not interrupt an in-flight event.
func (a *Account) SetTimerEnabled(on bool) error {
	a.mu.Lock()
	if on && a.timerPeriod <= 0 {
		a.mu.Unlock()
		return fmt.Errorf("%w: timer period not set", ErrParam)
	}
	a.timerEnabled = on
	a.mu.Unlock()

	if !a.m.isStarted() {
		return nil
	}
	return a.applyTimer()
}

// TimerEnabled reports whether the account timer is enabled.
func (a *Account) TimerEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.timerEnabled
}

// TimerPeriod returns the account timer period.
func (a *Account) TimerPeriod() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.timerPeriod
}

// Stats returns a snapshot of the account's traffic counters.
func (a *Account) Stats() Stats {
	return Stats{
		Pulls:     a.stats.pulls.Load(),
		Notifies:  a.stats.notifies.Load(),
		Timers:    a.stats.timers.Load(),
		Publishes: a.stats.publishes.Load(),
		Failures:  a.stats.failures.Load(),
	}
}

func (a *Account) applyTimer() error {
	a.mu.Lock()
	enabled, period, tm := a.timerEnabled, a.timerPeriod, a.tm
	a.mu.Unlock()

	if !enabled {
		if tm != nil {
			tm.Stop()
		}
		return nil
	}

	if tm == nil {
		created, err := a.m.timers.Create(a.name, period, timer.Repeating, a.onTimer)
		if err != nil {
			return err
		}
		a.mu.Lock()
		a.tm = created
		a.mu.Unlock()
		tm = created
	}
	if !tm.Active() {
		tm.Start()
	}
	return nil
}

func (a *Account) stopTimer() {
	a.mu.RLock()
	tm := a.tm
	a.mu.RUnlock()
	if tm != nil {
		tm.Stop()
	}
}

func (a *Account) onTimer() {
	if err := a.dispatch(Event{Kind: EventTimer}); err != nil {
		a.m.logger.Warn("timer event failed", "account", a.name, "error", err)
	}
}

func (a *Account) dispatch(ev Event) error {
	a.mu.RLock()
	h := a.handler
	a.mu.RUnlock()

	switch ev.Kind {
	case EventSubscribePull:
		a.stats.pulls.Add(1)
	case EventNotify:
		a.stats.notifies.Add(1)
	case EventTimer:
		a.stats.timers.Add(1)
	}

	if h == nil {
		return fmt.Errorf("%w: %s has no handler", ErrUnsupported, a.name)
	}
	return classify(a.name, h.HandleEvent(a, ev))
}
