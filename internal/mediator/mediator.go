package mediator

import (
	"fmt"
	"sync"

	"github.com/nerrad567/stalink/internal/timer"
)

// Logger is the logging interface used by the mediator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// edge is a declared subscription of subscriber to publisher's topic.
type edge struct {
	subscriber *Account
	publisher  string
}

// Mediator is the account registry.
//
// All methods are safe for concurrent use. The registry lock is never held
// while a handler runs, so handlers may pull, notify and publish freely.
type Mediator struct {
	timers timer.Service
	logger Logger

	mu       sync.RWMutex
	accounts map[string]*Account
	order    []*Account
	edges    []edge
	started  bool
}

// New creates an empty registry. Account timers are created from timers.
func New(timers timer.Service) *Mediator {
	return &Mediator{
		timers:   timers,
		logger:   noopLogger{},
		accounts: make(map[string]*Account),
	}
}

// SetLogger sets the logger for the mediator.
func (m *Mediator) SetLogger(logger Logger) {
	m.logger = logger
}

// Register creates an account named name.
//
// mailboxCapacity is the number of published payloads the account retains
// for inspection; zero keeps none. handler may be nil and set later with
// SetEventHandler.
func (m *Mediator) Register(name string, handler Handler, mailboxCapacity int) (*Account, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty account name", ErrParam)
	}
	if mailboxCapacity < 0 {
		return nil, fmt.Errorf("%w: negative mailbox capacity", ErrParam)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAccountExists, name)
	}

	a := &Account{
		m:       m,
		name:    name,
		handler: handler,
		mailbox: newRing(mailboxCapacity),
	}
	m.accounts[name] = a
	m.order = append(m.order, a)

	m.logger.Debug("account registered", "account", name)
	return a, nil
}

// Account returns the registered account named name.
func (m *Mediator) Account(name string) (*Account, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[name]
	return a, ok
}

// Accounts returns every account in registration order.
func (m *Mediator) Accounts() []*Account {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Account(nil), m.order...)
}

// Start arms the timers of every account that enabled one during
// registration. Timers enabled after Start are armed immediately.
func (m *Mediator) Start() error {
	m.mu.Lock()
	m.started = true
	accounts := append([]*Account(nil), m.order...)
	m.mu.Unlock()

	for _, a := range accounts {
		if err := a.applyTimer(); err != nil {
			return fmt.Errorf("arming timer of %s: %w", a.name, err)
		}
	}
	m.logger.Info("mediator started", "accounts", len(accounts))
	return nil
}

// Stop disarms every account timer. In-flight timer events complete.
func (m *Mediator) Stop() {
	m.mu.Lock()
	m.started = false
	accounts := append([]*Account(nil), m.order...)
	m.mu.Unlock()

	for _, a := range accounts {
		a.stopTimer()
	}
}

func (m *Mediator) isStarted() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.started
}

func (m *Mediator) subscribe(a *Account, publisher string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.edges {
		if e.subscriber == a && e.publisher == publisher {
			return false
		}
	}
	m.edges = append(m.edges, edge{subscriber: a, publisher: publisher})
	return true
}

// subscribersOf returns the subscribers of publisher in subscription order.
func (m *Mediator) subscribersOf(publisher string) []*Account {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Account
	for _, e := range m.edges {
		if e.publisher == publisher {
			out = append(out, e.subscriber)
		}
	}
	return out
}

// subscriptionsOf returns the topics a subscribed to, in order.
func (m *Mediator) subscriptionsOf(a *Account) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, e := range m.edges {
		if e.subscriber == a {
			out = append(out, e.publisher)
		}
	}
	return out
}

func (m *Mediator) deliver(from *Account, target string, kind EventKind, payload any) error {
	t, ok := m.Account(target)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, target)
	}
	err := t.dispatch(Event{Kind: kind, From: from.name, Payload: payload})
	if err != nil {
		from.stats.failures.Add(1)
		m.logger.Debug("delivery failed",
			"from", from.name, "to", target, "event", kind.String(), "status", StatusOf(err).String(), "error", err)
	}
	return err
}
