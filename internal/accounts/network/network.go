// Package network is the "network" account. It drives the station state
// machine and exposes the link to the rest of the device over the mediator.
//
// The account publishes a NetworkState on every surfaced link change,
// reconnects to the stored network when a scan finds it, stores credentials
// received by provisioning and rescans periodically until connected.
package network

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/stalink/internal/accounts/storage"
	"github.com/nerrad567/stalink/internal/mediator"
	"github.com/nerrad567/stalink/internal/station"
)

// Name is the account and topic name.
const Name = "network"

// DefaultRescanInterval is the period of the rescan timer.
const DefaultRescanInterval = 30 * time.Second

// mailboxCapacity is how many published states the account retains.
const mailboxCapacity = 16

// ErrNotReady is returned by requests that need the radio before the station
// reported ready.
var ErrNotReady = errors.New("network: radio not ready")

// Station is the connectivity state machine driven by the account.
type Station interface {
	Initialize(h station.EventHandler) error
	Start() error
	Connect(ssid, password []byte) error
	Disconnect() error
	StartScan(ssidFilter []byte) error
	HardwareAddr() (net.HardwareAddr, error)
	SetHardwareAddr(addr net.HardwareAddr) error
	IPv4() (station.IPv4Info, error)
	Flags() station.Flags
}

// Logger is the logging interface used by the account.
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

// Option configures the account.
type Option func(*Account)

// WithRescanInterval sets the rescan timer period.
func WithRescanInterval(d time.Duration) Option {
	return func(a *Account) {
		if d > 0 {
			a.rescan = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(a *Account) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithObserver receives every station event before the account handles it.
func WithObserver(fn func(station.Event)) Option {
	return func(a *Account) { a.observer = fn }
}

// Account binds a Station to the mediator.
type Account struct {
	st       Station
	acct     *mediator.Account
	logger   Logger
	rescan   time.Duration
	observer func(station.Event)

	mu     sync.Mutex
	handle any

	ready     atomic.Bool
	connected atomic.Bool
}

// Register creates the network account on m and initializes st. The storage
// account should be registered first; the rescan timer runs once m is started.
func Register(m *mediator.Mediator, st Station, opts ...Option) (*Account, error) {
	a := &Account{
		st:     st,
		logger: noopLogger{},
		rescan: DefaultRescanInterval,
	}
	for _, opt := range opts {
		opt(a)
	}

	acct, err := m.Register(Name, mediator.Routes{
		mediator.EventSubscribePull: a.onPull,
		mediator.EventNotify:        a.onNotify,
		mediator.EventTimer:         a.onTimer,
	}, mailboxCapacity)
	if err != nil {
		return nil, err
	}
	a.acct = acct

	if err := acct.Subscribe(storage.Name); err != nil {
		return nil, err
	}
	if err := acct.SetTimerPeriod(a.rescan); err != nil {
		return nil, err
	}
	if err := acct.SetTimerEnabled(true); err != nil {
		return nil, err
	}

	if err := st.Initialize(a.onStationEvent); err != nil {
		return nil, fmt.Errorf("initializing station: %w", err)
	}
	a.logger.Info("network account registered", "rescan_interval", a.rescan.String())
	return a, nil
}

// Mediator returns the underlying mediator account.
func (a *Account) Mediator() *mediator.Account { return a.acct }

// Ready reports whether the radio started.
func (a *Account) Ready() bool { return a.ready.Load() }

// Connected reports whether the link is up.
func (a *Account) Connected() bool { return a.connected.Load() }

func (a *Account) hasHandle() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handle != nil
}

// onStationEvent runs on the station's event context.
func (a *Account) onStationEvent(ev station.Event) {
	if a.observer != nil {
		a.observer(ev)
	}

	switch ev.Kind {
	case station.EventReady:
		a.onReady(ev.Handle)

	case station.EventDisconnected:
		a.connected.Store(false)
		a.acct.Publish(NetworkState{State: Disconnected})

	case station.EventConnected:
		a.connected.Store(true)
		a.stopRescan()

	case station.EventGotIP:
		a.connected.Store(true)
		a.stopRescan()
		a.acct.Publish(NetworkState{State: Connected, IPv4: ev.IPv4})

	case station.EventScanComplete:
		a.onScan(ev.Scan)

	case station.EventCredentialsDiscovered:
		a.onCredentials(ev.Credentials)

	case station.EventProvisioningStopped:
		a.onProvisioningStopped(ev.Reason)
	}
}

// onProvisioningStopped surfaces a link that provisioning dropped and did not
// bring back. The link-down was swallowed while the window was open.
func (a *Account) onProvisioningStopped(reason station.StopReason) {
	if a.st.Flags().Has(station.FlagNetworkConnected) || !a.connected.Swap(false) {
		return
	}
	a.logger.Info("link lost during provisioning", "reason", reason.String())
	a.acct.Publish(NetworkState{State: Disconnected})
	if err := a.acct.SetTimerEnabled(true); err != nil {
		a.logger.Warn("enabling rescan timer failed", "error", err)
	}
	a.scan()
}

func (a *Account) onReady(handle any) {
	a.mu.Lock()
	a.handle = handle
	a.mu.Unlock()

	a.logger.Info("starting radio")
	if err := a.st.Start(); err != nil {
		a.logger.Error("starting radio failed", "error", err)
		return
	}
	a.ready.Store(true)
	a.scan()
}

func (a *Account) onScan(results []station.ScanResult) {
	rec, err := a.storedWiFi()
	if err != nil {
		a.logger.Warn("reading stored credentials failed", "error", err)
		return
	}

	found := false
	for _, r := range results {
		a.logger.Debug("access point", "ssid", string(r.SSID), "rssi", r.RSSI)
		if !rec.IsZero() && bytes.Equal(r.SSID, rec.SSID) {
			found = true
		}
	}
	if !found {
		return
	}
	a.logger.Info("stored network in range", "ssid", string(rec.SSID))
	if err := a.st.Connect(rec.SSID, rec.Password); err != nil {
		a.logger.Warn("connecting to stored network failed", "ssid", string(rec.SSID), "error", err)
	}
}

// onCredentials stores provisioned credentials that differ from the stored
// pair. The station connects with them on its own.
func (a *Account) onCredentials(creds station.Credentials) {
	discovered := storage.RecordFrom(creds)
	if err := discovered.Validate(); err != nil {
		a.logger.Warn("provisioned credentials cannot be stored", "ssid", string(creds.SSID), "error", err)
		return
	}
	rec, err := a.storedWiFi()
	if err == nil && rec.Equal(discovered) {
		a.logger.Debug("provisioned credentials already stored", "ssid", string(creds.SSID))
		return
	}
	if err := a.storeWiFi(discovered); err != nil {
		a.logger.Warn("storing provisioned credentials failed", "ssid", string(creds.SSID), "error", err)
	}
}

func (a *Account) onTimer(_ *mediator.Account, _ mediator.Event) error {
	if !a.ready.Load() {
		return nil
	}
	a.scan()
	return nil
}

func (a *Account) onPull(_ *mediator.Account, ev mediator.Event) error {
	req, err := mediator.Expect[*Request](ev.Payload)
	if err != nil {
		return err
	}
	if !a.hasHandle() {
		return ErrNotReady
	}

	switch req.Type {
	case TypeNetwork:
		if !a.connected.Load() {
			req.Network = NetworkState{State: Disconnected}
			return nil
		}
		ip, err := a.st.IPv4()
		if err != nil {
			return fmt.Errorf("reading address: %w", err)
		}
		req.Network = NetworkState{State: Connected, IPv4: ip}
		return nil

	case TypeMAC:
		mac, err := a.st.HardwareAddr()
		if err != nil {
			return fmt.Errorf("reading hardware address: %w", err)
		}
		req.MAC = mac
		return nil

	default:
		return fmt.Errorf("%w: network pull %s", mediator.ErrUnsupported, req.Type)
	}
}

func (a *Account) onNotify(_ *mediator.Account, ev mediator.Event) error {
	req, err := mediator.Expect[*Request](ev.Payload)
	if err != nil {
		return err
	}
	if !a.hasHandle() {
		return ErrNotReady
	}

	switch req.Type {
	case TypeMAC:
		if len(req.MAC) != 6 {
			return fmt.Errorf("%w: hardware address must be 6 bytes", mediator.ErrParam)
		}
		return a.st.SetHardwareAddr(req.MAC)

	case TypeDisconnect:
		return a.st.Disconnect()

	case TypeConnect:
		return a.connect(ev.From, req.Connect)

	default:
		return fmt.Errorf("%w: network notify %s", mediator.ErrUnsupported, req.Type)
	}
}

// connect stores changed credentials and restarts scanning. The join itself
// happens when a scan finds the stored network.
func (a *Account) connect(from string, p ConnectParams) error {
	if p.SSID == nil {
		return fmt.Errorf("%w: connect without ssid", mediator.ErrParam)
	}
	want := storage.WiFiRecord{SSID: p.SSID, Password: p.Password}
	if err := want.Credentials().Validate(); err != nil {
		return fmt.Errorf("%w: %w", mediator.ErrParam, err)
	}
	if err := want.Validate(); err != nil {
		return fmt.Errorf("%w: %w", mediator.ErrParam, err)
	}

	rec, err := a.storedWiFi()
	if err != nil || !rec.Equal(want) {
		if err := a.storeWiFi(want); err != nil {
			a.logger.Warn("storing credentials failed", "ssid", string(p.SSID), "error", err)
		}
	}
	a.logger.Info("connect requested", "from", from, "ssid", string(p.SSID))

	a.scan()
	return a.acct.SetTimerEnabled(true)
}

func (a *Account) scan() {
	if err := a.st.StartScan(nil); err != nil {
		a.logger.Warn("starting scan failed", "error", err)
	}
}

func (a *Account) stopRescan() {
	if err := a.acct.SetTimerEnabled(false); err != nil {
		a.logger.Warn("disabling rescan timer failed", "error", err)
	}
}

func (a *Account) storedWiFi() (storage.WiFiRecord, error) {
	req := &storage.Request{Type: storage.TypeWiFi}
	if err := a.acct.Pull(storage.Name, req); err != nil {
		return storage.WiFiRecord{}, err
	}
	return req.WiFi, nil
}

func (a *Account) storeWiFi(rec storage.WiFiRecord) error {
	return a.acct.Notify(storage.Name, &storage.Request{Type: storage.TypeWiFi, WiFi: rec})
}
