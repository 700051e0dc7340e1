package station

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/stalink/internal/timer"
)

// DefaultProvisioningTimeout is the provisioning window. Each channel lock
// restarts it in full.
const DefaultProvisioningTimeout = 60 * time.Second

// Logger is the logging interface used by the station.
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

// Option configures a Station.
type Option func(*Station)

// WithProvisioningTimeout overrides DefaultProvisioningTimeout.
func WithProvisioningTimeout(d time.Duration) Option {
	return func(s *Station) {
		if d > 0 {
			s.provisioningTimeout = d
		}
	}
}

// WithVariant selects the provisioning protocol. AirKiss is the default.
func WithVariant(v ProvisioningVariant) Option {
	return func(s *Station) { s.variant = v }
}

// Station is the connectivity state machine for one Wi-Fi station interface.
//
// All methods are safe for concurrent use.
type Station struct {
	driver              Driver
	timers              timer.Service
	logger              Logger
	provisioningTimeout time.Duration
	variant             ProvisioningVariant

	flags       atomic.Uint32
	state       atomic.Uint32
	initialized atomic.Bool

	credsMu sync.Mutex
	creds   Credentials

	provMu    sync.Mutex
	session   ProvisioningSession
	resume    LinkState // phase to return to when provisioning ends
	deadline  timer.Timer
	handlerMu sync.RWMutex
	handler   EventHandler
}

// New creates a station on top of driver. Timers are taken from timers.
func New(driver Driver, timers timer.Service, opts ...Option) *Station {
	s := &Station{
		driver:              driver,
		timers:              timers,
		logger:              noopLogger{},
		provisioningTimeout: DefaultProvisioningTimeout,
		variant:             VariantAirKiss,
		handler:             func(Event) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetLogger sets the logger for the station.
func (s *Station) SetLogger(logger Logger) {
	s.logger = logger
}

// SetEventHandler replaces the event handler. Last writer wins.
func (s *Station) SetEventHandler(h EventHandler) {
	if h == nil {
		h = func(Event) {}
	}
	s.handlerMu.Lock()
	s.handler = h
	s.handlerMu.Unlock()
}

// Initialize wires the driver, creates the provisioning deadline timer and
// initializes the radio. EventReady is delivered to h before Initialize
// returns when the driver comes up.
//
// The station starts with FlagActiveDisconnect set: with no connection ever
// requested, a link-down is not a candidate for a silent reconnect.
func (s *Station) Initialize(h EventHandler) error {
	if s.initialized.Load() {
		return ErrAlreadyInitialized
	}
	if h != nil {
		s.SetEventHandler(h)
	}

	deadline, err := s.timers.Create("provisioning", s.provisioningTimeout, timer.OneShot, s.onDeadline)
	if err != nil {
		return err
	}
	s.provMu.Lock()
	s.deadline = deadline
	s.provMu.Unlock()

	s.setFlags(FlagActiveDisconnect)
	s.driver.SetEventHandler(s.handleDriverEvent)

	if err := s.driver.Init(); err != nil {
		return driverErr("init", err)
	}

	s.initialized.Store(true)
	s.setState(StateReady)
	s.logger.Info("station ready")
	s.emit(Event{Kind: EventReady, Handle: s.driver.Handle()})
	return nil
}

// Start starts the radio.
func (s *Station) Start() error {
	if !s.initialized.Load() {
		return ErrNotInitialized
	}
	return driverErr("start", s.driver.Start())
}

// Stop stops the radio.
func (s *Station) Stop() error {
	if !s.initialized.Load() {
		return ErrNotInitialized
	}
	return driverErr("stop", s.driver.Stop())
}

// Connect joins a network.
//
// With a nil ssid the cached credentials are reused; ErrNoCredentials is
// returned, without touching the driver, when none are cached. Otherwise the
// cache is replaced by ssid and password (a nil password clears the cached
// one). An established link is dropped first. Connect always clears
// FlagActiveDisconnect.
func (s *Station) Connect(ssid, password []byte) error {
	if !s.initialized.Load() {
		return ErrNotInitialized
	}

	var (
		creds Credentials
		err   error
	)
	if ssid == nil {
		creds = s.Credentials()
		if creds.IsZero() {
			return ErrNoCredentials
		}
	} else if creds, err = NewCredentials(ssid, password); err != nil {
		return err
	}

	s.clearFlags(FlagActiveDisconnect)
	if s.Flags().Has(FlagNetworkConnected) {
		if err := s.driver.Disconnect(); err != nil {
			return driverErr("disconnect", err)
		}
		s.clearFlags(FlagNetworkConnected)
	}

	if ssid != nil {
		s.credsMu.Lock()
		s.creds = creds.Clone()
		s.credsMu.Unlock()
	}

	s.logger.Info("connecting", "ssid", string(creds.SSID))
	return s.join(creds)
}

// join hands creds to the driver.
func (s *Station) join(creds Credentials) error {
	s.clearFlags(FlagActiveDisconnect)
	return driverErr("connect", s.driver.Connect(creds))
}

// Disconnect drops the link on operator request. The following link-down is
// surfaced as EventDisconnected rather than retried. Disconnecting while not
// connected succeeds without a driver call.
func (s *Station) Disconnect() error {
	if !s.initialized.Load() {
		return ErrNotInitialized
	}
	s.setFlags(FlagActiveDisconnect)
	if !s.Flags().Has(FlagNetworkConnected) {
		return nil
	}
	if err := s.driver.Disconnect(); err != nil {
		return driverErr("disconnect", err)
	}
	s.clearFlags(FlagNetworkConnected)
	s.setState(StateDisconnected)
	s.logger.Info("disconnected on request")
	return nil
}

// StartScan starts an asynchronous scan. Results arrive as EventScanComplete.
// A nil filter scans for every SSID.
func (s *Station) StartScan(ssidFilter []byte) error {
	if !s.initialized.Load() {
		return ErrNotInitialized
	}
	if len(ssidFilter) > MaxSSIDLen {
		return ErrSSIDTooLong
	}
	return driverErr("scan start", s.driver.StartScan(ssidFilter))
}

// StopScan aborts a running scan.
func (s *Station) StopScan() error {
	if !s.initialized.Load() {
		return ErrNotInitialized
	}
	return driverErr("scan stop", s.driver.StopScan())
}

// HardwareAddr returns the interface MAC address.
func (s *Station) HardwareAddr() (net.HardwareAddr, error) {
	if !s.initialized.Load() {
		return nil, ErrNotInitialized
	}
	mac, err := s.driver.HardwareAddr()
	if err != nil {
		return nil, driverErr("get mac", err)
	}
	return mac, nil
}

// SetHardwareAddr changes the interface MAC address.
func (s *Station) SetHardwareAddr(mac net.HardwareAddr) error {
	if !s.initialized.Load() {
		return ErrNotInitialized
	}
	return driverErr("set mac", s.driver.SetHardwareAddr(mac))
}

// IPv4 returns the current address configuration.
func (s *Station) IPv4() (IPv4Info, error) {
	if !s.initialized.Load() {
		return IPv4Info{}, ErrNotInitialized
	}
	info, err := s.driver.IPv4()
	if err != nil {
		return IPv4Info{}, driverErr("get ip", err)
	}
	return info, nil
}

// State returns the current phase.
func (s *Station) State() LinkState { return LinkState(s.state.Load()) }

// Flags returns a snapshot of the connectivity flags.
func (s *Station) Flags() Flags { return Flags(s.flags.Load()) }

// Credentials returns a copy of the cached credentials.
func (s *Station) Credentials() Credentials {
	s.credsMu.Lock()
	defer s.credsMu.Unlock()
	return s.creds.Clone()
}

func (s *Station) setState(st LinkState) { s.state.Store(uint32(st)) }

func (s *Station) setFlags(f Flags) { s.flags.Or(uint32(f)) }

func (s *Station) clearFlags(f Flags) { s.flags.And(^uint32(f)) }

// testAndClear clears f and reports whether it was set.
func (s *Station) testAndClear(f Flags) bool {
	return Flags(s.flags.And(^uint32(f))).Has(f)
}

func (s *Station) emit(ev Event) {
	s.handlerMu.RLock()
	h := s.handler
	s.handlerMu.RUnlock()
	h(ev)
}

// handleDriverEvent runs on the driver's dispatch context.
func (s *Station) handleDriverEvent(ev DriverEvent) {
	s.logger.Debug("driver event", "event", ev.Kind.String(), "flags", s.Flags().String())

	switch ev.Kind {
	case DriverStaStart:
		s.emit(Event{Kind: EventStarted})

	case DriverStaStop:
		s.emit(Event{Kind: EventStopped})

	case DriverStaDisconnected:
		s.onLinkDown()

	case DriverStaConnected:
		s.setFlags(FlagNetworkConnected)
		s.clearFlags(FlagActiveDisconnect)
		if !s.Flags().Has(FlagProvisioningRunning) {
			s.setState(StateConnected)
		}
		s.emit(Event{Kind: EventConnected})

	case DriverGotIP:
		s.logger.Info("ip acquired", "ip", ev.IPv4.Addr().String())
		s.emit(Event{Kind: EventGotIP, IPv4: ev.IPv4})

	case DriverLostIP:
		s.emit(Event{Kind: EventLostIP})

	case DriverScanDone:
		// An empty scan is not surfaced.
		if len(ev.Scan) == 0 {
			return
		}
		s.emit(Event{Kind: EventScanComplete, Scan: ev.Scan})

	case DriverProvisioningFoundChannel:
		s.onFoundChannel()

	case DriverProvisioningAckSent:
		s.stopProvisioning(StopCompleted)

	case DriverProvisioningCredentials:
		s.onCredentials(ev.Credentials)
	}
}

func (s *Station) onLinkDown() {
	s.clearFlags(FlagNetworkConnected)

	flags := s.Flags()
	if flags.Has(FlagProvisioningRunning) {
		return
	}
	s.setState(StateDisconnected)

	if flags.Has(FlagActiveDisconnect) {
		s.emit(Event{Kind: EventDisconnected})
		return
	}

	// Unexpected drop: retry silently with the cached credentials.
	creds := s.Credentials()
	if creds.IsZero() {
		s.logger.Warn("link lost with no cached credentials")
		return
	}
	s.logger.Info("link lost, reconnecting", "ssid", string(creds.SSID))
	if err := s.join(creds); err != nil {
		s.logger.Warn("reconnect failed", "ssid", string(creds.SSID), "error", err)
	}
}

func (s *Station) onCredentials(creds Credentials) {
	s.provMu.Lock()
	id := s.session.ID
	s.provMu.Unlock()

	s.logger.Info("provisioning received credentials", "ssid", string(creds.SSID), "session", id.String())
	s.emit(Event{Kind: EventCredentialsDiscovered, Credentials: creds.Clone(), Session: id})

	if err := s.Connect(creds.SSID, creds.Password); err != nil {
		s.logger.Warn("connect with discovered credentials failed", "ssid", string(creds.SSID), "error", err)
	}
}
