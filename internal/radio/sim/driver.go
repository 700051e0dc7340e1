package sim

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/stalink/internal/infrastructure/config"
	"github.com/nerrad567/stalink/internal/station"
)

var (
	// ErrNotInitialized is returned by calls made before Init.
	ErrNotInitialized = errors.New("sim: radio not initialized")

	// ErrNotStarted is returned by calls that need a started radio.
	ErrNotStarted = errors.New("sim: radio not started")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("sim: radio closed")
)

// assocFailDelay is the latency of a failed association, standing in for the
// retry interval a real radio enforces.
const assocFailDelay = time.Second

// AccessPoint is a network the simulated radio can see.
type AccessPoint struct {
	SSID     []byte
	Password []byte
	RSSI     int8
	IPv4     station.IPv4Info
}

// Logger is the logging interface used by the driver.
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

// Option configures a Driver.
type Option func(*Driver)

// Synchronous queues events until Flush instead of dispatching them.
func Synchronous() Option {
	return func(d *Driver) { d.synchronous = true }
}

// WithEventDelay sets the latency of asynchronous events.
func WithEventDelay(delay time.Duration) Option {
	return func(d *Driver) { d.delay = delay }
}

// WithHardwareAddr sets the initial MAC address.
func WithHardwareAddr(mac net.HardwareAddr) Option {
	return func(d *Driver) { d.mac = append(net.HardwareAddr(nil), mac...) }
}

// WithProvisioningPeer makes provisioning sessions receive creds.
func WithProvisioningPeer(creds station.Credentials) Option {
	return func(d *Driver) { d.peer = creds.Clone() }
}

// Call is one recorded driver call.
type Call struct {
	Op    string
	Creds station.Credentials
}

type pending struct {
	ev    station.DriverEvent
	delay time.Duration
	// provGen ties provisioning events to the session that produced them.
	provGen uint64
}

// Driver is a simulated radio. It is safe for concurrent use.
type Driver struct {
	synchronous bool
	delay       time.Duration
	peer        station.Credentials

	mu           sync.Mutex
	aps          []AccessPoint
	mac          net.HardwareAddr
	initialized  bool
	started      bool
	associated   *AccessPoint
	provisioning bool
	provGen      uint64
	calls        []Call
	queue        []pending
	flushing     bool
	handler      func(station.DriverEvent)
	logger       Logger

	wake chan struct{}
	done *closeOnce
	wg   sync.WaitGroup
}

// New returns a radio that sees aps.
func New(aps []AccessPoint, opts ...Option) *Driver {
	d := &Driver{
		aps:     cloneAPs(aps),
		mac:     net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		handler: func(station.DriverEvent) {},
		logger:  noopLogger{},
		wake:    make(chan struct{}, 1),
		done:    newCloseOnce(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if !d.synchronous {
		d.wg.Add(1)
		go d.dispatchLoop()
	}
	return d
}

// FromConfig builds a radio from the radio section of the configuration.
func FromConfig(cfg config.RadioConfig) (*Driver, error) {
	aps := make([]AccessPoint, 0, len(cfg.AccessPoints))
	for i, ap := range cfg.AccessPoints {
		ipv4, err := parseIPv4(ap)
		if err != nil {
			return nil, fmt.Errorf("access point %d (%s): %w", i, ap.SSID, err)
		}
		aps = append(aps, AccessPoint{
			SSID:     []byte(ap.SSID),
			Password: bytesOrNil(ap.Password),
			RSSI:     int8(ap.RSSI),
			IPv4:     ipv4,
		})
	}

	opts := []Option{WithEventDelay(time.Duration(cfg.EventDelay) * time.Millisecond)}
	if cfg.MAC != "" {
		mac, err := net.ParseMAC(cfg.MAC)
		if err != nil {
			return nil, fmt.Errorf("parsing mac: %w", err)
		}
		opts = append(opts, WithHardwareAddr(mac))
	}
	if cfg.Provisioning.Enabled {
		opts = append(opts, WithProvisioningPeer(station.Credentials{
			SSID:     []byte(cfg.Provisioning.SSID),
			Password: bytesOrNil(cfg.Provisioning.Password),
		}))
	}
	return New(aps, opts...), nil
}

func parseIPv4(ap config.AccessPointConfig) (station.IPv4Info, error) {
	ip, gw, mask := ap.IP, ap.Gateway, ap.Netmask
	if ip == "" {
		ip = "192.168.4.2"
	}
	if gw == "" {
		gw = "192.168.4.1"
	}
	if mask == "" {
		mask = "255.255.255.0"
	}
	parsed := make([]net.IP, 0, 3)
	for _, s := range []string{ip, gw, mask} {
		v := net.ParseIP(s).To4()
		if v == nil {
			return station.IPv4Info{}, fmt.Errorf("invalid IPv4 address %q", s)
		}
		parsed = append(parsed, v)
	}
	return station.IPv4FromNet(parsed[0], parsed[1], parsed[2]), nil
}

// SetLogger sets the logger for the driver.
func (d *Driver) SetLogger(logger Logger) {
	d.mu.Lock()
	d.logger = logger
	d.mu.Unlock()
}

// SetEventHandler installs the driver event handler.
func (d *Driver) SetEventHandler(h func(station.DriverEvent)) {
	if h == nil {
		h = func(station.DriverEvent) {}
	}
	d.mu.Lock()
	d.handler = h
	d.mu.Unlock()
}

// Handle returns the driver itself as the interface handle.
func (d *Driver) Handle() any { return d }

// Init brings up the radio.
func (d *Driver) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed() {
		return ErrClosed
	}
	d.record(Call{Op: "init"})
	d.initialized = true
	return nil
}

// Start starts station mode.
func (d *Driver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	d.record(Call{Op: "start"})
	d.started = true
	d.enqueue(station.DriverEvent{Kind: station.DriverStaStart}, d.delay)
	return nil
}

// Stop stops station mode, dropping any association.
func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	d.record(Call{Op: "stop"})
	if d.associated != nil {
		d.associated = nil
		d.enqueue(station.DriverEvent{Kind: station.DriverStaDisconnected}, d.delay)
	}
	d.started = false
	d.enqueue(station.DriverEvent{Kind: station.DriverStaStop}, d.delay)
	return nil
}

// Connect associates with the access point matching creds.
func (d *Driver) Connect(creds station.Credentials) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.running(); err != nil {
		return err
	}
	d.record(Call{Op: "connect", Creds: creds.Clone()})

	ap := d.lookup(creds.SSID)
	if ap == nil || !bytes.Equal(ap.Password, creds.Password) {
		d.logger.Debug("sim association failed", "ssid", string(creds.SSID))
		d.enqueue(station.DriverEvent{Kind: station.DriverStaDisconnected}, assocDelay(d))
		return nil
	}
	d.associated = ap
	d.enqueue(station.DriverEvent{Kind: station.DriverStaConnected}, d.delay)
	d.enqueue(station.DriverEvent{Kind: station.DriverGotIP, IPv4: ap.IPv4}, d.delay)
	return nil
}

// Disconnect drops the association.
func (d *Driver) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	d.record(Call{Op: "disconnect"})
	if d.associated != nil {
		d.associated = nil
		d.enqueue(station.DriverEvent{Kind: station.DriverStaDisconnected}, d.delay)
	}
	return nil
}

// StartScan reports the visible access points, strongest first. A non-nil
// filter limits the result to that SSID.
func (d *Driver) StartScan(ssidFilter []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.running(); err != nil {
		return err
	}
	d.record(Call{Op: "scan"})

	results := make([]station.ScanResult, 0, len(d.aps))
	for _, ap := range d.aps {
		if ssidFilter != nil && !bytes.Equal(ap.SSID, ssidFilter) {
			continue
		}
		results = append(results, station.ScanResult{SSID: bytes.Clone(ap.SSID), RSSI: ap.RSSI})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].RSSI > results[j].RSSI })
	d.enqueue(station.DriverEvent{Kind: station.DriverScanDone, Scan: results}, d.delay)
	return nil
}

// StopScan is accepted and ignored.
func (d *Driver) StopScan() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	d.record(Call{Op: "scan-stop"})
	return nil
}

// StartProvisioning starts the provisioning listener. With a peer configured,
// the session runs found-channel, credentials and ack-sent.
func (d *Driver) StartProvisioning(variant station.ProvisioningVariant) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.running(); err != nil {
		return err
	}
	d.record(Call{Op: "provisioning-start"})
	d.provisioning = true
	d.provGen++
	d.logger.Debug("sim provisioning listening", "variant", variant.String())

	if d.peer.IsZero() {
		return nil
	}
	for _, ev := range []station.DriverEvent{
		{Kind: station.DriverProvisioningFoundChannel},
		{Kind: station.DriverProvisioningCredentials, Credentials: d.peer.Clone()},
		{Kind: station.DriverProvisioningAckSent},
	} {
		d.queue = append(d.queue, pending{ev: ev, delay: d.delay, provGen: d.provGen})
	}
	d.signal()
	return nil
}

// StopProvisioning stops the listener and cancels undelivered session events.
func (d *Driver) StopProvisioning() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	d.record(Call{Op: "provisioning-stop"})
	d.provisioning = false
	d.provGen++
	return nil
}

// HardwareAddr returns the MAC address.
func (d *Driver) HardwareAddr() (net.HardwareAddr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return nil, err
	}
	return append(net.HardwareAddr(nil), d.mac...), nil
}

// SetHardwareAddr replaces the MAC address.
func (d *Driver) SetHardwareAddr(addr net.HardwareAddr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	if len(addr) != 6 {
		return fmt.Errorf("sim: hardware address must be 6 bytes, got %d", len(addr))
	}
	d.record(Call{Op: "set-mac"})
	d.mac = append(net.HardwareAddr(nil), addr...)
	return nil
}

// IPv4 returns the address configuration of the current association, zero
// when not associated.
func (d *Driver) IPv4() (station.IPv4Info, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return station.IPv4Info{}, err
	}
	if d.associated == nil {
		return station.IPv4Info{}, nil
	}
	return d.associated.IPv4, nil
}

// DropLink simulates losing the access point without a request.
func (d *Driver) DropLink() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.associated == nil {
		return
	}
	d.logger.Info("sim link dropped", "ssid", string(d.associated.SSID))
	d.associated = nil
	d.enqueue(station.DriverEvent{Kind: station.DriverStaDisconnected}, d.delay)
}

// SetAccessPoints replaces the visible networks. An association with a
// network that disappeared is dropped.
func (d *Driver) SetAccessPoints(aps []AccessPoint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.aps = cloneAPs(aps)
	if d.associated != nil && d.lookup(d.associated.SSID) == nil {
		d.associated = nil
		d.enqueue(station.DriverEvent{Kind: station.DriverStaDisconnected}, d.delay)
	}
}

// Emit queues ev as if the radio had produced it.
func (d *Driver) Emit(ev station.DriverEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enqueue(ev, 0)
}

// Calls returns the recorded calls in order.
func (d *Driver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// Count returns how many times op was called.
func (d *Driver) Count(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Connects returns the credentials of every connect call.
func (d *Driver) Connects() []station.Credentials {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []station.Credentials
	for _, c := range d.calls {
		if c.Op == "connect" {
			out = append(out, c.Creds)
		}
	}
	return out
}

// ResetCalls forgets the recorded calls.
func (d *Driver) ResetCalls() {
	d.mu.Lock()
	d.calls = nil
	d.mu.Unlock()
}

// Close stops the dispatch goroutine. Undelivered events are dropped.
func (d *Driver) Close() error {
	d.done.Close()
	d.wg.Wait()
	return nil
}

func (d *Driver) ready() error {
	switch {
	case d.closed():
		return ErrClosed
	case !d.initialized:
		return ErrNotInitialized
	}
	return nil
}

func (d *Driver) running() error {
	if err := d.ready(); err != nil {
		return err
	}
	if !d.started {
		return ErrNotStarted
	}
	return nil
}

func (d *Driver) closed() bool {
	select {
	case <-d.done.Done():
		return true
	default:
		return false
	}
}

func (d *Driver) record(c Call) { d.calls = append(d.calls, c) }

// lookup must be called with d.mu held.
func (d *Driver) lookup(ssid []byte) *AccessPoint {
	for i := range d.aps {
		if bytes.Equal(d.aps[i].SSID, ssid) {
			return &d.aps[i]
		}
	}
	return nil
}

// enqueue must be called with d.mu held.
func (d *Driver) enqueue(ev station.DriverEvent, delay time.Duration) {
	d.queue = append(d.queue, pending{ev: ev, delay: delay})
	d.signal()
}

func (d *Driver) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func assocDelay(d *Driver) time.Duration {
	if d.synchronous {
		return 0
	}
	return assocFailDelay
}

func cloneAPs(aps []AccessPoint) []AccessPoint {
	out := make([]AccessPoint, len(aps))
	for i, ap := range aps {
		out[i] = ap
		out[i].SSID = bytes.Clone(ap.SSID)
		out[i].Password = bytes.Clone(ap.Password)
	}
	return out
}

func bytesOrNil(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(s)
}
