package station

import (
	"errors"
	"net"
	"sync"
)

// fakeDriver records calls and lets tests inject driver events synchronously.
type fakeDriver struct {
	mu      sync.Mutex
	calls   []string
	connect []Credentials
	handler func(DriverEvent)
	mac     net.HardwareAddr
	ip      IPv4Info

	failInit       bool
	failConnect    bool
	failDisconnect bool
	failProvision  bool
}

var errFake = errors.New("fake failure")

func newFakeDriver() *fakeDriver {
	return &fakeDriver{mac: net.HardwareAddr{0x02, 0, 0, 0, 0, 1}}
}

func (d *fakeDriver) record(call string) {
	d.mu.Lock()
	d.calls = append(d.calls, call)
	d.mu.Unlock()
}

func (d *fakeDriver) Init() error {
	d.record("init")
	if d.failInit {
		return errFake
	}
	return nil
}

func (d *fakeDriver) Start() error { d.record("start"); return nil }
func (d *fakeDriver) Stop() error  { d.record("stop"); return nil }

func (d *fakeDriver) Connect(c Credentials) error {
	d.record("connect")
	d.mu.Lock()
	d.connect = append(d.connect, c.Clone())
	d.mu.Unlock()
	if d.failConnect {
		return errFake
	}
	return nil
}

func (d *fakeDriver) Disconnect() error {
	d.record("disconnect")
	if d.failDisconnect {
		return errFake
	}
	return nil
}

func (d *fakeDriver) StartScan([]byte) error { d.record("scan-start"); return nil }
func (d *fakeDriver) StopScan() error        { d.record("scan-stop"); return nil }

func (d *fakeDriver) StartProvisioning(ProvisioningVariant) error {
	d.record("provision-start")
	if d.failProvision {
		return errFake
	}
	return nil
}

func (d *fakeDriver) StopProvisioning() error { d.record("provision-stop"); return nil }

func (d *fakeDriver) HardwareAddr() (net.HardwareAddr, error) { return d.mac, nil }

func (d *fakeDriver) SetHardwareAddr(mac net.HardwareAddr) error {
	d.record("set-mac")
	d.mac = mac
	return nil
}

func (d *fakeDriver) IPv4() (IPv4Info, error) { return d.ip, nil }

func (d *fakeDriver) SetEventHandler(h func(DriverEvent)) { d.handler = h }

func (d *fakeDriver) Handle() any { return "netif0" }

func (d *fakeDriver) emit(ev DriverEvent) { d.handler(ev) }

func (d *fakeDriver) count(call string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (d *fakeDriver) reset() {
	d.mu.Lock()
	d.calls = nil
	d.connect = nil
	d.mu.Unlock()
}

func (d *fakeDriver) connects() []Credentials {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Credentials(nil), d.connect...)
}

// eventLog collects station events.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) handle(ev Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) kinds() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventKind, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (l *eventLog) count(kind EventKind) int {
	n := 0
	for _, k := range l.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

func (l *eventLog) last(kind EventKind) (Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].Kind == kind {
			return l.events[i], true
		}
	}
	return Event{}, false
}
