package presence

import (
	"fmt"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"

	"github.com/nerrad567/stalink/internal/infrastructure/config"
)

// MDNS advertises the device over multicast DNS.
type MDNS struct {
	cfg      config.DiscoveryConfig
	instance string
	ifaces   []net.Interface

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewMDNS creates an advertiser for instance. A nil ifaces list announces on
// every multicast-capable interface.
func NewMDNS(cfg config.DiscoveryConfig, instance string, ifaces []net.Interface) *MDNS {
	return &MDNS{cfg: cfg, instance: instance, ifaces: ifaces}
}

// Advertise registers the service, or replaces its TXT records when it is
// already registered.
func (a *MDNS) Advertise(txt []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.SetText(txt)
		return nil
	}

	var opts []zeroconf.ServerOption
	if a.cfg.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.cfg.TTL)))
	}

	server, err := zeroconf.Register(a.instance, a.cfg.ServiceType, a.cfg.Domain, a.cfg.Port, txt, a.ifaces, opts...)
	if err != nil {
		return fmt.Errorf("registering %s: %w", a.cfg.ServiceType, err)
	}
	a.server = server
	return nil
}

// Withdraw sends goodbye packets and stops answering queries.
func (a *MDNS) Withdraw() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// Advertising reports whether the service is registered.
func (a *MDNS) Advertising() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}
