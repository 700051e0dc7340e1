// Package metrics is the "metrics" account. It records link transitions as
// they are published and samples the link state on its timer.
package metrics

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/stalink/internal/accounts/network"
	"github.com/nerrad567/stalink/internal/infrastructure/influxdb"
	"github.com/nerrad567/stalink/internal/mediator"
)

// Name is the account name.
const Name = "metrics"

// DefaultSampleInterval is used when no interval is configured.
const DefaultSampleInterval = 60 * time.Second

// PointWriter accepts points for non-blocking delivery.
type PointWriter interface {
	WritePoint(p *write.Point)
}

// Logger is the logging interface used by the account.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Account writes link metrics.
type Account struct {
	w      PointWriter
	device string
	acct   *mediator.Account
	logger Logger
	now    func() time.Time
}

// Register creates the metrics account on m. The sample timer is enabled
// immediately and starts firing once the mediator is started.
func Register(m *mediator.Mediator, w PointWriter, device string, interval time.Duration, logger Logger) (*Account, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	a := &Account{w: w, device: device, logger: logger, now: time.Now}

	acct, err := m.Register(Name, mediator.Routes{
		mediator.EventNotify: a.onNotify,
		mediator.EventTimer:  a.onTimer,
	}, 0)
	if err != nil {
		return nil, err
	}
	a.acct = acct

	if err := acct.Subscribe(network.Name); err != nil {
		return nil, err
	}
	if err := acct.SetTimerPeriod(interval); err != nil {
		return nil, err
	}
	if err := acct.SetTimerEnabled(true); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Account) onNotify(_ *mediator.Account, ev mediator.Event) error {
	state, err := mediator.Expect[network.NetworkState](ev.Payload)
	if err != nil {
		return err
	}
	a.w.WritePoint(influxdb.LinkTransitionPoint(a.device, state.State.String(), a.now()))
	return nil
}

func (a *Account) onTimer(_ *mediator.Account, _ mediator.Event) error {
	req := &network.Request{Type: network.TypeNetwork}
	if err := a.acct.Pull(network.Name, req); err != nil {
		// Not ready yet; try again next period.
		a.logger.Debug("link state sample skipped", "error", err)
		return nil
	}

	connected := req.Network.State == network.Connected
	ip := ""
	if connected {
		ip = req.Network.IPv4.Addr().String()
	}
	a.w.WritePoint(influxdb.LinkStatePoint(a.device, connected, ip, a.now()))
	return nil
}
