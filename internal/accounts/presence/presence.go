// Package presence is the "presence" account. It announces the device on the
// local network over mDNS while the link is up.
package presence

import (
	"github.com/nerrad567/stalink/internal/accounts/network"
	"github.com/nerrad567/stalink/internal/mediator"
)

// Name is the account name.
const Name = "presence"

// Advertiser publishes a service record.
type Advertiser interface {
	// Advertise registers the service or refreshes its TXT records.
	Advertise(txt []string) error
	// Withdraw removes the service. It is a no-op when nothing is registered.
	Withdraw()
}

// Logger is the logging interface used by the account.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Account tracks the link and drives the advertiser.
type Account struct {
	adv    Advertiser
	device string
	acct   *mediator.Account
	logger Logger
}

// Register creates the presence account on m, subscribed to the network account.
func Register(m *mediator.Mediator, adv Advertiser, device string, logger Logger) (*Account, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	a := &Account{adv: adv, device: device, logger: logger}

	acct, err := m.Register(Name, mediator.Routes{mediator.EventNotify: a.onNotify}, 0)
	if err != nil {
		return nil, err
	}
	a.acct = acct
	if err := acct.Subscribe(network.Name); err != nil {
		return nil, err
	}
	return a, nil
}

// Close withdraws the advertisement.
func (a *Account) Close() {
	a.adv.Withdraw()
}

func (a *Account) onNotify(_ *mediator.Account, ev mediator.Event) error {
	state, err := mediator.Expect[network.NetworkState](ev.Payload)
	if err != nil {
		return err
	}

	if state.State != network.Connected {
		a.adv.Withdraw()
		a.logger.Info("presence withdrawn")
		return nil
	}

	txt := a.txtRecords(state)
	if err := a.adv.Advertise(txt); err != nil {
		a.logger.Warn("presence announcement failed", "error", err)
		return err
	}
	a.logger.Info("presence announced", "txt", txt)
	return nil
}

func (a *Account) txtRecords(state network.NetworkState) []string {
	txt := []string{
		"id=" + a.device,
		"ip=" + state.IPv4.Addr().String(),
	}
	req := &network.Request{Type: network.TypeMAC}
	if err := a.acct.Pull(network.Name, req); err == nil && len(req.MAC) > 0 {
		txt = append(txt, "mac="+req.MAC.String())
	}
	return txt
}
