// Package telemetry is the "telemetry" account. It mirrors the link state to
// a retained MQTT topic and accepts link commands from the broker.
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/stalink/internal/accounts/network"
	"github.com/nerrad567/stalink/internal/infrastructure/mqtt"
	"github.com/nerrad567/stalink/internal/mediator"
)

// Name is the account name.
const Name = "telemetry"

// commandQoS is the subscription QoS of the command topic.
const commandQoS = 1

// ErrUnknownAction is returned for commands with an unrecognised action.
var ErrUnknownAction = errors.New("telemetry: unknown action")

// Publisher is the MQTT client used by the account.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
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

// StatePayload is the JSON document on the network state topic.
type StatePayload struct {
	Device    string `json:"device"`
	State     string `json:"state"`
	IP        string `json:"ip,omitempty"`
	Gateway   string `json:"gateway,omitempty"`
	Netmask   string `json:"netmask,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Command is the JSON document accepted on the command topic.
//
//	{"action":"connect","ssid":"Home","password":"secret1"}
//	{"action":"disconnect"}
type Command struct {
	Action   string  `json:"action"`
	SSID     string  `json:"ssid,omitempty"`
	Password *string `json:"password,omitempty"`
}

// Account publishes network states to MQTT.
type Account struct {
	pub    Publisher
	topics mqtt.Topics
	acct   *mediator.Account
	logger Logger
	now    func() time.Time
}

// Register creates the telemetry account on m, subscribed to the network account.
func Register(m *mediator.Mediator, pub Publisher, device string, logger Logger) (*Account, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	a := &Account{
		pub:    pub,
		topics: mqtt.Topics{Device: device},
		logger: logger,
		now:    time.Now,
	}
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

// Start publishes the current state and subscribes to the command topic.
func (a *Account) Start() error {
	req := &network.Request{Type: network.TypeNetwork}
	if err := a.acct.Pull(network.Name, req); err != nil {
		a.logger.Warn("reading initial link state failed", "error", err)
	} else if err := a.publishState(req.Network); err != nil {
		a.logger.Warn("publishing initial link state failed", "error", err)
	}

	if err := a.pub.Subscribe(a.topics.NetworkCommand(), commandQoS, a.onCommand); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	a.logger.Info("telemetry started", "state_topic", a.topics.NetworkState())
	return nil
}

func (a *Account) onNotify(_ *mediator.Account, ev mediator.Event) error {
	state, err := mediator.Expect[network.NetworkState](ev.Payload)
	if err != nil {
		return err
	}
	return a.publishState(state)
}

func (a *Account) publishState(state network.NetworkState) error {
	p := StatePayload{
		Device:    a.topics.Device,
		State:     state.State.String(),
		Timestamp: a.now().UTC().Format(time.RFC3339),
	}
	if state.State == network.Connected {
		p.IP = state.IPv4.Addr().String()
		p.Gateway = state.IPv4.GatewayAddr().String()
		p.Netmask = state.IPv4.Mask().String()
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	return a.pub.PublishRetained(a.topics.NetworkState(), payload)
}

// onCommand runs on the MQTT client's goroutine.
func (a *Account) onCommand(_ string, payload []byte) error {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("decoding command: %w", err)
	}

	req := &network.Request{}
	switch cmd.Action {
	case "connect":
		req.Type = network.TypeConnect
		req.Connect.SSID = []byte(cmd.SSID)
		if cmd.Password != nil {
			req.Connect.Password = []byte(*cmd.Password)
		}
	case "disconnect":
		req.Type = network.TypeDisconnect
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}

	a.logger.Info("mqtt command", "action", cmd.Action, "ssid", cmd.SSID)
	if err := a.acct.Notify(network.Name, req); err != nil {
		return fmt.Errorf("%s command: %s: %w", cmd.Action, mediator.StatusOf(err), err)
	}
	return nil
}
