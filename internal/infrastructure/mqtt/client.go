package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/stalink/internal/infrastructure/config"
)

// Logger is the logging interface used by the client.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// MessageHandler receives one message. A returned error is logged; the
// message is acknowledged either way.
type MessageHandler func(topic string, payload []byte) error

// Client is the broker connection of one device.
//
// It keeps a retained online/offline status on the device status topic (the
// offline one doubles as the LWT) and re-subscribes after every reconnect.
// All methods are safe for concurrent use.
type Client struct {
	client pahomqtt.Client
	qos    byte
	topics Topics

	connected atomic.Bool

	mu     sync.Mutex
	subs   map[string]subscription
	logger Logger
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Connect dials the broker in cfg as device and waits for the first
// connection. device names the topics and is the client ID unless cfg sets
// one.
func Connect(cfg config.MQTTConfig, device string) (*Client, error) {
	c := &Client{
		qos:    byte(cfg.QoS),
		topics: Topics{Device: device},
		subs:   make(map[string]subscription),
	}

	opts := buildClientOptions(cfg, device)
	configureLWT(opts, device)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.onConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.onConnectionLost(err) })

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// onConnect runs on a paho goroutine and may not have run yet.
	c.connected.Store(true)
	return c, nil
}

// Topics returns the topic builder of the device.
func (c *Client) Topics() Topics { return c.topics }

// SetLogger sets the logger for connection loss and handler failures.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) log() Logger {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.logger == nil {
		return noopLogger{}
	}
	return c.logger
}

func (c *Client) onConnect() {
	c.connected.Store(true)

	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for topic, sub := range c.subs {
		subs[topic] = sub
	}
	c.mu.Unlock()

	for topic, sub := range subs {
		c.client.Subscribe(topic, sub.qos, c.dispatch(sub.handler))
	}
	c.client.Publish(c.topics.Status(), c.qos, true, buildStatusPayload(c.topics.Device, "online", ""))
}

func (c *Client) onConnectionLost(err error) {
	c.connected.Store(false)
	c.log().Warn("MQTT connection lost", "error", err)
}

// Close publishes the graceful offline status and disconnects.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if c.IsConnected() {
		token := c.client.Publish(c.topics.Status(), c.qos, true,
			buildStatusPayload(c.topics.Device, "offline", "graceful_shutdown"))
		token.WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.connected.Store(false)
	return nil
}

// HealthCheck reports whether the broker connection is up.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	return c.connected.Load() && c.client != nil && c.client.IsConnected()
}
