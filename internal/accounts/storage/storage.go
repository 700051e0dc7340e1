// Package storage is the "storage" account: it serves the persisted station
// credentials to other accounts over the mediator.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/stalink/internal/kvstore"
	"github.com/nerrad567/stalink/internal/mediator"
)

// Name is the account and topic name.
const Name = "storage"

// WiFiKey is the store key of the credentials record.
const WiFiKey = "wifi"

const restoreTimeout = 5 * time.Second

// RequestType selects the record a request addresses.
type RequestType uint8

const (
	// TypeWiFi reads (pull) or writes (notify) the credentials record.
	TypeWiFi RequestType = iota + 1
	// TypeRestore resets every record to its default (notify only).
	TypeRestore
)

func (t RequestType) String() string {
	switch t {
	case TypeWiFi:
		return "wifi"
	case TypeRestore:
		return "restore"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Request is the payload exchanged with the storage account. Pull and
// notify both take a *Request.
type Request struct {
	Type RequestType
	WiFi WiFiRecord
}

// Keys returns the store keys served by the account.
func Keys() []kvstore.Key {
	return []kvstore.Key{{Name: WiFiKey, Size: RecordSize}}
}

// Store is the persistence service behind the account.
type Store interface {
	Get(key string, buf []byte) (int, error)
	Set(key string, value []byte) error
	Restore(ctx context.Context) error
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

// Account serves credentials from a Store.
type Account struct {
	store  Store
	logger Logger
	acct   *mediator.Account
}

// Register creates the storage account on m.
func Register(m *mediator.Mediator, store Store, logger Logger) (*Account, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	a := &Account{store: store, logger: logger}
	acct, err := m.Register(Name, mediator.Routes{
		mediator.EventSubscribePull: a.onPull,
		mediator.EventNotify:        a.onNotify,
	}, 0)
	if err != nil {
		return nil, err
	}
	a.acct = acct
	logger.Info("storage account registered")
	return a, nil
}

// Mediator returns the underlying mediator account.
func (a *Account) Mediator() *mediator.Account { return a.acct }

func (a *Account) onPull(_ *mediator.Account, ev mediator.Event) error {
	req, err := mediator.Expect[*Request](ev.Payload)
	if err != nil {
		return err
	}
	switch req.Type {
	case TypeWiFi:
		buf := make([]byte, RecordSize)
		if _, err := a.store.Get(WiFiKey, buf); err != nil {
			return fmt.Errorf("reading wifi record: %w", err)
		}
		return req.WiFi.UnmarshalBinary(buf)
	default:
		return fmt.Errorf("%w: storage pull %s", mediator.ErrUnsupported, req.Type)
	}
}

func (a *Account) onNotify(_ *mediator.Account, ev mediator.Event) error {
	req, err := mediator.Expect[*Request](ev.Payload)
	if err != nil {
		return err
	}
	switch req.Type {
	case TypeWiFi:
		buf, err := req.WiFi.MarshalBinary()
		if err != nil {
			return fmt.Errorf("%w: %w", mediator.ErrParam, err)
		}
		if err := a.store.Set(WiFiKey, buf); err != nil {
			return fmt.Errorf("writing wifi record: %w", err)
		}
		a.logger.Info("wifi credentials stored", "from", ev.From, "ssid", string(req.WiFi.SSID))
		return nil
	case TypeRestore:
		ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
		defer cancel()
		if err := a.store.Restore(ctx); err != nil {
			return fmt.Errorf("restoring defaults: %w", err)
		}
		a.logger.Warn("storage restored to defaults", "from", ev.From)
		return nil
	default:
		return fmt.Errorf("%w: storage notify %s", mediator.ErrUnsupported, req.Type)
	}
}
