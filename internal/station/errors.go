package station

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned by operations called before Initialize succeeded.
	ErrNotInitialized = errors.New("station: not initialized")

	// ErrAlreadyInitialized is returned when Initialize is called twice.
	ErrAlreadyInitialized = errors.New("station: already initialized")

	// ErrNoCredentials is returned by a reconnect when no SSID is cached.
	ErrNoCredentials = errors.New("station: no cached credentials")

	// ErrEmptySSID is returned when credentials carry a zero-length SSID.
	ErrEmptySSID = errors.New("station: ssid is empty")

	// ErrSSIDTooLong is returned when an SSID exceeds MaxSSIDLen bytes.
	ErrSSIDTooLong = errors.New("station: ssid too long")

	// ErrPasswordTooLong is returned when a password exceeds MaxPasswordLen bytes.
	ErrPasswordTooLong = errors.New("station: password too long")

	// ErrDriver matches every DriverError.
	ErrDriver = errors.New("station: driver call failed")
)

// DriverError reports a failed driver call.
type DriverError struct {
	Op  string
	Err error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("station: driver %s: %v", e.Op, e.Err)
}

func (e *DriverError) Unwrap() error { return e.Err }

// Is reports ErrDriver as a match so callers need not know the operation.
func (e *DriverError) Is(target error) bool { return target == ErrDriver }

func driverErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DriverError{Op: op, Err: err}
}
