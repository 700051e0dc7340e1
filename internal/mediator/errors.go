package mediator

import (
	"errors"
	"fmt"
	"reflect"
)

// Status taxonomy. Handlers return these (possibly wrapped) to select the
// status seen by the caller; any other error is reported as ErrHandler.
var (
	// ErrNotFound is returned when the target account is not registered.
	ErrNotFound = errors.New("mediator: account not found")

	// ErrSizeMismatch is returned when the payload does not have the layout the
	// target declares for the topic.
	ErrSizeMismatch = errors.New("mediator: payload size mismatch")

	// ErrUnsupported is returned when the target does not handle the event
	// kind or the request sub-type.
	ErrUnsupported = errors.New("mediator: unsupported request")

	// ErrHandler wraps target-specific failures.
	ErrHandler = errors.New("mediator: handler error")

	// ErrParam is returned for malformed requests and invalid arguments.
	ErrParam = errors.New("mediator: invalid parameter")
)

// ErrAccountExists is returned when registering a name twice.
var ErrAccountExists = errors.New("mediator: account already registered")

// Status is the outcome of a pull or notify.
type Status uint8

const (
	StatusOK Status = iota
	StatusNotFound
	StatusSizeMismatch
	StatusUnsupported
	StatusHandlerError
	StatusParamError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not-found"
	case StatusSizeMismatch:
		return "size-mismatch"
	case StatusUnsupported:
		return "unsupported"
	case StatusParamError:
		return "param-error"
	default:
		return "handler-error"
	}
}

// StatusOf maps an error returned by Pull or Notify to its Status.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrNotFound):
		return StatusNotFound
	case errors.Is(err, ErrSizeMismatch):
		return StatusSizeMismatch
	case errors.Is(err, ErrUnsupported):
		return StatusUnsupported
	case errors.Is(err, ErrParam):
		return StatusParamError
	default:
		return StatusHandlerError
	}
}

// classify keeps taxonomy errors as they are and wraps anything else in ErrHandler.
func classify(target string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrNotFound, ErrSizeMismatch, ErrUnsupported, ErrHandler, ErrParam} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrHandler, target, err)
}

// Expect asserts that payload has the type T declared for a topic.
// A nil payload, including a typed nil pointer, is ErrParam; any other type
// is ErrSizeMismatch.
func Expect[T any](payload any) (T, error) {
	var zero T
	if payload == nil {
		return zero, fmt.Errorf("%w: nil payload", ErrParam)
	}
	v, ok := payload.(T)
	if !ok {
		return zero, fmt.Errorf("%w: want %T, got %T", ErrSizeMismatch, zero, payload)
	}
	if rv := reflect.ValueOf(payload); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return zero, fmt.Errorf("%w: nil %T", ErrParam, payload)
	}
	return v, nil
}
