package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrUnknownKey is returned for keys that were not registered with New.
	ErrUnknownKey = errors.New("kvstore: unknown key")

	// ErrValueTooLarge is returned when a value exceeds the key's size.
	ErrValueTooLarge = errors.New("kvstore: value too large")

	// ErrEmptyBuffer is returned when Get is given a zero-length buffer.
	ErrEmptyBuffer = errors.New("kvstore: empty buffer")
)

// writeTimeout bounds a single backend write made on behalf of Set.
const writeTimeout = 2 * time.Second

// Key declares one stored record.
type Key struct {
	Name string
	// Size is the fixed record size in bytes.
	Size int
	// Default is the value after Restore and before the first Set. It is
	// zero-padded to Size.
	Default []byte
}

func (k Key) defaultValue() []byte {
	v := make([]byte, k.Size)
	copy(v, k.Default)
	return v
}

// Backend persists records.
type Backend interface {
	Load(ctx context.Context) (map[string][]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	// Reset erases every record and writes values.
	Reset(ctx context.Context, values map[string][]byte) error
}

// Logger is the logging interface used by the store.
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

// Store is a cached, write-through record store. It is safe for concurrent use.
type Store struct {
	backend Backend
	keys    map[string]Key
	order   []string
	logger  Logger

	mu    sync.Mutex
	cache map[string][]byte
}

// New creates a store for keys on top of backend. The cache starts with the
// defaults; call Load to read persisted values.
func New(backend Backend, keys ...Key) *Store {
	s := &Store{
		backend: backend,
		keys:    make(map[string]Key, len(keys)),
		logger:  noopLogger{},
		cache:   make(map[string][]byte, len(keys)),
	}
	for _, k := range keys {
		if _, dup := s.keys[k.Name]; !dup {
			s.order = append(s.order, k.Name)
		}
		s.keys[k.Name] = k
		s.cache[k.Name] = k.defaultValue()
	}
	return s
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// Keys returns the registered keys in registration order.
func (s *Store) Keys() []Key {
	out := make([]Key, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.keys[name])
	}
	return out
}

// Load fills the cache from the backend. Unknown persisted keys are ignored.
// Persisted values longer than the key size are truncated.
func (s *Store) Load(ctx context.Context) error {
	values, err := s.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading records: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	loaded := 0
	for name, v := range values {
		k, ok := s.keys[name]
		if !ok {
			s.logger.Debug("ignoring unknown record", "key", name)
			continue
		}
		slot := k.defaultValue()
		copy(slot, v)
		s.cache[name] = slot
		loaded++
	}
	s.logger.Info("records loaded", "count", loaded)
	return nil
}

// Get copies the value of key into buf and returns the number of bytes
// copied, which is the smaller of len(buf) and the key size.
func (s *Store) Get(key string, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, ErrEmptyBuffer
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cache[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return copy(buf, v), nil
}

// Set writes value to key. A value shorter than the key size replaces the
// leading bytes only. The cache is updated only after the backend accepted
// the whole record.
func (s *Store) Set(key string, value []byte) error {
	k, ok := s.keys[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if len(value) > k.Size {
		return fmt.Errorf("%w: %s holds %d bytes, got %d", ErrValueTooLarge, key, k.Size, len(value))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := append([]byte(nil), s.cache[key]...)
	copy(record, value)

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := s.backend.Save(ctx, key, record); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	s.cache[key] = record
	s.logger.Debug("record saved", "key", key)
	return nil
}

// Restore erases the backend and resets every key to its default.
func (s *Store) Restore(ctx context.Context) error {
	defaults := make(map[string][]byte, len(s.keys))
	for name, k := range s.keys {
		defaults[name] = k.defaultValue()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Reset(ctx, defaults); err != nil {
		return fmt.Errorf("restoring defaults: %w", err)
	}
	s.cache = defaults
	s.logger.Info("records restored to defaults", "count", len(defaults))
	return nil
}
