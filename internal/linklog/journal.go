package linklog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/nerrad567/stalink/internal/station"
)

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("linklog: journal closed")

// Logger is the logging interface used by the journal.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Journal appends records to a file. It is safe for concurrent use.
type Journal struct {
	path   string
	logger Logger
	now    func() time.Time

	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder
	closed  bool
}

// Open opens or creates the journal at path, creating parent directories.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	return &Journal{
		path:    path,
		logger:  noopLogger{},
		now:     time.Now,
		file:    f,
		encoder: newEncoder(f),
	}, nil
}

// SetLogger sets the logger used for write failures seen by Observe.
func (j *Journal) SetLogger(logger Logger) {
	j.logger = logger
}

// Path returns the journal file path.
func (j *Journal) Path() string { return j.path }

// Append writes rec.
func (j *Journal) Append(rec Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}
	return j.encoder.Encode(rec)
}

// Observe journals a station event. It has the shape of a station event tap
// and never fails; write errors are logged.
func (j *Journal) Observe(ev station.Event) {
	rec, ok := RecordFromEvent(ev, j.now())
	if !ok {
		return
	}
	if err := j.Append(rec); err != nil && !errors.Is(err, ErrClosed) {
		j.logger.Warn("journal write failed", "event", rec.Kind, "error", err)
	}
}

// Close closes the file. It is safe to call more than once.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true
	return j.file.Close()
}
