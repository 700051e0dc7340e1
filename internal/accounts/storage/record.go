package storage

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/nerrad567/stalink/internal/station"
)

// On-flash layout of the wifi record: two NUL-padded fields.
const (
	SSIDFieldSize     = station.MaxSSIDLen + 1
	PasswordFieldSize = station.MaxPasswordLen + 1
	RecordSize        = SSIDFieldSize + PasswordFieldSize
)

// ErrEmbeddedNUL is returned for a field containing a NUL byte.
var ErrEmbeddedNUL = errors.New("storage: embedded NUL byte")

// WiFiRecord is the persisted station credentials.
type WiFiRecord struct {
	SSID     []byte
	Password []byte
}

// RecordFrom converts station credentials.
func RecordFrom(c station.Credentials) WiFiRecord {
	c = c.Clone()
	return WiFiRecord{SSID: c.SSID, Password: c.Password}
}

// Credentials converts the record to station credentials.
func (r WiFiRecord) Credentials() station.Credentials {
	return station.Credentials{SSID: r.SSID, Password: r.Password}.Clone()
}

// IsZero reports whether no SSID is stored.
func (r WiFiRecord) IsZero() bool { return len(r.SSID) == 0 }

// Equal compares both fields by length and content.
func (r WiFiRecord) Equal(o WiFiRecord) bool {
	return bytes.Equal(r.SSID, o.SSID) && bytes.Equal(r.Password, o.Password)
}

// Validate reports whether the record survives the on-flash layout. Fields
// are NUL-terminated, so an embedded NUL byte cannot be stored.
func (r WiFiRecord) Validate() error {
	switch {
	case len(r.SSID) > station.MaxSSIDLen:
		return fmt.Errorf("%w: %d bytes", station.ErrSSIDTooLong, len(r.SSID))
	case len(r.Password) > station.MaxPasswordLen:
		return fmt.Errorf("%w: %d bytes", station.ErrPasswordTooLong, len(r.Password))
	case bytes.IndexByte(r.SSID, 0) >= 0:
		return fmt.Errorf("%w: ssid", ErrEmbeddedNUL)
	case bytes.IndexByte(r.Password, 0) >= 0:
		return fmt.Errorf("%w: password", ErrEmbeddedNUL)
	}
	return nil
}

// MarshalBinary encodes the record as RecordSize bytes.
func (r WiFiRecord) MarshalBinary() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, RecordSize)
	copy(buf[:SSIDFieldSize], r.SSID)
	copy(buf[SSIDFieldSize:], r.Password)
	return buf, nil
}

// UnmarshalBinary decodes a RecordSize-byte record. Each field ends at its
// first NUL byte.
func (r *WiFiRecord) UnmarshalBinary(data []byte) error {
	if len(data) != RecordSize {
		return fmt.Errorf("wifi record is %d bytes, want %d", len(data), RecordSize)
	}
	r.SSID = field(data[:SSIDFieldSize])
	r.Password = field(data[SSIDFieldSize:])
	return nil
}

func field(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}
