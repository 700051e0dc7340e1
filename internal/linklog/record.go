package linklog

import (
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/stalink/internal/station"
)

// Record is one journal entry. Integer keys keep entries compact.
type Record struct {
	Time time.Time `cbor:"1,keyasint"`
	// Kind is the station event name, e.g. "connected" or "got-ip".
	Kind    string `cbor:"2,keyasint"`
	SSID    string `cbor:"3,keyasint,omitempty"`
	Reason  string `cbor:"4,keyasint,omitempty"`
	Session string `cbor:"5,keyasint,omitempty"`
	IP      string `cbor:"6,keyasint,omitempty"`
}

// RecordFromEvent converts a station event. ok is false for events that are
// not journaled.
func RecordFromEvent(ev station.Event, at time.Time) (rec Record, ok bool) {
	rec = Record{Time: at.UTC(), Kind: ev.Kind.String()}

	switch ev.Kind {
	case station.EventScanComplete:
		// Every rescan would land here.
		return Record{}, false
	case station.EventGotIP:
		rec.IP = ev.IPv4.Addr().String()
	case station.EventCredentialsDiscovered:
		rec.SSID = string(ev.Credentials.SSID)
	case station.EventProvisioningStopped:
		rec.Reason = ev.Reason.String()
	}
	if ev.Session != uuid.Nil {
		rec.Session = ev.Session.String()
	}
	return rec, true
}

// String renders r on one line for the console.
func (r Record) String() string {
	s := r.Time.Local().Format("2006-01-02 15:04:05") + " " + r.Kind
	if r.SSID != "" {
		s += " ssid=" + r.SSID
	}
	if r.IP != "" {
		s += " ip=" + r.IP
	}
	if r.Reason != "" {
		s += " reason=" + r.Reason
	}
	if r.Session != "" {
		s += " session=" + r.Session
	}
	return s
}
