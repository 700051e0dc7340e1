package station

import (
	"time"

	"github.com/google/uuid"
)

// EventKind is the stable event vocabulary surfaced to the station's consumer.
type EventKind uint8

const (
	EventReady EventKind = iota + 1
	EventStarted
	EventStopped
	EventConnected
	EventDisconnected
	EventGotIP
	EventLostIP
	EventScanComplete
	EventCredentialsDiscovered
	EventProvisioningStarted
	EventProvisioningStopped
)

var eventNames = map[EventKind]string{
	EventReady:                 "ready",
	EventStarted:               "started",
	EventStopped:               "stopped",
	EventConnected:             "connected",
	EventDisconnected:          "disconnected",
	EventGotIP:                 "got-ip",
	EventLostIP:                "lost-ip",
	EventScanComplete:          "scan-complete",
	EventCredentialsDiscovered: "credentials-discovered",
	EventProvisioningStarted:   "provisioning-started",
	EventProvisioningStopped:   "provisioning-stopped",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// StopReason says why a provisioning session ended.
type StopReason uint8

const (
	StopAborted StopReason = iota
	StopCompleted
	StopTimeout
	StopRestarted
)

func (r StopReason) String() string {
	switch r {
	case StopCompleted:
		return "completed"
	case StopTimeout:
		return "timeout"
	case StopRestarted:
		return "restarted"
	default:
		return "aborted"
	}
}

// Event is delivered to the handler passed to Initialize.
type Event struct {
	Kind EventKind

	// Handle is the driver interface handle (EventReady).
	Handle any
	// IPv4 is the acquired configuration (EventGotIP).
	IPv4 IPv4Info
	// Scan lists the access points found (EventScanComplete).
	Scan []ScanResult
	// Credentials were received over the air (EventCredentialsDiscovered).
	Credentials Credentials
	// Session identifies the provisioning session (provisioning events).
	Session uuid.UUID
	// Reason is set on EventProvisioningStopped.
	Reason StopReason
}

// EventHandler consumes station events. It runs on the driver's dispatch
// context or on the caller of a Station method and must not block.
type EventHandler func(Event)

// ProvisioningSession describes the provisioning window. It only exists while
// FlagProvisioningRunning is set.
type ProvisioningSession struct {
	ID      uuid.UUID
	Variant ProvisioningVariant
	Started time.Time
	// Locks counts channel locks that re-armed the deadline.
	Locks int
}
