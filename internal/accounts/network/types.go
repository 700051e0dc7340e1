package network

import (
	"fmt"
	"net"

	"github.com/nerrad567/stalink/internal/station"
)

// ConnState is the link state published by the network account.
type ConnState uint8

const (
	Disconnected ConnState = iota
	Connected
)

func (s ConnState) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// MarshalText renders the state name.
func (s ConnState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// NetworkState is the payload the account publishes on every link change and
// answers to TypeNetwork pulls. IPv4 is zero unless connected.
type NetworkState struct {
	State ConnState
	IPv4  station.IPv4Info
}

// ConnectParams asks the station to join a network. A nil Password denotes
// an open network; a nil SSID is rejected.
type ConnectParams struct {
	SSID     []byte
	Password []byte
}

// RequestType selects the sub-type of a network request.
type RequestType uint8

const (
	// TypeNetwork pulls the link state and address.
	TypeNetwork RequestType = iota + 1
	// TypeMAC pulls or sets the hardware address.
	TypeMAC
	// TypeDisconnect drops the link (notify).
	TypeDisconnect
	// TypeConnect joins a network with explicit credentials (notify).
	TypeConnect
)

func (t RequestType) String() string {
	switch t {
	case TypeNetwork:
		return "network"
	case TypeMAC:
		return "mac"
	case TypeDisconnect:
		return "disconnect"
	case TypeConnect:
		return "connect"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Request is the payload of pulls and notifies addressed to the network
// account. Only the field matching Type is used.
type Request struct {
	Type    RequestType
	Network NetworkState
	MAC     net.HardwareAddr
	Connect ConnectParams
}
