package station

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"strings"
)

// LinkState is the mutually exclusive operational phase of the station.
type LinkState uint32

const (
	StateUninitialized LinkState = iota
	StateReady
	StateDisconnected
	StateConnected
	StateProvisioning
)

var linkStateNames = [...]string{
	StateUninitialized: "uninitialized",
	StateReady:         "ready",
	StateDisconnected:  "disconnected",
	StateConnected:     "connected",
	StateProvisioning:  "provisioning",
}

func (s LinkState) String() string {
	if int(s) < len(linkStateNames) {
		return linkStateNames[s]
	}
	return fmt.Sprintf("LinkState(%d)", uint32(s))
}

// Flags is a set of orthogonal connectivity conditions.
type Flags uint32

const (
	// FlagProvisioningRunning is set while a provisioning session owns the radio.
	FlagProvisioningRunning Flags = 1 << iota
	// FlagNetworkConnected is set between a driver link-up and the next link-down.
	FlagNetworkConnected
	// FlagActiveDisconnect is set when the operator asked for the link to go
	// down. It is cleared by the next connect attempt.
	FlagActiveDisconnect
)

// Has reports whether every flag in x is set.
func (f Flags) Has(x Flags) bool { return f&x == x }

func (f Flags) String() string {
	var parts []string
	if f.Has(FlagProvisioningRunning) {
		parts = append(parts, "provisioning")
	}
	if f.Has(FlagNetworkConnected) {
		parts = append(parts, "connected")
	}
	if f.Has(FlagActiveDisconnect) {
		parts = append(parts, "active-disconnect")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

const (
	// MaxSSIDLen is the longest SSID the radio accepts, in bytes.
	MaxSSIDLen = 32
	// MaxPasswordLen is the longest passphrase the radio accepts, in bytes.
	MaxPasswordLen = 64
)

// Credentials is an SSID and password pair. Both are raw byte strings with
// explicit length; equality compares length and every byte.
type Credentials struct {
	SSID     []byte
	Password []byte
}

// NewCredentials validates and copies ssid and password. A nil password
// denotes an open network.
func NewCredentials(ssid, password []byte) (Credentials, error) {
	c := Credentials{SSID: ssid, Password: password}
	if err := c.Validate(); err != nil {
		return Credentials{}, err
	}
	return c.Clone(), nil
}

// Validate checks the length bounds.
func (c Credentials) Validate() error {
	switch {
	case len(c.SSID) == 0:
		return ErrEmptySSID
	case len(c.SSID) > MaxSSIDLen:
		return ErrSSIDTooLong
	case len(c.Password) > MaxPasswordLen:
		return ErrPasswordTooLong
	}
	return nil
}

// IsZero reports whether no SSID is set.
func (c Credentials) IsZero() bool { return len(c.SSID) == 0 }

// Equal reports whether both pairs have identical length and bytes.
func (c Credentials) Equal(o Credentials) bool {
	return bytes.Equal(c.SSID, o.SSID) && bytes.Equal(c.Password, o.Password)
}

// Clone returns a deep copy.
func (c Credentials) Clone() Credentials {
	return Credentials{
		SSID:     bytes.Clone(c.SSID),
		Password: bytes.Clone(c.Password),
	}
}

// String renders the SSID only.
func (c Credentials) String() string {
	if len(c.Password) == 0 {
		return fmt.Sprintf("%q (open)", c.SSID)
	}
	return fmt.Sprintf("%q (secured)", c.SSID)
}

// ScanResult is one access point seen by a scan.
type ScanResult struct {
	SSID []byte
	RSSI int8
}

// IPv4Info is the address configuration acquired on link-up. Values are
// 32-bit host-order integers as reported by the driver.
type IPv4Info struct {
	IP      uint32
	Gateway uint32
	Netmask uint32
}

// IPv4FromNet converts dotted addresses into an IPv4Info. Non-IPv4 inputs become zero.
func IPv4FromNet(ip, gw, mask net.IP) IPv4Info {
	return IPv4Info{IP: toUint32(ip), Gateway: toUint32(gw), Netmask: toUint32(mask)}
}

// Addr returns the interface address.
func (i IPv4Info) Addr() net.IP { return toIP(i.IP) }

// GatewayAddr returns the default gateway.
func (i IPv4Info) GatewayAddr() net.IP { return toIP(i.Gateway) }

// Mask returns the netmask.
func (i IPv4Info) Mask() net.IP { return toIP(i.Netmask) }

// IsZero reports whether no address is set.
func (i IPv4Info) IsZero() bool { return i == IPv4Info{} }

func toUint32(ip net.IP) uint32 {
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}
	return binary.BigEndian.Uint32(v4)
}

func toIP(v uint32) net.IP {
	ip := make(net.IP, net.IPv4len)
	binary.BigEndian.PutUint32(ip, v)
	return ip
}
