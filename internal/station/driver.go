package station

import "net"

// DriverEventKind identifies a raw driver notification.
type DriverEventKind uint8

const (
	DriverStaStart DriverEventKind = iota + 1
	DriverStaStop
	DriverStaDisconnected
	DriverStaConnected
	DriverScanDone
	DriverGotIP
	DriverLostIP
	DriverProvisioningFoundChannel
	DriverProvisioningAckSent
	DriverProvisioningCredentials
)

var driverEventNames = map[DriverEventKind]string{
	DriverStaStart:                 "sta-start",
	DriverStaStop:                  "sta-stop",
	DriverStaDisconnected:          "sta-disconnected",
	DriverStaConnected:             "sta-connected",
	DriverScanDone:                 "scan-done",
	DriverGotIP:                    "got-ip",
	DriverLostIP:                   "lost-ip",
	DriverProvisioningFoundChannel: "provisioning-found-channel",
	DriverProvisioningAckSent:      "provisioning-ack-sent",
	DriverProvisioningCredentials:  "provisioning-credentials",
}

func (k DriverEventKind) String() string {
	if name, ok := driverEventNames[k]; ok {
		return name
	}
	return "unknown"
}

// DriverEvent is an asynchronous notification from the radio driver.
// Only the field matching Kind is populated.
type DriverEvent struct {
	Kind        DriverEventKind
	IPv4        IPv4Info     // DriverGotIP
	Scan        []ScanResult // DriverScanDone
	Credentials Credentials  // DriverProvisioningCredentials
}

// ProvisioningVariant selects the over-the-air provisioning protocol.
type ProvisioningVariant uint8

const (
	VariantAirKiss ProvisioningVariant = iota
	VariantESPTouch
)

func (v ProvisioningVariant) String() string {
	if v == VariantESPTouch {
		return "esptouch"
	}
	return "airkiss"
}

// Driver is the radio and IP stack the station drives.
//
// Calls return quickly; their outcome arrives later as a DriverEvent on the
// handler installed with SetEventHandler. Implementations deliver events on a
// dedicated dispatch context and must tolerate the handler calling back into
// the driver.
type Driver interface {
	Init() error
	Start() error
	Stop() error
	Connect(creds Credentials) error
	Disconnect() error
	StartScan(ssidFilter []byte) error
	StopScan() error
	StartProvisioning(variant ProvisioningVariant) error
	StopProvisioning() error
	HardwareAddr() (net.HardwareAddr, error)
	SetHardwareAddr(addr net.HardwareAddr) error
	IPv4() (IPv4Info, error)
	SetEventHandler(h func(DriverEvent))

	// Handle returns the driver's network interface handle. It is opaque to
	// the station and handed to consumers with EventReady.
	Handle() any
}
