package mqtt

import "fmt"

// TopicPrefix is the root of every stalink topic.
const TopicPrefix = "stalink"

// Topics builds the topics of one device.
//
//	topics := mqtt.Topics{Device: "stalink-01"}
//	topics.NetworkState() // "stalink/stalink-01/network/state"
type Topics struct {
	Device string
}

// Status returns the device's online/offline topic. It carries the LWT.
func (t Topics) Status() string {
	return fmt.Sprintf("%s/%s/status", TopicPrefix, t.Device)
}

// NetworkState returns the retained link state topic.
func (t Topics) NetworkState() string {
	return fmt.Sprintf("%s/%s/network/state", TopicPrefix, t.Device)
}

// NetworkCommand returns the topic the device accepts link commands on.
func (t Topics) NetworkCommand() string {
	return fmt.Sprintf("%s/%s/network/command", TopicPrefix, t.Device)
}

// AllStatus matches the status topic of every device.
func (Topics) AllStatus() string {
	return TopicPrefix + "/+/status"
}

// AllNetworkStates matches the link state topic of every device.
func (Topics) AllNetworkStates() string {
	return TopicPrefix + "/+/network/state"
}
