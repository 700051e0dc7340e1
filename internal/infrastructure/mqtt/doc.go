// Package mqtt provides the MQTT client used to export link telemetry.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Retained state publishing with QoS guarantees
//   - Command topic subscriptions restored after reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// # Topics
//
// Every topic lives under the device:
//
//	stalink/{device}/status            online/offline (retained, LWT)
//	stalink/{device}/network/state     link state JSON (retained)
//	stalink/{device}/network/command   connect/disconnect commands
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Device.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{Device: cfg.Device.ID}
//	err = client.PublishRetained(topics.NetworkState(), payload)
//
// Broker round-trip tests carry the integration build tag and expect a
// broker at 127.0.0.1:1883.
package mqtt
