// Package sim is a simulated station radio.
//
// The Driver implements station.Driver against a fixed list of access
// points. Calls record what they were asked to do and answer with the
// driver events a real radio would send: connecting to a known network with
// the right password produces sta-connected followed by got-ip, anything else
// produces sta-disconnected. A provisioning peer, when configured, locks a
// channel, sends its credentials and acknowledges.
//
// Events are delivered on a dedicated dispatch goroutine after a configurable
// latency. With the Synchronous option events are queued instead and
// delivered on the caller's goroutine by Flush, which makes tests
// deterministic.
package sim
