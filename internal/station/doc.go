// Package station implements the connectivity state machine of a Wi-Fi
// station interface.
//
// A Station owns the radio's operational state on top of a Driver. It
// translates raw driver events into a small event vocabulary, silently
// reconnects after unexpected link loss, and runs the timed credential
// provisioning sub-protocol.
//
// # State
//
// LinkState is the mutually exclusive phase (Ready, Connected, ...). Flags
// holds orthogonal conditions that can be true in several phases, most
// importantly FlagActiveDisconnect, which survives phase changes and decides
// whether a link-down is surfaced or silently retried.
//
// # Reconnection
//
// On link-down the station:
//   - swallows the event while a provisioning session owns the radio
//   - surfaces EventDisconnected when the operator asked for the disconnect
//   - otherwise reconnects with the cached credentials, without backoff
//
// The driver is expected to rate-limit its own retries.
//
// # Provisioning
//
// StartProvisioning arms a one-shot deadline (60s by default). Every channel
// lock reported by the driver re-arms the full window. The session ends on
// deadline expiry, on StopProvisioning or when the driver reports the
// acknowledgement was sent. Received credentials are surfaced as
// EventCredentialsDiscovered and then connected to.
//
// # Concurrency
//
// Flags and state are atomic. The credentials cache and the provisioning
// session each sit behind their own mutex. No lock is held while the driver
// or the event handler is called, so both may call back into the Station.
//
// # Usage
//
//	st := station.New(driver, timer.NewRuntime())
//	st.SetLogger(log)
//	if err := st.Initialize(func(ev station.Event) { ... }); err != nil {
//	    return err
//	}
//	_ = st.Connect([]byte("Home"), []byte("secret"))
package station
