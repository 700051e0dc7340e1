// Package console provides the interactive diagnostic console.
//
// The console is an account named "console" subscribed to the network
// account; link changes are printed as they are published. Commands reach
// the network and storage accounts through the mediator. Scan and
// provisioning go to the station directly because no account exposes them.
//
// Lines are split shell-style, so SSIDs with spaces can be quoted:
//
//	stalink> connect "Home Network" secret1
//
// Exec runs a single line and is what the tests drive; Run wraps it in a
// readline prompt.
package console
