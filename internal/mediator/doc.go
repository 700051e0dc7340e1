// Package mediator is an in-process publish/subscribe registry of named
// accounts.
//
// Accounts exchange typed request values without holding references to one
// another:
//
//   - Pull asks a named account to fill in a request (synchronous)
//   - Notify pushes a request to a named account (synchronous)
//   - Publish fans a payload out to every account subscribed to the publisher
//   - an optional per-account repeating timer delivers Timer events
//
// Delivery always happens on the caller's goroutine. There is no queue and no
// reordering; a handler's error is returned to the immediate caller unchanged
// in kind. Publish is the exception: subscriber errors are logged and
// swallowed so the fan-out always completes.
//
// # Dispatch
//
// A handler is keyed first by EventKind (Routes) and then by a sub-type the
// account defines on its own request type. New data kinds are added by
// extending an account's sub-type table, never by changing the mediator.
//
// # Payload contract
//
// Each account documents the request type it accepts. Handlers use Expect to
// check it; a payload of the wrong type fails with ErrSizeMismatch, which is
// always a caller bug and distinct from a handler that found nothing.
//
// # Topology
//
// Accounts are registered once at startup and never removed. Subscription
// edges may name accounts that register later.
package mediator
