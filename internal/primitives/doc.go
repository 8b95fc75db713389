// Package primitives provides the raw, serializable building blocks of a
// statechart definition: events, the extended-state context, and the
// state/transition/invoke/delay configuration tree a host hands to the
// compiler.
//
// Nothing in this package executes behavior. Actions, guards and services are
// referenced symbolically (ActionRef, GuardRef, ServiceRef) and bound to Go
// functions by a registry when an interpreter is constructed.
//
// Core invariants:
//   - Events are values; consumers must not mutate a received Event.
//   - A Context belongs to exactly one interpreter and is only touched from
//     its processing goroutine.
//   - Config trees are plain data (json/yaml tags) so they can be loaded
//     from files.
package primitives
