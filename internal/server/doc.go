// Package server implements the two listener services of the controller:
// the client-facing server (task submission and multiengine operations)
// and the engine-facing server (registration, heartbeats, work pull).
// Both are HTTP/JSON servers over the same backend, optionally wrapped in
// TLS, with each capability's routes guarded by its bearer secret.
package server
