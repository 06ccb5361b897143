// Package security provisions per-cluster credentials into the security
// directory: self-signed TLS certificates for the listener bindings and
// YAML connection files carrying the bearer secret each capability
// requires. A reuse policy keeps previously issued files valid across
// controller restarts.
package security
