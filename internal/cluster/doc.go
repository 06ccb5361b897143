// Package cluster resolves and provisions the controller's on-disk working
// directory.
//
// A cluster directory roots one controller instance. Resolve locates it
// from an explicit setting or a named profile and creates it when missing;
// Provision then establishes the security/ (owner-only) and log/
// (world-writable) subdirectories. Both run before any network listener
// opens, so an RPC surface is never exposed over an unprovisioned or
// insecure filesystem state.
package cluster
