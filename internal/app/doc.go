// Package app wires the controller together: it resolves configuration
// into a cluster directory, provisions credentials, assembles the client
// and engine listener services over one backend, runs startup hooks, and
// drives the run-until-signaled lifecycle.
package app
