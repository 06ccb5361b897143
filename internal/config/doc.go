// Package config implements the controller's layered configuration store.
//
// Three layers feed the resolved settings, in increasing precedence:
// built-in defaults, the per-cluster YAML file, and explicitly set
// command-line flags. A key left unset in a higher layer never masks a set
// value below it. After startup resolution the store is read-only;
// components receive a typed Settings snapshot via Resolved().
//
// Example:
//
//	store, _ := config.NewStore()
//	_ = store.LoadFlags(cmd.Flags())
//	settings, _ := store.Resolved()
package config
