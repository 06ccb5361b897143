// Package pebblestore wraps a Pebble database behind the minimal
// key/value surface used by the controller's task result archive:
// Set/Get/Delete plus an ordered prefix Scan.
//
// Example:
//
//	db, _ := pebblestore.Open(pebblestore.Options{Dir: "/path/to/tasks", Sync: true})
//	defer db.Close()
//	_ = db.Set([]byte("task/0001"), payload)
package pebblestore
