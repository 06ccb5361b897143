package pebblestore

import (
	"errors"

	"github.com/cockroachdb/pebble"
)

// ErrNotFound is returned by Get for missing keys.
var ErrNotFound = errors.New("pebblestore: key not found")

// Options configures the store.
type Options struct {
	// Dir is the path to the database directory.
	Dir string
	// Sync forces a WAL fsync on each write. The task archive keeps small,
	// infrequent records, so synchronous writes are the default.
	Sync bool
	// PebbleOptions allows advanced tuning. If nil, defaults are used.
	PebbleOptions *pebble.Options
}

// DB wraps a Pebble database with the small key/value surface the
// controller's task archive needs.
type DB struct {
	inner *pebble.DB
	wo    *pebble.WriteOptions
}

// Open creates or opens the database at opts.Dir.
func Open(opts Options) (*DB, error) {
	if opts.Dir == "" {
		return nil, errors.New("pebblestore: Options.Dir is required")
	}
	po := opts.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}
	inner, err := pebble.Open(opts.Dir, po)
	if err != nil {
		return nil, err
	}
	wo := pebble.NoSync
	if opts.Sync {
		wo = pebble.Sync
	}
	return &DB{inner: inner, wo: wo}, nil
}

// Close closes the database.
func (db *DB) Close() error {
	if db == nil || db.inner == nil {
		return nil
	}
	return db.inner.Close()
}

// Set stores value under key.
func (db *DB) Set(key, value []byte) error {
	return db.inner.Set(key, value, db.wo)
}

// Get returns a copy of the value for key, or ErrNotFound.
func (db *DB) Get(key []byte) ([]byte, error) {
	val, closer, err := db.inner.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), val...), nil
}

// Delete removes key.
func (db *DB) Delete(key []byte) error {
	return db.inner.Delete(key, db.wo)
}

// Scan visits every key/value pair whose key starts with prefix, in key
// order. The callback receives slices that are only valid for the duration
// of the call; it returns false to stop early.
func (db *DB) Scan(prefix []byte, fn func(key, value []byte) bool) error {
	upper := prefixUpperBound(prefix)
	it, err := db.inner.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return err
	}
	defer func() { _ = it.Close() }()

	for ok := it.First(); ok; ok = it.Next() {
		if !fn(it.Key(), it.Value()) {
			break
		}
	}
	return it.Error()
}

// prefixUpperBound returns the smallest key greater than every key with
// the given prefix, or nil for an unbounded scan.
func prefixUpperBound(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xFF {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}
