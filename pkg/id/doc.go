// Package id generates time-ordered task identifiers.
//
// IDs are 96-bit values, 6 bytes of millisecond timestamp followed by a
// 6-byte per-process sequence, so their byte (and hex string) ordering
// matches generation order. The generator is safe for concurrent use and
// tolerates a clock that briefly moves backwards.
package id
