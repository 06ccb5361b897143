package id

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// ID is a 96-bit, lexicographically sortable identifier encoded as 12 bytes
// big-endian: [6 bytes ms_timestamp][6 bytes sequence]. The controller uses
// these for task identifiers so result-archive keys iterate in submission
// order.
type ID [12]byte

// String returns the 24-character lowercase hex form.
func (i ID) String() string { return hex.EncodeToString(i[:]) }

// Bytes returns the raw 12-byte representation.
func (i ID) Bytes() []byte { b := make([]byte, len(i)); copy(b, i[:]); return b }

// IsZero reports whether the ID is the zero value.
func (i ID) IsZero() bool { return i == ID{} }

// Parse decodes the 24-character hex form produced by String.
func Parse(s string) (ID, error) {
	var out ID
	if len(s) != hex.EncodedLen(len(out)) {
		return out, fmt.Errorf("id: bad length %d", len(s))
	}
	if _, err := hex.Decode(out[:], []byte(s)); err != nil {
		return out, fmt.Errorf("id: %w", err)
	}
	return out, nil
}

// Generator produces monotonically increasing IDs per process.
type Generator struct {
	mu     sync.Mutex
	lastMs int64
	seq    uint64
}

// NewGenerator creates a new Generator.
func NewGenerator() *Generator { return &Generator{} }

// NowMs returns current time in milliseconds since the Unix epoch.
// Overridable in tests.
var NowMs = func() int64 { return time.Now().UnixMilli() }

// Next returns a new ID. A clock that moves backwards is pinned to the last
// observed millisecond and disambiguated by the sequence counter.
func (g *Generator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := NowMs()
	if ms <= g.lastMs {
		ms = g.lastMs
		g.seq++
	} else {
		g.seq = 0
	}
	g.lastMs = ms

	var out ID
	binary.BigEndian.PutUint64(out[0:8], uint64(ms)<<16)
	// overwrite the low 6 bytes with the sequence
	seq := g.seq & 0xFFFFFFFFFFFF
	out[6] = byte(seq >> 40)
	out[7] = byte(seq >> 32)
	binary.BigEndian.PutUint32(out[8:12], uint32(seq))
	return out
}
