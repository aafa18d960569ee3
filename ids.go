package apmagent

import (
	"crypto/rand"
	"encoding/hex"
	mathrand "math/rand"
	"sync"
)

// TraceID identifies an entire distributed trace. It also serves as the
// trace identity carried by a W3C TraceParent.
type TraceID [16]byte

func (id TraceID) Hex() []byte {
	b := make([]byte, hex.EncodedLen(len(id)))
	hex.Encode(b, id[:])
	return b
}

func (id TraceID) String() string { return string(id.Hex()) }

func (id TraceID) IsZero() bool { return id == zeroTraceID }

// SpanID identifies a transaction or span within a trace.
type SpanID [8]byte

func (id SpanID) Hex() []byte {
	b := make([]byte, hex.EncodedLen(len(id)))
	hex.Encode(b, id[:])
	return b
}

func (id SpanID) String() string { return string(id.Hex()) }

func (id SpanID) IsZero() bool { return id == zeroSpanID }

var (
	zeroTraceID TraceID
	zeroSpanID  SpanID
)

// generateTraceID mints a new random 128-bit trace identifier using a
// cryptographic source.
func generateTraceID() TraceID {
	var id TraceID
	if _, err := rand.Read(id[:]); err != nil {
		panic(err)
	}
	return id
}

// generateSpanID mints a new random 64-bit span/transaction identifier.
func generateSpanID() SpanID {
	var id SpanID
	if _, err := rand.Read(id[:]); err != nil {
		panic(err)
	}
	return id
}

// sampler draws uniform values in [0,1) for head-based sampling decisions.
// A dedicated, lockable math/rand source is used instead of the global
// source so that per-client seeding gives a repeatable draw sequence in
// tests.
type sampler struct {
	mu  sync.Mutex
	rnd *mathrand.Rand
}

func newSampler(seed int64) *sampler {
	return &sampler{rnd: mathrand.New(mathrand.NewSource(seed))}
}

func (s *sampler) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}
