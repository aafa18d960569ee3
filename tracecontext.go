package apmagent

import (
	"encoding/hex"
	"strings"
)

// TraceParent carries the W3C-style trace propagation context: a
// `version-traceid-parentid-flags` tuple exchanged across process
// boundaries on a distributed request.
type TraceParent struct {
	Version byte
	Trace   TraceID
	Span    SpanID
	Flags   byte
}

// Sampled reports whether the "sampled" bit of Flags is set.
func (tp TraceParent) Sampled() bool { return tp.Flags&0x01 != 0 }

// ParseTraceParent parses a `traceparent` header value. Missing or
// malformed input yields (TraceParent{}, false); callers are expected to
// treat that as "start a new root" without surfacing an error.
func ParseTraceParent(s string) (TraceParent, bool) {
	parts := strings.Split(s, "-")
	if len(parts) != 4 {
		return TraceParent{}, false
	}
	version, trace, span, flags := parts[0], parts[1], parts[2], parts[3]
	if len(version) != 2 || len(trace) != 32 || len(span) != 16 || len(flags) != 2 {
		return TraceParent{}, false
	}
	var tp TraceParent
	vb, err := hex.DecodeString(version)
	if err != nil || len(vb) != 1 {
		return TraceParent{}, false
	}
	tp.Version = vb[0]
	if _, err := hex.Decode(tp.Trace[:], []byte(trace)); err != nil {
		return TraceParent{}, false
	}
	if _, err := hex.Decode(tp.Span[:], []byte(span)); err != nil {
		return TraceParent{}, false
	}
	fb, err := hex.DecodeString(flags)
	if err != nil || len(fb) != 1 {
		return TraceParent{}, false
	}
	tp.Flags = fb[0]
	if tp.Trace.IsZero() || tp.Span.IsZero() {
		return TraceParent{}, false
	}
	return tp, true
}

// String serializes tp back to its ASCII wire form, lowercase hex, as
// required for the outbound `traceparent` header.
func (tp TraceParent) String() string {
	var b strings.Builder
	b.Grow(55)
	b.WriteString(hex.EncodeToString([]byte{tp.Version}))
	b.WriteByte('-')
	b.WriteString(tp.Trace.String())
	b.WriteByte('-')
	b.WriteString(tp.Span.String())
	b.WriteByte('-')
	b.WriteString(hex.EncodeToString([]byte{tp.Flags}))
	return b.String()
}

// WithSpan returns a copy of tp with Span replaced, used when injecting a
// fresh TraceParent for an outbound child span.
func (tp TraceParent) WithSpan(span SpanID) TraceParent {
	cp := tp
	cp.Span = span
	return cp
}
