package apmagent

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTraceParentRoundTrip(t *testing.T) {
	tests := []TraceParent{
		{Version: 0x00, Trace: generateTraceID(), Span: generateSpanID(), Flags: 0x01},
		{Version: 0x00, Trace: generateTraceID(), Span: generateSpanID(), Flags: 0x00},
	}
	for _, tp := range tests {
		s := tp.String()
		got, ok := ParseTraceParent(s)
		if !ok {
			t.Fatalf("ParseTraceParent(%q) failed to parse", s)
		}
		if diff := cmp.Diff(tp, got); diff != "" {
			t.Errorf("round trip mismatch for %q (-want +got):\n%s", s, diff)
		}
	}
}

func TestParseTraceParentRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"00-00000000000000000000000000000000-0000000000000000-01",
		"00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01-extra",
		"zz-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
	}
	for _, s := range cases {
		if _, ok := ParseTraceParent(s); ok {
			t.Errorf("ParseTraceParent(%q) unexpectedly succeeded", s)
		}
	}
}

func TestTraceParentSampled(t *testing.T) {
	tp := TraceParent{Flags: 0x01}
	if !tp.Sampled() {
		t.Error("expected Sampled() true for flags=0x01")
	}
	tp.Flags = 0x00
	if tp.Sampled() {
		t.Error("expected Sampled() false for flags=0x00")
	}
}
