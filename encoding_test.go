package apmagent

import (
	"strings"
	"testing"
)

func TestTruncateKeyword(t *testing.T) {
	name := strings.Repeat("x", KeywordMaxLength+1)
	got := truncateKeyword(name)

	runes := []rune(got)
	if len(runes) != KeywordMaxLength {
		t.Fatalf("len(got) = %d, want %d", len(runes), KeywordMaxLength)
	}
	if runes[len(runes)-1] == 'x' {
		t.Errorf("last code unit = %q, want truncation marker", runes[len(runes)-1])
	}
	if runes[len(runes)-1] != truncationMarker {
		t.Errorf("last code unit = %q, want %q", runes[len(runes)-1], truncationMarker)
	}
}

func TestTruncateKeywordUnderLimit(t *testing.T) {
	name := "my-transaction"
	if got := truncateKeyword(name); got != name {
		t.Errorf("truncateKeyword(%q) = %q, want unchanged", name, got)
	}
}

func TestEncodeTransactionOmitsContextWhenUnsampled(t *testing.T) {
	txn := &Transaction{
		ID:      generateSpanID(),
		TraceID: generateTraceID(),
		Name:    "GET /users",
		Sampled: false,
		Context: map[string]interface{}{"user": map[string]interface{}{"id": "42"}},
	}
	got := encodeTransaction(txn)
	if got.Context != nil {
		t.Errorf("Context = %v, want nil for unsampled transaction", got.Context)
	}
}

func newVarsErrorEvent() *ErrorEvent {
	return &ErrorEvent{
		Message:       "boom",
		ExceptionType: "customError",
		Frames: []Frame{
			{Function: "outer"},
			{Function: "inner"},
		},
		Vars: map[string]interface{}{"userID": "42"},
	}
}

func TestEncodeErrorAttachesCallerVarsToInnermostFrame(t *testing.T) {
	e := newVarsErrorEvent()
	got := encodeError(e, collectErrors, defaultLocalVarMaxLength, defaultLocalVarListMaxLength)

	if got.Exception == nil || len(got.Exception.Stacktrace) != 2 {
		t.Fatalf("unexpected exception/stacktrace shape: %+v", got.Exception)
	}
	inner := got.Exception.Stacktrace[1]
	if inner.Vars["userID"] != "42" {
		t.Errorf("innermost frame Vars = %v, want userID=42", inner.Vars)
	}
	outer := got.Exception.Stacktrace[0]
	if outer.Vars != nil {
		t.Errorf("outer frame Vars = %v, want nil", outer.Vars)
	}
}

func TestEncodeErrorVarsGatedByCollectLocalVariables(t *testing.T) {
	for _, mode := range []collectLocalVariablesMode{collectNone, collectTransactions} {
		e := newVarsErrorEvent()
		got := encodeError(e, mode, defaultLocalVarMaxLength, defaultLocalVarListMaxLength)
		inner := got.Exception.Stacktrace[len(got.Exception.Stacktrace)-1]
		if inner.Vars != nil {
			t.Errorf("mode %q: innermost frame Vars = %v, want nil (collection disabled for errors)", mode, inner.Vars)
		}
	}

	for _, mode := range []collectLocalVariablesMode{collectErrors, collectAll} {
		e := newVarsErrorEvent()
		got := encodeError(e, mode, defaultLocalVarMaxLength, defaultLocalVarListMaxLength)
		inner := got.Exception.Stacktrace[len(got.Exception.Stacktrace)-1]
		if inner.Vars["userID"] != "42" {
			t.Errorf("mode %q: innermost frame Vars = %v, want userID=42", mode, inner.Vars)
		}
	}
}

func TestEncodeSpanAppliesRepeatCountPrefix(t *testing.T) {
	span := &Span{Index: 0, Name: "db", Type: "db.query", Count: 10}
	txn := &Transaction{ID: generateSpanID(), TraceID: generateTraceID()}
	got := encodeSpan(txn, span)
	want := "(10x) db"
	if got.Name != want {
		t.Errorf("Name = %q, want %q", got.Name, want)
	}
}
