package apmagent

import (
	"context"
	"testing"
)

func TestContextWithTransactionRoundTrip(t *testing.T) {
	txn := &Transaction{ID: generateSpanID(), Name: "round-trip"}
	ctx := ContextWithTransaction(context.Background(), txn)

	got := TransactionFromContext(ctx)
	if got != txn {
		t.Errorf("TransactionFromContext() = %p, want %p", got, txn)
	}
}

func TestTransactionFromContextAbsent(t *testing.T) {
	if got := TransactionFromContext(context.Background()); got != nil {
		t.Errorf("TransactionFromContext(background) = %v, want nil", got)
	}
}

func TestContextWithoutTransactionClears(t *testing.T) {
	txn := &Transaction{ID: generateSpanID(), Name: "to-be-cleared"}
	ctx := ContextWithTransaction(context.Background(), txn)
	ctx = ContextWithoutTransaction(ctx)

	if got := TransactionFromContext(ctx); got != nil {
		t.Errorf("TransactionFromContext() after clearing = %v, want nil", got)
	}
}
