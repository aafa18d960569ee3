package apmagent

import "context"

// transactionContextKey is used to store the current Transaction in a
// context.Context, Go's idiomatic stand-in for task-local storage: a value
// attached to a unit of execution and carried across suspension points as
// long as it is threaded through blocking calls, which in Go callers always
// do explicitly.
type transactionContextKey struct{}

// ContextWithTransaction returns a copy of ctx carrying txn as the current
// transaction.
func ContextWithTransaction(ctx context.Context, txn *Transaction) context.Context {
	return context.WithValue(ctx, transactionContextKey{}, txn)
}

// TransactionFromContext returns the transaction bound to ctx, or nil if
// none.
func TransactionFromContext(ctx context.Context) *Transaction {
	txn, _ := ctx.Value(transactionContextKey{}).(*Transaction)
	return txn
}

// ContextWithoutTransaction returns a copy of ctx with no current
// transaction bound.
func ContextWithoutTransaction(ctx context.Context) context.Context {
	return context.WithValue(ctx, transactionContextKey{}, (*Transaction)(nil))
}
