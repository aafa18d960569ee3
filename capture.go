package apmagent

import (
	"context"
	"fmt"
	"time"
)

// BeginTransaction starts a new transaction against the default client and
// returns a context carrying it. If tp is non-nil, the transaction
// continues that distributed trace; otherwise it starts a new one.
func BeginTransaction(ctx context.Context, name, transactionType string, tp *TraceParent) (context.Context, *Transaction) {
	if DefaultClient == nil {
		return ctx, nil
	}
	txn := DefaultClient.beginTransaction(name, transactionType, tp)
	return ContextWithTransaction(ctx, txn), txn
}

// EndTransaction ends the transaction carried by ctx, if any, setting its
// final name (when not already set) and result. Ending an already-ended
// or missing transaction is a no-op.
func EndTransaction(ctx context.Context, name, result string) {
	txn := TransactionFromContext(ctx)
	if txn == nil {
		return
	}
	txn.End(name, result)
}

// spanHandle pairs a transaction with a frame-skip count for an open span.
// It is not used by StartSpan or StartLeafSpan, which return a plain end
// function instead.
type spanHandle struct {
	txn  *Transaction
	skip int
}

// StartSpan begins a span nested under ctx's current transaction and
// returns a function that finalizes it; callers MUST call it exactly once,
// typically via defer. If ctx carries no transaction, or the transaction is
// unsampled, the returned function is a no-op:
// the public API stays the same regardless of whether span capture is
// actually happening.
func StartSpan(ctx context.Context, name, spanType string, spanContext map[string]interface{}, fingerprintVector []string) func() {
	txn := TransactionFromContext(ctx)
	if txn == nil || !txn.Sampled {
		return func() {}
	}
	txn.BeginSpan(name, spanType, spanContext, fingerprintVector, false)
	return func() { txn.EndSpan(1) }
}

// StartLeafSpan is StartSpan for a span known to have no instrumented
// children; nested BeginSpan calls are suppressed until this span ends.
func StartLeafSpan(ctx context.Context, name, spanType string, spanContext map[string]interface{}) func() {
	_, end := StartLeafSpanWithHandle(ctx, name, spanType, spanContext)
	return end
}

// StartLeafSpanWithHandle is StartLeafSpan but also returns the underlying
// Span (nil if no span was actually started), for callers that need its
// identity — e.g. to inject a traceparent header for an outbound call.
func StartLeafSpanWithHandle(ctx context.Context, name, spanType string, spanContext map[string]interface{}) (*Span, func()) {
	txn := TransactionFromContext(ctx)
	if txn == nil || !txn.Sampled {
		return nil, func() {}
	}
	span := txn.BeginSpan(name, spanType, spanContext, nil, true)
	return span, func() { txn.EndSpan(1) }
}

// CaptureError captures err against the transaction in ctx (if any) on the
// default client.
func CaptureError(ctx context.Context, err error, opts ...CaptureErrorOption) {
	if DefaultClient == nil || err == nil {
		return
	}
	e := &ErrorEvent{Message: err.Error()}
	e.ExceptionModule, e.ExceptionType = deconstructFunctionName(fmt.Sprintf("%T", err))
	e.Frames = extractStacktrace(err, DefaultClient.classifier)
	for _, opt := range opts {
		opt(e)
	}
	DefaultClient.captureError(e, TransactionFromContext(ctx), 1)
}

// CaptureMessage captures a free-form log message against the transaction
// in ctx (if any) on the default client.
func CaptureMessage(ctx context.Context, message string, opts ...CaptureErrorOption) {
	if DefaultClient == nil {
		return
	}
	e := &ErrorEvent{Message: message}
	for _, opt := range opts {
		opt(e)
	}
	DefaultClient.captureError(e, TransactionFromContext(ctx), 1)
}

// SetTag attaches a string tag to the transaction in ctx. A missing
// transaction or a key that is empty or fails tagNamePattern is a silent
// no-op (UserAPIMisuse, logged at warning).
func SetTag(ctx context.Context, key, value string) {
	txn := TransactionFromContext(ctx)
	if txn == nil {
		Logger.Printf("SetTag called with no current transaction")
		return
	}
	if key == "" {
		Logger.Printf("SetTag called with empty key")
		return
	}
	if !tagNamePattern.MatchString(key) {
		Logger.Printf("SetTag called with invalid key %q, must match %s", key, tagNamePattern)
		return
	}
	txn.mu.Lock()
	defer txn.mu.Unlock()
	if txn.Tags == nil {
		txn.Tags = make(map[string]string)
	}
	txn.Tags[key] = value
}

// SetTransactionName overrides the in-progress transaction's name.
func SetTransactionName(ctx context.Context, name string) {
	txn := TransactionFromContext(ctx)
	if txn == nil {
		return
	}
	txn.mu.Lock()
	defer txn.mu.Unlock()
	txn.Name = name
}

// SetTransactionResult overrides the in-progress transaction's result.
func SetTransactionResult(ctx context.Context, result string) {
	txn := TransactionFromContext(ctx)
	if txn == nil {
		return
	}
	txn.mu.Lock()
	defer txn.mu.Unlock()
	txn.Result = result
}

// SetCustomContext sets the transaction's free-form "custom" context
// bucket, replacing any value set earlier.
func SetCustomContext(ctx context.Context, custom map[string]interface{}) {
	setContextBucket(ctx, "custom", custom)
}

// SetUserContext sets the transaction's "user" context bucket to the given
// identity fields, replacing any value set earlier.
func SetUserContext(ctx context.Context, user map[string]interface{}) {
	setContextBucket(ctx, "user", user)
}

// SetRequestContext attaches inbound request metadata to the transaction.
func SetRequestContext(ctx context.Context, request map[string]interface{}) {
	setContextBucket(ctx, "request", request)
}

// SetResponseContext attaches outbound response metadata to the
// transaction.
func SetResponseContext(ctx context.Context, response map[string]interface{}) {
	setContextBucket(ctx, "response", response)
}

func setContextBucket(ctx context.Context, bucket string, value map[string]interface{}) {
	txn := TransactionFromContext(ctx)
	if txn == nil {
		Logger.Printf("%s context set with no current transaction", bucket)
		return
	}
	txn.mu.Lock()
	defer txn.mu.Unlock()
	if txn.ended {
		Logger.Printf("%s context set after transaction ended", bucket)
		return
	}
	if txn.Context == nil {
		txn.Context = make(map[string]interface{})
	}
	txn.Context[bucket] = value
}

// Flush flushes the default client's queue. See Client.Flush.
func Flush(timeout time.Duration) bool {
	if DefaultClient == nil {
		return true
	}
	return DefaultClient.Flush(timeout)
}

// Close flushes and terminates the default client's worker. See
// Client.Close.
func Close(timeout time.Duration) bool {
	if DefaultClient == nil {
		return true
	}
	return DefaultClient.Close(timeout)
}
