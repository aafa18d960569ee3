// Package apmhttp wires the core transaction/span model into net/http
// servers and clients. It begins a transaction per inbound request,
// injects a traceparent header on outbound requests, and creates spans
// around the round trip of each.
package apmhttp

import (
	"context"
	"net/http"
	"strconv"

	"github.com/apmhq/agent-go"
)

// Middleware wraps next, starting a transaction named "<method> <path>"
// around every request, continuing any incoming traceparent header, and
// attaching request/response context before the transaction ends.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var tp *apmagent.TraceParent
		if h := r.Header.Get("traceparent"); h != "" {
			if parsed, ok := apmagent.ParseTraceParent(h); ok {
				tp = &parsed
			}
		}

		ctx, txn := apmagent.BeginTransaction(r.Context(), r.Method+" "+r.URL.Path, "request", tp)
		if txn == nil {
			next.ServeHTTP(w, r)
			return
		}

		apmagent.SetRequestContext(ctx, map[string]interface{}{
			"method": r.Method,
			"url":    r.URL.String(),
		})

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r.WithContext(ctx))

		apmagent.SetResponseContext(ctx, map[string]interface{}{
			"status_code": rw.status,
		})
		apmagent.EndTransaction(ctx, "", resultFor(rw.status))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func resultFor(status int) string {
	return "HTTP " + strconv.Itoa(status/100) + "xx"
}

// instrumentedRoundTripper wraps an http.RoundTripper, starting a span
// around every outbound request and injecting the current transaction's
// trace context as a traceparent header.
type instrumentedRoundTripper struct {
	next http.RoundTripper
}

// NewTransport wraps rt (or http.DefaultTransport if nil) so that outbound
// requests made through a context carrying a transaction are traced.
func NewTransport(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	return &instrumentedRoundTripper{next: rt}
}

func (t *instrumentedRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	txn := apmagent.TransactionFromContext(ctx)
	if txn == nil {
		return t.next.RoundTrip(req)
	}

	span, end := apmagent.StartLeafSpanWithHandle(ctx, req.Method+" "+req.URL.Host, "external.http", map[string]interface{}{
		"http": map[string]interface{}{"url": req.URL.String()},
	})
	defer end()

	req = req.Clone(ctx)
	req.Header.Set("traceparent", outboundTraceParent(txn, span).String())

	return t.next.RoundTrip(req)
}

func outboundTraceParent(txn *apmagent.Transaction, span *apmagent.Span) apmagent.TraceParent {
	tp := apmagent.TraceParent{Version: 0, Trace: txn.TraceID, Flags: 0}
	if txn.Sampled {
		tp.Flags = 1
	}
	spanID := txn.ID
	if span != nil {
		spanID = span.SpanIDForPropagation()
	}
	return tp.WithSpan(spanID)
}

// defaultClient is the http.Client used by Get.
var defaultClient = &http.Client{Transport: NewTransport(http.DefaultTransport)}

// Get issues a traced GET request, propagating ctx's current transaction.
func Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return defaultClient.Do(req)
}
