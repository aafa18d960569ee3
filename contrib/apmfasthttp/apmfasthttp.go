// Package apmfasthttp instruments valyala/fasthttp handlers. fasthttp's
// RequestCtx predates context.Context support, so the transaction-bearing
// context.Context is stashed as a user value instead of being threaded
// through RequestCtx itself.
package apmfasthttp

import (
	"context"
	"strconv"

	"github.com/valyala/fasthttp"

	"github.com/apmhq/agent-go"
)

const contextUserValueKey = "apmagent.context"

// Middleware wraps a fasthttp.RequestHandler, beginning a transaction per
// request and ending it with the response status code.
func Middleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(rc *fasthttp.RequestCtx) {
		var tp *apmagent.TraceParent
		if h := string(rc.Request.Header.Peek("traceparent")); h != "" {
			if parsed, ok := apmagent.ParseTraceParent(h); ok {
				tp = &parsed
			}
		}

		method := string(rc.Method())
		path := string(rc.Path())
		ctx, txn := apmagent.BeginTransaction(context.Background(), method+" "+path, "request", tp)
		if txn == nil {
			next(rc)
			return
		}
		rc.SetUserValue(contextUserValueKey, ctx)

		next(rc)

		status := rc.Response.StatusCode()
		apmagent.SetResponseContext(ctx, map[string]interface{}{"status_code": status})
		apmagent.EndTransaction(ctx, "", "HTTP "+strconv.Itoa(status/100)+"xx")
	}
}

// TransactionContext recovers the context.Context a Middleware-wrapped
// handler stashed on rc, for instrumentation deeper in the call chain that
// needs to start child spans.
func TransactionContext(rc *fasthttp.RequestCtx) context.Context {
	if v, ok := rc.UserValue(contextUserValueKey).(context.Context); ok {
		return v
	}
	return context.Background()
}
