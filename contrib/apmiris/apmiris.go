// Package apmiris instruments kataras/iris handlers.
package apmiris

import (
	"strconv"

	"github.com/kataras/iris"

	"github.com/apmhq/agent-go"
)

// Middleware is an iris.Handler that begins a transaction per request and
// ends it once the handler chain completes, recording the final status
// code as the result.
func Middleware(ctx iris.Context) {
	var tp *apmagent.TraceParent
	if h := ctx.GetHeader("traceparent"); h != "" {
		if parsed, ok := apmagent.ParseTraceParent(h); ok {
			tp = &parsed
		}
	}

	route := ctx.GetCurrentRoute().Path()
	goCtx, txn := apmagent.BeginTransaction(ctx.Request().Context(), ctx.Method()+" "+route, "request", tp)
	if txn == nil {
		ctx.Next()
		return
	}
	ctx.ResetRequest(ctx.Request().WithContext(goCtx))

	ctx.Next()

	status := ctx.GetStatusCode()
	apmagent.SetResponseContext(goCtx, map[string]interface{}{"status_code": status})
	apmagent.EndTransaction(goCtx, "", "HTTP "+strconv.Itoa(status/100)+"xx")
}
