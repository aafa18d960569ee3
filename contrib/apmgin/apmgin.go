// Package apmgin instruments gin-gonic/gin handlers, starting a
// transaction per route and ending it once the handler chain completes.
package apmgin

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/apmhq/agent-go"
)

// Middleware returns a gin.HandlerFunc that begins a transaction named
// "<method> <route>" for every request, continues an incoming traceparent
// header if present, and ends the transaction with the final status code
// as its result.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var tp *apmagent.TraceParent
		if h := c.GetHeader("traceparent"); h != "" {
			if parsed, ok := apmagent.ParseTraceParent(h); ok {
				tp = &parsed
			}
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		ctx, txn := apmagent.BeginTransaction(c.Request.Context(), c.Request.Method+" "+route, "request", tp)
		if txn == nil {
			c.Next()
			return
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		apmagent.SetResponseContext(ctx, map[string]interface{}{"status_code": status})
		if len(c.Errors) > 0 {
			apmagent.CaptureError(ctx, c.Errors.Last().Err)
		}
		apmagent.EndTransaction(ctx, "", "HTTP "+strconv.Itoa(status/100)+"xx")
	}
}
