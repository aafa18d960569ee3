// Package apmecho instruments labstack/echo handlers.
package apmecho

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/apmhq/agent-go"
)

// Middleware returns an echo.MiddlewareFunc that begins a transaction per
// request and ends it with the response's status code once the handler
// chain returns.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			var tp *apmagent.TraceParent
			if h := req.Header.Get("traceparent"); h != "" {
				if parsed, ok := apmagent.ParseTraceParent(h); ok {
					tp = &parsed
				}
			}

			route := c.Path()
			if route == "" {
				route = req.URL.Path
			}
			ctx, txn := apmagent.BeginTransaction(req.Context(), req.Method+" "+route, "request", tp)
			if txn == nil {
				return next(c)
			}
			c.SetRequest(req.WithContext(ctx))

			err := next(c)

			status := c.Response().Status
			apmagent.SetResponseContext(ctx, map[string]interface{}{"status_code": status})
			if err != nil {
				apmagent.CaptureError(ctx, err)
			}
			apmagent.EndTransaction(ctx, "", "HTTP "+strconv.Itoa(status/100)+"xx")
			return err
		}
	}
}
