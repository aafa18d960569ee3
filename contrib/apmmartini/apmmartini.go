// Package apmmartini instruments go-martini/martini handlers.
package apmmartini

import (
	"net/http"
	"strconv"

	"github.com/go-martini/martini"

	"github.com/apmhq/agent-go"
)

// Middleware returns a martini handler that begins a transaction per
// request and ends it once the downstream chain has run. martini has no
// built-in response-status capture, so a ResponseWriter wrapper records it.
func Middleware() martini.Handler {
	return func(w http.ResponseWriter, r *http.Request, c martini.Context) {
		var tp *apmagent.TraceParent
		if h := r.Header.Get("traceparent"); h != "" {
			if parsed, ok := apmagent.ParseTraceParent(h); ok {
				tp = &parsed
			}
		}

		ctx, txn := apmagent.BeginTransaction(r.Context(), r.Method+" "+r.URL.Path, "request", tp)
		if txn == nil {
			c.Next()
			return
		}

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		c.MapTo(rw, (*http.ResponseWriter)(nil))
		*r = *r.WithContext(ctx)

		c.Next()

		apmagent.SetResponseContext(ctx, map[string]interface{}{"status_code": rw.status})
		apmagent.EndTransaction(ctx, "", "HTTP "+strconv.Itoa(rw.status/100)+"xx")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
