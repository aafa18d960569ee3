// Package apmnegroni instruments urfave/negroni chains.
package apmnegroni

import (
	"net/http"
	"strconv"

	"github.com/urfave/negroni"

	"github.com/apmhq/agent-go"
)

// Middleware returns a negroni.Handler that begins a transaction per
// request and ends it with the chain's final status code.
func Middleware() negroni.Handler {
	return negroni.HandlerFunc(func(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		var tp *apmagent.TraceParent
		if h := r.Header.Get("traceparent"); h != "" {
			if parsed, ok := apmagent.ParseTraceParent(h); ok {
				tp = &parsed
			}
		}

		ctx, txn := apmagent.BeginTransaction(r.Context(), r.Method+" "+r.URL.Path, "request", tp)
		if txn == nil {
			next(w, r)
			return
		}

		rw, ok := w.(negroni.ResponseWriter)
		if !ok {
			rw = negroni.NewResponseWriter(w)
		}

		next(rw, r.WithContext(ctx))

		apmagent.SetResponseContext(ctx, map[string]interface{}{"status_code": rw.Status()})
		apmagent.EndTransaction(ctx, "", "HTTP "+strconv.Itoa(rw.Status()/100)+"xx")
	})
}
