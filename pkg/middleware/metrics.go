package middleware

import (
	"net/http"
	"strconv"
	"time"

	"linkshrink/pkg/metrics"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Metrics records request counts and latency per route pattern. The chi
// route pattern is used instead of the raw path so every short key does not
// become its own label value.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}
		metrics.RecordHTTPRequest(r.Method, path, strconv.Itoa(ww.Status()), time.Since(start))
	})
}
