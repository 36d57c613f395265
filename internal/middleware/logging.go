package middleware

import (
	"net/http"
	"time"

	"github.com/ruleforge/engine/internal/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// responseWriter wraps http.ResponseWriter to capture the status code for
// logging and tracing after the handler has run.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Logging wraps next with request/response logging and, if tracer is
// non-nil, a span covering the whole request.
func Logging(tracer trace.Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()

			if tracer != nil {
				var span trace.Span
				ctx, span = tracer.Start(ctx, r.Method+" "+r.URL.Path,
					trace.WithAttributes(
						attribute.String("http.method", r.Method),
						attribute.String("http.url", r.URL.Path),
						attribute.String("http.user_agent", r.UserAgent()),
					),
				)
				defer span.End()
				r = r.WithContext(ctx)
			}

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			observability.LogRequest(ctx, r.Method, r.URL.Path, nil)

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			if tracer != nil {
				span := trace.SpanFromContext(ctx)
				span.SetAttributes(
					attribute.Int("http.status_code", wrapped.statusCode),
					attribute.Int64("http.response_time_ms", duration.Milliseconds()),
				)
			}
			observability.LogResponse(ctx, r.Method, r.URL.Path, wrapped.statusCode, duration)
		})
	}
}
