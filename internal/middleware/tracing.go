package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey string

// TraceIDKey is the context key for the per-request trace id
const TraceIDKey contextKey = "trace_id"

// Tracing attaches a unique trace id to every request so log lines from one
// resolution or lifecycle call can be correlated.
func Tracing() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := uuid.New().String()

			ctx := context.WithValue(r.Context(), TraceIDKey, traceID)
			w.Header().Set("X-Trace-Id", traceID)

			logrus.WithFields(logrus.Fields{
				"trace_id": traceID,
				"method":   r.Method,
				"path":     r.URL.Path,
			}).Debug("Request started")

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TraceIDFromContext returns the trace id placed by Tracing, or ""
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(TraceIDKey).(string)
	return id
}
