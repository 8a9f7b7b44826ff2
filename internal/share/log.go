package share

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/pixshare/pixshare/internal/middleware"
)

// logWith returns a logger carrying the request trace id when the context has
// one, so lifecycle and resolve log lines correlate with the HTTP access log.
func logWith(ctx context.Context) *logrus.Entry {
	entry := logrus.NewEntry(logrus.StandardLogger())
	if traceID := middleware.TraceIDFromContext(ctx); traceID != "" {
		entry = entry.WithField("trace_id", traceID)
	}
	return entry
}
