package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORSWildcard(t *testing.T) {
	handler := CORS("")(okHandler())

	req := httptest.NewRequest("GET", "/photos/shared", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestCORSPinnedOrigin(t *testing.T) {
	handler := CORS("http://localhost:5173")(okHandler())

	req := httptest.NewRequest("GET", "/photos/shared", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	handler := CORS("*")(next)

	req := httptest.NewRequest(http.MethodOptions, "/photos/sharing", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, called, "preflight must not reach the handler")
}

func TestLoggingCarriesTraceID(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	handler := Tracing()(Logging()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/photos/shared", nil))

	var entry *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "HTTP request" {
			entry = e
		}
	}
	require.NotNil(t, entry)
	assert.Equal(t, rec.Header().Get("X-Trace-Id"), entry.Data["trace_id"])
	assert.Equal(t, 2, entry.Data["bytes"])
	assert.Equal(t, 200, entry.Data["status"])
}

func TestTracing(t *testing.T) {
	var gotTraceID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTraceID = TraceIDFromContext(r.Context())
	})
	handler := Tracing()(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	assert.NotEmpty(t, gotTraceID)
	assert.Equal(t, gotTraceID, rec.Header().Get("X-Trace-Id"))

	// Each request gets its own id
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, httptest.NewRequest("GET", "/health", nil))
	assert.NotEqual(t, rec.Header().Get("X-Trace-Id"), rec2.Header().Get("X-Trace-Id"))
}
