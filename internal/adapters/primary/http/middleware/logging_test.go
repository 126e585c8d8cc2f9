package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("honors a well-formed inbound id", func(t *testing.T) {
		inbound := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/tickets", nil)
		req.Header.Set(RequestIDHeader, inbound)
		recorder := httptest.NewRecorder()

		handler.ServeHTTP(recorder, req)

		assert.Equal(t, inbound, seen)
		assert.Equal(t, inbound, recorder.Header().Get(RequestIDHeader))
	})

	t.Run("replaces a malformed inbound id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/tickets", nil)
		req.Header.Set(RequestIDHeader, "not-a-uuid\ninjected=true")
		recorder := httptest.NewRecorder()

		handler.ServeHTTP(recorder, req)

		_, err := uuid.Parse(seen)
		require.NoError(t, err)
		assert.Equal(t, seen, recorder.Header().Get(RequestIDHeader))
	})
}

func TestRequestLogger_SkipsHealthyProbes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health/broken" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Empty(t, buf.String())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/broken", nil))
	assert.Contains(t, buf.String(), "/health/broken")

	buf.Reset()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tickets", nil))
	assert.Contains(t, buf.String(), "/tickets")
}
