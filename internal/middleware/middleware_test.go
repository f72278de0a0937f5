package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLogging(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/chat/sessions", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "/v1/chat/sessions", line["path"])
	assert.InDelta(t, 418, line["status"], 0)
	assert.InDelta(t, 15, line["bytes"], 0)
}

func TestLogging_Flush(t *testing.T) {
	t.Parallel()
	h := Logging(slog.New(slog.DiscardHandler))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("data: {}\n\n"))
		require.NoError(t, http.NewResponseController(w).Flush())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.True(t, rec.Flushed)
}

func TestHealthHandler(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		checkers map[string]HealthChecker
		want     int
		status   string
	}{
		{name: "no checks", want: http.StatusOK, status: "healthy"},
		{
			name:     "healthy",
			checkers: map[string]HealthChecker{"prompts": CheckFunc(func(context.Context) error { return nil })},
			want:     http.StatusOK,
			status:   "healthy",
		},
		{
			name: "unhealthy",
			checkers: map[string]HealthChecker{
				"prompts":  CheckFunc(func(context.Context) error { return nil }),
				"provider": CheckFunc(func(context.Context) error { return errors.New("no key") }),
			},
			want:   http.StatusServiceUnavailable,
			status: "unhealthy",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			HealthHandler(tt.checkers)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			require.Equal(t, tt.want, rec.Code)
			var got HealthStatus
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, tt.status, got.Status)
			assert.Len(t, got.Checks, len(tt.checkers))
		})
	}
}

func TestProbes(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ready"`)
}
