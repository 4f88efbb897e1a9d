package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithOutput(&buf), WithJSON(), WithLevel(slog.LevelDebug))

	logger.With(Component("content-wizard")).Debug("step advanced", Step("ContentDetails"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "step advanced", entry["msg"])
	assert.Equal(t, "content-wizard", entry["component"])
	assert.Equal(t, "ContentDetails", entry["step"])
}

func TestSlogLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithOutput(&buf), WithLevel(slog.LevelWarn))

	logger.Info("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestL_FallsBackToDefault(t *testing.T) {
	assert.Equal(t, Default, L(context.Background()))

	ctx := ContextWithLogger(context.Background(), Nop{})
	assert.Equal(t, Nop{}, L(ctx))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithOutput(&buf), WithJSON())

	var sawLogger bool
	h := middleware.RequestID(RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawLogger = L(r.Context()).(*SlogLogger)
		w.WriteHeader(http.StatusTeapot)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.True(t, sawLogger)
	assert.Equal(t, http.StatusTeapot, rec.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "/healthz", entry["path"])
	assert.EqualValues(t, http.StatusTeapot, entry["status"])
	assert.NotEmpty(t, entry["request_id"])
}
