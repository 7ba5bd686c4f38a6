package log

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
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNewJSONLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: slog.LevelDebug, Format: "json", Component: ComponentDataset, Output: &buf})
	require.NoError(t, err)

	l.Info("Dataset loaded", FieldRows, 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "Dataset loaded", rec["msg"])
	assert.Equal(t, ComponentDataset, rec[FieldComponent])
	assert.EqualValues(t, 3, rec[FieldRows])
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New(Config{Format: "xml"})
	assert.Error(t, err)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: slog.LevelWarn, Format: "text", Output: &buf})
	require.NoError(t, err)

	l.Info("hidden")
	l.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "component=app")
}

func TestFieldsToSliceIsSorted(t *testing.T) {
	got := NewFields().
		WithView("r=;c=;y=;d=0,0.8", 12).
		WithError(errors.New("boom")).
		WithError(nil).
		WithRequestID("").
		ToSlice()

	assert.Equal(t, []any{FieldError, "boom", FieldFilters, "r=;c=;y=;d=0,0.8", FieldMatchedRows, 12}, got)
}

func TestContextPropagation(t *testing.T) {
	var buf bytes.Buffer
	base, err := New(Config{Format: "json", Component: ComponentHTTP, Output: &buf})
	require.NoError(t, err)

	var seen *Logger
	h := Middleware(base)(RequestIDMiddleware(func(*http.Request) string { return "req_1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = FromContext(r.Context())
			seen.InfoContext(r.Context(), "inside")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, seen)
	assert.Equal(t, ComponentHTTP, seen.Component())
	assert.Contains(t, buf.String(), `"request_id":"req_1"`)

	assert.Equal(t, "unknown", FromContext(context.Background()).Component())
}

func TestStructuredLoggerHTTPEndLevels(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: slog.LevelDebug, Format: "json", Component: ComponentTrace, Output: &buf})
	require.NoError(t, err)
	sl := NewStructuredLogger(l)
	r := httptest.NewRequest(http.MethodGet, "/charts/bar.png?region=West", nil)

	for _, tc := range []struct {
		status int
		level  string
	}{{200, "INFO"}, {404, "WARN"}, {500, "ERROR"}} {
		buf.Reset()
		sl.LogHTTPEnd(context.Background(), r, "req_x", tc.status, 5, "10.0.0.1")
		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, tc.level, rec["level"])
		assert.EqualValues(t, tc.status, rec[FieldStatusCode])
		assert.Equal(t, "region=West", rec[FieldQuery])
	}
}
