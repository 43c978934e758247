package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_JSONCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentApp, Output: &buf})

	logger.WithComponent(ComponentAuth).Info("hello", FieldUserID, "u1")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if line[FieldComponent] != ComponentAuth {
		t.Errorf("component = %v, want %v", line[FieldComponent], ComponentAuth)
	}
	if line[FieldUserID] != "u1" {
		t.Errorf("user_id = %v", line[FieldUserID])
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Output: &buf})

	logger.Info("dropped")
	logger.Warn("kept")

	if strings.Contains(buf.String(), "dropped") || !strings.Contains(buf.String(), "kept") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().
		WithRequestID("").
		WithUser("").
		WithError(nil).
		WithTransaction("t1", "expense", "Food", 1250).
		WithPeriod(2025, 3)

	for _, absent := range []string{FieldRequestID, FieldUserID, FieldError} {
		if _, ok := f[absent]; ok {
			t.Errorf("%s should be omitted when empty", absent)
		}
	}
	if f[FieldAmountCents] != int64(1250) || f[FieldMonth] != 3 {
		t.Errorf("unexpected fields %v", f)
	}
	if got := len(f.ToSlice()); got != 2*len(f) {
		t.Errorf("ToSlice length = %d, want %d", got, 2*len(f))
	}

	f.WithError(errors.New("boom"))
	if f[FieldError] != "boom" {
		t.Errorf("error field = %v", f[FieldError])
	}
}

func TestMiddlewareAndWithLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "json", Component: ComponentHTTP, Output: &buf})

	handler := Middleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithLogger(r.Context(), FromContext(r.Context()).With(FieldRequestID, "req_abc"))
		FromContext(ctx).Info("inside")
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(buf.String(), `"request_id":"req_abc"`) {
		t.Fatalf("request id not propagated: %q", buf.String())
	}
	if !strings.Contains(buf.String(), `"component":"http"`) {
		t.Fatalf("component lost: %q", buf.String())
	}
}

func TestFromContext_Default(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Fatalf("expected default logger, got %+v", l)
	}
}

func TestStructuredLogger_HTTPEndLevel(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf}))
	r := httptest.NewRequest(http.MethodGet, "/summary?year=2025", nil)

	sl.LogHTTPEnd(context.Background(), r, "req_1", http.StatusInternalServerError, 12, "10.0.0.1")

	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Fatalf("5xx must log at error level: %q", buf.String())
	}
}
