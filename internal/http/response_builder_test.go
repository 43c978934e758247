package http

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Test", "1").
		Body(map[string]string{"message": "ok"}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Header().Get("X-Test") != "1" {
		t.Error("custom header not set")
	}
	if got := w.Body.String(); got != "{\"message\":\"ok\"}\n" {
		t.Errorf("Body = %q", got)
	}
}

func TestJSONResponseBuilder_NoBody(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusNoContent).
		Cookie(&http.Cookie{Name: "c", Value: "v"}).
		Write(w)

	if w.Code != http.StatusNoContent {
		t.Errorf("Status code = %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", w.Body.String())
	}
	if w.Header().Get("Set-Cookie") != "c=v" {
		t.Errorf("Set-Cookie = %q", w.Header().Get("Set-Cookie"))
	}
}

func TestJSONResponseBuilder_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Body(math.Inf(1)).Write(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", w.Code)
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name     string
		builder  *JSONResponseBuilder
		wantCode int
		wantBody string
	}{
		{"bad request", BadRequestError("nope"), http.StatusBadRequest, "{\"error\":\"nope\"}\n"},
		{"unauthorized", UnauthorizedError("who"), http.StatusUnauthorized, "{\"error\":\"who\"}\n"},
		{"forbidden", ForbiddenError("forbidden"), http.StatusForbidden, "{\"error\":\"forbidden\"}\n"},
		{"not found", NotFoundError("not found"), http.StatusNotFound, "{\"error\":\"not found\"}\n"},
		{"internal", InternalServerError(), http.StatusInternalServerError, "{\"error\":\"internal server error\"}\n"},
		{
			"validation",
			ValidationErrorResponse("validation failed", map[string]string{"amount": "must be greater than zero"}),
			http.StatusBadRequest,
			"{\"error\":\"validation failed\",\"details\":{\"amount\":\"must be greater than zero\"}}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)
			if w.Code != tt.wantCode {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantCode)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("Body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}
