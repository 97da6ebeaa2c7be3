package trace

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddlewarePropagatesHeaders(t *testing.T) {
	var got Context
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/api/scroll/status", http.NoBody)
	req.Header.Set(TraceIDKey, "trace123")
	req.Header.Set(SpanIDKey, "span456")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got.TraceID != "trace123" {
		t.Errorf("TraceID = %q, want trace123", got.TraceID)
	}
	if got.ParentSpanID != "span456" {
		t.Errorf("ParentSpanID = %q, want caller's span", got.ParentSpanID)
	}
	if len(got.SpanID) != 16 {
		t.Error("should generate new span ID")
	}
	if v := rec.Header().Get(TraceIDKey); v != "trace123" {
		t.Errorf("response %s = %q, want trace123", TraceIDKey, v)
	}
}

func TestMiddlewareGeneratesTrace(t *testing.T) {
	var got Context
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", http.NoBody))
	if len(got.TraceID) != 32 {
		t.Error("should generate trace ID if missing")
	}
}

func TestExtractFromJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		found bool
	}{
		{"with trace", `{"type":"stop","trace_id":"abc"}`, true},
		{"without trace", `{"type":"stop"}`, false},
		{"invalid json", `{`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, ok := ExtractFromJSON([]byte(tt.input))
			if ok != tt.found {
				t.Errorf("found = %v, want %v", ok, tt.found)
			}
			if tt.found && tc.TraceID != "abc" {
				t.Errorf("TraceID = %q, want abc", tc.TraceID)
			}
			if len(tc.SpanID) != 16 {
				t.Error("span ID always generated")
			}
		})
	}
}
