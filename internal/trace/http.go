package trace

import (
	"encoding/json"
	"net/http"
)

// Middleware starts a span for each request, continuing the caller's trace
// when the request carries trace headers, and echoes the trace id back.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := NewChild(Context{
			TraceID: r.Header.Get(TraceIDKey),
			SpanID:  r.Header.Get(SpanIDKey),
		})
		w.Header().Set(TraceIDKey, tc.TraceID)
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), tc)))
	})
}

// ExtractFromJSON reads the trace_id of a WebSocket message, reporting
// whether one was present. Without one a fresh trace is returned.
func ExtractFromJSON(data []byte) (Context, bool) {
	var msg struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(data, &msg); err != nil || msg.TraceID == "" {
		return New(), false
	}
	return NewChild(Context{TraceID: msg.TraceID}), true
}
