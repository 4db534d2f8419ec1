package trace

import (
	"encoding/json"
	"net/http"
)

// Middleware continues the caller's trace (or starts one) for each request and
// echoes the trace ID in the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := NewChild(Context{
			TraceID:  r.Header.Get(TraceIDKey),
			SpanID:   r.Header.Get(SpanIDKey),
			StreamID: r.Header.Get(StreamIDKey),
		})
		w.Header().Set(TraceIDKey, tc.TraceID)
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), tc)))
	})
}

// ExtractFromJSON reads an optional trace_id from a websocket message.
func ExtractFromJSON(data []byte) (Context, bool) {
	var msg struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(data, &msg); err != nil || msg.TraceID == "" {
		return New(), false
	}
	return NewChild(Context{TraceID: msg.TraceID}), true
}
