package trace

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/grpc/metadata"
)

func TestNewContext(t *testing.T) {
	tc := New()
	if len(tc.TraceID) != 32 {
		t.Errorf("trace ID should be 32 chars, got %d", len(tc.TraceID))
	}
	if len(tc.SpanID) != 16 {
		t.Errorf("span ID should be 16 chars, got %d", len(tc.SpanID))
	}
	if tc.ParentSpanID != "" || tc.StreamID != "" {
		t.Errorf("new context = %+v, want only IDs", tc)
	}
	if New().TraceID == tc.TraceID {
		t.Error("trace IDs should be unique")
	}
}

func TestNewChild(t *testing.T) {
	parent := New()
	parent.StreamID = "alpha"
	child := NewChild(parent)

	if child.TraceID != parent.TraceID {
		t.Error("child should inherit trace ID")
	}
	if child.SpanID == parent.SpanID || child.ParentSpanID != parent.SpanID {
		t.Errorf("child = %+v, parent = %+v", child, parent)
	}
	if child.StreamID != "alpha" {
		t.Errorf("child StreamID = %q, want inherited", child.StreamID)
	}

	orphan := NewChild(Context{StreamID: "beta"})
	if len(orphan.TraceID) != 32 || orphan.ParentSpanID != "" || orphan.StreamID != "beta" {
		t.Errorf("orphan = %+v, want new root keeping the stream", orphan)
	}
}

func TestEnsureContext(t *testing.T) {
	ctx, tc := EnsureContext(context.Background())
	if len(tc.TraceID) != 32 {
		t.Error("should create trace ID")
	}
	if _, tc2 := EnsureContext(ctx); tc2.TraceID != tc.TraceID {
		t.Error("should return existing trace")
	}
	if _, ok := FromContext(context.Background()); ok {
		t.Error("should not find trace context in empty context")
	}
}

func TestWithStream(t *testing.T) {
	ctx := WithStream(context.Background(), "alpha")
	if StreamID(ctx) != "alpha" {
		t.Fatalf("StreamID = %q", StreamID(ctx))
	}

	ctx, span := StartSpan(ctx, "process_frame")
	if span.Ctx.StreamID != "alpha" || StreamID(ctx) != "alpha" {
		t.Errorf("span stream = %q, want alpha", span.Ctx.StreamID)
	}
	if StreamID(context.Background()) != "" {
		t.Error("untagged context should have no stream")
	}
}

func TestStartSpan(t *testing.T) {
	ctx, parent := StartSpan(context.Background(), "stream_tick")
	_, child := StartSpan(ctx, "recognize")

	if child.Ctx.TraceID != parent.Ctx.TraceID || child.Ctx.ParentSpanID != parent.Ctx.SpanID {
		t.Errorf("child = %+v, parent = %+v", child.Ctx, parent.Ctx)
	}

	child.SetAttr("fragments", 3)
	if child.Duration() != 0 {
		t.Error("open span should have zero duration")
	}
	child.End()
	if child.EndTime.IsZero() || child.Duration() < 0 {
		t.Error("span should be closed")
	}
	if child.Attrs["fragments"] != 3 {
		t.Error("span attribute mismatch")
	}
}

func TestLoggerCarriesStream(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	ctx := WithStream(context.Background(), "alpha")
	Logger(ctx).Info("frame processed")

	out := buf.String()
	if !strings.Contains(out, "stream_id=alpha") || !strings.Contains(out, "trace_id=") {
		t.Errorf("log line = %q", out)
	}
}

func TestOutgoingMetadata(t *testing.T) {
	ctx := WithStream(context.Background(), "alpha")
	ctx, span := StartSpan(ctx, "recognize")

	md, ok := metadata.FromOutgoingContext(outgoing(ctx))
	if !ok {
		t.Fatal("no outgoing metadata")
	}
	if got := md.Get(TraceIDKey); len(got) != 1 || got[0] != span.Ctx.TraceID {
		t.Errorf("trace id = %v", got)
	}
	if got := md.Get(StreamIDKey); len(got) != 1 || got[0] != "alpha" {
		t.Errorf("stream id = %v", got)
	}
	if got := md.Get(ParentSpanIDKey); len(got) != 1 {
		t.Errorf("parent span = %v", got)
	}
}

func TestMiddleware(t *testing.T) {
	var seen Context
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/api/streams", nil)
	req.Header.Set(TraceIDKey, "0123456789abcdef0123456789abcdef")
	req.Header.Set(SpanIDKey, "caller")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen.TraceID != "0123456789abcdef0123456789abcdef" || seen.ParentSpanID != "caller" {
		t.Errorf("context = %+v, want caller's trace", seen)
	}
	if rec.Header().Get(TraceIDKey) != seen.TraceID {
		t.Errorf("response trace header = %q", rec.Header().Get(TraceIDKey))
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if len(seen.TraceID) != 32 {
		t.Error("request without headers should start a trace")
	}
}

func TestExtractFromJSON(t *testing.T) {
	tc, ok := ExtractFromJSON([]byte(`{"type":"subscribe","trace_id":"abc"}`))
	if !ok || tc.TraceID != "abc" || len(tc.SpanID) != 16 {
		t.Errorf("ExtractFromJSON = %+v, %v", tc, ok)
	}
	if _, ok := ExtractFromJSON([]byte(`{"type":"ping"}`)); ok {
		t.Error("message without trace_id should report false")
	}
	if _, ok := ExtractFromJSON([]byte(`not json`)); ok {
		t.Error("invalid JSON should report false")
	}
}
