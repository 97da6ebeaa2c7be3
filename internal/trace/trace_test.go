package trace

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestIDs(t *testing.T) {
	tests := []struct {
		name string
		gen  func() string
		size int
	}{
		{"trace", generateTraceID, 32},
		{"span", generateSpanID, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen := make(map[string]bool)
			for i := 0; i < 100; i++ {
				id := tt.gen()
				if len(id) != tt.size {
					t.Fatalf("len(%q) = %d, want %d", id, len(id), tt.size)
				}
				if seen[id] {
					t.Fatal("generated duplicate ID")
				}
				seen[id] = true
			}
		})
	}
}

func TestNewIsRoot(t *testing.T) {
	if tc := New(); tc.ParentSpanID != "" {
		t.Error("new context should not have parent span ID")
	}
}

func TestNewChildLinksParent(t *testing.T) {
	root := New()
	got := NewChild(root)

	want := Context{TraceID: root.TraceID, SpanID: got.SpanID, ParentSpanID: root.SpanID}
	if got != want {
		t.Errorf("NewChild = %+v, want %+v", got, want)
	}
	if got.SpanID == root.SpanID {
		t.Error("NewChild reused the parent span id")
	}
}

func TestContextRoundTrip(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("FromContext found a trace in a bare context")
	}

	tc := New()
	if got, ok := FromContext(WithContext(context.Background(), tc)); !ok || got != tc {
		t.Errorf("FromContext = %+v, %v, want %+v, true", got, ok, tc)
	}
}

func TestEnsureContextKeepsExisting(t *testing.T) {
	ctx, first := EnsureContext(context.Background())
	if len(first.TraceID) != 32 {
		t.Fatalf("TraceID = %q, want 32 hex chars", first.TraceID)
	}
	if _, again := EnsureContext(ctx); again != first {
		t.Errorf("EnsureContext = %+v, want existing %+v", again, first)
	}
}

func TestSpanLifecycle(t *testing.T) {
	ctx, session := StartSpan(context.Background(), "scroll_session")
	_, stitching := StartSpan(ctx, "stitch")

	if stitching.Ctx.TraceID != session.Ctx.TraceID || stitching.Ctx.ParentSpanID != session.Ctx.SpanID {
		t.Errorf("stitch span %+v is not a child of %+v", stitching.Ctx, session.Ctx)
	}
	if session.StartTime.IsZero() || !session.EndTime.IsZero() {
		t.Fatalf("open span times = %v..%v", session.StartTime, session.EndTime)
	}

	stitching.SetAttr("frames", 4)
	stitching.End()
	session.End()

	if session.EndTime.Before(session.StartTime) || session.Duration() < 0 {
		t.Errorf("Duration() = %v, want >= 0", session.Duration())
	}
	if stitching.Attrs["frames"] != 4 {
		t.Errorf("Attrs[frames] = %v, want 4", stitching.Attrs["frames"])
	}
}

func TestNewChildOfEmptyStartsTrace(t *testing.T) {
	child := NewChild(Context{})
	if len(child.TraceID) != 32 || child.ParentSpanID != "" {
		t.Errorf("child of empty = %+v, want a fresh root", child)
	}
}

// captureDefault routes slog.Default into a buffer for the test.
func captureDefault(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestLogger(t *testing.T) {
	buf := captureDefault(t)
	tc := Context{TraceID: "trace123", SpanID: "span456", ParentSpanID: "parent789"}
	Logger(WithContext(context.Background(), tc)).Info("test message")

	out := buf.String()
	for _, want := range []string{"trace_id=trace123", "span_id=span456", "parent_span_id=parent789"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %q", out, want)
		}
	}
}

func TestSpanEndLogsFailure(t *testing.T) {
	buf := captureDefault(t)
	_, span := StartSpan(context.Background(), "scroll_session")
	span.SetAttr("frames", 3)
	span.Fail(errors.New("nothing captured"))
	span.End()

	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "span.error=\"nothing captured\"") {
		t.Errorf("failed span log = %q", out)
	}
	if !strings.Contains(out, "span.frames=3") {
		t.Errorf("span attrs missing from %q", out)
	}
}
