package tracing

import (
	"context"
	"net/http"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name        string
		traceparent string
		wantTraceID string
	}{
		{"valid", testTraceParent, testTraceID},
		{"missing", "", ""},
		{"malformed", "00-xyz-00f067aa0ba902b7-01", ""},
		{"zero trace id", "00-00000000000000000000000000000000-00f067aa0ba902b7-01", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.traceparent != "" {
				h.Set("traceparent", tt.traceparent)
			}
			ctx := Extract(context.Background(), h)
			if got := TraceID(ctx); got != tt.wantTraceID {
				t.Errorf("TraceID() = %q, want %q", got, tt.wantTraceID)
			}
		})
	}
}

func TestInjectRoundTrip(t *testing.T) {
	h := http.Header{}
	h.Set("traceparent", testTraceParent)
	ctx := Extract(context.Background(), h)

	out := http.Header{}
	Inject(ctx, out)
	if got := out.Get("traceparent"); got != testTraceParent {
		t.Errorf("injected traceparent = %q, want %q", got, testTraceParent)
	}

	carrier := map[string]string{}
	InjectToMap(ctx, carrier)
	back := ExtractFromMap(context.Background(), carrier)
	if got := TraceID(back); got != testTraceID {
		t.Errorf("map round trip TraceID() = %q", got)
	}
}

func TestInject_NoSpan(t *testing.T) {
	out := http.Header{}
	Inject(context.Background(), out)
	if v := out.Get("traceparent"); v != "" {
		t.Errorf("traceparent = %q, want none without a span", v)
	}
}
