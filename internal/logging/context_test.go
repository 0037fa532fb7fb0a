package logging

import (
	"context"
	"testing"
)

func TestWithTraceContext(t *testing.T) {
	ctx, requestLogger := WithTraceContext(context.Background())

	id := TraceIDFromContext(ctx)
	if len(id) != 32 {
		t.Errorf("expected a 16-byte hex trace ID, got %q", id)
	}
	if FromContext(ctx) != requestLogger {
		t.Error("context should carry the trace logger")
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if FromContext(context.Background()) != Default() {
		t.Error("expected the default logger for a bare context")
	}
}

func TestTraceIDFromBareContext(t *testing.T) {
	if id := TraceIDFromContext(context.Background()); id != "" {
		t.Errorf("expected empty trace ID, got %q", id)
	}
}
