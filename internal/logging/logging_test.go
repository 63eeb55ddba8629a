package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestNew_Levels(t *testing.T) {
	logger := New("debug", "text")
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug enabled at debug level")
	}

	logger = New("error", "json")
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected info disabled at error level")
	}

	// Unknown level falls back to info.
	logger = New("", "text")
	if !logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected info enabled by default")
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug disabled by default")
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	if id := RequestID(ctx); id != "" {
		t.Errorf("expected empty request ID, got %q", id)
	}

	ctx = WithRequestID(ctx, "req-123")
	if id := RequestID(ctx); id != "req-123" {
		t.Errorf("expected req-123, got %q", id)
	}

	ctx = WithRequestID(ctx, "req-456")
	if id := RequestID(ctx); id != "req-456" {
		t.Errorf("expected latest request ID to win, got %q", id)
	}
}

func TestFromContext(t *testing.T) {
	ctx := context.Background()
	if FromContext(ctx) == nil {
		t.Fatal("expected default logger when none set")
	}

	custom := New("debug", "json")
	ctx = WithLogger(ctx, custom)
	if FromContext(ctx) != custom {
		t.Error("expected custom logger from context")
	}
}

func TestL(t *testing.T) {
	ctx := WithLogger(context.Background(), New("info", "text"))
	if L(ctx) == nil {
		t.Fatal("expected logger without request ID")
	}
	if L(WithRequestID(ctx, "req-789")) == nil {
		t.Fatal("expected logger with request ID")
	}
}
