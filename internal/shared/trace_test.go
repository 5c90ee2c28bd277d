package shared

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestTraceID_RoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := TraceID(ctx); got != "-" {
		t.Fatalf("expected '-', got %q", got)
	}
	ctx = WithTraceID(ctx, "trace-1")
	if got := TraceID(ctx); got != "trace-1" {
		t.Fatalf("expected trace-1, got %q", got)
	}
	if got := TraceID(WithTraceID(ctx, "")); got != "-" {
		t.Fatalf("empty trace id should read as '-', got %q", got)
	}
}

func TestUserID_RoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := UserID(ctx); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	ctx = WithUserID(ctx, 12)
	if got := UserID(ctx); got != 12 {
		t.Fatalf("expected 12, got %d", got)
	}
}

func TestNewIDs_AreUUIDs(t *testing.T) {
	for _, id := range []string{NewTraceID(), NewIdempotencyKey()} {
		if _, err := uuid.Parse(id); err != nil {
			t.Fatalf("expected uuid, got %q: %v", id, err)
		}
	}
	if NewIdempotencyKey() == NewIdempotencyKey() {
		t.Fatalf("idempotency keys should not repeat")
	}
}
