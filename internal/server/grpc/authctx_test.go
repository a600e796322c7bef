package grpcserver

import (
	"context"
	"testing"

	"github.com/and161185/expense-keeper/internal/model"
)

func TestWithCaller_And_CallerFromCtx(t *testing.T) {
	t.Parallel()

	if c, ok := CallerFromCtx(context.Background()); ok || c.Authenticated() {
		t.Fatalf("expected no caller in empty ctx")
	}

	want := model.Caller{UID: "u1", Email: "a@x.io"}
	ctx := WithCaller(context.Background(), want)

	got, ok := CallerFromCtx(ctx)
	if !ok {
		t.Fatalf("expected caller in ctx")
	}
	if got != want {
		t.Fatalf("mismatch: got %+v, want %+v", got, want)
	}

	bad := context.WithValue(context.Background(), callerKey, "not-a-caller")
	if c, ok := CallerFromCtx(bad); ok || c.Authenticated() {
		t.Fatalf("expected miss on wrong typed value")
	}
}
