package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/and161185/expense-keeper/internal/errs"
)

func Test_bearerTokenFromMD_OkAndErrors(t *testing.T) {
	t.Parallel()

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer abc.def.ghi"))
	got, err := bearerTokenFromMD(ctx)
	if err != nil || got != "abc.def.ghi" {
		t.Fatalf("ok: got=%q err=%v", got, err)
	}

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "bearer lower"))
	if got, err := bearerTokenFromMD(ctx); err != nil || got != "lower" {
		t.Fatalf("scheme is case-insensitive: got=%q err=%v", got, err)
	}

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Basic foo"))
	if _, err := bearerTokenFromMD(ctx); err == nil {
		t.Fatalf("want error on non-bearer")
	}

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer   "))
	if _, err := bearerTokenFromMD(ctx); err == nil {
		t.Fatalf("want error on empty token")
	}

	if _, err := bearerTokenFromMD(context.Background()); err == nil {
		t.Fatalf("want error on no metadata")
	}
}

func Test_toStatus(t *testing.T) {
	t.Parallel()

	s := New(nil, nil, zaptest.NewLogger(t))
	cases := []struct {
		err  error
		want codes.Code
	}{
		{errs.ErrPermissionDenied, codes.PermissionDenied},
		{fmt.Errorf("title: %w", errs.ErrInvalidArgument), codes.InvalidArgument},
		{errs.ErrAlreadyExists, codes.AlreadyExists},
		{errs.ErrNotFound, codes.NotFound},
		{errs.ErrUnauthorized, codes.Unauthenticated},
		{errs.ErrUnauthenticated, codes.Unauthenticated},
		{errs.ErrRateLimited, codes.ResourceExhausted},
		{context.Canceled, codes.Canceled},
		{errors.New("db down"), codes.Internal},
	}
	for _, c := range cases {
		if got := status.Code(s.toStatus("op", c.err)); got != c.want {
			t.Fatalf("%v: want %v, got %v", c.err, c.want, got)
		}
	}

	st, _ := status.FromError(s.toStatus("get", errors.New("password=hunter2")))
	if st.Message() != "get failed" {
		t.Fatalf("internal errors must not leak detail: %q", st.Message())
	}
}
