package client

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/expense-keeper/internal/errs"
)

// FromStatus maps a gRPC error back to the domain sentinel it was made from.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	var sentinel error
	switch st.Code() {
	case codes.PermissionDenied:
		sentinel = errs.ErrPermissionDenied
	case codes.Unauthenticated:
		sentinel = errs.ErrUnauthenticated
	case codes.InvalidArgument:
		sentinel = errs.ErrInvalidArgument
	case codes.AlreadyExists:
		sentinel = errs.ErrAlreadyExists
	case codes.ResourceExhausted:
		sentinel = errs.ErrRateLimited
	case codes.NotFound:
		sentinel = errs.ErrNotFound
	default:
		return err
	}
	return fmt.Errorf("%s: %w", st.Message(), sentinel)
}
