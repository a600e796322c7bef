// Package grpcserver exposes the ExpenseKeeper gRPC API handlers.
package grpcserver

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	v1 "github.com/and161185/expense-keeper/internal/api/expensesv1"
	"github.com/and161185/expense-keeper/internal/auth"
	"github.com/and161185/expense-keeper/internal/convert"
	"github.com/and161185/expense-keeper/internal/errs"
	"github.com/and161185/expense-keeper/internal/service"
)

// Server wires services into gRPC handlers.
type Server struct {
	v1.UnimplementedExpenseKeeperServer
	auth     service.AuthService
	expenses service.ExpenseService
	log      *zap.Logger
}

// New constructs a gRPC server with injected services.
func New(authSvc service.AuthService, expenses service.ExpenseService, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{auth: authSvc, expenses: expenses, log: log}
}

// Register creates a new user account.
func (s *Server) Register(ctx context.Context, req *v1.RegisterRequest) (*v1.RegisterResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "empty email/password")
	}
	userID, err := s.auth.Register(ctx, req.Email, req.Password)
	if err != nil {
		return nil, s.toStatus("register", err)
	}
	return &v1.RegisterResponse{UserID: userID}, nil
}

func remoteIP(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}

// Login authenticates a user and returns an access token.
func (s *Server) Login(ctx context.Context, req *v1.LoginRequest) (*v1.LoginResponse, error) {
	tok, u, err := s.auth.LoginWithIP(ctx, req.Email, req.Password, remoteIP(ctx))
	if err != nil {
		if errors.Is(err, errs.ErrUnauthorized) {
			return nil, status.Error(codes.Unauthenticated, "bad credentials")
		}
		return nil, s.toStatus("login", err)
	}
	return &v1.LoginResponse{
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.ExpiresAt.UTC(),
		UserID:      u.ID.String(),
		Email:       u.Email,
	}, nil
}

// --- Expenses ---

// CreateExpense stores a new document built from the request writes.
func (s *Server) CreateExpense(ctx context.Context, req *v1.CreateExpenseRequest) (*v1.ExpenseResponse, error) {
	m, err := convert.FromWireWrites(req.Writes)
	if err != nil {
		return nil, s.toStatus("create", err)
	}
	caller, _ := CallerFromCtx(ctx)
	e, err := s.expenses.Create(ctx, caller, req.ID, m)
	if err != nil {
		return nil, s.toStatus("create", err)
	}
	return &v1.ExpenseResponse{Expense: convert.ToWireExpense(e)}, nil
}

// GetExpense returns one readable document.
func (s *Server) GetExpense(ctx context.Context, req *v1.GetExpenseRequest) (*v1.ExpenseResponse, error) {
	caller, _ := CallerFromCtx(ctx)
	e, err := s.expenses.Get(ctx, caller, req.ID)
	if err != nil {
		return nil, s.toStatus("get", err)
	}
	return &v1.ExpenseResponse{Expense: convert.ToWireExpense(e)}, nil
}

// UpdateExpense merges the request writes into a stored document.
func (s *Server) UpdateExpense(ctx context.Context, req *v1.UpdateExpenseRequest) (*v1.ExpenseResponse, error) {
	m, err := convert.FromWireWrites(req.Writes)
	if err != nil {
		return nil, s.toStatus("update", err)
	}
	caller, _ := CallerFromCtx(ctx)
	e, err := s.expenses.Update(ctx, caller, req.ID, m)
	if err != nil {
		return nil, s.toStatus("update", err)
	}
	return &v1.ExpenseResponse{Expense: convert.ToWireExpense(e)}, nil
}

// DeleteExpense removes a document.
func (s *Server) DeleteExpense(ctx context.Context, req *v1.DeleteExpenseRequest) (*v1.DeleteExpenseResponse, error) {
	caller, _ := CallerFromCtx(ctx)
	if err := s.expenses.Delete(ctx, caller, req.ID); err != nil {
		return nil, s.toStatus("delete", err)
	}
	return &v1.DeleteExpenseResponse{}, nil
}

// ListExpenses runs a membership query.
func (s *Server) ListExpenses(ctx context.Context, req *v1.ListExpensesRequest) (*v1.ListExpensesResponse, error) {
	caller, _ := CallerFromCtx(ctx)
	es, err := s.expenses.List(ctx, caller, convert.FromWireQuery(req))
	if err != nil {
		return nil, s.toStatus("list", err)
	}
	return &v1.ListExpensesResponse{Expenses: convert.ToWireExpenses(es)}, nil
}

// WatchExpense streams snapshots of one document. The stream ends cleanly
// after a deletion and with PermissionDenied once read access is lost.
func (s *Server) WatchExpense(req *v1.WatchExpenseRequest, stream grpc.ServerStreamingServer[v1.ExpenseSnapshot]) error {
	ctx := stream.Context()
	caller, _ := CallerFromCtx(ctx)
	w, err := s.expenses.Watch(ctx, caller, req.ID)
	if err != nil {
		return s.toStatus("watch", err)
	}
	defer w.Close()

	for snap := range w.C {
		if err := stream.Send(convert.ToWireSnapshot(snap.Expense, snap.Exists)); err != nil {
			return err
		}
	}
	if err := w.Err(); err != nil {
		return s.toStatus("watch", err)
	}
	return ctx.Err()
}

// toStatus maps domain errors to gRPC codes. Unknown errors are logged and
// reported as Internal without detail.
func (s *Server) toStatus(op string, err error) error {
	switch {
	case errors.Is(err, errs.ErrPermissionDenied):
		return status.Error(codes.PermissionDenied, "permission denied")
	case errors.Is(err, errs.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, errs.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, errs.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, errs.ErrUnauthorized), errors.Is(err, errs.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, "unauthenticated")
	case errors.Is(err, errs.ErrRateLimited):
		return status.Error(codes.ResourceExhausted, "rate limited")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}
	s.log.Error("grpc handler failed", zap.String("op", op), zap.Error(err))
	return status.Errorf(codes.Internal, "%s failed", op)
}

func bearerTokenFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("no metadata")
	}
	for _, v := range md.Get("authorization") {
		if t, ok := auth.BearerToken(v); ok {
			return t, nil
		}
	}
	return "", errors.New("no bearer token")
}
