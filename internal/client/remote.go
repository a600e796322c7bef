package client

import (
	"context"
	"errors"
	"io"
	"time"

	v1 "github.com/and161185/expense-keeper/internal/api/expensesv1"
	"github.com/and161185/expense-keeper/internal/convert"
	"github.com/and161185/expense-keeper/internal/model"
)

// Session is the result of a successful login.
type Session struct {
	AccessToken string
	ExpiresAt   time.Time
	Caller      model.Caller
}

// Register creates an account and returns its user id.
func Register(ctx context.Context, api v1.ExpenseKeeperClient, email, password string) (string, error) {
	resp, err := api.Register(ctx, &v1.RegisterRequest{Email: email, Password: password})
	if err != nil {
		return "", FromStatus(err)
	}
	return resp.UserID, nil
}

// Login exchanges credentials for an access token.
func Login(ctx context.Context, api v1.ExpenseKeeperClient, email, password string) (Session, error) {
	resp, err := api.Login(ctx, &v1.LoginRequest{Email: email, Password: password})
	if err != nil {
		return Session{}, FromStatus(err)
	}
	return Session{
		AccessToken: resp.AccessToken,
		ExpiresAt:   resp.ExpiresAt,
		Caller:      model.Caller{UID: resp.UserID, Email: resp.Email},
	}, nil
}

// Remote is a document store backed by the gRPC API. The connection must
// carry the caller's bearer token.
type Remote struct {
	api v1.ExpenseKeeperClient
}

// NewRemote wraps an authenticated API client.
func NewRemote(api v1.ExpenseKeeperClient) *Remote { return &Remote{api: api} }

func (r *Remote) Create(ctx context.Context, id string, m model.Mutation) (model.Expense, error) {
	ws, err := convert.ToWireWrites(m)
	if err != nil {
		return model.Expense{}, err
	}
	resp, err := r.api.CreateExpense(ctx, &v1.CreateExpenseRequest{ID: id, Writes: ws})
	if err != nil {
		return model.Expense{}, FromStatus(err)
	}
	return convert.FromWireExpense(resp.Expense), nil
}

func (r *Remote) Get(ctx context.Context, id string) (model.Expense, error) {
	resp, err := r.api.GetExpense(ctx, &v1.GetExpenseRequest{ID: id})
	if err != nil {
		return model.Expense{}, FromStatus(err)
	}
	return convert.FromWireExpense(resp.Expense), nil
}

func (r *Remote) Update(ctx context.Context, id string, m model.Mutation) (model.Expense, error) {
	ws, err := convert.ToWireWrites(m)
	if err != nil {
		return model.Expense{}, err
	}
	resp, err := r.api.UpdateExpense(ctx, &v1.UpdateExpenseRequest{ID: id, Writes: ws})
	if err != nil {
		return model.Expense{}, FromStatus(err)
	}
	return convert.FromWireExpense(resp.Expense), nil
}

func (r *Remote) Delete(ctx context.Context, id string) error {
	_, err := r.api.DeleteExpense(ctx, &v1.DeleteExpenseRequest{ID: id})
	return FromStatus(err)
}

func (r *Remote) List(ctx context.Context, q model.Query) ([]model.Expense, error) {
	resp, err := r.api.ListExpenses(ctx, convert.ToWireQuery(q))
	if err != nil {
		return nil, FromStatus(err)
	}
	return convert.FromWireExpenses(resp.Expenses), nil
}

// Watch calls fn with every pushed snapshot until the stream ends, fn
// returns an error or ctx is cancelled. A deletion ends the stream
// normally; lost access ends it with errs.ErrPermissionDenied.
func (r *Remote) Watch(ctx context.Context, id string, fn func(e model.Expense, exists bool) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stream, err := r.api.WatchExpense(ctx, &v1.WatchExpenseRequest{ID: id})
	if err != nil {
		return FromStatus(err)
	}
	for {
		snap, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return FromStatus(err)
		}
		var e model.Expense
		if snap.Expense != nil {
			e = convert.FromWireExpense(*snap.Expense)
		}
		if err := fn(e, snap.Exists); err != nil {
			return err
		}
	}
}
