package client

import (
	"context"

	"github.com/and161185/expense-keeper/internal/model"
	"github.com/and161185/expense-keeper/internal/service"
)

// Local binds the in-process document service to one caller.
type Local struct {
	svc    service.ExpenseService
	caller model.Caller
}

// NewLocal returns a store that acts as caller.
func NewLocal(svc service.ExpenseService, caller model.Caller) *Local {
	return &Local{svc: svc, caller: caller}
}

func (l *Local) Create(ctx context.Context, id string, m model.Mutation) (model.Expense, error) {
	return l.svc.Create(ctx, l.caller, id, m)
}

func (l *Local) Get(ctx context.Context, id string) (model.Expense, error) {
	return l.svc.Get(ctx, l.caller, id)
}

func (l *Local) Update(ctx context.Context, id string, m model.Mutation) (model.Expense, error) {
	return l.svc.Update(ctx, l.caller, id, m)
}

func (l *Local) Delete(ctx context.Context, id string) error {
	return l.svc.Delete(ctx, l.caller, id)
}

func (l *Local) List(ctx context.Context, q model.Query) ([]model.Expense, error) {
	return l.svc.List(ctx, l.caller, q)
}
