package repository

import (
	"context"

	"github.com/and161185/expense-keeper/internal/model"
)

// ExpenseRepository stores expense documents.
type ExpenseRepository interface {
	// Create inserts a new document. Returns errs.ErrAlreadyExists if the id is taken.
	Create(ctx context.Context, e model.Expense) error

	// Get loads a document by id.
	Get(ctx context.Context, id string) (*model.Expense, error)

	// Update locks the document, passes it to fn and stores the result.
	// An error from fn aborts the update and is returned as is.
	Update(ctx context.Context, id string, fn func(cur model.Expense) (model.Expense, error)) (model.Expense, error)

	// Delete locks the document, lets check veto the removal and deletes it.
	Delete(ctx context.Context, id string, check func(cur model.Expense) error) error

	// List returns documents matching any of q's clauses in q's order.
	List(ctx context.Context, q model.Query) ([]model.Expense, error)
}
