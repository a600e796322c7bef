// Package memory contains in-process implementations of repository interfaces
// for development mode and tests.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/and161185/expense-keeper/internal/errs"
	"github.com/and161185/expense-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ExpenseRepo implements repository.ExpenseRepository in memory.
type ExpenseRepo struct {
	mu   sync.Mutex
	docs map[string]model.Expense
}

// NewExpenseRepo constructs an empty store.
func NewExpenseRepo() *ExpenseRepo {
	return &ExpenseRepo{docs: make(map[string]model.Expense)}
}

// Create inserts e unless its id is taken.
func (r *ExpenseRepo) Create(ctx context.Context, e model.Expense) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[e.ID]; ok {
		return errs.ErrAlreadyExists
	}
	r.docs[e.ID] = e.Clone()
	return nil
}

// Get returns a copy of the stored document.
func (r *ExpenseRepo) Get(ctx context.Context, id string) (*model.Expense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.docs[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	out := e.Clone()
	return &out, nil
}

// Update runs fn under the store lock.
func (r *ExpenseRepo) Update(ctx context.Context, id string, fn func(cur model.Expense) (model.Expense, error)) (model.Expense, error) {
	if err := ctx.Err(); err != nil {
		return model.Expense{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.docs[id]
	if !ok {
		return model.Expense{}, errs.ErrNotFound
	}
	next, err := fn(cur.Clone())
	if err != nil {
		return model.Expense{}, err
	}
	next.ID, next.CreatedBy, next.Created = cur.ID, cur.CreatedBy, cur.Created
	r.docs[id] = next.Clone()
	return next, nil
}

// Delete removes the document if check allows it.
func (r *ExpenseRepo) Delete(ctx context.Context, id string, check func(cur model.Expense) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.docs[id]
	if !ok {
		return errs.ErrNotFound
	}
	if err := check(cur.Clone()); err != nil {
		return err
	}
	delete(r.docs, id)
	return nil
}

// List filters, orders and pages like the SQL backend.
func (r *ExpenseRepo) List(ctx context.Context, q model.Query) ([]model.Expense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	var out []model.Expense
	for _, e := range r.docs {
		for _, c := range q.Any {
			if c.Matches(e) {
				out = append(out, e.Clone())
				break
			}
		}
	}
	r.mu.Unlock()

	desc := q.Direction == model.Desc
	cmp := func(at time.Time, id string, b model.Expense) int {
		if c := at.Compare(b.SortValue(q.OrderBy)); c != 0 {
			return c
		}
		return strings.Compare(id, b.ID)
	}
	slices.SortFunc(out, func(a, b model.Expense) int {
		c := cmp(a.SortValue(q.OrderBy), a.ID, b)
		if desc {
			return -c
		}
		return c
	})

	if q.Start != nil {
		start := *q.Start
		out = slices.DeleteFunc(out, func(e model.Expense) bool {
			c := -cmp(start.At, start.ID, e) // e relative to cursor
			if desc {
				c = -c
			}
			if start.Inclusive {
				return c < 0
			}
			return c <= 0
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// UserRepo implements repository.UserRepository in memory.
type UserRepo struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]model.User
	byEmail map[string]uuid.UUID
}

// NewUserRepo constructs an empty user store.
func NewUserRepo() *UserRepo {
	return &UserRepo{byID: make(map[uuid.UUID]model.User), byEmail: make(map[string]uuid.UUID)}
}

// Create inserts u unless the email is taken.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[u.Email]; ok {
		return errs.ErrAlreadyExists
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	r.byID[u.ID] = *u
	r.byEmail[u.Email] = u.ID
	return nil
}

// GetByID loads a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &u, nil
}

// GetByEmail loads a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, errs.ErrNotFound
	}
	u := r.byID[id]
	return &u, nil
}
