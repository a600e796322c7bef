package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/expense-keeper/internal/errs"
	"github.com/and161185/expense-keeper/internal/model"
	"github.com/and161185/expense-keeper/internal/realtime"
	"github.com/and161185/expense-keeper/internal/repository"
	"github.com/and161185/expense-keeper/internal/rules"
)

// ExpenseService is the document store surface. Every operation is checked
// by the rule engine against the caller; denials and missing documents both
// surface as errs.ErrPermissionDenied.
type ExpenseService interface {
	// Create stores the document produced by applying m to an empty document.
	Create(ctx context.Context, caller model.Caller, id string, m model.Mutation) (model.Expense, error)
	// Get returns a readable document.
	Get(ctx context.Context, caller model.Caller, id string) (model.Expense, error)
	// Update merges m into the stored document.
	Update(ctx context.Context, caller model.Caller, id string, m model.Mutation) (model.Expense, error)
	// Delete removes the document.
	Delete(ctx context.Context, caller model.Caller, id string) error
	// List runs a membership query.
	List(ctx context.Context, caller model.Caller, q model.Query) ([]model.Expense, error)
	// Watch streams snapshots of a document until closed or access is lost.
	Watch(ctx context.Context, caller model.Caller, id string) (*Watch, error)
}

// Limits bounds request sizes.
type Limits struct {
	MaxPageSize int
	MaxIDLength int
}

type ExpenseServiceImpl struct {
	repo   repository.ExpenseRepository
	engine *rules.Engine
	pub    realtime.Publisher
	hub    *realtime.Hub
	limits Limits
	log    *zap.Logger
}

// NewExpenseService constructs ExpenseService. pub announces writes; hub
// receives the announcements that watchers wait on.
func NewExpenseService(
	repo repository.ExpenseRepository, engine *rules.Engine,
	pub realtime.Publisher, hub *realtime.Hub, limits Limits, log *zap.Logger,
) *ExpenseServiceImpl {
	if limits.MaxPageSize <= 0 {
		limits.MaxPageSize = 100
	}
	if limits.MaxIDLength <= 0 {
		limits.MaxIDLength = 128
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ExpenseServiceImpl{repo: repo, engine: engine, pub: pub, hub: hub, limits: limits, log: log}
}

func (s *ExpenseServiceImpl) validID(id string) error {
	if id == "" || len(id) > s.limits.MaxIDLength || strings.ContainsAny(id, "/\x00") {
		return fmt.Errorf("document id %q: %w", id, errs.ErrInvalidArgument)
	}
	return nil
}

func (s *ExpenseServiceImpl) publish(ctx context.Context, id string) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, id); err != nil {
		s.log.Warn("publish change", zap.String("doc_id", id), zap.Error(err))
	}
}

// Create evaluates the create rules on the post-write document and inserts it.
func (s *ExpenseServiceImpl) Create(ctx context.Context, caller model.Caller, id string, m model.Mutation) (model.Expense, error) {
	if err := s.validID(id); err != nil {
		return model.Expense{}, err
	}
	incoming, err := m.Apply(nil)
	if err != nil {
		return model.Expense{}, fmt.Errorf("%v: %w", err, errs.ErrInvalidArgument)
	}
	if !s.engine.Allow(rules.Request{Op: rules.OpCreate, Caller: caller, DocID: id, Incoming: incoming}) {
		return model.Expense{}, errs.ErrPermissionDenied
	}
	e, err := model.ExpenseFromFields(incoming)
	if err != nil {
		return model.Expense{}, fmt.Errorf("%v: %w", err, errs.ErrPermissionDenied)
	}
	if err := s.repo.Create(ctx, e); err != nil {
		// a taken id is refused like any other denied write so ids stay private
		if errors.Is(err, errs.ErrAlreadyExists) {
			return model.Expense{}, errs.ErrPermissionDenied
		}
		return model.Expense{}, err
	}
	s.publish(ctx, id)
	return e, nil
}

// Get loads the document and evaluates the read rules.
func (s *ExpenseServiceImpl) Get(ctx context.Context, caller model.Caller, id string) (model.Expense, error) {
	if err := s.validID(id); err != nil {
		return model.Expense{}, err
	}
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Expense{}, errs.ErrPermissionDenied
		}
		return model.Expense{}, err
	}
	if !s.canRead(caller, *e) {
		return model.Expense{}, errs.ErrPermissionDenied
	}
	return *e, nil
}

func (s *ExpenseServiceImpl) canRead(caller model.Caller, e model.Expense) bool {
	return s.engine.Allow(rules.Request{Op: rules.OpGet, Caller: caller, DocID: e.ID, Existing: e.Fields()})
}

// Update applies m under the row lock and stores the result if the update rules hold.
func (s *ExpenseServiceImpl) Update(ctx context.Context, caller model.Caller, id string, m model.Mutation) (model.Expense, error) {
	if err := s.validID(id); err != nil {
		return model.Expense{}, err
	}
	if !caller.Authenticated() {
		return model.Expense{}, errs.ErrPermissionDenied
	}
	next, err := s.repo.Update(ctx, id, func(cur model.Expense) (model.Expense, error) {
		existing := cur.Fields()
		incoming, err := m.Apply(existing)
		if err != nil {
			return model.Expense{}, fmt.Errorf("%v: %w", err, errs.ErrInvalidArgument)
		}
		req := rules.Request{Op: rules.OpUpdate, Caller: caller, DocID: id, Existing: existing, Incoming: incoming}
		if !s.engine.Allow(req) {
			return model.Expense{}, errs.ErrPermissionDenied
		}
		e, err := model.ExpenseFromFields(incoming)
		if err != nil {
			return model.Expense{}, fmt.Errorf("%v: %w", err, errs.ErrPermissionDenied)
		}
		return e, nil
	})
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Expense{}, errs.ErrPermissionDenied
		}
		return model.Expense{}, err
	}
	s.publish(ctx, id)
	return next, nil
}

// Delete removes the document if the delete rules hold.
func (s *ExpenseServiceImpl) Delete(ctx context.Context, caller model.Caller, id string) error {
	if err := s.validID(id); err != nil {
		return err
	}
	if !caller.Authenticated() {
		return errs.ErrPermissionDenied
	}
	err := s.repo.Delete(ctx, id, func(cur model.Expense) error {
		if !s.engine.Allow(rules.Request{Op: rules.OpDelete, Caller: caller, DocID: id, Existing: cur.Fields()}) {
			return errs.ErrPermissionDenied
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrPermissionDenied
		}
		return err
	}
	s.publish(ctx, id)
	return nil
}

// List checks the query shape against the list rules, then every returned
// document against the read rules. One unreadable document fails the query.
func (s *ExpenseServiceImpl) List(ctx context.Context, caller model.Caller, q model.Query) ([]model.Expense, error) {
	if q.Limit <= 0 || q.Limit > s.limits.MaxPageSize {
		q.Limit = s.limits.MaxPageSize
	}
	if q.OrderBy == "" {
		q.OrderBy = model.SortByModified
	}
	if !q.OrderBy.Valid() {
		return nil, fmt.Errorf("order by %q: %w", q.OrderBy, errs.ErrInvalidArgument)
	}
	switch q.Direction {
	case model.Unsorted:
		q.Direction = model.Asc
	case model.Asc, model.Desc:
	default:
		return nil, fmt.Errorf("direction %q: %w", q.Direction, errs.ErrInvalidArgument)
	}
	if !s.engine.Allow(rules.Request{Op: rules.OpList, Caller: caller, Clauses: q.Any}) {
		return nil, errs.ErrPermissionDenied
	}
	docs, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if !s.canRead(caller, d) {
			return nil, errs.ErrPermissionDenied
		}
	}
	return docs, nil
}
