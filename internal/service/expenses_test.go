package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/and161185/expense-keeper/internal/errs"
	"github.com/and161185/expense-keeper/internal/model"
	"github.com/and161185/expense-keeper/internal/realtime"
	"github.com/and161185/expense-keeper/internal/repository"
	"github.com/and161185/expense-keeper/internal/repository/memory"
	"github.com/and161185/expense-keeper/internal/rules"
)

var (
	alice = model.Caller{UID: "alice", Email: "alice@x.io"}
	bob   = model.Caller{UID: "bob", Email: "bob@x.io"}
	vic   = model.Caller{UID: "vic", Email: "vic@x.io"}
	eve   = model.Caller{UID: "eve", Email: "eve@x.io"}
)

var t0 = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc  *ExpenseServiceImpl
	repo *memory.ExpenseRepo
	hub  *realtime.Hub
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	engine, err := rules.New()
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	repo := memory.NewExpenseRepo()
	hub := realtime.NewHub()
	svc := NewExpenseService(repo, engine, hub, hub, Limits{MaxPageSize: 10}, zaptest.NewLogger(t))
	return fixture{svc: svc, repo: repo, hub: hub}
}

func createMutation(id string, owner model.Caller, at time.Time) model.Mutation {
	return model.Mutation{
		model.Set(model.FieldID, id),
		model.Set(model.FieldCreatedBy, owner.UID),
		model.Set(model.FieldCreated, at),
		model.Set(model.FieldModified, at),
		model.Set(model.FieldTitle, "Bills"),
		model.Set(model.FieldHeaders, []model.Header{{Key: "bill", Type: model.ColumnText, Display: "Bill"}}),
		model.Set(model.FieldData, []model.Row{}),
		model.Set(model.FieldACL, model.ACLValue(model.ACL{})),
	}
}

func (f fixture) seed(t *testing.T, id string, owner model.Caller, editors, viewers []string) model.Expense {
	t.Helper()
	m := createMutation(id, owner, t0)
	m = append(m, model.Set("acl.editors", editors), model.Set("acl.viewers", viewers))
	e, err := f.svc.Create(context.Background(), owner, id, m)
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
	return e
}

func bump(n int, ws ...model.FieldWrite) model.Mutation {
	return append(model.Mutation{model.Set(model.FieldModified, t0.Add(time.Duration(n)*time.Minute))}, ws...)
}

func TestExpenseService_CreateAndGet(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.svc.Create(ctx, alice, "d1", createMutation("d1", alice, t0))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.Title != "Bills" || e.CreatedBy != "alice" {
		t.Fatalf("bad doc: %+v", e)
	}

	if _, err := f.svc.Create(ctx, alice, "d1", createMutation("d1", alice, t0)); !errors.Is(err, errs.ErrPermissionDenied) {
		t.Fatalf("taken id: want denied, got %v", err)
	}
	if _, err := f.svc.Create(ctx, bob, "d2", createMutation("d2", alice, t0)); !errors.Is(err, errs.ErrPermissionDenied) {
		t.Fatalf("createdBy spoofing: want denied, got %v", err)
	}
	if _, err := f.svc.Create(ctx, model.Caller{}, "d3", createMutation("d3", alice, t0)); !errors.Is(err, errs.ErrPermissionDenied) {
		t.Fatalf("anonymous: want denied, got %v", err)
	}
	if _, err := f.svc.Create(ctx, alice, "", createMutation("", alice, t0)); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("empty id: want invalid, got %v", err)
	}
	bad := append(createMutation("d4", alice, t0), model.Set(model.FieldCreated, "yesterday"))
	if _, err := f.svc.Create(ctx, alice, "d4", bad); !errors.Is(err, errs.ErrPermissionDenied) {
		t.Fatalf("bad created type: want denied, got %v", err)
	}

	got, err := f.svc.Get(ctx, alice, "d1")
	if err != nil || got.ID != "d1" {
		t.Fatalf("get: %v %+v", err, got)
	}
	if _, err := f.svc.Get(ctx, eve, "d1"); !errors.Is(err, errs.ErrPermissionDenied) {
		t.Fatalf("stranger get: want denied, got %v", err)
	}
	if _, err := f.svc.Get(ctx, alice, "missing"); !errors.Is(err, errs.ErrPermissionDenied) {
		t.Fatalf("missing doc: want denied, got %v", err)
	}
}

func TestExpenseService_CreateOnTakenIDLooksDenied(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "secret-doc", alice, nil, nil)

	_, err := f.svc.Create(ctx, eve, "secret-doc", createMutation("secret-doc", eve, t0))
	if !errors.Is(err, errs.ErrPermissionDenied) || errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("taken id: want plain denial, got %v", err)
	}
	got, err := f.svc.Get(ctx, alice, "secret-doc")
	if err != nil || got.CreatedBy != alice.UID {
		t.Fatalf("original must be untouched: %+v %v", got, err)
	}
	if _, err := f.svc.Create(ctx, eve, "fresh-doc", createMutation("fresh-doc", eve, t0)); err != nil {
		t.Fatalf("free id: %v", err)
	}
}

func TestExpenseService_UpdateRoles(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "d1", alice, []string{bob.Email}, []string{vic.Email})

	e, err := f.svc.Update(ctx, bob, "d1", bump(1, model.Set(model.FieldTitle, "Renamed")))
	if err != nil || e.Title != "Renamed" {
		t.Fatalf("editor update: %v %+v", err, e)
	}
	if _, err := f.svc.Update(ctx, vic, "d1", bump(2)); !errors.Is(err, errs.ErrPermissionDenied) {
		t.Fatalf("viewer update: want denied, got %v", err)
	}
	if _, err := f.svc.Update(ctx, alice, "d1", model.Mutation{model.Set(model.FieldTitle, "x")}); !errors.Is(err, errs.ErrPermissionDenied) {
		t.Fatalf("no modified bump: want denied, got %v", err)
	}
	if _, err := f.svc.Update(ctx, alice, "d1", bump(3, model.Set("a.b.c", 1))); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("bad path: want invalid, got %v", err)
	}
	if _, err := f.svc.Update(ctx, alice, "nope", bump(3)); !errors.Is(err, errs.ErrPermissionDenied) {
		t.Fatalf("missing doc: want denied, got %v", err)
	}

	stored, _ := f.repo.Get(ctx, "d1")
	if stored.Title != "Renamed" {
		t.Fatalf("denied writes must not persist: %+v", stored)
	}
}

func TestExpenseService_ShareRevokeAndAccess(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "d1", alice, []string{}, []string{})

	if _, err := f.svc.Get(ctx, vic, "d1"); !errors.Is(err, errs.ErrPermissionDenied) {
		t.Fatalf("before share: %v", err)
	}
	if _, err := f.svc.Update(ctx, alice, "d1", bump(1, model.ArrayUnion("acl.viewers", vic.Email))); err != nil {
		t.Fatalf("share: %v", err)
	}
	if _, err := f.svc.Get(ctx, vic, "d1"); err != nil {
		t.Fatalf("after share: %v", err)
	}
	if _, err := f.svc.Update(ctx, alice, "d1", bump(2, model.ArrayRemove("acl.viewers", vic.Email))); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := f.svc.Get(ctx, vic, "d1"); !errors.Is(err, errs.ErrPermissionDenied) {
		t.Fatalf("after revoke: %v", err)
	}
}

func TestExpenseService_Delete(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "d1", alice, []string{bob.Email}, nil)

	if err := f.svc.Delete(ctx, bob, "d1"); !errors.Is(err, errs.ErrPermissionDenied) {
		t.Fatalf("editor delete: want denied, got %v", err)
	}
	if err := f.svc.Delete(ctx, alice, "d1"); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := f.repo.Get(ctx, "d1"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("doc still stored: %v", err)
	}
	if err := f.svc.Delete(ctx, alice, "d1"); !errors.Is(err, errs.ErrPermissionDenied) {
		t.Fatalf("second delete: want denied, got %v", err)
	}
}

func memberClauses(c model.Caller) []model.Clause {
	return []model.Clause{
		{Field: model.ClauseCreatedBy, Op: model.ClauseEq, Value: c.UID},
		{Field: model.ClauseEditors, Op: model.ClauseArrayContains, Value: c.Email},
		{Field: model.ClauseViewers, Op: model.ClauseArrayContains, Value: c.Email},
	}
}

func TestExpenseService_List(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		f.seed(t, fmt.Sprintf("a%02d", i), alice, nil, nil)
	}
	f.seed(t, "b00", bob, nil, []string{alice.Email})

	docs, err := f.svc.List(ctx, alice, model.Query{Any: memberClauses(alice), OrderBy: model.SortByCreated})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 10 {
		t.Fatalf("limit not capped: %d", len(docs))
	}

	docs, err = f.svc.List(ctx, eve, model.Query{Any: memberClauses(eve)})
	if err != nil || len(docs) != 0 {
		t.Fatalf("stranger own clauses: %v %d", err, len(docs))
	}
	if _, err := f.svc.List(ctx, eve, model.Query{Any: memberClauses(alice)}); !errors.Is(err, errs.ErrPermissionDenied) {
		t.Fatalf("foreign clauses: want denied, got %v", err)
	}
	if _, err := f.svc.List(ctx, alice, model.Query{Any: memberClauses(alice), OrderBy: "title"}); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("bad order: want invalid, got %v", err)
	}

	shared, err := f.svc.List(ctx, alice, model.Query{Any: memberClauses(alice)[1:]})
	if err != nil || len(shared) != 1 || shared[0].ID != "b00" {
		t.Fatalf("shared filter: %v %+v", err, shared)
	}
}

func TestExpenseService_PublishesChanges(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ch, cancel := f.hub.Subscribe("d1")
	defer cancel()

	f.seed(t, "d1", alice, nil, nil)
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("no notification after create")
	}
}

var _ repository.ExpenseRepository = (*memory.ExpenseRepo)(nil)
