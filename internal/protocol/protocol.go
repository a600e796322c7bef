// Package protocol is the client side of the document store. It builds the
// writes the rule engine accepts (immutable fields kept, required fields
// present, ACL changes as set algebra, a fresh modified on every update)
// and reports every outcome as a Result instead of an error.
package protocol

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/expense-keeper/internal/errs"
	"github.com/and161185/expense-keeper/internal/model"
)

// ErrorMessage is the user-facing text of every failed write.
const ErrorMessage = "Apologies! There was an error updating your document. Please try again later."

// Store is the caller-bound document store the protocol writes through.
type Store interface {
	Create(ctx context.Context, id string, m model.Mutation) (model.Expense, error)
	Get(ctx context.Context, id string) (model.Expense, error)
	Update(ctx context.Context, id string, m model.Mutation) (model.Expense, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q model.Query) ([]model.Expense, error)
}

// Result is the outcome of one protocol call.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`

	cause error
}

// Unwrap returns the underlying failure, if any.
func (r Result[T]) Unwrap() error { return r.cause }

func ok[T any](v T) Result[T] { return Result[T]{Success: true, Data: v} }

func fail[T any](err error) Result[T] {
	return Result[T]{Error: ErrorMessage, cause: err}
}

// Client issues protocol writes on behalf of one signed-in caller.
type Client struct {
	store  Store
	caller model.Caller
	now    func() time.Time
	newID  func() string
	log    *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithClock overrides the source of modified/created timestamps.
func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

// WithIDs overrides document and row id generation.
func WithIDs(newID func() string) Option { return func(c *Client) { c.newID = newID } }

// WithLogger sets the logger used for failed writes.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// New binds a protocol client to caller. An anonymous caller is a fault.
func New(store Store, caller model.Caller, opts ...Option) (*Client, error) {
	if !caller.Authenticated() {
		return nil, errs.ErrUnauthenticated
	}
	c := &Client{
		store:  store,
		caller: caller,
		now:    time.Now,
		newID:  func() string { return uuid.Must(uuid.NewV4()).String() },
		log:    zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Caller returns the identity the client writes as.
func (c *Client) Caller() model.Caller { return c.caller }

// stamp returns a timestamp strictly after prev at the store's microsecond precision.
func (c *Client) stamp(prev time.Time) time.Time {
	t := c.now().UTC().Truncate(model.TimePrecision)
	if !t.After(prev) {
		t = prev.UTC().Truncate(model.TimePrecision).Add(model.TimePrecision)
	}
	return t
}

func (c *Client) report(op, id string, err error) {
	level := c.log.Warn
	if errors.Is(err, errs.ErrPermissionDenied) {
		level = c.log.Debug
	}
	level("write failed", zap.String("op", op), zap.String("doc_id", id), zap.Error(err))
}

// Draft seeds a new document. Zero fields take the defaults.
type Draft struct {
	Title   string
	Headers []model.Header
	Data    []model.Row
	ACL     model.ACL
}

// Default document content.
const (
	DefaultTitle   = "New Document"
	DefaultSeedRow = "Donate to paycheck-to-paycheck"
)

// DefaultHeaders returns the columns of a fresh document.
func DefaultHeaders() []model.Header {
	return []model.Header{
		{Key: "bill", Type: model.ColumnText, Display: "Bill"},
		{Key: "dueDate", Type: model.ColumnText, Display: "Due Date"},
		{Key: "autoPay", Type: model.ColumnCheckbox, Display: "Auto Pay"},
		{Key: "due", Type: model.ColumnNumber, Display: "Due"},
		{Key: "balance", Type: model.ColumnNumber, Display: "Balance"},
		{Key: "website", Type: model.ColumnText, Display: "Website"},
		{Key: "lastPaymentDate", Type: model.ColumnDate, Display: "Last Payment Date"},
	}
}

func (c *Client) defaultRows() []model.Row {
	return []model.Row{{
		model.RowIDKey:       c.newID(),
		model.RowDisabledKey: false,
		"bill":               DefaultSeedRow,
		"dueDate":            "1st day of month",
		"autoPay":            true,
		"due":                "1.00",
		"website":            "paycheck-to-paycheck.com",
	}}
}

// CreateDocument writes a complete new document owned by the caller.
func (c *Client) CreateDocument(ctx context.Context, d Draft) Result[model.Expense] {
	if d.Title == "" {
		d.Title = DefaultTitle
	}
	if d.Headers == nil {
		d.Headers = DefaultHeaders()
	}
	if d.Data == nil {
		d.Data = c.defaultRows()
	}
	id := c.newID()
	at := c.stamp(time.Time{})
	m := model.Mutation{
		model.Set(model.FieldID, id),
		model.Set(model.FieldCreatedBy, c.caller.UID),
		model.Set(model.FieldCreated, at),
		model.Set(model.FieldModified, at),
		model.Set(model.FieldTitle, d.Title),
		model.Set(model.FieldHeaders, d.Headers),
		model.Set(model.FieldData, d.Data),
		model.Set(model.FieldACL, model.ACLValue(d.ACL)),
	}
	e, err := c.store.Create(ctx, id, m)
	if err != nil {
		c.report("create", id, err)
		return fail[model.Expense](err)
	}
	return ok(e)
}

// GetDocument loads one readable document.
func (c *Client) GetDocument(ctx context.Context, id string) Result[model.Expense] {
	e, err := c.store.Get(ctx, id)
	if err != nil {
		c.report("get", id, err)
		return fail[model.Expense](err)
	}
	return ok(e)
}

// DeleteDocument removes doc. Only the owner may; others are refused locally.
func (c *Client) DeleteDocument(ctx context.Context, doc model.Expense) Result[struct{}] {
	if !model.RoleOf(doc, c.caller).CanDelete() {
		return refuse[struct{}](c, "delete", doc.ID)
	}
	if err := c.store.Delete(ctx, doc.ID); err != nil {
		c.report("delete", doc.ID, err)
		return fail[struct{}](err)
	}
	return ok(struct{}{})
}

// refuse fails a write the rules are certain to reject, without a round trip.
func refuse[T any](c *Client, op, id string) Result[T] {
	err := errs.ErrPermissionDenied
	c.report(op, id, err)
	return fail[T](err)
}

// update sends the writes plus a fresh modified, after the local role guard.
func (c *Client) update(ctx context.Context, op string, doc model.Expense, ws ...model.FieldWrite) Result[model.Expense] {
	if !model.RoleOf(doc, c.caller).CanEdit() {
		return refuse[model.Expense](c, op, doc.ID)
	}
	m := append(model.Mutation{model.Set(model.FieldModified, c.stamp(doc.Modified))}, ws...)
	e, err := c.store.Update(ctx, doc.ID, m)
	if err != nil {
		c.report(op, doc.ID, err)
		return fail[model.Expense](err)
	}
	return ok(e)
}

// UpdateTitle renames the document.
func (c *Client) UpdateTitle(ctx context.Context, doc model.Expense, title string) Result[model.Expense] {
	return c.update(ctx, "update title", doc, model.Set(model.FieldTitle, title))
}

// UpdateHeaders replaces the column list.
func (c *Client) UpdateHeaders(ctx context.Context, doc model.Expense, headers []model.Header) Result[model.Expense] {
	return c.update(ctx, "update headers", doc, model.Set(model.FieldHeaders, nonNilHeaders(headers)))
}

// UpdateData replaces the rows.
func (c *Client) UpdateData(ctx context.Context, doc model.Expense, rows []model.Row) Result[model.Expense] {
	return c.update(ctx, "update data", doc, model.Set(model.FieldData, nonNilRows(rows)))
}

// UpdateContent replaces title, headers and rows in one write.
func (c *Client) UpdateContent(ctx context.Context, doc model.Expense, title string, headers []model.Header, rows []model.Row) Result[model.Expense] {
	return c.update(ctx, "update content", doc,
		model.Set(model.FieldTitle, title),
		model.Set(model.FieldHeaders, nonNilHeaders(headers)),
		model.Set(model.FieldData, nonNilRows(rows)),
	)
}

func nonNilHeaders(hs []model.Header) []model.Header {
	if hs == nil {
		return []model.Header{}
	}
	return hs
}

func nonNilRows(rs []model.Row) []model.Row {
	if rs == nil {
		return []model.Row{}
	}
	return rs
}
