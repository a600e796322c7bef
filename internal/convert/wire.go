// Package convert maps domain types to and from the wire messages of the
// expensekeeper.v1 API.
package convert

import (
	"encoding/json"
	"fmt"
	"time"

	v1 "github.com/and161185/expense-keeper/internal/api/expensesv1"
	"github.com/and161185/expense-keeper/internal/errs"
	"github.com/and161185/expense-keeper/internal/model"
)

// --- Expense ---

// ToWireExpense converts a document to its wire form.
func ToWireExpense(e model.Expense) v1.Expense {
	out := v1.Expense{
		ID:        e.ID,
		CreatedBy: e.CreatedBy,
		Created:   e.Created.UTC(),
		Modified:  e.Modified.UTC(),
		Title:     e.Title,
		Headers:   make([]v1.Header, len(e.Headers)),
		Data:      make([]map[string]any, len(e.Data)),
		ACL:       v1.ACL{Editors: nonNil(e.ACL.Editors), Viewers: nonNil(e.ACL.Viewers)},
	}
	for i, h := range e.Headers {
		out.Headers[i] = v1.Header{Key: h.Key, Type: string(h.Type), Display: h.Display, Sort: string(h.Sort)}
	}
	for i, r := range e.Data {
		out.Data[i] = map[string]any(r.Clone())
	}
	return out
}

// FromWireExpense converts a wire document back to the domain type.
func FromWireExpense(in v1.Expense) model.Expense {
	out := model.Expense{
		ID:        in.ID,
		CreatedBy: in.CreatedBy,
		Created:   in.Created.UTC(),
		Modified:  in.Modified.UTC(),
		Title:     in.Title,
		Headers:   make([]model.Header, len(in.Headers)),
		Data:      make([]model.Row, len(in.Data)),
		ACL:       model.ACL{Editors: nonNil(in.ACL.Editors), Viewers: nonNil(in.ACL.Viewers)},
	}
	for i, h := range in.Headers {
		out.Headers[i] = model.Header{Key: h.Key, Type: model.ColumnType(h.Type), Display: h.Display, Sort: model.Direction(h.Sort)}
	}
	for i, r := range in.Data {
		out.Data[i] = model.Row(r).Clone()
	}
	return out
}

// ToWireExpenses converts a page of documents.
func ToWireExpenses(es []model.Expense) []v1.Expense {
	out := make([]v1.Expense, len(es))
	for i, e := range es {
		out[i] = ToWireExpense(e)
	}
	return out
}

// FromWireExpenses converts a page of wire documents.
func FromWireExpenses(in []v1.Expense) []model.Expense {
	out := make([]model.Expense, len(in))
	for i, e := range in {
		out[i] = FromWireExpense(e)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// --- Writes ---

// ToWireWrites encodes a mutation. Timestamps go in the Time field.
func ToWireWrites(m model.Mutation) ([]v1.FieldWrite, error) {
	out := make([]v1.FieldWrite, 0, len(m))
	for _, w := range m {
		fw := v1.FieldWrite{Path: w.Path, Op: string(w.Op)}
		switch v := w.Value.(type) {
		case nil:
		case time.Time:
			t := v.UTC()
			fw.Time = &t
		default:
			raw, err := json.Marshal(model.Normalize(v))
			if err != nil {
				return nil, fmt.Errorf("write %q: %w", w.Path, err)
			}
			fw.Value = raw
		}
		out = append(out, fw)
	}
	return out, nil
}

// FromWireWrites decodes a mutation. Malformed values wrap errs.ErrInvalidArgument.
func FromWireWrites(in []v1.FieldWrite) (model.Mutation, error) {
	out := make(model.Mutation, 0, len(in))
	for i, fw := range in {
		w := model.FieldWrite{Path: fw.Path, Op: model.WriteOp(fw.Op)}
		switch {
		case fw.Time != nil && len(fw.Value) > 0:
			return nil, fmt.Errorf("writes[%d]: both time and value set: %w", i, errs.ErrInvalidArgument)
		case fw.Time != nil:
			w.Value = fw.Time.UTC()
		case len(fw.Value) > 0:
			var v any
			if err := json.Unmarshal(fw.Value, &v); err != nil {
				return nil, fmt.Errorf("writes[%d]: %v: %w", i, err, errs.ErrInvalidArgument)
			}
			w.Value = v
		}
		out = append(out, w)
	}
	return out, nil
}

// --- Query ---

// ToWireQuery encodes a list query.
func ToWireQuery(q model.Query) *v1.ListExpensesRequest {
	out := &v1.ListExpensesRequest{
		Any:       make([]v1.Clause, len(q.Any)),
		OrderBy:   string(q.OrderBy),
		Direction: string(q.Direction),
		Limit:     int32(q.Limit),
	}
	for i, c := range q.Any {
		out.Any[i] = v1.Clause{Field: c.Field, Op: c.Op, Value: c.Value}
	}
	if q.Start != nil {
		out.Start = &v1.Cursor{At: q.Start.At.UTC(), ID: q.Start.ID, Inclusive: q.Start.Inclusive}
	}
	return out
}

// FromWireQuery decodes a list query.
func FromWireQuery(in *v1.ListExpensesRequest) model.Query {
	q := model.Query{
		Any:       make([]model.Clause, len(in.Any)),
		OrderBy:   model.SortKey(in.OrderBy),
		Direction: model.Direction(in.Direction),
		Limit:     int(in.Limit),
	}
	for i, c := range in.Any {
		q.Any[i] = model.Clause{Field: c.Field, Op: c.Op, Value: c.Value}
	}
	if in.Start != nil {
		q.Start = &model.Cursor{At: in.Start.At.UTC(), ID: in.Start.ID, Inclusive: in.Start.Inclusive}
	}
	return q
}

// --- Watch ---

// ToWireSnapshot encodes one watch push.
func ToWireSnapshot(e model.Expense, exists bool) *v1.ExpenseSnapshot {
	if !exists {
		return &v1.ExpenseSnapshot{}
	}
	w := ToWireExpense(e)
	return &v1.ExpenseSnapshot{Exists: true, Expense: &w}
}
