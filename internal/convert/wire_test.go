package convert

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	v1 "github.com/and161185/expense-keeper/internal/api/expensesv1"
	"github.com/and161185/expense-keeper/internal/errs"
	"github.com/and161185/expense-keeper/internal/model"
)

func TestExpenseThroughJSON(t *testing.T) {
	t.Parallel()
	at := time.Date(2024, 4, 1, 12, 0, 0, 123000, time.UTC)
	in := model.Expense{
		ID: "d1", CreatedBy: "u1", Created: at, Modified: at.Add(time.Second), Title: "T",
		Headers: []model.Header{{Key: "due", Type: model.ColumnNumber, Display: "Due", Sort: model.Desc}},
		Data:    []model.Row{{model.RowIDKey: "r1", model.RowDisabledKey: false, "due": 3.5}},
		ACL:     model.ACL{Viewers: []string{"v@x.io"}},
	}

	raw, err := json.Marshal(ToWireExpense(in))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var wire v1.Expense
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got := FromWireExpense(wire)

	in.ACL.Editors = []string{}
	if !reflect.DeepEqual(in, got) {
		t.Fatalf("mismatch:\n in=%+v\ngot=%+v", in, got)
	}
}

func TestWritesThroughJSON(t *testing.T) {
	t.Parallel()
	at := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	m := model.Mutation{
		model.Set(model.FieldModified, at),
		model.Set(model.FieldTitle, "x"),
		model.Set(model.FieldHeaders, []model.Header{{Key: "a", Type: model.ColumnText, Display: "A"}}),
		model.ArrayUnion("acl.editors", "e@x.io"),
		model.Delete("title"),
	}
	ws, err := ToWireWrites(m)
	if err != nil {
		t.Fatalf("ToWireWrites: %v", err)
	}
	if ws[0].Time == nil || len(ws[0].Value) != 0 {
		t.Fatalf("timestamp must travel in Time: %+v", ws[0])
	}
	if len(ws[4].Value) != 0 {
		t.Fatalf("delete carries no value: %s", ws[4].Value)
	}

	raw, _ := json.Marshal(ws)
	var back []v1.FieldWrite
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got, err := FromWireWrites(back)
	if err != nil {
		t.Fatalf("FromWireWrites: %v", err)
	}

	want, _ := m.Apply(nil)
	have, err := got.Apply(nil)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !reflect.DeepEqual(want, have) {
		t.Fatalf("applied docs differ:\nwant=%v\nhave=%v", want, have)
	}
}

func TestFromWireWrites_Rejects(t *testing.T) {
	t.Parallel()
	now := time.Now()
	bad := [][]v1.FieldWrite{
		{{Path: "title", Op: "set", Value: json.RawMessage(`{`)}},
		{{Path: "modified", Op: "set", Value: json.RawMessage(`"x"`), Time: &now}},
	}
	for i, ws := range bad {
		if _, err := FromWireWrites(ws); !errors.Is(err, errs.ErrInvalidArgument) {
			t.Fatalf("case %d: want ErrInvalidArgument, got %v", i, err)
		}
	}
}

func TestQueryRoundTrip(t *testing.T) {
	t.Parallel()
	q := model.Query{
		Any:       []model.Clause{{Field: model.ClauseCreatedBy, Op: model.ClauseEq, Value: "u1"}},
		OrderBy:   model.SortByCreated,
		Direction: model.Desc,
		Limit:     10,
		Start:     &model.Cursor{At: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), ID: "d9", Inclusive: true},
	}
	if got := FromWireQuery(ToWireQuery(q)); !reflect.DeepEqual(q, got) {
		t.Fatalf("mismatch: %+v vs %+v", q, got)
	}
}

func TestToWireSnapshot(t *testing.T) {
	t.Parallel()
	if s := ToWireSnapshot(model.Expense{}, false); s.Exists || s.Expense != nil {
		t.Fatalf("deleted snapshot must be empty: %+v", s)
	}
	if s := ToWireSnapshot(model.Expense{ID: "d1"}, true); !s.Exists || s.Expense.ID != "d1" {
		t.Fatalf("bad snapshot: %+v", s)
	}
}
