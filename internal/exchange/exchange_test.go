package exchange

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/expense-keeper/internal/errs"
	"github.com/and161185/expense-keeper/internal/model"
	"github.com/and161185/expense-keeper/internal/protocol"
	"github.com/and161185/expense-keeper/internal/realtime"
	"github.com/and161185/expense-keeper/internal/repository/memory"
	"github.com/and161185/expense-keeper/internal/rules"
	"github.com/and161185/expense-keeper/internal/service"
)

func sample() model.Expense {
	return model.Expense{
		ID:        "d1",
		CreatedBy: "u1",
		Title:     "Utilities",
		Headers: []model.Header{
			{Key: "bill", Type: model.ColumnText, Display: "Bill"},
			{Key: "due", Type: model.ColumnNumber, Display: "Due", Sort: model.Asc},
		},
		Data: []model.Row{
			{model.RowIDKey: "r1", model.RowDisabledKey: false, "bill": "Power", "due": 40.5},
			{model.RowIDKey: "r2", model.RowDisabledKey: true, "bill": "Water", "due": "12"},
		},
		ACL: model.ACL{Editors: []string{"e@x.io"}},
	}
}

func TestExportDecode(t *testing.T) {
	t.Parallel()
	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Export(sample(), at)))
	require.NotContains(t, buf.String(), "e@x.io", "ACL is not exported")

	f, err := Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, Format, f.Format)
	require.Equal(t, "Utilities", f.Title)
	require.Equal(t, sample().Headers, f.Headers)
	require.Len(t, f.Data, 2)
	require.Equal(t, "r2", f.Data[1].ID())
	require.True(t, f.Data[1].Disabled())
	require.True(t, at.Equal(f.ExportedAt))
}

func TestDecode_Rejects(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"not json":       `{`,
		"wrong format":   `{"format":"other/v9","title":"t","headers":[],"data":[]}`,
		"missing data":   `{"format":"expense-keeper/v1","title":"t","headers":[]}`,
		"extra field":    `{"format":"expense-keeper/v1","title":"t","headers":[],"data":[],"acl":{}}`,
		"bad col type":   `{"format":"expense-keeper/v1","title":"t","headers":[{"key":"a","type":"money","display":"A"}],"data":[]}`,
		"reserved key":   `{"format":"expense-keeper/v1","title":"t","headers":[{"key":"__id","type":"text","display":"A"}],"data":[]}`,
		"row without id": `{"format":"expense-keeper/v1","title":"t","headers":[],"data":[{"__disabled":false}]}`,
		"nested cell":    `{"format":"expense-keeper/v1","title":"t","headers":[],"data":[{"__id":"r","__disabled":false,"x":{"y":1}}]}`,
		"dup column":     `{"format":"expense-keeper/v1","title":"t","headers":[{"key":"a","type":"text","display":"A"},{"key":"a","type":"text","display":"B"}],"data":[]}`,
		"dup row":        `{"format":"expense-keeper/v1","title":"t","headers":[],"data":[{"__id":"r","__disabled":false},{"__id":"r","__disabled":true}]}`,
		"two sorted":     `{"format":"expense-keeper/v1","title":"t","headers":[{"key":"a","type":"text","display":"A","sort":"asc"},{"key":"b","type":"text","display":"B","sort":"desc"}],"data":[]}`,
	}
	for name, in := range cases {
		in := in
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(strings.NewReader(in))
			require.ErrorIs(t, err, errs.ErrInvalidArgument)
		})
	}
}

func TestDecode_TooLarge(t *testing.T) {
	t.Parallel()
	big := strings.Repeat(" ", MaxFileSize+1)
	_, err := Decode(strings.NewReader(big))
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

type boundStore struct {
	svc    *service.ExpenseServiceImpl
	caller model.Caller
}

func (s boundStore) Create(ctx context.Context, id string, m model.Mutation) (model.Expense, error) {
	return s.svc.Create(ctx, s.caller, id, m)
}
func (s boundStore) Get(ctx context.Context, id string) (model.Expense, error) {
	return s.svc.Get(ctx, s.caller, id)
}
func (s boundStore) Update(ctx context.Context, id string, m model.Mutation) (model.Expense, error) {
	return s.svc.Update(ctx, s.caller, id, m)
}
func (s boundStore) Delete(ctx context.Context, id string) error { return s.svc.Delete(ctx, s.caller, id) }
func (s boundStore) List(ctx context.Context, q model.Query) ([]model.Expense, error) {
	return s.svc.List(ctx, s.caller, q)
}

func TestImport_OverwritesContentOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	engine, err := rules.New()
	require.NoError(t, err)
	svc := service.NewExpenseService(memory.NewExpenseRepo(), engine, realtime.NewHub(), nil, service.Limits{}, nil)

	owner := model.Caller{UID: "u1", Email: "o@x.io"}
	cl, err := protocol.New(boundStore{svc: svc, caller: owner}, owner)
	require.NoError(t, err)
	doc := cl.CreateDocument(ctx, protocol.Draft{ACL: model.ACL{Viewers: []string{"v@x.io"}}}).Data

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Export(sample(), time.Now())))
	f, err := Decode(&buf)
	require.NoError(t, err)

	r := Import(ctx, cl, doc, f)
	require.True(t, r.Success, r.Error)
	require.Equal(t, "Utilities", r.Data.Title)
	require.Len(t, r.Data.Data, 2)
	require.Equal(t, doc.ID, r.Data.ID)
	require.Equal(t, []string{"v@x.io"}, r.Data.ACL.Viewers)
	require.True(t, r.Data.Modified.After(doc.Modified))
}
