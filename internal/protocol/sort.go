package protocol

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/and161185/expense-keeper/internal/errs"
	"github.com/and161185/expense-keeper/internal/model"
)

// NextDirection cycles a column through ascending, descending and unsorted.
func NextDirection(d model.Direction) model.Direction {
	switch d {
	case model.Unsorted:
		return model.Asc
	case model.Asc:
		return model.Desc
	default:
		return model.Unsorted
	}
}

// ToggleSort advances the sort state of column key, clears every other
// column's sort and persists the re-ordered rows with the headers.
func (c *Client) ToggleSort(ctx context.Context, doc model.Expense, key string) Result[model.Expense] {
	headers, rows, err := Toggled(doc, key)
	if err != nil {
		return fail[model.Expense](err)
	}
	return c.update(ctx, "sort", doc,
		model.Set(model.FieldHeaders, headers),
		model.Set(model.FieldData, rows),
	)
}

// Toggled computes the headers and rows ToggleSort writes.
func Toggled(doc model.Expense, key string) ([]model.Header, []model.Row, error) {
	idx := slices.IndexFunc(doc.Headers, func(h model.Header) bool { return h.Key == key })
	if idx < 0 {
		return nil, nil, fmt.Errorf("column %q: %w", key, errs.ErrInvalidArgument)
	}
	headers := slices.Clone(doc.Headers)
	dir := NextDirection(headers[idx].Sort)
	for i := range headers {
		headers[i].Sort = model.Unsorted
	}
	headers[idx].Sort = dir

	rows := make([]model.Row, len(doc.Data))
	for i, r := range doc.Data {
		rows[i] = r.Clone()
	}
	if dir != model.Unsorted {
		SortRows(rows, headers[idx], dir)
	}
	return headers, rows, nil
}

// SortRows orders rows by column h. Rows missing a value go last in both
// directions; ties keep their relative order.
func SortRows(rows []model.Row, h model.Header, dir model.Direction) {
	cmp := comparer(h.Type)
	slices.SortStableFunc(rows, func(a, b model.Row) int {
		av, aok := sortable(a[h.Key])
		bv, bok := sortable(b[h.Key])
		switch {
		case !aok && !bok:
			return 0
		case !aok:
			return 1
		case !bok:
			return -1
		}
		c := cmp(av, bv)
		if dir == model.Desc {
			return -c
		}
		return c
	})
}

func sortable(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case string:
		return t, strings.TrimSpace(t) != ""
	}
	return v, true
}

func comparer(t model.ColumnType) func(a, b any) int {
	switch t {
	case model.ColumnNumber:
		return func(a, b any) int {
			x, xerr := toDecimal(a)
			y, yerr := toDecimal(b)
			switch {
			case xerr != nil && yerr != nil:
				return 0
			case xerr != nil:
				return 1
			case yerr != nil:
				return -1
			}
			return x.Cmp(y)
		}
	case model.ColumnCheckbox:
		return func(a, b any) int {
			x, y := truthy(a), truthy(b)
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	case model.ColumnDate:
		return func(a, b any) int { return strings.Compare(dateString(a), dateString(b)) }
	default:
		// a collator is not safe for concurrent use; one per sort
		col := collate.New(language.English, collate.IgnoreCase)
		return func(a, b any) int { return col.CompareString(fmt.Sprint(a), fmt.Sprint(b)) }
	}
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case string:
		s := strings.TrimSpace(strings.NewReplacer("$", "", ",", "").Replace(t))
		return decimal.NewFromString(s)
	}
	return decimal.Zero, fmt.Errorf("not a number: %T", v)
}

func truthy(v any) bool {
	b, _ := v.(bool)
	return b
}

func dateString(v any) string {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}
