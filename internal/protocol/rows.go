package protocol

import (
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/and161185/expense-keeper/internal/errs"
	"github.com/and161185/expense-keeper/internal/model"
)

func cloneRows(rows []model.Row) []model.Row {
	out := make([]model.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

func rowIndex(rows []model.Row, id string) int {
	return slices.IndexFunc(rows, func(r model.Row) bool { return r.ID() == id })
}

// AddRow appends an enabled row with a fresh id and an empty value per column.
func (c *Client) AddRow(ctx context.Context, doc model.Expense, values model.Row) Result[model.Expense] {
	row := model.Row{model.RowIDKey: c.newID(), model.RowDisabledKey: false}
	for _, h := range doc.Headers {
		row[h.Key] = emptyValue(h.Type)
	}
	for k, v := range values {
		if k != model.RowIDKey {
			row[k] = v
		}
	}
	rows := append(cloneRows(doc.Data), row)
	return c.update(ctx, "add row", doc, model.Set(model.FieldData, rows))
}

func emptyValue(t model.ColumnType) any {
	if t == model.ColumnCheckbox {
		return false
	}
	return ""
}

// SetCell writes one cell of row rowID.
func (c *Client) SetCell(ctx context.Context, doc model.Expense, rowID, key string, value any) Result[model.Expense] {
	if key == model.RowIDKey {
		return fail[model.Expense](fmt.Errorf("row id is immutable: %w", errs.ErrInvalidArgument))
	}
	rows := cloneRows(doc.Data)
	i := rowIndex(rows, rowID)
	if i < 0 {
		return fail[model.Expense](fmt.Errorf("row %q: %w", rowID, errs.ErrNotFound))
	}
	rows[i][key] = value
	return c.update(ctx, "set cell", doc, model.Set(model.FieldData, rows))
}

// SetRowDisabled enables or disables a row. Disabled rows are left out of totals.
func (c *Client) SetRowDisabled(ctx context.Context, doc model.Expense, rowID string, disabled bool) Result[model.Expense] {
	return c.SetCell(ctx, doc, rowID, model.RowDisabledKey, disabled)
}

// DeleteRow drops row rowID.
func (c *Client) DeleteRow(ctx context.Context, doc model.Expense, rowID string) Result[model.Expense] {
	rows := cloneRows(doc.Data)
	i := rowIndex(rows, rowID)
	if i < 0 {
		return fail[model.Expense](fmt.Errorf("row %q: %w", rowID, errs.ErrNotFound))
	}
	rows = slices.Delete(rows, i, i+1)
	return c.update(ctx, "delete row", doc, model.Set(model.FieldData, rows))
}

// AddColumn appends h and fills it with empty values in every row.
func (c *Client) AddColumn(ctx context.Context, doc model.Expense, h model.Header) Result[model.Expense] {
	switch {
	case h.Key == "" || h.Key == model.RowIDKey || h.Key == model.RowDisabledKey:
		return fail[model.Expense](fmt.Errorf("column key %q: %w", h.Key, errs.ErrInvalidArgument))
	case !h.Type.Valid():
		return fail[model.Expense](fmt.Errorf("column type %q: %w", h.Type, errs.ErrInvalidArgument))
	case slices.ContainsFunc(doc.Headers, func(x model.Header) bool { return x.Key == h.Key }):
		return fail[model.Expense](fmt.Errorf("column %q: %w", h.Key, errs.ErrAlreadyExists))
	}
	h.Sort = model.Unsorted
	headers := append(slices.Clone(doc.Headers), h)
	rows := cloneRows(doc.Data)
	for _, r := range rows {
		if _, set := r[h.Key]; !set {
			r[h.Key] = emptyValue(h.Type)
		}
	}
	return c.update(ctx, "add column", doc,
		model.Set(model.FieldHeaders, headers),
		model.Set(model.FieldData, rows),
	)
}

// RenameColumn changes the display name of column key.
func (c *Client) RenameColumn(ctx context.Context, doc model.Expense, key, display string) Result[model.Expense] {
	headers := slices.Clone(doc.Headers)
	i := slices.IndexFunc(headers, func(h model.Header) bool { return h.Key == key })
	if i < 0 {
		return fail[model.Expense](fmt.Errorf("column %q: %w", key, errs.ErrNotFound))
	}
	headers[i].Display = display
	return c.update(ctx, "rename column", doc, model.Set(model.FieldHeaders, headers))
}

// RemoveColumn drops column key and its cells.
func (c *Client) RemoveColumn(ctx context.Context, doc model.Expense, key string) Result[model.Expense] {
	i := slices.IndexFunc(doc.Headers, func(h model.Header) bool { return h.Key == key })
	if i < 0 {
		return fail[model.Expense](fmt.Errorf("column %q: %w", key, errs.ErrNotFound))
	}
	headers := slices.Delete(slices.Clone(doc.Headers), i, i+1)
	rows := cloneRows(doc.Data)
	for _, r := range rows {
		delete(r, key)
	}
	return c.update(ctx, "remove column", doc,
		model.Set(model.FieldHeaders, headers),
		model.Set(model.FieldData, rows),
	)
}

// Totals sums every number column over the enabled rows. Cells that do not
// parse as numbers are skipped.
func Totals(doc model.Expense) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, h := range doc.Headers {
		if h.Type != model.ColumnNumber {
			continue
		}
		sum := decimal.Zero
		for _, r := range doc.Data {
			if r.Disabled() {
				continue
			}
			if v, ok := sortable(r[h.Key]); ok {
				if d, err := toDecimal(v); err == nil {
					sum = sum.Add(d)
				}
			}
		}
		out[h.Key] = sum
	}
	return out
}
