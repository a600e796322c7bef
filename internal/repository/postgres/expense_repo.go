package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/and161185/expense-keeper/internal/errs"
	"github.com/and161185/expense-keeper/internal/model"
	"github.com/jackc/pgx/v5"
)

// ExpenseRepo implements ExpenseRepository using PostgreSQL.
type ExpenseRepo struct{ db *DB }

// NewExpenseRepo constructs an expense repository.
func NewExpenseRepo(db *DB) *ExpenseRepo { return &ExpenseRepo{db: db} }

const expenseColumns = `id, created_by, created, modified, title, headers, data, editors, viewers`

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(row scanner) (model.Expense, error) {
	var e model.Expense
	var headers, data []byte
	if err := row.Scan(&e.ID, &e.CreatedBy, &e.Created, &e.Modified, &e.Title,
		&headers, &data, &e.ACL.Editors, &e.ACL.Viewers); err != nil {
		return e, err
	}
	if err := json.Unmarshal(headers, &e.Headers); err != nil {
		return e, fmt.Errorf("decode headers: %w", err)
	}
	if err := json.Unmarshal(data, &e.Data); err != nil {
		return e, fmt.Errorf("decode data: %w", err)
	}
	e.Created, e.Modified = e.Created.UTC(), e.Modified.UTC()
	return e, nil
}

func encodeContent(e model.Expense) (headers, data []byte, err error) {
	if headers, err = json.Marshal(nonNilHeaders(e.Headers)); err != nil {
		return nil, nil, err
	}
	if data, err = json.Marshal(nonNilRows(e.Data)); err != nil {
		return nil, nil, err
	}
	return headers, data, nil
}

func nonNilHeaders(h []model.Header) []model.Header {
	if h == nil {
		return []model.Header{}
	}
	return h
}

func nonNilRows(r []model.Row) []model.Row {
	if r == nil {
		return []model.Row{}
	}
	return r
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Create inserts a new document row.
func (r *ExpenseRepo) Create(ctx context.Context, e model.Expense) error {
	headers, data, err := encodeContent(e)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO expenses (id, created_by, created, modified, title, headers, data, editors, viewers)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = r.db.Pool.Exec(ctx, q, e.ID, e.CreatedBy, e.Created, e.Modified, e.Title,
		headers, data, nonNilStrings(e.ACL.Editors), nonNilStrings(e.ACL.Viewers))
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// Get selects a document by id.
func (r *ExpenseRepo) Get(ctx context.Context, id string) (*model.Expense, error) {
	q := `SELECT ` + expenseColumns + ` FROM expenses WHERE id=$1`
	e, err := scanExpense(r.db.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// lockExpense selects id for update inside tx.
func lockExpense(ctx context.Context, tx pgx.Tx, id string) (model.Expense, error) {
	sel := `SELECT ` + expenseColumns + ` FROM expenses WHERE id=$1 FOR UPDATE`
	cur, err := scanExpense(tx.QueryRow(ctx, sel, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Expense{}, errs.ErrNotFound
	}
	return cur, err
}

// Update locks the row, applies fn and writes the mutable columns back.
func (r *ExpenseRepo) Update(
	ctx context.Context, id string, fn func(cur model.Expense) (model.Expense, error),
) (model.Expense, error) {
	var next model.Expense
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		cur, err := lockExpense(ctx, tx, id)
		if err != nil {
			return err
		}
		if next, err = fn(cur); err != nil {
			return err
		}
		headers, data, err := encodeContent(next)
		if err != nil {
			return err
		}
		const upd = `
UPDATE expenses
SET modified=$2, title=$3, headers=$4, data=$5, editors=$6, viewers=$7
WHERE id=$1`
		if _, err := tx.Exec(ctx, upd, id, next.Modified, next.Title, headers, data,
			nonNilStrings(next.ACL.Editors), nonNilStrings(next.ACL.Viewers)); err != nil {
			return err
		}
		next.ID, next.CreatedBy, next.Created = cur.ID, cur.CreatedBy, cur.Created
		return nil
	})
	if err != nil {
		return model.Expense{}, err
	}
	return next, nil
}

// Delete locks the row, runs check and removes it.
func (r *ExpenseRepo) Delete(ctx context.Context, id string, check func(cur model.Expense) error) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		cur, err := lockExpense(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := check(cur); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM expenses WHERE id=$1`, id)
		return err
	})
}

// List runs a keyset-paginated query over the documents matching any clause.
func (r *ExpenseRepo) List(ctx context.Context, q model.Query) ([]model.Expense, error) {
	sql, args, err := listSQL(q)
	if err != nil {
		return nil, err
	}
	if sql == "" {
		return nil, nil
	}
	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// listSQL renders q. An empty clause set yields an empty statement.
func listSQL(q model.Query) (string, []any, error) {
	if len(q.Any) == 0 {
		return "", nil, nil
	}
	var sb strings.Builder
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	sb.WriteString(`SELECT ` + expenseColumns + ` FROM expenses WHERE (`)
	for i, c := range q.Any {
		if i > 0 {
			sb.WriteString(" OR ")
		}
		switch {
		case c.Field == model.ClauseCreatedBy && c.Op == model.ClauseEq:
			sb.WriteString("created_by = " + arg(c.Value))
		case c.Field == model.ClauseEditors && c.Op == model.ClauseArrayContains:
			sb.WriteString(arg(c.Value) + " = ANY(editors)")
		case c.Field == model.ClauseViewers && c.Op == model.ClauseArrayContains:
			sb.WriteString(arg(c.Value) + " = ANY(viewers)")
		default:
			return "", nil, fmt.Errorf("clause %s %s: %w", c.Field, c.Op, errs.ErrInvalidArgument)
		}
	}
	sb.WriteString(")")

	col := "modified"
	if q.OrderBy == model.SortByCreated {
		col = "created"
	}
	dir := "ASC"
	cmp := ">"
	if q.Direction == model.Desc {
		dir, cmp = "DESC", "<"
	}
	if q.Start != nil {
		if q.Start.Inclusive {
			cmp += "="
		}
		fmt.Fprintf(&sb, " AND (%s, id) %s (%s, %s)", col, cmp, arg(q.Start.At), arg(q.Start.ID))
	}
	fmt.Fprintf(&sb, " ORDER BY %s %s, id %s", col, dir, dir)
	if q.Limit > 0 {
		sb.WriteString(" LIMIT " + arg(q.Limit))
	}
	return sb.String(), args, nil
}
