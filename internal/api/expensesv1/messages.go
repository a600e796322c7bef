// Package expensesv1 is the wire contract of the expensekeeper.v1 gRPC
// service: request and response messages, the service descriptor and a
// typed client. Messages travel as JSON under the "json" content subtype.
package expensesv1

import (
	"encoding/json"
	"time"
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
}

type Header struct {
	Key     string `json:"key"`
	Type    string `json:"type"`
	Display string `json:"display"`
	Sort    string `json:"sort,omitempty"`
}

type ACL struct {
	Editors []string `json:"editors"`
	Viewers []string `json:"viewers"`
}

type Expense struct {
	ID        string           `json:"id"`
	CreatedBy string           `json:"created_by"`
	Created   time.Time        `json:"created"`
	Modified  time.Time        `json:"modified"`
	Title     string           `json:"title"`
	Headers   []Header         `json:"headers"`
	Data      []map[string]any `json:"data"`
	ACL       ACL              `json:"acl"`
}

// FieldWrite is one merge-write entry. Timestamp values travel in Time
// because JSON has no timestamp type; otherwise Value holds the JSON value.
type FieldWrite struct {
	Path  string          `json:"path"`
	Op    string          `json:"op"`
	Value json.RawMessage `json:"value,omitempty"`
	Time  *time.Time      `json:"time,omitempty"`
}

type CreateExpenseRequest struct {
	ID     string       `json:"id"`
	Writes []FieldWrite `json:"writes"`
}

type GetExpenseRequest struct {
	ID string `json:"id"`
}

type UpdateExpenseRequest struct {
	ID     string       `json:"id"`
	Writes []FieldWrite `json:"writes"`
}

type DeleteExpenseRequest struct {
	ID string `json:"id"`
}

type DeleteExpenseResponse struct{}

type ExpenseResponse struct {
	Expense Expense `json:"expense"`
}

type Clause struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value string `json:"value"`
}

type Cursor struct {
	At        time.Time `json:"at"`
	ID        string    `json:"id"`
	Inclusive bool      `json:"inclusive,omitempty"`
}

type ListExpensesRequest struct {
	Any       []Clause `json:"any"`
	OrderBy   string   `json:"order_by,omitempty"`
	Direction string   `json:"direction,omitempty"`
	Limit     int32    `json:"limit,omitempty"`
	Start     *Cursor  `json:"start,omitempty"`
}

type ListExpensesResponse struct {
	Expenses []Expense `json:"expenses"`
}

type WatchExpenseRequest struct {
	ID string `json:"id"`
}

// ExpenseSnapshot is one pushed document state; Exists is false once deleted.
type ExpenseSnapshot struct {
	Exists  bool     `json:"exists"`
	Expense *Expense `json:"expense,omitempty"`
}
