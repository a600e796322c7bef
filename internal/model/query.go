package model

import (
	"slices"
	"time"
)

// SortKey is the document timestamp a listing is ordered by.
type SortKey string

// List sort keys.
const (
	SortByCreated  SortKey = "created"
	SortByModified SortKey = "modified"
)

// Valid reports whether k is a known sort key.
func (k SortKey) Valid() bool { return k == SortByCreated || k == SortByModified }

// Filter selects which of the caller's documents a listing shows.
type Filter string

// List filters.
const (
	FilterAll    Filter = "all"
	FilterOwned  Filter = "owned"
	FilterShared Filter = "shared"
)

// Clause operators.
const (
	ClauseEq            = "=="
	ClauseArrayContains = "array-contains"
)

// Clause field paths a list query may constrain.
const (
	ClauseCreatedBy = "createdBy"
	ClauseEditors   = "acl.editors"
	ClauseViewers   = "acl.viewers"
)

// Clause is one membership predicate of a list query.
type Clause struct {
	Field string
	Op    string
	Value string
}

// Attributes returns the clause in the shape the rule engine sees.
func (c Clause) Attributes() map[string]any {
	return map[string]any{"field": c.Field, "op": c.Op, "value": c.Value}
}

// Cursor positions a page relative to a document in sort order.
type Cursor struct {
	At        time.Time
	ID        string
	Inclusive bool // startAt when true, startAfter otherwise
}

// CursorOf builds a cursor on e for the given sort key.
func CursorOf(e Expense, k SortKey, inclusive bool) Cursor {
	return Cursor{At: e.SortValue(k), ID: e.ID, Inclusive: inclusive}
}

// Query lists documents matching any of its clauses.
type Query struct {
	Any       []Clause
	OrderBy   SortKey
	Direction Direction
	Limit     int
	Start     *Cursor
}

// Matches reports whether e satisfies c.
func (c Clause) Matches(e Expense) bool {
	switch {
	case c.Field == ClauseCreatedBy && c.Op == ClauseEq:
		return e.CreatedBy == c.Value
	case c.Field == ClauseEditors && c.Op == ClauseArrayContains:
		return slices.Contains(e.ACL.Editors, c.Value)
	case c.Field == ClauseViewers && c.Op == ClauseArrayContains:
		return slices.Contains(e.ACL.Viewers, c.Value)
	}
	return false
}
