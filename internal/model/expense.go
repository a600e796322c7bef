package model

import (
	"slices"
	"time"
)

// ColumnType is the declared value kind of a table column.
type ColumnType string

// Supported column types.
const (
	ColumnText     ColumnType = "text"
	ColumnCheckbox ColumnType = "checkbox"
	ColumnNumber   ColumnType = "number"
	ColumnDate     ColumnType = "date"
)

// Valid reports whether t is a known column type.
func (t ColumnType) Valid() bool {
	switch t {
	case ColumnText, ColumnCheckbox, ColumnNumber, ColumnDate:
		return true
	}
	return false
}

// Direction is a sort direction. The empty value means "not sorted".
type Direction string

// Sort directions.
const (
	Unsorted Direction = ""
	Asc      Direction = "asc"
	Desc     Direction = "desc"
)

// Header describes one column of an expense table.
type Header struct {
	Key     string     `json:"key"`
	Type    ColumnType `json:"type"`
	Display string     `json:"display"`
	Sort    Direction  `json:"sort,omitempty"`
}

// Reserved row keys.
const (
	RowIDKey       = "__id"
	RowDisabledKey = "__disabled"
)

// Row is one table row keyed by header key plus the reserved row keys.
type Row map[string]any

// ID returns the row's stable identifier, or "" when absent.
func (r Row) ID() string {
	s, _ := r[RowIDKey].(string)
	return s
}

// Disabled reports whether the row is excluded from totals.
func (r Row) Disabled() bool {
	b, _ := r[RowDisabledKey].(bool)
	return b
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ACL lists collaborator emails per role.
type ACL struct {
	Editors []string `json:"editors"`
	Viewers []string `json:"viewers"`
}

// Expense is a shared expense document.
type Expense struct {
	ID        string    `json:"id"`
	CreatedBy string    `json:"createdBy"`
	Created   time.Time `json:"created"`
	Modified  time.Time `json:"modified"`
	Title     string    `json:"title"`
	Headers   []Header  `json:"headers"`
	Data      []Row     `json:"data"`
	ACL       ACL       `json:"acl"`
}

// Role is the relationship between a caller and a document.
type Role string

// Roles, strongest first.
const (
	RoleNone   Role = ""
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// RoleOf returns the strongest role c holds on e.
func RoleOf(e Expense, c Caller) Role {
	switch {
	case !c.Authenticated():
		return RoleNone
	case e.CreatedBy == c.UID:
		return RoleOwner
	case c.Email != "" && slices.Contains(e.ACL.Editors, c.Email):
		return RoleEditor
	case c.Email != "" && slices.Contains(e.ACL.Viewers, c.Email):
		return RoleViewer
	}
	return RoleNone
}

// CanEdit reports whether r may modify document content and the ACL.
func (r Role) CanEdit() bool { return r == RoleOwner || r == RoleEditor }

// CanDelete reports whether r may delete the document.
func (r Role) CanDelete() bool { return r == RoleOwner }

// SortValue returns the value of the list sort key for cursor construction.
func (e Expense) SortValue(k SortKey) time.Time {
	if k == SortByCreated {
		return e.Created
	}
	return e.Modified
}

// Clone returns a deep copy of e.
func (e Expense) Clone() Expense {
	out := e
	out.Headers = slices.Clone(e.Headers)
	out.Data = make([]Row, len(e.Data))
	for i, r := range e.Data {
		out.Data[i] = r.Clone()
	}
	out.ACL = ACL{Editors: slices.Clone(e.ACL.Editors), Viewers: slices.Clone(e.ACL.Viewers)}
	return out
}
