package model

import (
	"fmt"
	"slices"
	"sort"
	"time"
)

// Top-level document field names.
const (
	FieldID        = "id"
	FieldCreatedBy = "createdBy"
	FieldCreated   = "created"
	FieldModified  = "modified"
	FieldTitle     = "title"
	FieldHeaders   = "headers"
	FieldData      = "data"
	FieldACL       = "acl"

	ACLEditors = "editors"
	ACLViewers = "viewers"
)

// AllowedFields is the closed set of top-level fields a stored document may carry.
var AllowedFields = []string{
	FieldID, FieldCreatedBy, FieldCreated, FieldModified,
	FieldTitle, FieldHeaders, FieldData, FieldACL,
}

// Fields is the untyped document representation that writes are applied to
// and that the rule engine evaluates. Values are JSON-like: nil, bool,
// float64, string, time.Time, []any and map[string]any.
type Fields map[string]any

// Keys returns the sorted top-level keys.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone deep-copies maps and slices.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	return Fields(cloneValue(map[string]any(f)).(map[string]any))
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = cloneValue(x)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = cloneValue(x)
		}
		return out
	default:
		return v
	}
}

// TimePrecision is the timestamp resolution of the document store.
const TimePrecision = time.Microsecond

// Normalize converts Go-typed values into the JSON-like shapes Fields holds.
// Timestamps are cut to TimePrecision so rules compare what gets stored.
func Normalize(v any) any {
	switch t := v.(type) {
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = Normalize(x)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = Normalize(x)
		}
		return out
	case Row:
		return Normalize(map[string]any(t))
	case []Row:
		return RowsValue(t)
	case []Header:
		return HeadersValue(t)
	case Fields:
		return Normalize(map[string]any(t))
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	case time.Time:
		return t.UTC().Truncate(TimePrecision)
	default:
		return v
	}
}

// HeadersValue renders headers as a field value.
func HeadersValue(hs []Header) []any {
	out := make([]any, len(hs))
	for i, h := range hs {
		m := map[string]any{"key": h.Key, "type": string(h.Type), "display": h.Display}
		if h.Sort != Unsorted {
			m["sort"] = string(h.Sort)
		}
		out[i] = m
	}
	return out
}

// RowsValue renders rows as a field value.
func RowsValue(rows []Row) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		m := make(map[string]any, len(r))
		for k, v := range r {
			m[k] = Normalize(v)
		}
		out[i] = m
	}
	return out
}

// ACLValue renders an ACL as a field value.
func ACLValue(a ACL) map[string]any {
	return map[string]any{
		ACLEditors: Normalize(nonNil(a.Editors)),
		ACLViewers: Normalize(nonNil(a.Viewers)),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Fields renders the document as untyped fields.
func (e Expense) Fields() Fields {
	return Fields{
		FieldID:        e.ID,
		FieldCreatedBy: e.CreatedBy,
		FieldCreated:   Normalize(e.Created),
		FieldModified:  Normalize(e.Modified),
		FieldTitle:     e.Title,
		FieldHeaders:   HeadersValue(e.Headers),
		FieldData:      RowsValue(e.Data),
		FieldACL:       ACLValue(e.ACL),
	}
}

// ExpenseFromFields converts untyped fields back into a document. Row
// contents are kept as-is; everything else must have the declared type.
func ExpenseFromFields(f Fields) (Expense, error) {
	var e Expense
	var err error
	if e.ID, err = stringField(f, FieldID); err != nil {
		return e, err
	}
	if e.CreatedBy, err = stringField(f, FieldCreatedBy); err != nil {
		return e, err
	}
	if e.Title, err = stringField(f, FieldTitle); err != nil {
		return e, err
	}
	if e.Created, err = timeField(f, FieldCreated); err != nil {
		return e, err
	}
	if e.Modified, err = timeField(f, FieldModified); err != nil {
		return e, err
	}
	if e.Headers, err = headersFromValue(f[FieldHeaders]); err != nil {
		return e, err
	}
	if e.Data, err = rowsFromValue(f[FieldData]); err != nil {
		return e, err
	}
	acl, ok := f[FieldACL].(map[string]any)
	if !ok {
		return e, fmt.Errorf("field %q: want map, got %T", FieldACL, f[FieldACL])
	}
	if e.ACL.Editors, err = stringList(acl[ACLEditors]); err != nil {
		return e, fmt.Errorf("acl.editors: %w", err)
	}
	if e.ACL.Viewers, err = stringList(acl[ACLViewers]); err != nil {
		return e, fmt.Errorf("acl.viewers: %w", err)
	}
	return e, nil
}

func stringField(f Fields, key string) (string, error) {
	s, ok := f[key].(string)
	if !ok {
		return "", fmt.Errorf("field %q: want string, got %T", key, f[key])
	}
	return s, nil
}

func timeField(f Fields, key string) (time.Time, error) {
	t, ok := f[key].(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("field %q: want timestamp, got %T", key, f[key])
	}
	return t, nil
}

func headersFromValue(v any) ([]Header, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("field %q: want list, got %T", FieldHeaders, v)
	}
	out := make([]Header, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("headers[%d]: want map, got %T", i, item)
		}
		var h Header
		var okKey, okType, okDisplay bool
		h.Key, okKey = m["key"].(string)
		typ, okType := m["type"].(string)
		h.Display, okDisplay = m["display"].(string)
		if !okKey || !okType || !okDisplay {
			return nil, fmt.Errorf("headers[%d]: key, type and display must be strings", i)
		}
		h.Type = ColumnType(typ)
		if s, present := m["sort"]; present && s != nil {
			dir, ok := s.(string)
			if !ok || (Direction(dir) != Asc && Direction(dir) != Desc && dir != "") {
				return nil, fmt.Errorf("headers[%d]: bad sort %v", i, s)
			}
			h.Sort = Direction(dir)
		}
		out = append(out, h)
	}
	return out, nil
}

func rowsFromValue(v any) ([]Row, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("field %q: want list, got %T", FieldData, v)
	}
	out := make([]Row, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("data[%d]: want map, got %T", i, item)
		}
		out = append(out, Row(cloneValue(m).(map[string]any)))
	}
	return out, nil
}

func stringList(v any) ([]string, error) {
	switch t := v.(type) {
	case []string:
		return slices.Clone(t), nil
	case []any:
		out := make([]string, 0, len(t))
		for _, x := range t {
			s, ok := x.(string)
			if !ok {
				return nil, fmt.Errorf("want string element, got %T", x)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("want list, got %T", v)
	}
}
