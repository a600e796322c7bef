package model

import (
	"fmt"
	"reflect"
	"strings"
)

// WriteOp is the kind of a single field write.
type WriteOp string

// Field write operations.
const (
	OpSet         WriteOp = "set"
	OpDelete      WriteOp = "delete"
	OpArrayUnion  WriteOp = "arrayUnion"
	OpArrayRemove WriteOp = "arrayRemove"
)

// FieldWrite targets one field by dotted path (at most two segments, e.g. "acl.editors").
type FieldWrite struct {
	Path  string
	Op    WriteOp
	Value any
}

// Mutation is a merge write: unmentioned fields keep their stored value.
type Mutation []FieldWrite

// Set is shorthand for an OpSet write.
func Set(path string, v any) FieldWrite { return FieldWrite{Path: path, Op: OpSet, Value: v} }

// Delete is shorthand for an OpDelete write.
func Delete(path string) FieldWrite { return FieldWrite{Path: path, Op: OpDelete} }

// ArrayUnion is shorthand for an OpArrayUnion write.
func ArrayUnion(path string, vals ...string) FieldWrite {
	return FieldWrite{Path: path, Op: OpArrayUnion, Value: vals}
}

// ArrayRemove is shorthand for an OpArrayRemove write.
func ArrayRemove(path string, vals ...string) FieldWrite {
	return FieldWrite{Path: path, Op: OpArrayRemove, Value: vals}
}

// Paths returns the distinct paths touched by m, in order.
func (m Mutation) Paths() []string {
	seen := make(map[string]bool, len(m))
	var out []string
	for _, w := range m {
		if !seen[w.Path] {
			seen[w.Path] = true
			out = append(out, w.Path)
		}
	}
	return out
}

// Apply produces the post-write document. base is not modified.
func (m Mutation) Apply(base Fields) (Fields, error) {
	out := base.Clone()
	if out == nil {
		out = Fields{}
	}
	for _, w := range m {
		if err := applyOne(out, w); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func applyOne(doc Fields, w FieldWrite) error {
	parts := strings.Split(w.Path, ".")
	if len(parts) > 2 {
		return fmt.Errorf("path %q: nesting deeper than two segments", w.Path)
	}
	for _, p := range parts {
		if p == "" {
			return fmt.Errorf("path %q: empty segment", w.Path)
		}
	}

	target := map[string]any(doc)
	leaf := parts[0]
	if len(parts) == 2 {
		parent, ok := target[parts[0]].(map[string]any)
		if !ok {
			if w.Op == OpDelete {
				return nil
			}
			parent = map[string]any{}
			target[parts[0]] = parent
		}
		target, leaf = parent, parts[1]
	}

	switch w.Op {
	case OpSet:
		target[leaf] = Normalize(w.Value)
	case OpDelete:
		delete(target, leaf)
	case OpArrayUnion, OpArrayRemove:
		vals, ok := Normalize(w.Value).([]any)
		if !ok {
			return fmt.Errorf("path %q: %s needs a list value, got %T", w.Path, w.Op, w.Value)
		}
		cur, _ := target[leaf].([]any)
		if w.Op == OpArrayUnion {
			target[leaf] = unionValues(cur, vals)
		} else {
			target[leaf] = removeValues(cur, vals)
		}
	default:
		return fmt.Errorf("path %q: unknown op %q", w.Path, w.Op)
	}
	return nil
}

// unionValues appends each value not already present, keeping order.
func unionValues(cur, vals []any) []any {
	out := make([]any, 0, len(cur)+len(vals))
	out = append(out, cur...)
	for _, v := range vals {
		if !containsValue(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// removeValues drops every occurrence of each value.
func removeValues(cur, vals []any) []any {
	out := make([]any, 0, len(cur))
	for _, v := range cur {
		if !containsValue(vals, v) {
			out = append(out, v)
		}
	}
	return out
}

func containsValue(list []any, v any) bool {
	for _, x := range list {
		if reflect.DeepEqual(x, v) {
			return true
		}
	}
	return false
}

// UnionStrings returns set with each of add appended unless already present.
func UnionStrings(set []string, add ...string) []string {
	out := append([]string(nil), set...)
	for _, a := range add {
		found := false
		for _, s := range out {
			if s == a {
				found = true
				break
			}
		}
		if !found {
			out = append(out, a)
		}
	}
	return out
}

// RemoveStrings returns set without any occurrence of drop.
func RemoveStrings(set []string, drop ...string) []string {
	out := make([]string, 0, len(set))
outer:
	for _, s := range set {
		for _, d := range drop {
			if s == d {
				continue outer
			}
		}
		out = append(out, s)
	}
	return out
}
