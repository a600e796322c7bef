package protocol

import (
	"fmt"

	"github.com/and161185/expense-keeper/internal/errs"
	"github.com/and161185/expense-keeper/internal/model"
)

// PageSize is the number of documents per listing page.
const PageSize = 10

// SortState is the listing order picked by the user.
type SortState struct {
	Key       model.SortKey
	Direction model.Direction
}

// DefaultSort orders by last modification, oldest first.
var DefaultSort = SortState{Key: model.SortByModified, Direction: model.Asc}

// Select picks key: the same key flips the direction, a new key starts ascending.
func (s SortState) Select(key model.SortKey) SortState {
	if key == s.Key {
		if s.Direction == model.Asc {
			return SortState{Key: key, Direction: model.Desc}
		}
		return SortState{Key: key, Direction: model.Asc}
	}
	return SortState{Key: key, Direction: model.Asc}
}

// Clauses returns the membership disjunction for filter f.
func Clauses(c model.Caller, f model.Filter) ([]model.Clause, error) {
	owned := model.Clause{Field: model.ClauseCreatedBy, Op: model.ClauseEq, Value: c.UID}
	editor := model.Clause{Field: model.ClauseEditors, Op: model.ClauseArrayContains, Value: c.Email}
	viewer := model.Clause{Field: model.ClauseViewers, Op: model.ClauseArrayContains, Value: c.Email}
	switch f {
	case model.FilterOwned:
		return []model.Clause{owned}, nil
	case model.FilterShared:
		return []model.Clause{editor, viewer}, nil
	case model.FilterAll, "":
		return []model.Clause{owned, editor, viewer}, nil
	}
	return nil, fmt.Errorf("filter %q: %w", f, errs.ErrInvalidArgument)
}

// ListQuery builds one page query for caller.
func ListQuery(c model.Caller, f model.Filter, s SortState, start *model.Cursor) (model.Query, error) {
	if !c.Authenticated() || c.Email == "" {
		return model.Query{}, errs.ErrUnauthenticated
	}
	clauses, err := Clauses(c, f)
	if err != nil {
		return model.Query{}, err
	}
	if !s.Key.Valid() {
		return model.Query{}, fmt.Errorf("sort key %q: %w", s.Key, errs.ErrInvalidArgument)
	}
	if s.Direction == model.Unsorted {
		s.Direction = model.Asc
	}
	return model.Query{Any: clauses, OrderBy: s.Key, Direction: s.Direction, Limit: PageSize, Start: start}, nil
}
