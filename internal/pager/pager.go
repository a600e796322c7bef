// Package pager walks a caller's document listing one page at a time with
// cursors. It keeps the first document of every page it has left behind so
// Previous can restart there, and prefetches the following page so HasNext
// is known without another round trip.
package pager

import (
	"context"

	"github.com/and161185/expense-keeper/internal/model"
	"github.com/and161185/expense-keeper/internal/protocol"
)

// Lister runs one list query.
type Lister interface {
	List(ctx context.Context, q model.Query) ([]model.Expense, error)
}

// Pager is not safe for concurrent use.
type Pager struct {
	store  Lister
	caller model.Caller
	filter model.Filter
	sort   protocol.SortState

	starts  []model.Expense // first document of each earlier page
	current []model.Expense
	next    []model.Expense
}

// New returns a pager over every document caller can see, ordered by
// modification time. Call Reset to load the first page.
func New(store Lister, caller model.Caller) *Pager {
	return &Pager{store: store, caller: caller, filter: model.FilterAll, sort: protocol.DefaultSort}
}

// Documents returns the current page.
func (p *Pager) Documents() []model.Expense { return p.current }

// Filter returns the active filter.
func (p *Pager) Filter() model.Filter { return p.filter }

// Sort returns the active order.
func (p *Pager) Sort() protocol.SortState { return p.sort }

// HasPrevious reports whether an earlier page exists.
func (p *Pager) HasPrevious() bool { return len(p.starts) > 0 }

// HasNext reports whether the current page is full and the prefetched page is not empty.
func (p *Pager) HasNext() bool {
	return len(p.current) == protocol.PageSize && len(p.next) > 0
}

// Page returns the 1-based number of the current page.
func (p *Pager) Page() int { return len(p.starts) + 1 }

func (p *Pager) fetch(ctx context.Context, start *model.Cursor) ([]model.Expense, error) {
	q, err := protocol.ListQuery(p.caller, p.filter, p.sort, start)
	if err != nil {
		return nil, err
	}
	return p.store.List(ctx, q)
}

// prefetch loads the page after the current one when the current one is full.
func (p *Pager) prefetch(ctx context.Context) error {
	p.next = nil
	if len(p.current) < protocol.PageSize {
		return nil
	}
	last := p.current[len(p.current)-1]
	c := model.CursorOf(last, p.sort.Key, false)
	next, err := p.fetch(ctx, &c)
	if err != nil {
		return err
	}
	p.next = next
	return nil
}

// Reset drops the page history and loads the first page.
func (p *Pager) Reset(ctx context.Context) error {
	p.starts, p.current, p.next = nil, nil, nil
	cur, err := p.fetch(ctx, nil)
	if err != nil {
		return err
	}
	p.current = cur
	return p.prefetch(ctx)
}

// SetFilter switches the filter and reloads from the first page.
func (p *Pager) SetFilter(ctx context.Context, f model.Filter) error {
	p.filter = f
	return p.Reset(ctx)
}

// SelectSort applies SortState.Select and reloads from the first page.
func (p *Pager) SelectSort(ctx context.Context, key model.SortKey) error {
	p.sort = p.sort.Select(key)
	return p.Reset(ctx)
}

// Next moves to the prefetched page. It is a no-op when HasNext is false.
func (p *Pager) Next(ctx context.Context) error {
	if !p.HasNext() {
		return nil
	}
	p.starts = append(p.starts, p.current[0])
	p.current, p.next = p.next, nil
	return p.prefetch(ctx)
}

// Previous reloads the page starting at the remembered boundary. It is a
// no-op on the first page.
func (p *Pager) Previous(ctx context.Context) error {
	if !p.HasPrevious() {
		return nil
	}
	first := p.starts[len(p.starts)-1]
	c := model.CursorOf(first, p.sort.Key, true)
	prev, err := p.fetch(ctx, &c)
	if err != nil {
		return err
	}
	p.starts = p.starts[:len(p.starts)-1]
	p.next, p.current = p.current, prev
	return nil
}
