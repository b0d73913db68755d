package query

import "context"

// Paging bounds.
const (
	DefaultLimit = 10
	MaxLimit     = 100
	maxPage      = 1 << 24
)

// Page is a 1-based page request.
type Page struct {
	Page  int `query:"page" json:"page"`
	Limit int `query:"limit" json:"limit"`
}

// Normalize applies defaults and clamps to page >= 1 and 1 <= limit <= 100.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > maxPage {
		p.Page = maxPage
	}
	switch {
	case p.Limit <= 0:
		p.Limit = DefaultLimit
	case p.Limit > MaxLimit:
		p.Limit = MaxLimit
	}
	return p
}

// Offset is the number of rows skipped before this page.
func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

// Window is the skip/take pair handed to a Source.
type Window struct {
	Offset int
	Limit  int
}

// Meta is the pagination metadata of a listing response.
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

// Result is the {data, meta} envelope.
type Result[T any] struct {
	Data []T `json:"data"`
	Meta Meta `json:"meta"`
}

// Source counts and fetches rows matching a predicate, ordered by Order.
type Source[T any] interface {
	Count(ctx context.Context, p Predicate) (int64, error)
	Fetch(ctx context.Context, p Predicate, w Window) ([]T, error)
}

// Run counts the matching rows, then fetches one page of them. A page past
// the end yields empty data with the real total.
func Run[T any](ctx context.Context, src Source[T], p Predicate, page Page) (Result[T], error) {
	page = page.Normalize()
	total, err := src.Count(ctx, p)
	if err != nil {
		return Result[T]{}, err
	}
	res := Result[T]{
		Data: []T{},
		Meta: Meta{
			Total:      total,
			Page:       page.Page,
			Limit:      page.Limit,
			TotalPages: int((total + int64(page.Limit) - 1) / int64(page.Limit)),
		},
	}
	if int64(page.Offset()) >= total {
		return res, nil
	}
	rows, err := src.Fetch(ctx, p, Window{Offset: page.Offset(), Limit: page.Limit})
	if err != nil {
		return Result[T]{}, err
	}
	if rows != nil {
		res.Data = rows
	}
	return res, nil
}
