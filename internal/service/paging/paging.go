// Package paging normalises page requests and shapes paged results.
package paging

// Request is a 1-based page request.
type Request struct {
	Page    int
	PerPage int
}

// Normalize clamps the request: page defaults to 1, per_page to def and never exceeds max.
func (r Request) Normalize(def, max int) Request {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PerPage < 1 {
		r.PerPage = def
	}
	if max > 0 && r.PerPage > max {
		r.PerPage = max
	}
	return r
}

// Offset returns the number of rows to skip.
func (r Request) Offset() int {
	if r.Page < 1 || r.PerPage < 1 {
		return 0
	}
	return (r.Page - 1) * r.PerPage
}

// Result is one page of items plus the unpaged total.
type Result[T any] struct {
	Items   []T
	Total   int
	Page    int
	PerPage int
}

// NewResult builds a Result for req.
func NewResult[T any](items []T, total int, req Request) Result[T] {
	if items == nil {
		items = []T{}
	}
	return Result[T]{Items: items, Total: total, Page: req.Page, PerPage: req.PerPage}
}

// Pages returns the number of pages needed for Total.
func (r Result[T]) Pages() int {
	if r.PerPage <= 0 {
		return 0
	}
	return (r.Total + r.PerPage - 1) / r.PerPage
}

// HasNext reports whether a later page exists.
func (r Result[T]) HasNext() bool {
	return r.Page < r.Pages()
}
