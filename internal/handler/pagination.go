// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import "net/http"

// List defaults shared by the public and admin endpoints.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Pagination describes one page of a list response.
type Pagination struct {
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Total   int64 `json:"total"`
	Pages   int   `json:"pages"`
}

// ParsePagination reads page and per_page from the request.
func ParsePagination(r *http.Request) Pagination {
	return Pagination{
		Page:    ParsePageParam(r),
		PerPage: ParsePerPageParam(r, DefaultPerPage, MaxPerPage),
	}
}

// WithTotal returns p with Total set and Pages computed.
func (p Pagination) WithTotal(total int64) Pagination {
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	p.Total = total
	p.Pages = int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	if p.Pages < 1 {
		p.Pages = 1
	}
	return p
}

// Limit returns the page size as a query limit.
func (p Pagination) Limit() int64 {
	return int64(p.PerPage)
}

// Offset returns the number of rows skipped before this page.
func (p Pagination) Offset() int64 {
	if p.Page < 1 {
		return 0
	}
	return int64(p.Page-1) * int64(p.PerPage)
}

// HasNext reports whether another page follows.
func (p Pagination) HasNext() bool {
	return p.Page < p.Pages
}

// ListAndCount executes list and count queries, returning combined results.
func ListAndCount[T any](
	listFn func() ([]T, error),
	countFn func() (int64, error),
) ([]T, int64, error) {
	items, err := listFn()
	if err != nil {
		return nil, 0, err
	}
	total, err := countFn()
	return items, total, err
}
