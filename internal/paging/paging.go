// Package paging computes page windows over a known item count.
package paging

import "errors"

var (
	ErrInvalidPageSize = errors.New("page size must be positive")
	ErrNegativeTotal   = errors.New("total items must not be negative")
)

// Window is the clamped page and the row range it covers.
type Window struct {
	Page       int
	TotalPages int
	Offset     int
	Limit      int
}

// Compute clamps requested into [1, max(totalPages, 1)] and returns the
// offset/limit of that page. Out-of-range requests never fail.
func Compute(totalItems, pageSize, requested int) (Window, error) {
	if pageSize <= 0 {
		return Window{}, ErrInvalidPageSize
	}
	if totalItems < 0 {
		return Window{}, ErrNegativeTotal
	}

	totalPages := 0
	if totalItems > 0 {
		totalPages = (totalItems + pageSize - 1) / pageSize
	}

	page := max(requested, 1)
	page = min(page, max(totalPages, 1))

	return Window{
		Page:       page,
		TotalPages: totalPages,
		Offset:     (page - 1) * pageSize,
		Limit:      pageSize,
	}, nil
}
