package service

import "fmt"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	// MaxPage keeps (page-1)*limit and page*limit far from int overflow.
	MaxPage = 1_000_000
)

// normalizePage clamps page and limit and returns the row offset. Pages past
// MaxPage are rejected.
func normalizePage(page, limit int) (int, int, int, error) {
	if page > MaxPage {
		return 0, 0, 0, validationError(fmt.Sprintf("page must be at most %d", MaxPage))
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit, (page - 1) * limit, nil
}

func nextPage(total, page, limit int) *int {
	if page >= MaxPage {
		return nil
	}
	if total > page*limit {
		next := page + 1
		return &next
	}
	return nil
}
