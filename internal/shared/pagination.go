package shared

import "math"

// AllowedPageSizes lists the page sizes offered by queue listings.
var AllowedPageSizes = []int{10, 25, 50, 100}

// DefaultPageSize is used when a caller asks for an unsupported size.
const DefaultPageSize = 10

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	perPage = NormalizePageSize(perPage)
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// NormalizePageSize coerces unsupported sizes to DefaultPageSize.
func NormalizePageSize(perPage int) int {
	for _, size := range AllowedPageSizes {
		if size == perPage {
			return perPage
		}
	}
	return DefaultPageSize
}

// Window returns the [start, end) slice bounds for the page.
func (p Pagination) Window() (int, int) {
	start := (p.Page - 1) * p.PerPage
	if start > p.Total {
		start = p.Total
	}
	end := start + p.PerPage
	if end > p.Total {
		end = p.Total
	}
	return start, end
}
