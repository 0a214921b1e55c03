package core

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination selects one page of a listing. Page numbers start at 1.
type Pagination struct {
	Page     int
	PageSize int
}

// NewPagination clamps page and size into their valid ranges.
func NewPagination(page, size int) Pagination {
	if page <= 0 {
		page = 1
	}
	switch {
	case size > MaxPageSize:
		size = MaxPageSize
	case size <= 0:
		size = DefaultPageSize
	}
	return Pagination{Page: page, PageSize: size}
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func (p Pagination) Limit() int {
	return p.PageSize
}

func (p Pagination) TotalPages(total int) int {
	if total <= 0 || p.PageSize <= 0 {
		return 0
	}
	return (total + p.PageSize - 1) / p.PageSize
}

// Bounds returns the [start, end) slice bounds of the page inside a list of n items.
func (p Pagination) Bounds(n int) (int, int) {
	start := p.Offset()
	if start > n {
		start = n
	}
	end := start + p.PageSize
	if end > n {
		end = n
	}
	return start, end
}
