package models

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Pagination describes one zero-based page of a result set.
type Pagination struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// NewPagination computes the metadata for page/size over total items.
// A non-positive size yields no pages.
func NewPagination(page, size int, total int64) Pagination {
	totalPages := 0
	if size > 0 && total > 0 {
		totalPages = int((total-1)/int64(size)) + 1
	}
	return Pagination{
		Page:       page,
		Size:       size,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page >= 0 && page < totalPages-1,
		HasPrev:    page > 0,
	}
}

// InRange reports whether the page holds at least one item.
func (p Pagination) InRange() bool {
	return p.Page >= 0 && p.Page < p.TotalPages
}

// Offset returns the bounds of the page within the result set. ok is false
// for pages outside it, and page*size is only computed for pages inside.
func (p Pagination) Offset() (start, end int, ok bool) {
	if !p.InRange() {
		return 0, 0, false
	}
	start = p.Page * p.Size
	end = int(min(int64(start+p.Size), p.Total))
	return start, end, true
}
