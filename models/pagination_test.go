package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPaginationFormulas(t *testing.T) {
	for _, total := range []int64{0, 1, 9, 10, 11, 99, 100, 101, 250} {
		for size := 1; size <= MaxPageSize; size++ {
			wantPages := 0
			if total > 0 {
				wantPages = int(total) / size
				if int(total)%size != 0 {
					wantPages++
				}
			}
			for page := 0; page <= wantPages+1; page++ {
				p := NewPagination(page, size, total)
				assert.Equal(t, wantPages, p.TotalPages)
				assert.Equal(t, page+1 < wantPages, p.HasNext)
				assert.Equal(t, page > 0, p.HasPrev)
				start, end, ok := p.Offset()
				assert.Equal(t, page < wantPages, ok)
				if ok {
					assert.Equal(t, page*size, start)
					assert.Equal(t, min(int64((page+1)*size), total), int64(end))
				}
			}
		}
	}
}

func TestPaginationHugePageIsOutOfRange(t *testing.T) {
	for _, page := range []int{1 << 62, math.MaxInt, math.MaxInt / 4} {
		p := NewPagination(page, 4, 1)
		assert.Equal(t, 1, p.TotalPages)
		assert.False(t, p.HasNext)
		assert.True(t, p.HasPrev)
		assert.False(t, p.InRange())
		_, _, ok := p.Offset()
		assert.False(t, ok, page)
	}
}

func TestPaginationZeroSize(t *testing.T) {
	p := NewPagination(0, 0, 5)
	assert.Equal(t, 0, p.TotalPages)
	assert.False(t, p.InRange())
}

func TestNewPaginationEmpty(t *testing.T) {
	p := NewPagination(0, 10, 0)
	assert.Equal(t, 0, p.TotalPages)
	assert.False(t, p.HasNext)
	assert.False(t, p.HasPrev)
}

func TestPostVisibleTo(t *testing.T) {
	published := Post{AuthorID: 7, IsPublished: true}
	draft := Post{AuthorID: 7}

	assert.True(t, published.VisibleTo(0))
	assert.True(t, published.VisibleTo(3))
	assert.False(t, draft.VisibleTo(0))
	assert.False(t, draft.VisibleTo(3))
	assert.True(t, draft.VisibleTo(7))

	orphan := Post{}
	assert.False(t, orphan.VisibleTo(0))
}

func TestUpdateRequestIsEmpty(t *testing.T) {
	var r PostUpdateRequest
	assert.True(t, r.IsEmpty())
	f := false
	r.IsFeatured = &f
	assert.False(t, r.IsEmpty())
}
