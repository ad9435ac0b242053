package params

import (
	"math"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		def        int
		wantLimit  int
		wantPage   int
		wantOffset int
	}{
		{"defaults", "", 12, 12, 1, 0},
		{"explicit", "page=3&limit=5", 12, 5, 3, 10},
		{"zero limit", "limit=0", 10, 10, 1, 0},
		{"negative limit", "limit=-4", 20, 20, 1, 0},
		{"garbage", "page=abc&limit=xyz", 10, 10, 1, 0},
		{"negative page", "page=-2", 10, 10, 1, 0},
		{"clamped", "limit=100000", 12, MaxLimit, 1, 0},
		{"bad default", "", 0, DefaultTripLimit, 1, 0},
		{"huge page", "page=200000000000000000&limit=50", 12, 50, math.MaxInt32/50 + 1, math.MaxInt32 / 50 * 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			assert.NoError(t, err)

			p := ParsePagination(q, tt.def)
			assert.Equal(t, tt.wantLimit, p.Limit)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantOffset, p.Offset)
		})
	}
}

func TestComputeMeta(t *testing.T) {
	tests := []struct {
		total, limit, page int
		pages              int
		next, prev         bool
	}{
		{total: 0, limit: 10, page: 1, pages: 0, next: false, prev: false},
		{total: 10, limit: 10, page: 1, pages: 1, next: false, prev: false},
		{total: 11, limit: 10, page: 1, pages: 2, next: true, prev: false},
		{total: 11, limit: 10, page: 2, pages: 2, next: false, prev: true},
		{total: 25, limit: 12, page: 5, pages: 3, next: false, prev: true},
	}

	for _, tt := range tests {
		p := Pagination{Limit: tt.limit, Page: tt.page}
		p.ComputeMeta(tt.total)
		assert.Equal(t, tt.total, p.Total)
		assert.Equal(t, tt.pages, p.TotalPages, "total=%d limit=%d", tt.total, tt.limit)
		assert.Equal(t, tt.next, p.HasNext, "hasNext page=%d", tt.page)
		assert.Equal(t, tt.prev, p.HasPrev, "hasPrev page=%d", tt.page)
	}
}
