package params

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// MaxLimit is the largest page size a client can request.
const MaxLimit = 50

// Per-resource default page sizes.
const (
	DefaultTripLimit    = 12
	DefaultUserLimit    = 20
	DefaultCommentLimit = 10
	DefaultReviewLimit  = 10
)

// URL: /roadtrips?page=2&limit=12
// → ParsePagination() → Pagination{Limit:12, Page:2, Offset:12}
// → store: skip 12, take 12, plus total count
// → ComputeMeta(total) → fills TotalPages, HasNext, etc.
type Pagination struct {
	Limit      int  `json:"limit"`
	Offset     int  `json:"-"`
	Page       int  `json:"currentPage"`
	Total      int  `json:"totalItems"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// ParsePagination parses ?limit=...&page=... safely. Keys are case sensitive.
func ParsePagination(q url.Values, defaultLimit int) Pagination {
	if defaultLimit <= 0 || defaultLimit > MaxLimit {
		defaultLimit = DefaultTripLimit
	}

	p := Pagination{
		Limit: defaultLimit,
		Page:  1,
	}

	if limitStr := strings.TrimSpace(q.Get("limit")); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			switch {
			case limit <= 0:
				p.Limit = defaultLimit
			case limit > MaxLimit:
				p.Limit = MaxLimit
			default:
				p.Limit = limit
			}
		}
	}

	if pageStr := strings.TrimSpace(q.Get("page")); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil && page > 0 {
			p.Page = page
		}
	}

	// keep the offset inside int32 for Mongo skip and Postgres OFFSET
	if maxPage := math.MaxInt32/p.Limit + 1; p.Page > maxPage {
		p.Page = maxPage
	}
	p.Offset = (p.Page - 1) * p.Limit
	return p
}

// ComputeMeta updates pagination after fetching total count.
func (p *Pagination) ComputeMeta(total int) {
	p.Total = total
	p.TotalPages = 0
	if p.Limit > 0 {
		p.TotalPages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	p.HasPrev = p.Page > 1
	p.HasNext = p.Page < p.TotalPages
}
