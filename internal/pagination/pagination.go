// Package pagination computes page windows over a counted result set.
// Inputs are clamped, never rejected, so raw query-string integers can be
// passed straight through.
package pagination

import (
	"encoding/json"
	"math"
	"net/url"
	"strconv"
)

const (
	DefaultPageSize    = 25
	DefaultMaxPageSize = 100
)

// Pagination is an immutable page window. Build it with FromTotalCount.
type Pagination struct {
	page        int
	pageSize    int
	offset      int
	totalPages  int
	hasNext     bool
	hasPrevious bool
}

type options struct {
	page            int
	pageSize        int
	pageSizeSet     bool
	defaultPageSize int
	maxPageSize     int
}

// Option configures FromTotalCount.
type Option func(*options)

// WithPage sets the requested 1-based page.
func WithPage(page int) Option {
	return func(o *options) { o.page = page }
}

// WithPageSize sets the requested page size. Values outside
// [1, max page size] are clamped.
func WithPageSize(size int) Option {
	return func(o *options) {
		o.pageSize = size
		o.pageSizeSet = true
	}
}

// WithDefaultPageSize sets the size used when no page size was requested.
func WithDefaultPageSize(size int) Option {
	return func(o *options) { o.defaultPageSize = size }
}

// WithMaxPageSize caps the page size.
func WithMaxPageSize(size int) Option {
	return func(o *options) { o.maxPageSize = size }
}

// FromTotalCount builds the page window for a result set of totalCount items.
func FromTotalCount(totalCount int, opts ...Option) Pagination {
	o := options{
		page:            1,
		defaultPageSize: DefaultPageSize,
		maxPageSize:     DefaultMaxPageSize,
	}
	for _, opt := range opts {
		opt(&o)
	}

	maxSize := max(1, o.maxPageSize)
	size := o.defaultPageSize
	if o.pageSizeSet {
		size = o.pageSize
	}
	size = min(max(1, size), maxSize)

	page := max(1, o.page)
	// Keep (page-1)*size inside int.
	if page-1 > math.MaxInt/size {
		page = math.MaxInt/size + 1
	}

	totalCount = max(0, totalCount)
	totalPages := totalCount / size
	if totalCount%size != 0 {
		totalPages++
	}
	totalPages = max(1, totalPages)

	return Pagination{
		page:        page,
		pageSize:    size,
		offset:      (page - 1) * size,
		totalPages:  totalPages,
		hasNext:     page < totalPages,
		hasPrevious: page > 1,
	}
}

// FromQuery reads "page" and "page_size" from query values. Missing or
// unparsable values are skipped so the defaults apply.
func FromQuery(q url.Values) []Option {
	var opts []Option
	if n, err := strconv.Atoi(q.Get("page")); err == nil {
		opts = append(opts, WithPage(n))
	}
	size := q.Get("page_size")
	if size == "" {
		size = q.Get("pageSize")
	}
	if n, err := strconv.Atoi(size); err == nil {
		opts = append(opts, WithPageSize(n))
	}
	return opts
}

func (p Pagination) Page() int         { return p.page }
func (p Pagination) PageSize() int     { return p.pageSize }
func (p Pagination) Offset() int       { return p.offset }
func (p Pagination) TotalPages() int   { return p.totalPages }
func (p Pagination) HasNext() bool     { return p.hasNext }
func (p Pagination) HasPrevious() bool { return p.hasPrevious }

// Limit is an alias for PageSize, for use in LIMIT clauses.
func (p Pagination) Limit() int { return p.pageSize }

type paginationJSON struct {
	Page        int  `json:"page"`
	PageSize    int  `json:"page_size"`
	Offset      int  `json:"offset"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

func (p Pagination) MarshalJSON() ([]byte, error) {
	return json.Marshal(paginationJSON{
		Page:        p.page,
		PageSize:    p.pageSize,
		Offset:      p.offset,
		TotalPages:  p.totalPages,
		HasNext:     p.hasNext,
		HasPrevious: p.hasPrevious,
	})
}
