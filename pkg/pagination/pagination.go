package pagination

import (
	"net/http"
	"strconv"
)

const (
	// DefaultSize is the standard page size when one is not provided.
	DefaultSize = 20
	// MaxSize caps how many rows any list query can request.
	MaxSize = 100
)

// Params holds page/size pagination inputs from controllers or services.
type Params struct {
	Page int
	Size int
}

// Page describes one page of results alongside the overall totals.
type Page struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// Normalize clamps the params to sane values.
func Normalize(p Params) Params {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Size <= 0 {
		p.Size = DefaultSize
	}
	if p.Size > MaxSize {
		p.Size = MaxSize
	}
	return p
}

// Offset returns the row offset for the normalized params.
func (p Params) Offset() int {
	n := Normalize(p)
	return (n.Page - 1) * n.Size
}

// Limit returns the row limit for the normalized params.
func (p Params) Limit() int {
	return Normalize(p).Size
}

// FromRequest parses page/size query params, falling back to defaults.
func FromRequest(r *http.Request) Params {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	return Normalize(Params{Page: page, Size: size})
}

// NewPage builds page metadata from the normalized params and total row count.
func NewPage(p Params, total int64) Page {
	n := Normalize(p)
	pages := int(total) / n.Size
	if int(total)%n.Size != 0 {
		pages++
	}
	if pages == 0 {
		pages = 1
	}
	return Page{
		Page:       n.Page,
		Size:       n.Size,
		Total:      total,
		TotalPages: pages,
	}
}
