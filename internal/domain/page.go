package domain

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// PageRequest is a one-based page selector.
type PageRequest struct {
	Page  int
	Limit int
}

// Normalize clamps the request to sane bounds.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

func (p PageRequest) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// Page is one slice of a larger listing.
type Page[T any] struct {
	Records []T
	Total   int64
	Size    int
	Current int
}

// Pages returns the number of pages needed for Total records.
func (p Page[T]) Pages() int64 {
	if p.Size <= 0 {
		return 0
	}
	return (p.Total + int64(p.Size) - 1) / int64(p.Size)
}

// NewPage assembles a page from a normalised request.
func NewPage[T any](req PageRequest, records []T, total int64) Page[T] {
	req = req.Normalize()
	if records == nil {
		records = []T{}
	}
	return Page[T]{Records: records, Total: total, Size: req.Limit, Current: req.Page}
}
