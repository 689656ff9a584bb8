package store

// Pagination selects a window of the FindAll order
type Pagination interface {
	Limit() int64
	Offset() int64
}

type page struct {
	offset, limit int64
}

// NewPage returns a Pagination, a limit of 0 means no limit
func NewPage(offset, limit int64) Pagination {
	return page{offset: offset, limit: limit}
}

func (p page) Limit() int64  { return p.limit }
func (p page) Offset() int64 { return p.offset }
