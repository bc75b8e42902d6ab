package repository

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Page selects a window of a listing. Page numbers start at 1.
type Page struct {
	Number int
	Size   int
}

// Normalize applies the default and maximum page size.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size <= 0 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}

func (p Page) offset() int {
	n := p.Normalize()
	return (n.Number - 1) * n.Size
}

func (p Page) limit() int {
	return p.Normalize().Size
}
