package view

// CoinsPerPage is the page size of the market table.
const CoinsPerPage = 50

// Pager is a 1-based page cursor clamped to the catalog bounds.
type Pager struct {
	total   int
	perPage int
	page    int
}

func NewPager(total, perPage int) *Pager {
	if perPage <= 0 {
		perPage = CoinsPerPage
	}
	return &Pager{total: max(total, 0), perPage: perPage, page: 1}
}

func (p *Pager) Page() int    { return p.page }
func (p *Pager) PerPage() int { return p.perPage }
func (p *Pager) Total() int   { return p.total }

// Pages is at least 1, even for an empty list.
func (p *Pager) Pages() int {
	if p.total == 0 {
		return 1
	}
	return (p.total + p.perPage - 1) / p.perPage
}

func (p *Pager) SetPage(n int) {
	p.page = min(max(n, 1), p.Pages())
}

func (p *Pager) Next() { p.SetPage(p.page + 1) }
func (p *Pager) Prev() { p.SetPage(p.page - 1) }

// SetTotal changes the item count and returns to the first page.
func (p *Pager) SetTotal(total int) {
	p.total = max(total, 0)
	p.page = 1
}

// Bounds returns the half-open index range of the current page.
func (p *Pager) Bounds() (lo, hi int) {
	lo = (p.page - 1) * p.perPage
	hi = min(lo+p.perPage, p.total)
	return min(lo, hi), hi
}

// Slice returns the items on the current page of p.
func Slice[T any](p *Pager, items []T) []T {
	lo, hi := p.Bounds()
	hi = min(hi, len(items))
	lo = min(lo, hi)
	return items[lo:hi]
}
