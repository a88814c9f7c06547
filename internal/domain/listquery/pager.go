package listquery

// Pager is the pagination policy for one page of results. HasNext is the
// server's word and alone decides whether "next" is enabled.
type Pager struct {
	Page     int
	PageSize int
	Total    int
	HasNext  bool
}

// Last is ceil(Total/PageSize), never below 1.
func (p Pager) Last() int {
	if p.PageSize <= 0 || p.Total <= 0 {
		return 1
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// Clamp bounds page to [1, Last]. While the server reports HasNext the
// page after the current one stays reachable even if Total says otherwise.
func (p Pager) Clamp(page int) int {
	if page < 1 {
		return 1
	}
	upper := p.Last()
	if p.HasNext && p.Page+1 > upper {
		upper = p.Page + 1
	}
	if page > upper {
		return upper
	}
	return page
}

func (p Pager) CanFirst() bool { return p.Page > 1 }
func (p Pager) CanPrev() bool  { return p.Page > 1 }
func (p Pager) CanNext() bool  { return p.HasNext }
func (p Pager) CanLast() bool  { return p.Page < p.Last() }
