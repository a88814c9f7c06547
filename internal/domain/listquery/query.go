// Package listquery fetches one page of a collection at a time and
// re-fetches whenever the filters or the page change.
package listquery

import (
	"context"
	"errors"
	"sync"

	"vinoteka/internal/core/apperror"
	"vinoteka/internal/domain"
	"vinoteka/pkg/logger"
)

// Endpoints are the collection paths of a list. Search is used while the
// search filter is non-empty.
type Endpoints struct {
	Browse string
	Search string
}

// Request is one page fetch.
type Request struct {
	Endpoint string
	Filters  Filters
	Page     int
	PageSize int
}

// FetchFunc performs a page fetch.
type FetchFunc[T any] func(ctx context.Context, req Request) (domain.Page[T], error)

// Config configures a Query.
type Config[T any] struct {
	Name      string // for logs and error messages, e.g. "Drinks"
	Endpoints Endpoints
	PageSize  int
	Fetch     FetchFunc[T]
	Logger    *logger.Logger
}

// Result is a snapshot of the query.
type Result[T any] struct {
	Items    []T
	Total    int
	Page     int
	PageSize int
	HasNext  bool
	Loading  bool
	Err      *apperror.AppError
	Filters  Filters
	Pager    Pager
}

// Query holds filter and page state for one list view. A failed fetch
// keeps the last items and sets Err (stale-while-error). Fetches are
// latest-wins. Safe for concurrent use.
type Query[T any] struct {
	cfg Config[T]
	log *logger.Logger

	mu       sync.Mutex
	filters  Filters
	key      uint64
	page     int
	items    []T
	total    int
	hasNext  bool
	fetched  bool
	inflight int
	err      *apperror.AppError
	seq      uint64
	cancel   context.CancelFunc
}

// New creates a Query on page 1 with no filters. Nothing is fetched until
// the first SetFilters, SetPage or Refetch.
func New[T any](cfg Config[T]) *Query[T] {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.Endpoints.Search == "" {
		cfg.Endpoints.Search = cfg.Endpoints.Browse
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	return &Query[T]{
		cfg:     cfg,
		log:     log.WithComponent("listquery").With("list", cfg.Name),
		filters: Filters{},
		key:     Filters{}.Key(),
		page:    1,
	}
}

// SetFilters replaces the filters. A change of content resets the page to
// 1 and fetches; identical filters fetch only if nothing was fetched yet.
func (q *Query[T]) SetFilters(ctx context.Context, f Filters) error {
	f = f.Clone()
	key := f.Key()

	q.mu.Lock()
	if key == q.key && q.fetched {
		q.mu.Unlock()
		return nil
	}
	if key != q.key {
		q.page = 1
	}
	q.filters = f
	q.key = key
	q.mu.Unlock()

	return q.fetch(ctx)
}

// SetFiltersAndPage applies filters and a requested page with one fetch.
// A positive page is kept even when the filters change, so a link to a
// page of a filtered list lands there directly. Otherwise it behaves like
// SetFilters.
func (q *Query[T]) SetFiltersAndPage(ctx context.Context, f Filters, page int) error {
	if page <= 0 {
		return q.SetFilters(ctx, f)
	}
	f = f.Clone()
	key := f.Key()

	q.mu.Lock()
	if key == q.key && q.fetched {
		page = q.pagerLocked().Clamp(page)
		if page == q.page {
			q.mu.Unlock()
			return nil
		}
	}
	q.page = page
	q.filters = f
	q.key = key
	q.mu.Unlock()

	return q.fetch(ctx)
}

// SetPage moves to page p, clamped to [1, last]. Before the first fetch
// the total is unknown and only the lower bound applies.
func (q *Query[T]) SetPage(ctx context.Context, p int) error {
	q.mu.Lock()
	if q.fetched {
		p = q.pagerLocked().Clamp(p)
	} else if p < 1 {
		p = 1
	}
	if p == q.page && q.fetched {
		q.mu.Unlock()
		return nil
	}
	q.page = p
	q.mu.Unlock()

	return q.fetch(ctx)
}

// First goes to page 1.
func (q *Query[T]) First(ctx context.Context) error { return q.SetPage(ctx, 1) }

// Prev goes one page back.
func (q *Query[T]) Prev(ctx context.Context) error {
	q.mu.Lock()
	p := q.page - 1
	q.mu.Unlock()
	return q.SetPage(ctx, p)
}

// Next goes one page forward when the server reported has_next.
func (q *Query[T]) Next(ctx context.Context) error {
	q.mu.Lock()
	if !q.hasNext {
		q.mu.Unlock()
		return nil
	}
	p := q.page + 1
	q.mu.Unlock()
	return q.SetPage(ctx, p)
}

// Last goes to the last page.
func (q *Query[T]) Last(ctx context.Context) error {
	q.mu.Lock()
	p := q.pagerLocked().Last()
	q.mu.Unlock()
	return q.SetPage(ctx, p)
}

// Refetch fetches the current page again.
func (q *Query[T]) Refetch(ctx context.Context) error {
	return q.fetch(ctx)
}

// Snapshot returns the current state.
func (q *Query[T]) Snapshot() Result[T] {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := make([]T, len(q.items))
	copy(items, q.items)
	return Result[T]{
		Items:    items,
		Total:    q.total,
		Page:     q.page,
		PageSize: q.cfg.PageSize,
		HasNext:  q.hasNext,
		Loading:  q.inflight > 0,
		Err:      q.err,
		Filters:  q.filters.Clone(),
		Pager:    q.pagerLocked(),
	}
}

// Close cancels the in-flight fetch and drops its response.
func (q *Query[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
}

func (q *Query[T]) fetch(ctx context.Context) error {
	for {
		retry, err := q.fetchOnce(ctx)
		if !retry {
			return err
		}
	}
}

// fetchOnce reports retry=true when the requested page came back empty
// past the server total; the page is clamped and fetched again.
func (q *Query[T]) fetchOnce(ctx context.Context) (retry bool, err error) {
	q.mu.Lock()
	q.seq++
	seq := q.seq
	if q.cancel != nil {
		q.cancel()
	}
	fctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.inflight++
	req := Request{
		Endpoint: q.endpointLocked(),
		Filters:  q.filters.Clone(),
		Page:     q.page,
		PageSize: q.cfg.PageSize,
	}
	q.mu.Unlock()

	page, err := q.cfg.Fetch(fctx, req)
	cancel()

	q.mu.Lock()
	defer q.mu.Unlock()
	q.inflight--

	if seq != q.seq {
		q.log.WithContext(ctx).Debugw("stale page dropped", "page", req.Page, "seq", seq, "latest", q.seq)
		return false, apperror.NewCanceled(errors.New("superseded by a newer request"))
	}
	q.cancel = nil

	if err != nil {
		if apperror.IsCanceled(err) || errors.Is(err, context.Canceled) {
			return false, apperror.NewCanceled(err)
		}
		appErr := apperror.Normalize(err).Scoped("load", q.cfg.Name)
		q.log.WithContext(ctx).Errorw("page fetch failed", "endpoint", req.Endpoint, "page", req.Page, "error", err)
		q.err = appErr
		return false, appErr
	}

	q.items = page.Items
	q.total = page.Total
	q.hasNext = page.HasNext
	q.fetched = true
	q.err = nil

	if last := q.pagerLocked().Last(); q.page > last && len(page.Items) == 0 {
		q.page = last
		return true, nil
	}
	return false, nil
}

func (q *Query[T]) endpointLocked() string {
	if q.filters.Search() != "" {
		return q.cfg.Endpoints.Search
	}
	return q.cfg.Endpoints.Browse
}

func (q *Query[T]) pagerLocked() Pager {
	return Pager{Page: q.page, PageSize: q.cfg.PageSize, Total: q.total, HasNext: q.hasNext}
}
