package listquery

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vinoteka/internal/core/apperror"
	"vinoteka/internal/domain"
	"vinoteka/pkg/logger"
)

// pages serves 1..total as a paged collection.
type pages struct {
	mu    sync.Mutex
	total int
	reqs  []Request
	fail  error
	gate  chan struct{} // when set, the next fetch blocks on it
	enter chan Request
}

func newPages(total int) *pages {
	return &pages{total: total, enter: make(chan Request, 16)}
}

func (p *pages) fetch(ctx context.Context, req Request) (domain.Page[int], error) {
	p.mu.Lock()
	p.reqs = append(p.reqs, req)
	gate, fail, total := p.gate, p.fail, p.total
	p.gate = nil
	p.mu.Unlock()

	select {
	case p.enter <- req:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.Page[int]{}, ctx.Err()
		}
	}
	if fail != nil {
		return domain.Page[int]{}, fail
	}

	start := (req.Page - 1) * req.PageSize
	var items []int
	for i := start; i < start+req.PageSize && i < total; i++ {
		items = append(items, i+1)
	}
	return domain.Page[int]{
		Items:    items,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		HasNext:  start+req.PageSize < total,
	}, nil
}

func (p *pages) last() Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reqs[len(p.reqs)-1]
}

func (p *pages) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.reqs)
}

func newQuery(p *pages, size int) *Query[int] {
	return New(Config[int]{
		Name:      "Items",
		Endpoints: Endpoints{Browse: "/items", Search: "/items/search"},
		PageSize:  size,
		Fetch:     p.fetch,
		Logger:    logger.Nop(),
	})
}

func TestQuery_ItemsPagination(t *testing.T) {
	ctx := context.Background()
	p := newPages(25)
	q := newQuery(p, 12)

	require.NoError(t, q.Refetch(ctx))
	r := q.Snapshot()
	assert.Equal(t, 25, r.Total)
	assert.True(t, r.HasNext)
	assert.Equal(t, 3, r.Pager.Last())
	assert.Len(t, r.Items, 12)

	require.NoError(t, q.Last(ctx))
	r = q.Snapshot()
	assert.Equal(t, 3, r.Page)
	assert.False(t, r.HasNext)
	assert.Equal(t, []int{25}, r.Items)

	require.NoError(t, q.Next(ctx))
	assert.Equal(t, 3, q.Snapshot().Page, "next is disabled without has_next")
	assert.Equal(t, 2, p.count())

	require.NoError(t, q.SetPage(ctx, 7))
	assert.Equal(t, 3, q.Snapshot().Page, "clamped to last")
	require.NoError(t, q.SetPage(ctx, 0))
	assert.Equal(t, 1, q.Snapshot().Page, "clamped to first")

	require.NoError(t, q.Next(ctx))
	require.NoError(t, q.Prev(ctx))
	require.NoError(t, q.First(ctx))
	assert.Equal(t, 1, q.Snapshot().Page)
}

func TestQuery_FilterChangeResetsPage(t *testing.T) {
	ctx := context.Background()
	p := newPages(60)
	q := newQuery(p, 5)

	require.NoError(t, q.SetPage(ctx, 4))
	assert.Equal(t, 4, q.Snapshot().Page)

	require.NoError(t, q.SetFilters(ctx, Filters{"search": "merlot"}))
	assert.Equal(t, 1, q.Snapshot().Page)
	req := p.last()
	assert.Equal(t, 1, req.Page)
	assert.Equal(t, "/items/search", req.Endpoint)
	assert.Equal(t, "merlot", req.Filters["search"])
}

func TestQuery_SetFiltersAndPage(t *testing.T) {
	ctx := context.Background()
	p := newPages(60)
	q := newQuery(p, 5)

	require.NoError(t, q.SetFiltersAndPage(ctx, Filters{"country": 3}, 3))
	assert.Equal(t, 1, p.count(), "first visit fetches the requested page only")
	assert.Equal(t, 3, p.last().Page)
	assert.Equal(t, []int{11, 12, 13, 14, 15}, q.Snapshot().Items)

	require.NoError(t, q.SetFiltersAndPage(ctx, Filters{"country": 3}, 3))
	assert.Equal(t, 1, p.count(), "same filters and page do not refetch")

	require.NoError(t, q.SetFiltersAndPage(ctx, Filters{"country": 4}, 0))
	assert.Equal(t, 1, q.Snapshot().Page, "a filter change without a page resets to 1")
	assert.Equal(t, 2, p.count())

	require.NoError(t, q.SetFiltersAndPage(ctx, Filters{"country": 4}, 40))
	assert.Equal(t, 12, q.Snapshot().Page, "known totals clamp the page")
	assert.Equal(t, 3, p.count())
}

func TestQuery_SetFiltersAndPageBeyondEnd(t *testing.T) {
	ctx := context.Background()
	p := newPages(7)
	q := newQuery(p, 5)

	require.NoError(t, q.SetFiltersAndPage(ctx, Filters{"search": "wi"}, 9))
	r := q.Snapshot()
	assert.Equal(t, 2, r.Page)
	assert.Equal(t, []int{6, 7}, r.Items)
	assert.Equal(t, 2, p.count())
}

func TestQuery_SameFiltersDoNotRefetch(t *testing.T) {
	ctx := context.Background()
	p := newPages(60)
	q := newQuery(p, 5)

	require.NoError(t, q.SetFilters(ctx, Filters{"country": 3}))
	require.NoError(t, q.SetPage(ctx, 2))
	require.NoError(t, q.SetFilters(ctx, Filters{"country": 3}))

	assert.Equal(t, 2, p.count())
	assert.Equal(t, 2, q.Snapshot().Page, "equal content keeps the page")
	assert.Equal(t, "/items", p.last().Endpoint)
}

func TestQuery_StaleWhileError(t *testing.T) {
	ctx := context.Background()
	p := newPages(25)
	q := newQuery(p, 12)
	require.NoError(t, q.Refetch(ctx))

	p.mu.Lock()
	p.fail = apperror.NewUpstream(503, "maintenance")
	p.mu.Unlock()

	err := q.Refetch(ctx)
	require.Error(t, err)

	r := q.Snapshot()
	assert.Len(t, r.Items, 12, "previous items stay")
	require.NotNil(t, r.Err)
	assert.Contains(t, r.Err.Message, "Failed to load Items: 503")
	assert.False(t, r.Loading)

	p.mu.Lock()
	p.fail = nil
	p.mu.Unlock()
	require.NoError(t, q.Refetch(ctx))
	assert.Nil(t, q.Snapshot().Err)
}

func TestQuery_NextFollowsServerHasNext(t *testing.T) {
	ctx := context.Background()
	var reqs []Request
	q := New(Config[int]{
		Name:      "Drinks",
		Endpoints: Endpoints{Browse: "/drinks"},
		PageSize:  5,
		Logger:    logger.Nop(),
		Fetch: func(_ context.Context, req Request) (domain.Page[int], error) {
			reqs = append(reqs, req)
			// The total lags behind: a sixth row exists on page 2.
			if req.Page == 1 {
				return domain.Page[int]{Items: []int{1, 2, 3, 4, 5}, Total: 5, Page: 1, PageSize: 5, HasNext: true}, nil
			}
			return domain.Page[int]{Items: []int{6}, Total: 5, Page: req.Page, PageSize: 5}, nil
		},
	})

	require.NoError(t, q.Refetch(ctx))
	require.True(t, q.Snapshot().Pager.CanNext())

	require.NoError(t, q.Next(ctx))
	r := q.Snapshot()
	assert.Equal(t, 2, r.Page)
	assert.Equal(t, []int{6}, r.Items)
	assert.False(t, r.Pager.CanNext())
	require.Len(t, reqs, 2)
	assert.Equal(t, 2, reqs[1].Page)
}

func TestQuery_ShrunkTotalClampsPage(t *testing.T) {
	ctx := context.Background()
	p := newPages(25)
	q := newQuery(p, 5)

	require.NoError(t, q.SetPage(ctx, 5))
	p.mu.Lock()
	p.total = 7
	p.mu.Unlock()

	require.NoError(t, q.Refetch(ctx))
	r := q.Snapshot()
	assert.Equal(t, 2, r.Page)
	assert.Equal(t, []int{6, 7}, r.Items, "never an empty page beyond the end")
}

func TestQuery_LatestFetchWins(t *testing.T) {
	ctx := context.Background()
	p := newPages(60)
	q := newQuery(p, 5)

	gate := make(chan struct{})
	defer close(gate)
	p.mu.Lock()
	p.gate = gate
	p.mu.Unlock()

	slow := make(chan error, 1)
	go func() { slow <- q.SetFilters(ctx, Filters{"search": "me"}) }()
	<-p.enter
	assert.True(t, q.Snapshot().Loading)

	require.NoError(t, q.SetFilters(ctx, Filters{"search": "merlot"}))
	err := <-slow
	assert.True(t, apperror.IsCanceled(err))

	r := q.Snapshot()
	assert.Equal(t, "merlot", r.Filters["search"])
	assert.Len(t, r.Items, 5)
	assert.Nil(t, r.Err)
	assert.False(t, r.Loading)
}

func TestQuery_TransportErrorIsNormalized(t *testing.T) {
	p := newPages(10)
	p.fail = errors.New("dial tcp: connection refused")
	q := newQuery(p, 5)

	err := q.Refetch(context.Background())
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "Items", appErr.Details["entity"])
}
