package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"vinoteka/internal/core/apperror"
	"vinoteka/internal/core/id"
	"vinoteka/internal/core/lang"
	"vinoteka/internal/domain/catalog"
	"vinoteka/internal/domain/listquery"
	"vinoteka/internal/domain/reference"
	"vinoteka/internal/domain/session"
	"vinoteka/internal/infrastructure/cache"
	"vinoteka/internal/infrastructure/catalogapi"
	"vinoteka/internal/metadata"
	"vinoteka/pkg/logger"
)

// Default page sizes of the browse pages.
const (
	DefaultDrinksPageSize = 5
	DefaultItemsPageSize  = 12
)

// Filter keys sent to the catalog API besides the search text.
const (
	FilterCategory = "category"
	FilterCountry  = "country"
)

// Option endpoints of the browse filters.
var (
	categoryOptions = metadata.OptionsSource{Endpoint: "/categories/all"}
	countryOptions  = metadata.OptionsSource{Endpoint: "/countries/all"}
)

// BrowseConfig sets the page sizes of the browse pages.
type BrowseConfig struct {
	DrinksPageSize int
	ItemsPageSize  int
}

type browseBody struct {
	Page       string
	Mode       session.ViewMode
	Search     string
	Category   string
	Country    string
	Categories []choice
	Countries  []choice
	Columns    []string
	Rows       []browseRow
	Total      int
	Loading    bool
	Pager      pagerLinks
	Errors     []*apperror.AppError
}

type browseRow struct {
	ID       string
	Title    string
	ImageURL string
	Details  []string
}

// pagerLinks holds the navigation URLs; an empty URL is a disabled control.
type pagerLinks struct {
	Page  int
	Last  int
	First string
	Prev  string
	Next  string
	End   string
}

// browseSource describes one paged browse page over records of type T.
type browseSource[T any] struct {
	name      string
	label     string
	endpoints listquery.Endpoints
	pageSize  int
	columns   []string
	row       func(item T, l lang.Language) browseRow
}

// BrowseHandler serves the paged, filtered drinks and items pages.
type BrowseHandler struct {
	*BaseHandler
	client   *catalogapi.Client
	resolver *reference.Resolver
	views    *cache.ViewCache
	cfg      BrowseConfig
	log      *logger.Logger
}

// NewBrowseHandler creates a browse handler.
func NewBrowseHandler(base *BaseHandler, client *catalogapi.Client, resolver *reference.Resolver,
	views *cache.ViewCache, cfg BrowseConfig, log *logger.Logger) *BrowseHandler {
	if cfg.DrinksPageSize <= 0 {
		cfg.DrinksPageSize = DefaultDrinksPageSize
	}
	if cfg.ItemsPageSize <= 0 {
		cfg.ItemsPageSize = DefaultItemsPageSize
	}
	return &BrowseHandler{
		BaseHandler: base,
		client:      client,
		resolver:    resolver,
		views:       views,
		cfg:         cfg,
		log:         log,
	}
}

// Browse handles GET /browse/:page
// Query: search, category, country, page.
func (h *BrowseHandler) Browse(c *gin.Context) {
	switch c.Param("page") {
	case "drinks":
		browse(h, c, browseSource[catalog.Drink]{
			name:      "drinks",
			label:     "Drinks",
			endpoints: listquery.Endpoints{Browse: "/drinks", Search: "/drinks/search"},
			pageSize:  h.cfg.DrinksPageSize,
			columns:   []string{"Alcohol %", "Sparkling"},
			row: func(d catalog.Drink, l lang.Language) browseRow {
				sparkling := "No"
				if d.Sparkling {
					sparkling = "Yes"
				}
				return browseRow{
					ID:      d.ID.String(),
					Title:   d.LocalTitle(l),
					Details: []string{d.Alc.String(), sparkling},
				}
			},
		})
	case "items":
		browse(h, c, browseSource[catalog.Item]{
			name:      "items",
			label:     "Items",
			endpoints: listquery.Endpoints{Browse: "/items", Search: "/items/search"},
			pageSize:  h.cfg.ItemsPageSize,
			columns:   []string{"Volume", "Price", "Count"},
			row: func(i catalog.Item, l lang.Language) browseRow {
				r := browseRow{
					ID:      i.ID.String(),
					Title:   i.Title(l),
					Details: []string{i.Vol.String(), i.Price.StringFixed(2), strconv.Itoa(i.Count)},
				}
				if i.ImageID != "" {
					r.ImageURL = h.client.ImageURL(i.ImageID)
				}
				return r
			},
		})
	default:
		h.Error(c, apperror.NewNotFound("page", c.Param("page")))
	}
}

func browse[T any](h *BrowseHandler, c *gin.Context, src browseSource[T]) {
	ctx := c.Request.Context()
	sess := h.Session(c)

	q := cache.View(h.views, sess.ID.String(), "browse:"+src.name, func() *listquery.Query[T] {
		return listquery.New(listquery.Config[T]{
			Name:      src.label,
			Endpoints: src.endpoints,
			PageSize:  src.pageSize,
			Fetch:     catalogapi.PageFetcher[T](h.client),
			Logger:    h.log,
		})
	})

	filters := listquery.Filters{listquery.SearchKey: strings.TrimSpace(c.Query("search"))}
	if v, ok := id.FromAny(c.Query(FilterCategory)); ok {
		filters[FilterCategory] = v
	}
	if v, ok := id.FromAny(c.Query(FilterCountry)); ok {
		filters[FilterCountry] = v
	}

	err := q.SetFiltersAndPage(ctx, filters, h.ParseIntQuery(c, "page", 0))
	if apperror.IsUnauthorized(err) {
		h.Expire(c)
		return
	}

	snap := q.Snapshot()
	l := h.Language(c)
	body := browseBody{
		Page:     src.name,
		Mode:     sess.ViewMode(src.name),
		Search:   snap.Filters.Search(),
		Category: filterText(snap.Filters[FilterCategory]),
		Country:  filterText(snap.Filters[FilterCountry]),
		Columns:  append([]string{"ID", "Title"}, src.columns...),
		Total:    snap.Total,
		Loading:  snap.Loading,
		Pager:    pager(c.Request.URL, snap.Pager),
	}
	if snap.Err != nil {
		body.Errors = append(body.Errors, snap.Err)
	}
	for _, item := range snap.Items {
		body.Rows = append(body.Rows, src.row(item, l))
	}

	body.Categories = h.filterChoices(c, categoryOptions, body.Category, &body.Errors)
	body.Countries = h.filterChoices(c, countryOptions, body.Country, &body.Errors)

	h.Render(c, http.StatusOK, "browse.html", src.label, body)
}

func (h *BrowseHandler) filterChoices(c *gin.Context, src metadata.OptionsSource, current string, errs *[]*apperror.AppError) []choice {
	opts, err := h.resolver.Options(c.Request.Context(), src)
	if err != nil {
		*errs = append(*errs, apperror.Normalize(err).Scoped("load options from", src.Endpoint))
		return nil
	}
	out := make([]choice, len(opts))
	for i, o := range opts {
		v := o.Value.String()
		out[i] = choice{Value: v, Label: o.Label, Selected: v == current}
	}
	return out
}

func filterText(v any) string {
	if vid, ok := v.(id.ID); ok && !vid.IsZero() {
		return vid.String()
	}
	return ""
}

// pager builds page links that keep the current filters.
func pager(u *url.URL, p listquery.Pager) pagerLinks {
	link := func(n int) string {
		q := u.Query()
		q.Set("page", strconv.Itoa(n))
		return u.Path + "?" + q.Encode()
	}
	links := pagerLinks{Page: p.Page, Last: max(p.Last(), p.Page)}
	if p.CanFirst() {
		links.First = link(1)
	}
	if p.CanPrev() {
		links.Prev = link(p.Page - 1)
	}
	if p.CanNext() {
		links.Next = link(p.Page + 1)
	}
	if p.CanLast() {
		links.End = link(p.Last())
	}
	return links
}
