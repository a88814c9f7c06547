package catalogapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vinoteka/internal/core/id"
	"vinoteka/internal/domain/catalog"
	"vinoteka/internal/domain/entitymgr"
	"vinoteka/internal/domain/listquery"
	"vinoteka/internal/infrastructure/catalogapi"
	"vinoteka/internal/infrastructure/catalogapi/catalogapitest"
)

func TestCollection_CRUD(t *testing.T) {
	srv := catalogapitest.New(t)
	srv.Seed("categories",
		map[string]any{"name": "Red"},
		map[string]any{"name": "White"},
	)
	ctx := sessionCtx(srv, "en")
	col := newClient(t, srv).Collection("categories/")
	assert.Equal(t, "/categories", col.Path())

	all, err := col.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	created, err := col.Create(ctx, entitymgr.Record{"name": "Rosé", "description": "Pinks"})
	require.NoError(t, err)
	newID, ok := entitymgr.RecordID(created)
	require.True(t, ok)
	assert.Equal(t, id.ID(3), newID)

	post := srv.CallsTo(http.MethodPost, "/categories")[0]
	assert.Equal(t, "application/json", post.ContentType)
	assert.Empty(t, post.Lang(), "mutations carry no lang")

	_, err = col.Update(ctx, newID, entitymgr.Record{"description": "Pale"})
	require.NoError(t, err)
	rows := srv.Rows("categories")
	assert.Equal(t, "Pale", rows[2]["description"])
	assert.Equal(t, "Rosé", rows[2]["name"])

	require.NoError(t, col.Delete(ctx, 1))
	all, err = col.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCollection_Search(t *testing.T) {
	srv := catalogapitest.New(t)
	srv.Seed("categories",
		map[string]any{"name": "Red"},
		map[string]any{"name": "White"},
		map[string]any{"name": "Reserve"},
	)
	ctx := sessionCtx(srv, "en")
	col := newClient(t, srv).Collection("/categories")

	got, err := col.Search(ctx, "re")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	call := srv.CallsTo(http.MethodGet, "/categories/search")[0]
	assert.Equal(t, "re", call.Query.Get("search"))
}

func TestCollection_SearchOverride(t *testing.T) {
	srv := catalogapitest.New(t)
	srv.Seed("regions", map[string]any{"name": "Bordeaux"})
	col := newClient(t, srv).Collection("/regions", catalogapi.WithSearch("/regions/search", "search_str"))

	got, err := col.Search(sessionCtx(srv, "en"), "bord")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "bord", srv.CallsTo(http.MethodGet, "/regions/search")[0].Query.Get("search_str"))
}

func TestCollection_FailedDeleteReportsUpstream(t *testing.T) {
	srv := catalogapitest.New(t)
	srv.Seed("categories", map[string]any{"name": "Red"})
	srv.Fail(http.MethodDelete, "/categories/1", http.StatusConflict, `{"detail":"category has drinks"}`)
	col := newClient(t, srv).Collection("/categories")

	err := col.Delete(sessionCtx(srv, "en"), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "category has drinks")
	assert.Len(t, srv.Rows("categories"), 1)
}

func TestCollection_MultipartUpload(t *testing.T) {
	srv := catalogapitest.New(t)
	col := newClient(t, srv).Collection("/drinks")

	created, err := col.Create(sessionCtx(srv, "en"), entitymgr.Record{
		"title": "Brut",
		"image": catalogapi.Upload{Filename: "brut.png", ContentType: "image/png", Data: []byte("png-bytes")},
	})
	require.NoError(t, err)
	assert.Equal(t, "img-1", created["image_id"])
	assert.Equal(t, "Brut", created["title"])
	assert.Equal(t, []byte("png-bytes"), srv.Upload("img-1"))

	call := srv.CallsTo(http.MethodPost, "/drinks")[0]
	assert.Equal(t, "multipart/form-data", call.ContentType)
}

func TestClient_OptionsForReferenceFields(t *testing.T) {
	srv := catalogapitest.New(t)
	srv.Seed("subcategories",
		map[string]any{"name": "Dry", "category_id": 1},
		map[string]any{"name": "Sweet", "category_id": 1},
	)
	recs, err := newClient(t, srv).Options(sessionCtx(srv, "ru"), "/subcategories/all")
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, "ru", srv.CallsTo(http.MethodGet, "/subcategories/all")[0].Lang())
}

type drinkRow struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

func TestPageFetcher(t *testing.T) {
	srv := catalogapitest.New(t)
	for _, title := range []string{"Brut", "Merlot", "Malbec", "Rosé", "Merlot reserve"} {
		srv.Seed("drinks", map[string]any{"title": title, "country_id": 3})
	}
	fetch := catalogapi.PageFetcher[drinkRow](newClient(t, srv))
	ctx := sessionCtx(srv, "en")

	page, err := fetch(ctx, listquery.Request{Endpoint: "/drinks", Page: 2, PageSize: 2, Filters: listquery.Filters{"country": id.ID(3), "subregion": id.ID(0)}})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.True(t, page.HasNext)
	assert.Equal(t, []drinkRow{{ID: 3, Title: "Malbec"}, {ID: 4, Title: "Rosé"}}, page.Items)

	call := srv.CallsTo(http.MethodGet, "/drinks")[0]
	assert.Equal(t, "3", call.Query.Get("country"))
	assert.False(t, call.Query.Has("subregion"), "zero ids are not sent")

	page, err = fetch(ctx, listquery.Request{Endpoint: "/drinks/search", Page: 1, PageSize: 10, Filters: listquery.Filters{"search": " merlot "}})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.False(t, page.HasNext)
}

func TestPageFetcher_UnpagedEndpoint(t *testing.T) {
	srv := catalogapitest.New(t)
	srv.Seed("drinks", map[string]any{"title": "Brut"}, map[string]any{"title": "Cava"})
	fetch := catalogapi.PageFetcher[drinkRow](newClient(t, srv))

	page, err := fetch(sessionCtx(srv, "en"), listquery.Request{Endpoint: "/drinks/all", Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.False(t, page.HasNext)
}

func TestPageFetcher_LegacyVarietalShares(t *testing.T) {
	srv := catalogapitest.New(t)
	srv.Seed("drinks",
		map[string]any{"title": "Chianti", "varietals": []any{"7:60", "8:40"}},
		map[string]any{"title": "Barolo", "varietals": []any{map[string]any{"varietal_id": 9, "percentage": 100}}},
	)
	fetch := catalogapi.PageFetcher[catalog.Drink](newClient(t, srv))

	page, err := fetch(sessionCtx(srv, "en"), listquery.Request{Endpoint: "/drinks", Page: 1, PageSize: 5})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Len(t, page.Items[0].Varietals, 2)
	assert.Equal(t, id.ID(7), page.Items[0].Varietals[0].VarietalID)
	assert.Equal(t, "60", page.Items[0].Varietals[0].Percentage.String())
	assert.Equal(t, id.ID(9), page.Items[1].Varietals[0].VarietalID)
}

func TestCollection_ImplementsBinding(t *testing.T) {
	srv := catalogapitest.New(t)
	var b entitymgr.Binding = newClient(t, srv).Collection("/foods")
	items, err := b.GetAll(context.Background())
	assert.Error(t, err, "no session, no token")
	assert.Nil(t, items)
}
