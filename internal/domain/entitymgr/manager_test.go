package entitymgr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vinoteka/internal/core/apperror"
	"vinoteka/internal/core/id"
	"vinoteka/internal/domain"
	"vinoteka/internal/domain/catalog"
	"vinoteka/internal/metadata"
	"vinoteka/pkg/logger"
)

func categoryDef() metadata.EntityDef {
	def := metadata.MustInspect(catalog.Category{}, "categories", "/categories")
	def.Label = "Category"
	return def
}

func newManager(b Binding) *Manager {
	return New(Config{Def: categoryDef(), Binding: b, Logger: logger.Nop()})
}

func seeded() *fakeBinding {
	return newFakeBinding(
		Record{"id": id.ID(1), "name": "Red", "description": "Reds"},
		Record{"id": id.ID(2), "name": "White", "description": "Whites"},
		Record{"id": id.ID(3), "name": "Rosé"},
	)
}

func names(items []Record) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		n, _ := it["name"].(string)
		out = append(out, n)
	}
	return out
}

func TestManager_CreateAppearsInList(t *testing.T) {
	ctx := context.Background()
	fb := newFakeBinding()
	m := newManager(fb)
	require.NoError(t, m.Load(ctx))
	assert.Empty(t, m.View().Items)

	form := m.OpenCreate()
	assert.Equal(t, FormCreate, form.Mode)
	assert.Equal(t, Record{"name": "", "description": ""}, form.Data)

	require.NoError(t, m.Submit(ctx, Record{"name": "Red", "description": "Reds"}))

	v := m.View()
	require.Len(t, v.Items, 1)
	assert.Equal(t, "Red", v.Items[0]["name"])
	assert.Equal(t, "Reds", v.Items[0]["description"])
	rid, ok := RecordID(v.Items[0])
	assert.True(t, ok)
	assert.Equal(t, id.ID(101), rid, "id comes from the server")
	assert.Nil(t, v.Form, "form closes after a successful submit")
	assert.Equal(t, StatusSuccess, v.Status)
	assert.Equal(t, 2, fb.Calls("getAll"), "mount plus reload after create")
}

func TestManager_SearchRules(t *testing.T) {
	ctx := context.Background()
	fb := seeded()
	m := newManager(fb)
	require.NoError(t, m.Load(ctx))

	triggered, err := m.Search(ctx, "r")
	require.NoError(t, err)
	assert.False(t, triggered)
	assert.Zero(t, fb.Calls("search"), "one character never reaches the server")
	assert.Equal(t, "", m.View().Query)

	triggered, err = m.Search(ctx, "re")
	require.NoError(t, err)
	assert.True(t, triggered)
	first := names(m.View().Items)
	assert.Equal(t, []string{"Red"}, first)

	_, err = m.Search(ctx, "re")
	require.NoError(t, err)
	assert.Equal(t, first, names(m.View().Items), "same query, same items")
	assert.Equal(t, 2, fb.Calls("search"))

	_, err = m.Search(ctx, "")
	require.NoError(t, err)
	assert.Len(t, m.View().Items, 3, "empty query lists everything")
	assert.Equal(t, 2, fb.Calls("getAll"))
}

func TestManager_MultibyteQueryLength(t *testing.T) {
	fb := seeded()
	m := newManager(fb)

	triggered, err := m.Search(context.Background(), "é")
	require.NoError(t, err)
	assert.False(t, triggered, "length counts characters, not bytes")
}

func TestManager_ReloadKeepsActiveQuery(t *testing.T) {
	ctx := context.Background()
	fb := seeded()
	m := newManager(fb)
	_, err := m.Search(ctx, "wh")
	require.NoError(t, err)

	m.OpenCreate()
	require.NoError(t, m.Submit(ctx, Record{"name": "Whisky"}))

	assert.Equal(t, []string{"White", "Whisky"}, names(m.View().Items))
	assert.Zero(t, fb.Calls("getAll"))
}

func TestManager_EditAndDeleteRoundTrip(t *testing.T) {
	ctx := context.Background()
	fb := seeded()
	m := newManager(fb)
	require.NoError(t, m.Load(ctx))

	form, err := m.OpenEdit(3)
	require.NoError(t, err)
	assert.Equal(t, FormEdit, form.Mode)
	assert.Equal(t, "Rosé", form.Data["name"])
	assert.Equal(t, "", form.Data["description"], "absent key falls back to the initial value")

	require.NoError(t, m.Submit(ctx, Record{"name": "Rosé", "description": "Pinks"}))
	for _, it := range m.View().Items {
		if rid, _ := RecordID(it); rid == 3 {
			assert.Equal(t, "Pinks", it["description"])
		}
	}

	require.NoError(t, m.RequestDelete(2))
	assert.Equal(t, id.ID(2), m.View().PendingDelete)
	require.NoError(t, m.ConfirmDelete(ctx))
	assert.Equal(t, []string{"Red", "Rosé"}, names(m.View().Items))
	assert.True(t, m.View().PendingDelete.IsZero())
}

func TestManager_DeleteNeedsConfirmation(t *testing.T) {
	ctx := context.Background()
	fb := seeded()
	m := newManager(fb)
	require.NoError(t, m.Load(ctx))

	assert.Error(t, m.ConfirmDelete(ctx))
	assert.Zero(t, fb.Calls("delete"))

	require.NoError(t, m.RequestDelete(1))
	m.CancelDelete()
	assert.Error(t, m.ConfirmDelete(ctx))
	assert.Zero(t, fb.Calls("delete"))

	assert.True(t, apperror.IsNotFound(m.RequestDelete(42)))
}

func TestManager_FailedDeleteKeepsRows(t *testing.T) {
	ctx := context.Background()
	fb := seeded()
	fb.failDelete = apperror.NewUpstream(500, "database is locked")
	m := newManager(fb)
	require.NoError(t, m.Load(ctx))

	require.NoError(t, m.RequestDelete(1))
	err := m.ConfirmDelete(ctx)
	require.Error(t, err)

	v := m.View()
	assert.Equal(t, []string{"Red", "White", "Rosé"}, names(v.Items))
	assert.Equal(t, StatusError, v.Status)
	require.NotNil(t, v.Err)
	assert.Contains(t, v.Err.Message, "Failed to delete Category")
	assert.Contains(t, v.Err.Message, "database is locked")
	assert.Equal(t, 1, fb.Calls("getAll"), "no reload after a failure")
}

func TestManager_FailedLoadKeepsPreviousItems(t *testing.T) {
	ctx := context.Background()
	fb := seeded()
	m := newManager(fb)
	require.NoError(t, m.Load(ctx))

	fb.failGetAll = apperror.NewTransport(errors.New("connection refused"))
	err := m.Load(ctx)
	require.Error(t, err)

	v := m.View()
	assert.Len(t, v.Items, 3)
	assert.Contains(t, v.Err.Message, "Failed to load Category")
	assert.Equal(t, 2, fb.Calls("getAll"), "no retry")
}

func TestManager_RequiredFieldValidation(t *testing.T) {
	ctx := context.Background()
	fb := seeded()
	m := newManager(fb)
	require.NoError(t, m.Load(ctx))

	err := m.Submit(ctx, Record{"name": "x"})
	assert.Error(t, err, "no form open")

	m.OpenCreate()
	err = m.Submit(ctx, Record{"name": "   ", "description": "blank"})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Equal(t, "name", appErr.Details["field"])
	assert.Zero(t, fb.Calls("create"))

	v := m.View()
	require.NotNil(t, v.Form, "form stays open")
	assert.Equal(t, "blank", v.Form.Data["description"], "typed values are kept")
	assert.NotNil(t, v.Form.Err)
}

func TestManager_FailedCreateKeepsFormOpen(t *testing.T) {
	ctx := context.Background()
	fb := seeded()
	fb.failCreate = apperror.NewUpstream(422, "name taken")
	m := newManager(fb)
	require.NoError(t, m.Load(ctx))

	m.OpenCreate()
	require.Error(t, m.Submit(ctx, Record{"name": "Red"}))

	v := m.View()
	require.NotNil(t, v.Form)
	assert.Contains(t, v.Form.Err.Message, "Failed to create Category: 422")
	assert.Len(t, v.Items, 3)
}

func TestManager_LatestReadWins(t *testing.T) {
	ctx := context.Background()
	fb := seeded()
	gate := make(chan struct{})
	fb.gates["re"] = gate
	defer close(gate)

	m := newManager(fb)
	require.NoError(t, m.Load(ctx))
	require.NoError(t, m.RequestDelete(1))

	slow := make(chan error, 1)
	go func() {
		_, err := m.Search(ctx, "re")
		slow <- err
	}()
	require.Equal(t, "re", <-fb.entered)

	assert.True(t, m.View().Busy)
	err := m.ConfirmDelete(ctx)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeBusy, appErr.Code, "destructive actions wait for the load")
	assert.Zero(t, fb.Calls("delete"))

	_, err = m.Search(ctx, "wh")
	require.NoError(t, err)

	assert.True(t, apperror.IsCanceled(<-slow), "older request is cancelled and dropped")
	v := m.View()
	assert.Equal(t, []string{"White"}, names(v.Items))
	assert.Equal(t, "wh", v.Query)
	assert.False(t, v.Busy)
	assert.Nil(t, v.Err)
}

func TestManager_HooksSeeMutations(t *testing.T) {
	ctx := context.Background()
	fb := seeded()
	hooks := domain.NewHookRegistry[Mutation]()
	var got []Mutation
	record := func(_ context.Context, mu Mutation) error {
		got = append(got, mu)
		return nil
	}
	hooks.OnAfterCreate(record)
	hooks.OnAfterDelete(record)
	hooks.OnAfterUpdate(func(context.Context, Mutation) error { return errors.New("journal down") })

	m := New(Config{Def: categoryDef(), Binding: fb, Logger: logger.Nop(), Hooks: hooks})
	require.NoError(t, m.Load(ctx))

	m.OpenCreate()
	require.NoError(t, m.Submit(ctx, Record{"name": "Orange"}))
	_, err := m.OpenEdit(1)
	require.NoError(t, err)
	require.NoError(t, m.Submit(ctx, Record{"name": "Red!"}), "hook failures do not fail the mutation")
	require.NoError(t, m.RequestDelete(2))
	require.NoError(t, m.ConfirmDelete(ctx))

	require.Len(t, got, 2)
	assert.Equal(t, ActionCreate, got[0].Action)
	assert.Equal(t, id.ID(101), got[0].ID)
	assert.Equal(t, "Orange", got[0].Data["name"])
	assert.Equal(t, ActionDelete, got[1].Action)
	assert.Equal(t, id.ID(2), got[1].ID)
}

func TestManager_ReadOnlyFieldsAreNotSent(t *testing.T) {
	def := categoryDef()
	def.Fields[1].ReadOnly = true // description

	body := payload(def, Record{"name": "Red", "description": "ignored", "extra": 1})
	assert.Equal(t, Record{"name": "Red"}, body)
}

func TestManager_CloseSettlesDroppedRead(t *testing.T) {
	ctx := context.Background()
	fb := seeded()
	gate := make(chan struct{})
	fb.gates["ro"] = gate
	defer close(gate)

	m := newManager(fb)
	require.NoError(t, m.Load(ctx))

	slow := make(chan error, 1)
	go func() {
		_, err := m.Search(ctx, "ro")
		slow <- err
	}()
	require.Equal(t, "ro", <-fb.entered)
	assert.Equal(t, StatusLoading, m.View().Status)

	m.Close()
	assert.True(t, apperror.IsCanceled(<-slow))

	v := m.View()
	assert.Equal(t, StatusSuccess, v.Status)
	assert.False(t, v.Busy)
	assert.Len(t, v.Items, 3, "the last committed list stays")
}

func TestManager_CloseBeforeFirstLoadReturnsToIdle(t *testing.T) {
	ctx := context.Background()
	fb := seeded()
	gate := make(chan struct{})
	fb.gates["wh"] = gate
	defer close(gate)

	m := newManager(fb)
	slow := make(chan error, 1)
	go func() {
		_, err := m.Search(ctx, "wh")
		slow <- err
	}()
	require.Equal(t, "wh", <-fb.entered)

	m.Close()
	assert.True(t, apperror.IsCanceled(<-slow))
	assert.Equal(t, StatusIdle, m.View().Status)
}
