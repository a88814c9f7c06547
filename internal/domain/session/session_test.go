package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vinoteka/internal/core/apperror"
	"vinoteka/internal/core/lang"
)

func TestSession_LoggedIn(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New(now)
	assert.False(t, s.LoggedIn(now))

	s.SignIn("tok", now.Add(time.Minute))
	assert.True(t, s.LoggedIn(now))
	assert.False(t, s.LoggedIn(now.Add(time.Minute)), "expired token")

	s.SignIn("tok", time.Time{})
	assert.True(t, s.LoggedIn(now.Add(24*time.Hour)), "no exp, no expiry")

	s.Language = lang.FR
	s.SignOut()
	assert.False(t, s.LoggedIn(now))
	assert.Equal(t, lang.FR, s.Language)
}

func TestSession_FlashExpires(t *testing.T) {
	now := time.Now()
	s := New(now)
	s.SetFlash(FlashError, "Failed to delete Category", now)

	f := s.TakeFlash(now.Add(2 * time.Second))
	require.NotNil(t, f)
	assert.Equal(t, FlashError, f.Kind)
	assert.Nil(t, s.TakeFlash(now), "taken once")

	s.SetFlash(FlashSuccess, "saved", now)
	assert.Nil(t, s.TakeFlash(now.Add(FlashTTL)), "gone after five seconds")
	assert.Nil(t, s.Flash)
}

func TestSession_ViewModes(t *testing.T) {
	s := &Session{}
	assert.Equal(t, ViewTable, s.ViewMode("drinks"))
	s.SetViewMode("drinks", ParseViewMode("grid"))
	assert.Equal(t, ViewGrid, s.ViewMode("drinks"))
	assert.Equal(t, ViewTable, s.ViewMode("items"))
	assert.Equal(t, ViewTable, ParseViewMode("cards"))
}

func TestSession_ContextCarriesTokenAndLanguage(t *testing.T) {
	s := New(time.Now())
	s.SignIn("tok", time.Time{})
	s.Language = lang.RU

	sc := s.Context()
	assert.Equal(t, s.ID.String(), sc.SessionID)
	assert.Equal(t, "tok", sc.Token)
	assert.Equal(t, "ru", sc.Language)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return clock }

	s := New(clock)
	s.SetViewMode("items", ViewGrid)
	require.NoError(t, st.Save(ctx, s))

	got, err := st.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, ViewGrid, got.ViewMode("items"))

	got.SetViewMode("items", ViewTable)
	again, _ := st.Get(ctx, s.ID)
	assert.Equal(t, ViewGrid, again.ViewMode("items"), "store returns copies")

	clock = clock.Add(time.Hour)
	other := New(clock)
	require.NoError(t, st.Save(ctx, other))

	n, err := st.DeleteIdle(ctx, clock.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = st.Get(ctx, s.ID)
	assert.True(t, apperror.IsNotFound(err))

	require.NoError(t, st.Delete(ctx, other.ID))
	_, err = st.Get(ctx, other.ID)
	assert.True(t, apperror.IsNotFound(err))
}
