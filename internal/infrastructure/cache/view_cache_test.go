package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"vinoteka/internal/domain/entitymgr"
	"vinoteka/internal/domain/listquery"
	"vinoteka/internal/domain/session"
	"vinoteka/internal/metadata"
	"vinoteka/pkg/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newManager() (*entitymgr.Manager, error) {
	return entitymgr.New(entitymgr.Config{
		Def:    metadata.EntityDef{Name: "foods", Label: "Food", Collection: "/foods"},
		Logger: logger.Nop(),
	}), nil
}

func newQuery() *listquery.Query[int] {
	return listquery.New(listquery.Config[int]{Name: "Drinks", Logger: logger.Nop()})
}

func TestViewCache_ReusesPerSession(t *testing.T) {
	c := New(Config{IdleTTL: time.Minute}, logger.Nop())

	builds := 0
	build := func() (*entitymgr.Manager, error) {
		builds++
		return newManager()
	}
	a1, err := c.Manager("s1", "foods", build)
	require.NoError(t, err)
	a2, _ := c.Manager("s1", "foods", build)
	b, _ := c.Manager("s2", "foods", build)

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, b, "sessions never share state")
	assert.Equal(t, 2, builds)

	q1 := View(c, "s1", "drinks", newQuery)
	q2 := View(c, "s1", "drinks", newQuery)
	assert.Same(t, q1, q2)
	assert.Equal(t, 2, c.Len())

	c.Evict("s1")
	assert.Equal(t, 1, c.Len())
	a3, _ := c.Manager("s1", "foods", build)
	assert.NotSame(t, a1, a3)
}

func TestViewCache_DropEntity(t *testing.T) {
	c := New(Config{}, logger.Nop())
	m1, _ := c.Manager("s1", "foods", newManager)
	c.DropEntity("foods")
	m2, _ := c.Manager("s1", "foods", newManager)
	assert.NotSame(t, m1, m2)
}

func TestViewCache_SweepEvictsIdle(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	old := session.New(time.Now())
	require.NoError(t, store.Save(ctx, old))

	c := New(Config{IdleTTL: time.Minute, Sessions: store, SessionTTL: time.Hour}, logger.Nop())
	clock := time.Now()
	c.now = func() time.Time { return clock }

	_, _ = c.Manager("idle", "foods", newManager)
	clock = clock.Add(50 * time.Second)
	_, _ = c.Manager("busy", "foods", newManager)
	clock = clock.Add(20 * time.Second)

	assert.Equal(t, 1, c.Sweep(ctx))
	assert.Equal(t, 1, c.Len())

	_, err := store.Get(ctx, old.ID)
	assert.NoError(t, err, "session younger than SessionTTL is kept")

	clock = clock.Add(2 * time.Hour)
	c.Sweep(ctx)
	_, err = store.Get(ctx, old.ID)
	assert.Error(t, err)
}

func TestViewCache_StartStop(t *testing.T) {
	c := New(Config{IdleTTL: time.Millisecond, SweepInterval: time.Millisecond}, logger.Nop())
	_, _ = c.Manager("s1", "foods", newManager)

	c.Start(context.Background())
	c.Start(context.Background())
	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)

	c.Stop()
	c.Stop()
}
