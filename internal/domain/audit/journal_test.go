package audit

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "vinoteka/internal/core/context"
	"vinoteka/internal/core/id"
	"vinoteka/internal/domain"
	"vinoteka/internal/domain/entitymgr"
	"vinoteka/pkg/logger"
)

type memJournal struct {
	mu      sync.Mutex
	entries []Entry
}

func (m *memJournal) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memJournal) History(context.Context, string, id.ID, int) ([]Entry, error) {
	return m.entries, nil
}

func TestAttach_RecordsMutations(t *testing.T) {
	ctx := appctx.WithSession(context.Background(), &appctx.SessionContext{SessionID: "sess-1"})
	ctx = appctx.WithTrace(ctx, &appctx.TraceContext{RequestID: "req-9"})

	hooks := domain.NewHookRegistry[entitymgr.Mutation]()
	j := &memJournal{}
	Attach(hooks, j)

	require.NoError(t, hooks.Run(ctx, domain.AfterCreate, entitymgr.Mutation{
		Entity: "categories", Action: entitymgr.ActionCreate, ID: 5, Data: entitymgr.Record{"name": "Red"},
	}))
	require.NoError(t, hooks.Run(ctx, domain.AfterDelete, entitymgr.Mutation{
		Entity: "categories", Action: entitymgr.ActionDelete, ID: 5,
	}))

	require.Len(t, j.entries, 2)
	e := j.entries[0]
	assert.Equal(t, "categories", e.Entity)
	assert.Equal(t, "create", e.Action)
	assert.Equal(t, id.ID(5), e.ItemID)
	assert.Equal(t, "sess-1", e.SessionID)
	assert.Equal(t, "req-9", e.RequestID)
	assert.JSONEq(t, `{"name":"Red"}`, string(e.Payload))
	assert.False(t, e.CreatedAt.IsZero())

	assert.Nil(t, j.entries[1].Payload)
}

func TestLogJournal(t *testing.T) {
	j := NewLogJournal(logger.Nop())
	assert.NoError(t, j.Record(context.Background(), Entry{Entity: "foods", Action: "delete", ItemID: 1}))
	h, err := j.History(context.Background(), "foods", 1, 10)
	assert.NoError(t, err)
	assert.Empty(t, h)
}
