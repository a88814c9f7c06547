// Package audit records admin mutations.
package audit

import (
	"context"
	"encoding/json"
	"time"

	appctx "vinoteka/internal/core/context"
	"vinoteka/internal/core/id"
	"vinoteka/internal/domain"
	"vinoteka/internal/domain/entitymgr"
	"vinoteka/pkg/logger"
)

// Entry is one journal line.
type Entry struct {
	Entity    string          `json:"entity" db:"entity"`
	Action    string          `json:"action" db:"action"`
	ItemID    id.ID           `json:"item_id" db:"item_id"`
	SessionID string          `json:"session_id" db:"session_id"`
	RequestID string          `json:"request_id" db:"request_id"`
	Payload   json.RawMessage `json:"payload,omitempty" db:"payload"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Journal stores entries.
type Journal interface {
	Record(ctx context.Context, e Entry) error
	History(ctx context.Context, entity string, itemID id.ID, limit int) ([]Entry, error)
}

// Enrich fills session, request and time fields from ctx.
func Enrich(ctx context.Context, e Entry) Entry {
	if e.SessionID == "" {
		e.SessionID = appctx.GetSessionID(ctx)
	}
	if e.RequestID == "" {
		e.RequestID = appctx.GetRequestID(ctx)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return e
}

// FromMutation builds an entry for a manager mutation.
func FromMutation(ctx context.Context, m entitymgr.Mutation) (Entry, error) {
	var payload json.RawMessage
	if m.Data != nil {
		b, err := json.Marshal(m.Data)
		if err != nil {
			return Entry{}, err
		}
		payload = b
	}
	return Enrich(ctx, Entry{
		Entity:  m.Entity,
		Action:  string(m.Action),
		ItemID:  m.ID,
		Payload: payload,
	}), nil
}

// Attach journals every mutation of hooks.
func Attach(hooks *domain.HookRegistry[entitymgr.Mutation], j Journal) {
	record := func(ctx context.Context, m entitymgr.Mutation) error {
		e, err := FromMutation(ctx, m)
		if err != nil {
			return err
		}
		return j.Record(ctx, e)
	}
	hooks.OnAfterCreate(record)
	hooks.OnAfterUpdate(record)
	hooks.OnAfterDelete(record)
}

// LogJournal writes entries to the log only. Used without a database.
type LogJournal struct {
	log *logger.Logger
}

// NewLogJournal creates a LogJournal.
func NewLogJournal(log *logger.Logger) *LogJournal {
	if log == nil {
		log = logger.Default()
	}
	return &LogJournal{log: log.WithComponent("audit")}
}

func (j *LogJournal) Record(ctx context.Context, e Entry) error {
	j.log.WithContext(ctx).Infow("catalog changed",
		"entity", e.Entity,
		"action", e.Action,
		"item_id", e.ItemID,
		"session_id", e.SessionID,
	)
	return nil
}

func (j *LogJournal) History(context.Context, string, id.ID, int) ([]Entry, error) {
	return nil, nil
}
