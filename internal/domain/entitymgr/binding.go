// Package entitymgr manages one remote collection from its schema: list,
// search, create/edit forms and confirmed delete.
package entitymgr

import (
	"context"

	"vinoteka/internal/core/id"
	"vinoteka/internal/metadata"
)

// Record is one entity as exchanged with the catalog API.
type Record = metadata.Record

// Binding is the CRUD surface of a remote collection.
type Binding interface {
	GetAll(ctx context.Context) ([]Record, error)
	Search(ctx context.Context, query string) ([]Record, error)
	Create(ctx context.Context, data Record) (Record, error)
	Update(ctx context.Context, id id.ID, data Record) (Record, error)
	Delete(ctx context.Context, id id.ID) error
}

// RecordID extracts the server-assigned id of r.
func RecordID(r Record) (id.ID, bool) {
	return id.FromAny(r["id"])
}
