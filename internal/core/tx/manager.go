// Package tx defines transaction boundaries independent of the database
// driver. The PostgreSQL implementation lives in
// internal/infrastructure/storage/postgres.
package tx

import "context"

// Manager runs fn inside a transaction: an error rolls back, success
// commits. Nested calls join the transaction already in ctx.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager adds read-only transactions.
type ReadOnlyManager interface {
	Manager
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
