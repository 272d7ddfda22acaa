// Package store defines the persistence port shared by the sync engine and
// the split and balance services.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/model"
)

// Store is the persistent record set. Implementations must make
// UpsertTransactions atomic on its own and make Atomic run fn against a view
// whose writes land together or not at all.
type Store interface {
	GetAccount(ctx context.Context, id uuid.UUID) (model.Account, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)
	UpsertAccount(ctx context.Context, a model.Account) error

	GetTransaction(ctx context.Context, id uuid.UUID) (model.Transaction, error)
	// ListTransactions returns an account's transactions ordered by date.
	// Unless includeDeleted is set, soft-deleted rows and split parents are
	// left out.
	ListTransactions(ctx context.Context, accountID uuid.UUID, includeDeleted bool) ([]model.Transaction, error)
	Children(ctx context.Context, parentID uuid.UUID) ([]model.Transaction, error)
	// FindLatestTransactionDate returns the account's newest transaction
	// date, or nil when it has none.
	FindLatestTransactionDate(ctx context.Context, accountID uuid.UUID) (*time.Time, error)
	FindByDedupKeys(ctx context.Context, accountID uuid.UUID, keys []string) (map[string]model.Transaction, error)
	// UpsertTransactions applies a merge batch. Updates rewrite source-owned
	// fields, tags, external IDs and the dedup key; they never touch the
	// soft-delete marker or the parent reference.
	UpsertTransactions(ctx context.Context, batch []model.Upsert) (model.UpsertStats, error)
	AddTags(ctx context.Context, id uuid.UUID, tags []string) error
	// SplitTransaction soft-deletes parent and inserts children pointing at it.
	SplitTransaction(ctx context.Context, parentID uuid.UUID, children []model.Transaction, deletedAt time.Time) error

	InsertBalanceSnapshots(ctx context.Context, batch []model.BalanceSnapshot) error
	// ListBalanceSnapshots returns snapshots ordered by time, optionally
	// restricted to one calendar day.
	ListBalanceSnapshots(ctx context.Context, accountID uuid.UUID, day *time.Time) ([]model.BalanceSnapshot, error)

	Stats(ctx context.Context) (Stats, error)
	Atomic(ctx context.Context, fn func(tx Store) error) error
	Close() error
}

// Stats summarizes store contents.
type Stats struct {
	Accounts     int
	Transactions int
	Snapshots    int
	Earliest     *time.Time
	Latest       *time.Time
}
