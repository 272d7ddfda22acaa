package model

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is a single financial movement in the local store.
type Transaction struct {
	ID                  uuid.UUID
	AccountID           uuid.UUID
	Amount              decimal.Decimal // negative = outflow, positive = inflow
	Description         string
	TransactionDate     time.Time  // calendar date, UTC midnight
	PostedDate          *time.Time // calendar date, nil while pending
	Tags                []string   // normalized: trimmed, unique, sorted
	ExternalIDs         map[string]string
	DedupKey            string     // "" for legacy rows
	DeletedAt           *time.Time // nil = active
	ParentTransactionID *uuid.UUID // set only on split children
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsDeleted reports whether the transaction carries a soft-delete marker.
func (t Transaction) IsDeleted() bool { return t.DeletedAt != nil }

// IsSplitChild reports whether the transaction was created by a split.
func (t Transaction) IsSplitChild() bool { return t.ParentTransactionID != nil }

// ExternalID returns the ID assigned by source, or "".
func (t Transaction) ExternalID(source string) string { return t.ExternalIDs[source] }

// Clone returns a deep copy.
func (t Transaction) Clone() Transaction {
	out := t
	out.Tags = slices.Clone(t.Tags)
	if t.ExternalIDs != nil {
		out.ExternalIDs = maps.Clone(t.ExternalIDs)
	}
	out.PostedDate = cloneTime(t.PostedDate)
	out.DeletedAt = cloneTime(t.DeletedAt)
	if t.ParentTransactionID != nil {
		p := *t.ParentTransactionID
		out.ParentTransactionID = &p
	}
	return out
}

// RawTransaction is a transaction as reported by a data source, before the
// engine assigns identity or a dedup key.
type RawTransaction struct {
	ExternalID        string // "" when the source has no stable IDs
	AccountExternalID string
	Amount            decimal.Decimal
	Description       string
	TransactionDate   time.Time
	PostedDate        *time.Time
	Tags              []string // provider categories, if any
}

// TransactionBatch is the result of one transaction discovery call.
type TransactionBatch struct {
	Transactions []RawTransaction
	Warnings     []string // non-fatal provider messages
}

// UpsertOp selects between creating and rewriting a stored transaction.
type UpsertOp int

const (
	OpInsert UpsertOp = iota
	OpUpdate
)

func (op UpsertOp) String() string {
	if op == OpUpdate {
		return "update"
	}
	return "insert"
}

// Upsert is one write instruction produced by the merge step.
type Upsert struct {
	Op          UpsertOp
	Transaction Transaction
	Keys        []string // every dedup key the record can be found under
}

// UpsertStats counts rows written by a batch.
type UpsertStats struct {
	Inserted int
	Updated  int
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
