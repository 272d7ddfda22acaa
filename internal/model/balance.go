package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SnapshotSource records where a balance reading came from.
type SnapshotSource string

const (
	SourceSync     SnapshotSource = "sync"
	SourceManual   SnapshotSource = "manual"
	SourceBackfill SnapshotSource = "backfill"
	SourceLegacy   SnapshotSource = "" // rows written before provenance was tracked
)

// BalanceSnapshot is a point-in-time balance reading. Snapshots are never
// updated; each reading is its own row.
type BalanceSnapshot struct {
	ID           uuid.UUID
	AccountID    uuid.UUID
	Balance      decimal.Decimal
	SnapshotTime time.Time
	Source       SnapshotSource
	CreatedAt    time.Time
}

// RawBalance is a balance reading as reported by a data source.
type RawBalance struct {
	AccountExternalID string
	Balance           decimal.Decimal
	AsOf              time.Time
}

// BalanceBatch is the result of one balance discovery call.
type BalanceBatch struct {
	Balances []RawBalance
	Warnings []string
}
