// Package balances records manual balance readings and reconstructs daily
// history from transactions.
package balances

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/logger"
	"github.com/ledgerline/ledgerline/internal/model"
	"github.com/ledgerline/ledgerline/internal/store"
)

// ErrDuplicateSnapshot is returned when the same balance was already
// recorded that day.
var ErrDuplicateSnapshot = errors.New("balance snapshot already recorded for that day")

// ErrNoAnchor is returned by Backfill when an account has no snapshot to
// start from.
var ErrNoAnchor = errors.New("no balance snapshot to backfill from")

var tolerance = decimal.New(1, -2)

// Service manages balance snapshots.
type Service struct {
	store store.Store
	now   func() time.Time
	newID func() uuid.UUID
}

// NewService creates a balance service. Nil clock and ID functions default
// to time.Now and uuid.New.
func NewService(s store.Store, now func() time.Time, newID func() uuid.UUID) *Service {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = uuid.New
	}
	return &Service{store: s, now: now, newID: newID}
}

// AddManual records balance for accountID at the given time (now if zero).
func (s *Service) AddManual(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal, at time.Time) (model.BalanceSnapshot, error) {
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return model.BalanceSnapshot{}, err
	}
	now := s.now().UTC()
	if at.IsZero() {
		at = now
	}
	at = at.UTC()

	existing, err := s.store.ListBalanceSnapshots(ctx, accountID, &at)
	if err != nil {
		return model.BalanceSnapshot{}, err
	}
	for _, e := range existing {
		if e.Balance.Sub(balance).Abs().LessThan(tolerance) {
			return model.BalanceSnapshot{}, fmt.Errorf("%w: %s on %s",
				ErrDuplicateSnapshot, balance.StringFixed(2), at.Format(model.DateFormat))
		}
	}

	snap := model.BalanceSnapshot{
		ID:           s.newID(),
		AccountID:    accountID,
		Balance:      balance,
		SnapshotTime: at,
		Source:       model.SourceManual,
		CreatedAt:    now,
	}
	if err := s.store.InsertBalanceSnapshots(ctx, []model.BalanceSnapshot{snap}); err != nil {
		return model.BalanceSnapshot{}, fmt.Errorf("saving balance snapshot: %w", err)
	}
	return snap, nil
}

// BackfillResult reports a backfill.
type BackfillResult struct {
	Created   []model.BalanceSnapshot
	Skipped   int
	AnchorDay time.Time
}

// Backfill walks back days from the latest snapshot, deriving each earlier
// end-of-day balance by reversing that later day's transactions. Days that
// already have any snapshot keep it. The result is an estimate: missing
// transactions make every earlier day wrong.
func (s *Service) Backfill(ctx context.Context, accountID uuid.UUID, days int, dryRun bool) (BackfillResult, error) {
	if days <= 0 {
		return BackfillResult{}, fmt.Errorf("backfill days must be positive, got %d", days)
	}
	snaps, err := s.store.ListBalanceSnapshots(ctx, accountID, nil)
	if err != nil {
		return BackfillResult{}, err
	}
	if len(snaps) == 0 {
		return BackfillResult{}, fmt.Errorf("account %s: %w", accountID, ErrNoAnchor)
	}
	anchor := snaps[len(snaps)-1]
	anchorDay := model.Day(anchor.SnapshotTime.UTC())

	have := make(map[time.Time]bool, len(snaps))
	for _, sn := range snaps {
		have[model.Day(sn.SnapshotTime.UTC())] = true
	}

	txns, err := s.store.ListTransactions(ctx, accountID, false)
	if err != nil {
		return BackfillResult{}, err
	}
	byDay := make(map[time.Time]decimal.Decimal)
	for _, t := range txns {
		d := model.Day(t.TransactionDate)
		byDay[d] = byDay[d].Add(t.Amount)
	}

	res := BackfillResult{AnchorDay: anchorDay}
	now := s.now().UTC()
	balance := anchor.Balance
	for i := 1; i <= days; i++ {
		day := anchorDay.AddDate(0, 0, -i)
		balance = balance.Sub(byDay[day.AddDate(0, 0, 1)])
		if have[day] {
			res.Skipped++
			continue
		}
		res.Created = append(res.Created, model.BalanceSnapshot{
			ID:           s.newID(),
			AccountID:    accountID,
			Balance:      balance,
			SnapshotTime: day.Add(24*time.Hour - time.Second),
			Source:       model.SourceBackfill,
			CreatedAt:    now,
		})
	}

	if !dryRun && len(res.Created) > 0 {
		if err := s.store.InsertBalanceSnapshots(ctx, res.Created); err != nil {
			return BackfillResult{}, fmt.Errorf("saving backfilled snapshots: %w", err)
		}
	}
	log := logger.FromContext(ctx)
	log.Info().
		Str("account", accountID.String()).
		Int("created", len(res.Created)).
		Int("skipped", res.Skipped).
		Bool("dry_run", dryRun).
		Msg("balance backfill")
	return res, nil
}
