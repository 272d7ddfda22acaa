package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/model"
	"github.com/ledgerline/ledgerline/internal/store"
)

func (s *Store) InsertBalanceSnapshots(ctx context.Context, batch []model.BalanceSnapshot) error {
	return s.Atomic(ctx, func(tx store.Store) error {
		ts := tx.(*Store)
		for _, b := range batch {
			_, err := ts.q.ExecContext(ctx, `INSERT INTO balance_snapshots
					(id, account_id, balance, snapshot_time, source, created_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				b.ID.String(), b.AccountID.String(), b.Balance.String(),
				formatTimestamp(b.SnapshotTime), string(b.Source), formatTimestamp(b.CreatedAt))
			if err != nil {
				return fmt.Errorf("inserting balance snapshot for %s: %w", b.AccountID, err)
			}
		}
		return nil
	})
}

func (s *Store) ListBalanceSnapshots(ctx context.Context, accountID uuid.UUID, day *time.Time) ([]model.BalanceSnapshot, error) {
	query := `SELECT id, account_id, balance, snapshot_time, source, created_at
		FROM balance_snapshots WHERE account_id = ?`
	args := []any{accountID.String()}
	if day != nil {
		query += ` AND substr(snapshot_time, 1, 10) = ?`
		args = append(args, formatDate(model.Day(*day)))
	}
	query += ` ORDER BY snapshot_time, id`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing balance snapshots: %w", err)
	}
	defer rows.Close()

	var out []model.BalanceSnapshot
	for rows.Next() {
		var (
			b                         model.BalanceSnapshot
			id, account, balance      string
			snapshot, source, created string
		)
		if err := rows.Scan(&id, &account, &balance, &snapshot, &source, &created); err != nil {
			return nil, fmt.Errorf("listing balance snapshots: %w", err)
		}
		if b.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parsing snapshot id %q: %w", id, err)
		}
		if b.AccountID, err = uuid.Parse(account); err != nil {
			return nil, fmt.Errorf("parsing account id %q: %w", account, err)
		}
		if b.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("parsing balance %q: %w", balance, err)
		}
		if b.SnapshotTime, err = parseTimestamp(snapshot); err != nil {
			return nil, err
		}
		if b.CreatedAt, err = parseTimestamp(created); err != nil {
			return nil, err
		}
		b.Source = model.SnapshotSource(source)
		out = append(out, b)
	}
	return out, rows.Err()
}
