package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/model"
	"github.com/ledgerline/ledgerline/internal/store"
)

const txColumns = `t.id, t.account_id, t.amount, t.description, t.transaction_date, t.posted_date,
	t.tags, t.external_ids, t.dedup_key, t.deleted_at, t.parent_transaction_id, t.created_at, t.updated_at`

// SQLite's default host-parameter limit is well above this.
const maxKeysPerQuery = 500

func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (model.Transaction, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transactions t WHERE t.id = ?`, id.String())
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.Transaction{}, fmt.Errorf("reading transaction %s: %w", id, err)
	}
	return t, nil
}

func (s *Store) ListTransactions(ctx context.Context, accountID uuid.UUID, includeDeleted bool) ([]model.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions t WHERE t.account_id = ?`
	if !includeDeleted {
		query += ` AND t.deleted_at IS NULL
			AND NOT EXISTS (SELECT 1 FROM transactions c WHERE c.parent_transaction_id = t.id)`
	}
	query += ` ORDER BY t.transaction_date, t.id`
	return s.queryTransactions(ctx, query, accountID.String())
}

func (s *Store) Children(ctx context.Context, parentID uuid.UUID) ([]model.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+txColumns+` FROM transactions t WHERE t.parent_transaction_id = ? ORDER BY t.transaction_date, t.id`,
		parentID.String())
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("querying transactions: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) FindLatestTransactionDate(ctx context.Context, accountID uuid.UUID) (*time.Time, error) {
	var latest sql.NullString
	err := s.q.QueryRowContext(ctx,
		`SELECT MAX(transaction_date) FROM transactions WHERE account_id = ?`, accountID.String()).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("finding latest transaction date: %w", err)
	}
	return parseNullDate(latest)
}

// FindByDedupKeys resolves keys through the key index, which holds every key
// a row has ever been stored under.
func (s *Store) FindByDedupKeys(ctx context.Context, accountID uuid.UUID, keys []string) (map[string]model.Transaction, error) {
	out := make(map[string]model.Transaction)
	for start := 0; start < len(keys); start += maxKeysPerQuery {
		chunk := keys[start:min(start+maxKeysPerQuery, len(keys))]
		args := make([]any, 0, len(chunk)+1)
		args = append(args, accountID.String())
		for _, k := range chunk {
			args = append(args, k)
		}
		rows, err := s.q.QueryContext(ctx, `SELECT k.dedup_key, `+txColumns+`
			FROM transaction_keys k JOIN transactions t ON t.id = k.transaction_id
			WHERE k.account_id = ? AND k.dedup_key IN (`+placeholders(len(chunk))+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("looking up dedup keys: %w", err)
		}
		err = func() error {
			defer rows.Close()
			for rows.Next() {
				var key string
				t, err := scanTransaction(keyedScanner{rows: rows, key: &key})
				if err != nil {
					return err
				}
				out[key] = t
			}
			return rows.Err()
		}()
		if err != nil {
			return nil, fmt.Errorf("looking up dedup keys: %w", err)
		}
	}
	return out, nil
}

// keyedScanner prepends the dedup key column to a transaction scan.
type keyedScanner struct {
	rows *sql.Rows
	key  *string
}

func (k keyedScanner) Scan(dest ...any) error {
	return k.rows.Scan(append([]any{k.key}, dest...)...)
}

// UpsertTransactions writes the batch in one database transaction.
func (s *Store) UpsertTransactions(ctx context.Context, batch []model.Upsert) (model.UpsertStats, error) {
	var stats model.UpsertStats
	err := s.Atomic(ctx, func(tx store.Store) error {
		ts := tx.(*Store)
		for i, u := range batch {
			switch u.Op {
			case model.OpInsert:
				if err := ts.insertTransaction(ctx, u.Transaction); err != nil {
					return fmt.Errorf("upsert %d: %w", i, err)
				}
				stats.Inserted++
			case model.OpUpdate:
				if err := ts.updateTransaction(ctx, u.Transaction); err != nil {
					return fmt.Errorf("upsert %d: %w", i, err)
				}
				stats.Updated++
			default:
				return fmt.Errorf("upsert %d: unknown op %d", i, u.Op)
			}
			keys := append([]string{u.Transaction.DedupKey}, u.Keys...)
			if err := ts.indexKeys(ctx, u.Transaction, keys); err != nil {
				return fmt.Errorf("upsert %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return model.UpsertStats{}, err
	}
	return stats, nil
}

func (s *Store) insertTransaction(ctx context.Context, t model.Transaction) error {
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return err
	}
	ids, err := encodeIDs(t.ExternalIDs)
	if err != nil {
		return err
	}
	var parent sql.NullString
	if t.ParentTransactionID != nil {
		parent = sql.NullString{String: t.ParentTransactionID.String(), Valid: true}
	}
	_, err = s.q.ExecContext(ctx, `INSERT INTO transactions (
			id, account_id, amount, description, transaction_date, posted_date,
			tags, external_ids, dedup_key, deleted_at, parent_transaction_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.AccountID.String(), t.Amount.String(), t.Description,
		formatDate(t.TransactionDate), nullDate(t.PostedDate), tags, ids, t.DedupKey,
		nullTimestamp(t.DeletedAt), parent, formatTimestamp(t.CreatedAt), formatTimestamp(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("inserting transaction %s: %w", t.ID, err)
	}
	return nil
}

func (s *Store) updateTransaction(ctx context.Context, t model.Transaction) error {
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return err
	}
	ids, err := encodeIDs(t.ExternalIDs)
	if err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `UPDATE transactions SET
			amount = ?, description = ?, transaction_date = ?, posted_date = ?,
			tags = ?, external_ids = ?, dedup_key = ?, updated_at = ?
		WHERE id = ?`,
		t.Amount.String(), t.Description, formatDate(t.TransactionDate), nullDate(t.PostedDate),
		tags, ids, t.DedupKey, formatTimestamp(t.UpdatedAt), t.ID.String())
	if err != nil {
		return fmt.Errorf("updating transaction %s: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating transaction %s: %w", t.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("updating transaction %s: %w", t.ID, model.ErrNotFound)
	}
	return nil
}

func (s *Store) indexKeys(ctx context.Context, t model.Transaction, keys []string) error {
	for _, k := range keys {
		if k == "" {
			continue
		}
		_, err := s.q.ExecContext(ctx,
			`INSERT OR IGNORE INTO transaction_keys (account_id, dedup_key, transaction_id) VALUES (?, ?, ?)`,
			t.AccountID.String(), k, t.ID.String())
		if err != nil {
			return fmt.Errorf("indexing key %s: %w", k, err)
		}
	}
	return nil
}

func (s *Store) AddTags(ctx context.Context, id uuid.UUID, tags []string) error {
	return s.Atomic(ctx, func(tx store.Store) error {
		ts := tx.(*Store)
		t, err := ts.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		encoded, err := encodeTags(model.UnionTags(t.Tags, tags))
		if err != nil {
			return err
		}
		if _, err := ts.q.ExecContext(ctx, `UPDATE transactions SET tags = ? WHERE id = ?`, encoded, id.String()); err != nil {
			return fmt.Errorf("tagging transaction %s: %w", id, err)
		}
		return nil
	})
}

func (s *Store) SplitTransaction(ctx context.Context, parentID uuid.UUID, children []model.Transaction, deletedAt time.Time) error {
	if len(children) == 0 {
		return fmt.Errorf("%w: soft-deleting %s without children", model.ErrInvariant, parentID)
	}
	return s.Atomic(ctx, func(tx store.Store) error {
		ts := tx.(*Store)
		if _, err := ts.GetTransaction(ctx, parentID); err != nil {
			return err
		}
		for _, c := range children {
			if c.ParentTransactionID == nil || *c.ParentTransactionID != parentID {
				return fmt.Errorf("%w: child %s does not reference %s", model.ErrInvariant, c.ID, parentID)
			}
			if err := ts.insertTransaction(ctx, c); err != nil {
				return err
			}
		}
		_, err := ts.q.ExecContext(ctx, `UPDATE transactions SET deleted_at = ? WHERE id = ?`,
			formatTimestamp(deletedAt), parentID.String())
		if err != nil {
			return fmt.Errorf("soft-deleting transaction %s: %w", parentID, err)
		}
		return nil
	})
}

func scanTransaction(r rowScanner) (model.Transaction, error) {
	var (
		t                           model.Transaction
		id, account, amount, date   string
		tags, ids, created, updated string
		posted, deleted, parent     sql.NullString
	)
	err := r.Scan(&id, &account, &amount, &t.Description, &date, &posted,
		&tags, &ids, &t.DedupKey, &deleted, &parent, &created, &updated)
	if err != nil {
		return model.Transaction{}, err
	}
	if t.ID, err = uuid.Parse(id); err != nil {
		return model.Transaction{}, fmt.Errorf("parsing transaction id %q: %w", id, err)
	}
	if t.AccountID, err = uuid.Parse(account); err != nil {
		return model.Transaction{}, fmt.Errorf("parsing account id %q: %w", account, err)
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return model.Transaction{}, fmt.Errorf("parsing amount %q: %w", amount, err)
	}
	if t.TransactionDate, err = parseDate(date); err != nil {
		return model.Transaction{}, err
	}
	if t.PostedDate, err = parseNullDate(posted); err != nil {
		return model.Transaction{}, err
	}
	if t.Tags, err = decodeTags(tags); err != nil {
		return model.Transaction{}, err
	}
	if t.ExternalIDs, err = decodeIDs(ids); err != nil {
		return model.Transaction{}, err
	}
	if t.DeletedAt, err = parseNullTimestamp(deleted); err != nil {
		return model.Transaction{}, err
	}
	if parent.Valid {
		p, err := uuid.Parse(parent.String)
		if err != nil {
			return model.Transaction{}, fmt.Errorf("parsing parent id %q: %w", parent.String, err)
		}
		t.ParentTransactionID = &p
	}
	if t.CreatedAt, err = parseTimestamp(created); err != nil {
		return model.Transaction{}, err
	}
	if t.UpdatedAt, err = parseTimestamp(updated); err != nil {
		return model.Transaction{}, err
	}
	return t, nil
}
