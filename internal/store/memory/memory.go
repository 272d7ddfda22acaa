// Package memory is an in-process Store used by tests and demo mode.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/model"
	"github.com/ledgerline/ledgerline/internal/store"
)

type keyRef struct {
	account uuid.UUID
	key     string
}

type state struct {
	accounts  map[uuid.UUID]model.Account
	txns      map[uuid.UUID]model.Transaction
	keys      map[keyRef]uuid.UUID
	snapshots []model.BalanceSnapshot
}

func (s *state) clone() *state {
	out := &state{
		accounts:  make(map[uuid.UUID]model.Account, len(s.accounts)),
		txns:      make(map[uuid.UUID]model.Transaction, len(s.txns)),
		keys:      maps.Clone(s.keys),
		snapshots: slices.Clone(s.snapshots),
	}
	for id, a := range s.accounts {
		out.accounts[id] = a.Clone()
	}
	for id, t := range s.txns {
		out.txns[id] = t.Clone()
	}
	return out
}

// Store keeps everything in maps. Values are copied in and out.
type Store struct {
	mu   *sync.Mutex
	st   **state
	inTx bool
}

var _ store.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	st := &state{
		accounts: make(map[uuid.UUID]model.Account),
		txns:     make(map[uuid.UUID]model.Transaction),
		keys:     make(map[keyRef]uuid.UUID),
	}
	return &Store{mu: &sync.Mutex{}, st: &st}
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) data() *state { return *s.st }

// Atomic runs fn against a view of the store; on error every write fn made
// is discarded.
func (s *Store) Atomic(ctx context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	backup := s.data().clone()
	if err := fn(&Store{mu: s.mu, st: s.st, inTx: true}); err != nil {
		*s.st = backup
		return err
	}
	return nil
}

func (s *Store) GetAccount(_ context.Context, id uuid.UUID) (model.Account, error) {
	defer s.lock()()
	a, ok := s.data().accounts[id]
	if !ok {
		return model.Account{}, fmt.Errorf("account %s: %w", id, model.ErrNotFound)
	}
	return a.Clone(), nil
}

func (s *Store) ListAccounts(_ context.Context) ([]model.Account, error) {
	defer s.lock()()
	out := make([]model.Account, 0, len(s.data().accounts))
	for _, a := range s.data().accounts {
		out = append(out, a.Clone())
	}
	slices.SortFunc(out, func(a, b model.Account) int {
		if c := compareStrings(a.Name, b.Name); c != 0 {
			return c
		}
		return compareStrings(a.ID.String(), b.ID.String())
	})
	return out, nil
}

func (s *Store) UpsertAccount(_ context.Context, a model.Account) error {
	defer s.lock()()
	s.data().accounts[a.ID] = a.Clone()
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id uuid.UUID) (model.Transaction, error) {
	defer s.lock()()
	t, ok := s.data().txns[id]
	if !ok {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", id, model.ErrNotFound)
	}
	return t.Clone(), nil
}

func (s *Store) ListTransactions(_ context.Context, accountID uuid.UUID, includeDeleted bool) ([]model.Transaction, error) {
	defer s.lock()()
	parents := make(map[uuid.UUID]bool)
	for _, t := range s.data().txns {
		if t.ParentTransactionID != nil {
			parents[*t.ParentTransactionID] = true
		}
	}
	var out []model.Transaction
	for _, t := range s.data().txns {
		if t.AccountID != accountID {
			continue
		}
		if !includeDeleted && (t.IsDeleted() || parents[t.ID]) {
			continue
		}
		out = append(out, t.Clone())
	}
	sortTransactions(out)
	return out, nil
}

func (s *Store) Children(_ context.Context, parentID uuid.UUID) ([]model.Transaction, error) {
	defer s.lock()()
	var out []model.Transaction
	for _, t := range s.data().txns {
		if t.ParentTransactionID != nil && *t.ParentTransactionID == parentID {
			out = append(out, t.Clone())
		}
	}
	sortTransactions(out)
	return out, nil
}

func (s *Store) FindLatestTransactionDate(_ context.Context, accountID uuid.UUID) (*time.Time, error) {
	defer s.lock()()
	var latest *time.Time
	for _, t := range s.data().txns {
		if t.AccountID != accountID {
			continue
		}
		if latest == nil || t.TransactionDate.After(*latest) {
			d := t.TransactionDate
			latest = &d
		}
	}
	return latest, nil
}

func (s *Store) FindByDedupKeys(_ context.Context, accountID uuid.UUID, keys []string) (map[string]model.Transaction, error) {
	defer s.lock()()
	out := make(map[string]model.Transaction)
	for _, k := range keys {
		id, ok := s.data().keys[keyRef{account: accountID, key: k}]
		if !ok {
			continue
		}
		out[k] = s.data().txns[id].Clone()
	}
	return out, nil
}

// UpsertTransactions applies batch atomically.
func (s *Store) UpsertTransactions(ctx context.Context, batch []model.Upsert) (model.UpsertStats, error) {
	var stats model.UpsertStats
	err := s.Atomic(ctx, func(tx store.Store) error {
		st := tx.(*Store).data()
		for i, u := range batch {
			t := u.Transaction.Clone()
			switch u.Op {
			case model.OpInsert:
				if _, exists := st.txns[t.ID]; exists {
					return fmt.Errorf("upsert %d: transaction %s already exists", i, t.ID)
				}
				st.txns[t.ID] = t
				stats.Inserted++
			case model.OpUpdate:
				cur, exists := st.txns[t.ID]
				if !exists {
					return fmt.Errorf("upsert %d: transaction %s: %w", i, t.ID, model.ErrNotFound)
				}
				t.DeletedAt = cur.DeletedAt
				t.ParentTransactionID = cur.ParentTransactionID
				t.CreatedAt = cur.CreatedAt
				st.txns[t.ID] = t
				stats.Updated++
			default:
				return fmt.Errorf("upsert %d: unknown op %d", i, u.Op)
			}
			for _, k := range append([]string{t.DedupKey}, u.Keys...) {
				if k == "" {
					continue
				}
				ref := keyRef{account: t.AccountID, key: k}
				if _, taken := st.keys[ref]; !taken {
					st.keys[ref] = t.ID
				}
			}
		}
		return nil
	})
	if err != nil {
		return model.UpsertStats{}, err
	}
	return stats, nil
}

func (s *Store) AddTags(_ context.Context, id uuid.UUID, tags []string) error {
	defer s.lock()()
	t, ok := s.data().txns[id]
	if !ok {
		return fmt.Errorf("transaction %s: %w", id, model.ErrNotFound)
	}
	t.Tags = model.UnionTags(t.Tags, tags)
	s.data().txns[id] = t
	return nil
}

func (s *Store) SplitTransaction(ctx context.Context, parentID uuid.UUID, children []model.Transaction, deletedAt time.Time) error {
	return s.Atomic(ctx, func(tx store.Store) error {
		st := tx.(*Store).data()
		parent, ok := st.txns[parentID]
		if !ok {
			return fmt.Errorf("transaction %s: %w", parentID, model.ErrNotFound)
		}
		if len(children) == 0 {
			return fmt.Errorf("%w: soft-deleting %s without children", model.ErrInvariant, parentID)
		}
		for _, c := range children {
			if c.ParentTransactionID == nil || *c.ParentTransactionID != parentID {
				return fmt.Errorf("%w: child %s does not reference %s", model.ErrInvariant, c.ID, parentID)
			}
			st.txns[c.ID] = c.Clone()
		}
		d := deletedAt
		parent.DeletedAt = &d
		st.txns[parentID] = parent
		return nil
	})
}

func (s *Store) InsertBalanceSnapshots(_ context.Context, batch []model.BalanceSnapshot) error {
	defer s.lock()()
	s.data().snapshots = append(s.data().snapshots, batch...)
	return nil
}

func (s *Store) ListBalanceSnapshots(_ context.Context, accountID uuid.UUID, day *time.Time) ([]model.BalanceSnapshot, error) {
	defer s.lock()()
	var out []model.BalanceSnapshot
	for _, b := range s.data().snapshots {
		if b.AccountID != accountID {
			continue
		}
		if day != nil && !model.Day(b.SnapshotTime).Equal(model.Day(*day)) {
			continue
		}
		out = append(out, b)
	}
	slices.SortStableFunc(out, func(a, b model.BalanceSnapshot) int { return a.SnapshotTime.Compare(b.SnapshotTime) })
	return out, nil
}

func (s *Store) Stats(_ context.Context) (store.Stats, error) {
	defer s.lock()()
	st := store.Stats{
		Accounts:     len(s.data().accounts),
		Transactions: len(s.data().txns),
		Snapshots:    len(s.data().snapshots),
	}
	for _, t := range s.data().txns {
		d := t.TransactionDate
		if st.Earliest == nil || d.Before(*st.Earliest) {
			st.Earliest = &d
		}
		if st.Latest == nil || d.After(*st.Latest) {
			st.Latest = &d
		}
	}
	return st, nil
}

func (s *Store) Close() error { return nil }

func sortTransactions(txns []model.Transaction) {
	slices.SortFunc(txns, func(a, b model.Transaction) int {
		if c := a.TransactionDate.Compare(b.TransactionDate); c != 0 {
			return c
		}
		return compareStrings(a.ID.String(), b.ID.String())
	})
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
