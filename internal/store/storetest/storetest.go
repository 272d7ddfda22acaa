// Package storetest holds behaviour tests every store.Store must pass.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/model"
	"github.com/ledgerline/ledgerline/internal/store"
)

// Run exercises newStore against the shared store contract.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"accounts", testAccounts},
		{"insert and lookup", testInsertAndLookup},
		{"update keeps split state", testUpdateKeepsSplitState},
		{"key aliases", testKeyAliases},
		{"failed batch writes nothing", testFailedBatch},
		{"atomic rollback", testAtomicRollback},
		{"split hides parent", testSplit},
		{"add tags", testAddTags},
		{"latest date", testLatestDate},
		{"balance snapshots", testBalanceSnapshots},
		{"stats", testStats},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { s.Close() })
			tt.fn(t, s)
		})
	}
}

var created = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedAccount(t *testing.T, s store.Store) model.Account {
	t.Helper()
	a := model.Account{
		ID:          uuid.New(),
		Name:        "Checking",
		Institution: "Chase",
		Currency:    "USD",
		Type:        model.AccountTypeChecking,
		ExternalIDs: map[string]string{"bank": "ACT-1"},
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	require.NoError(t, s.UpsertAccount(context.Background(), a))
	return a
}

func newTxn(accountID uuid.UUID, d time.Time, amount, desc, key string) model.Transaction {
	return model.Transaction{
		ID:              uuid.New(),
		AccountID:       accountID,
		Amount:          dec(amount),
		Description:     desc,
		TransactionDate: d,
		DedupKey:        key,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
}

func insert(t *testing.T, s store.Store, txns ...model.Transaction) {
	t.Helper()
	batch := make([]model.Upsert, len(txns))
	for i, tx := range txns {
		batch[i] = model.Upsert{Op: model.OpInsert, Transaction: tx}
	}
	stats, err := s.UpsertTransactions(context.Background(), batch)
	require.NoError(t, err)
	require.Equal(t, len(txns), stats.Inserted)
}

func testAccounts(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := seedAccount(t, s)

	got, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	a.Name = "Everyday Checking"
	require.NoError(t, s.UpsertAccount(ctx, a))
	all, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Everyday Checking", all[0].Name)

	_, err = s.GetAccount(ctx, uuid.New())
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func testInsertAndLookup(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := seedAccount(t, s)
	posted := date(2025, 7, 16)
	tx := newTxn(a.ID, date(2025, 7, 15), "-42.50", "COFFEE", "external_id:bank:T1")
	tx.PostedDate = &posted
	tx.Tags = []string{"food"}
	tx.ExternalIDs = map[string]string{"bank": "T1"}
	insert(t, s, tx)

	got, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.True(t, tx.Amount.Equal(got.Amount))
	got.Amount = tx.Amount
	assert.Equal(t, tx, got)

	found, err := s.FindByDedupKeys(ctx, a.ID, []string{"external_id:bank:T1", "external_id:bank:T2"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, tx.ID, found["external_id:bank:T1"].ID)

	other, err := s.FindByDedupKeys(ctx, uuid.New(), []string{"external_id:bank:T1"})
	require.NoError(t, err)
	assert.Empty(t, other)

	_, err = s.GetTransaction(ctx, uuid.New())
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func testUpdateKeepsSplitState(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := seedAccount(t, s)
	parent := newTxn(a.ID, date(2025, 7, 15), "-100.00", "COSTCO", "fingerprint:aaaa")
	insert(t, s, parent)

	child := newTxn(a.ID, parent.TransactionDate, "-100.00", "COSTCO groceries", "")
	child.ParentTransactionID = &parent.ID
	require.NoError(t, s.SplitTransaction(ctx, parent.ID, []model.Transaction{child}, created))

	upd := parent.Clone()
	upd.Description = "COSTCO WHOLESALE"
	upd.UpdatedAt = created.Add(time.Hour)
	stats, err := s.UpsertTransactions(ctx, []model.Upsert{{Op: model.OpUpdate, Transaction: upd}})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)

	got, err := s.GetTransaction(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, "COSTCO WHOLESALE", got.Description)
	require.NotNil(t, got.DeletedAt)
	assert.True(t, created.Equal(*got.DeletedAt))
}

func testKeyAliases(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := seedAccount(t, s)
	tx := newTxn(a.ID, date(2025, 7, 15), "-9.99", "NETFLIX", "fingerprint:bbbb")
	insert(t, s, tx)

	upd := tx.Clone()
	upd.DedupKey = "external_id:sf:N1"
	_, err := s.UpsertTransactions(ctx, []model.Upsert{{
		Op:          model.OpUpdate,
		Transaction: upd,
		Keys:        []string{"external_id:sf:N1", "fingerprint:bbbb"},
	}})
	require.NoError(t, err)

	found, err := s.FindByDedupKeys(ctx, a.ID, []string{"fingerprint:bbbb", "external_id:sf:N1"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, tx.ID, found["fingerprint:bbbb"].ID)
	assert.Equal(t, tx.ID, found["external_id:sf:N1"].ID)
	assert.Equal(t, "external_id:sf:N1", found["fingerprint:bbbb"].DedupKey)
}

func testFailedBatch(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := seedAccount(t, s)
	ok := newTxn(a.ID, date(2025, 7, 15), "-1.00", "A", "fingerprint:0001")
	missing := newTxn(a.ID, date(2025, 7, 15), "-2.00", "B", "fingerprint:0002")

	_, err := s.UpsertTransactions(ctx, []model.Upsert{
		{Op: model.OpInsert, Transaction: ok},
		{Op: model.OpUpdate, Transaction: missing},
	})
	require.Error(t, err)

	all, err := s.ListTransactions(ctx, a.ID, true)
	require.NoError(t, err)
	assert.Empty(t, all)
	found, err := s.FindByDedupKeys(ctx, a.ID, []string{"fingerprint:0001"})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func testAtomicRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := seedAccount(t, s)
	boom := assert.AnError

	err := s.Atomic(ctx, func(tx store.Store) error {
		insert(t, tx, newTxn(a.ID, date(2025, 7, 15), "-1.00", "A", "fingerprint:0001"))
		return tx.InsertBalanceSnapshots(ctx, []model.BalanceSnapshot{{
			ID: uuid.New(), AccountID: a.ID, Balance: dec("10"), SnapshotTime: created,
			Source: model.SourceSync, CreatedAt: created,
		}})
	})
	require.NoError(t, err)

	err = s.Atomic(ctx, func(tx store.Store) error {
		insert(t, tx, newTxn(a.ID, date(2025, 7, 16), "-2.00", "B", "fingerprint:0002"))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	all, err := s.ListTransactions(ctx, a.ID, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "A", all[0].Description)
	snaps, err := s.ListBalanceSnapshots(ctx, a.ID, nil)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func testSplit(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := seedAccount(t, s)
	parent := newTxn(a.ID, date(2025, 7, 15), "-100.00", "COSTCO", "fingerprint:cccc")
	plain := newTxn(a.ID, date(2025, 7, 14), "-5.00", "BAGEL", "fingerprint:dddd")
	insert(t, s, parent, plain)

	c1 := newTxn(a.ID, parent.TransactionDate, "-60.00", "groceries", "")
	c2 := newTxn(a.ID, parent.TransactionDate, "-40.00", "household", "")
	c1.ParentTransactionID = &parent.ID
	c2.ParentTransactionID = &parent.ID
	require.NoError(t, s.SplitTransaction(ctx, parent.ID, []model.Transaction{c1, c2}, created))

	visible, err := s.ListTransactions(ctx, a.ID, false)
	require.NoError(t, err)
	var ids []uuid.UUID
	for _, tx := range visible {
		ids = append(ids, tx.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{plain.ID, c1.ID, c2.ID}, ids)

	everything, err := s.ListTransactions(ctx, a.ID, true)
	require.NoError(t, err)
	assert.Len(t, everything, 4)

	children, err := s.Children(ctx, parent.ID)
	require.NoError(t, err)
	assert.Len(t, children, 2)

	orphan := newTxn(a.ID, parent.TransactionDate, "-1.00", "x", "")
	err = s.SplitTransaction(ctx, parent.ID, []model.Transaction{orphan}, created)
	assert.ErrorIs(t, err, model.ErrInvariant)
	err = s.SplitTransaction(ctx, plain.ID, nil, created)
	assert.ErrorIs(t, err, model.ErrInvariant)
}

func testAddTags(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := seedAccount(t, s)
	tx := newTxn(a.ID, date(2025, 7, 15), "-3.00", "COFFEE", "fingerprint:eeee")
	tx.Tags = []string{"food"}
	insert(t, s, tx)

	require.NoError(t, s.AddTags(ctx, tx.ID, []string{" coffee ", "food"}))
	got, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"coffee", "food"}, got.Tags)

	assert.ErrorIs(t, s.AddTags(ctx, uuid.New(), []string{"x"}), model.ErrNotFound)
}

func testLatestDate(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := seedAccount(t, s)

	latest, err := s.FindLatestTransactionDate(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	insert(t, s,
		newTxn(a.ID, date(2025, 7, 10), "-1.00", "A", "fingerprint:0001"),
		newTxn(a.ID, date(2025, 7, 14), "-1.00", "B", "fingerprint:0002"),
		newTxn(a.ID, date(2025, 7, 12), "-1.00", "C", "fingerprint:0003"),
	)
	latest, err = s.FindLatestTransactionDate(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, date(2025, 7, 14), *latest)
}

func testBalanceSnapshots(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := seedAccount(t, s)
	snap := func(at time.Time, bal string, src model.SnapshotSource) model.BalanceSnapshot {
		return model.BalanceSnapshot{
			ID: uuid.New(), AccountID: a.ID, Balance: dec(bal),
			SnapshotTime: at, Source: src, CreatedAt: created,
		}
	}
	require.NoError(t, s.InsertBalanceSnapshots(ctx, []model.BalanceSnapshot{
		snap(date(2025, 7, 2).Add(9*time.Hour), "200", model.SourceManual),
		snap(date(2025, 7, 1).Add(18*time.Hour), "100", model.SourceSync),
		snap(date(2025, 7, 1), "90", model.SourceBackfill),
	}))

	all, err := s.ListBalanceSnapshots(ctx, a.ID, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].Balance.Equal(dec("90")))
	assert.Equal(t, model.SourceManual, all[2].Source)

	day := date(2025, 7, 1)
	onDay, err := s.ListBalanceSnapshots(ctx, a.ID, &day)
	require.NoError(t, err)
	assert.Len(t, onDay, 2)
}

func testStats(t *testing.T, s store.Store) {
	ctx := context.Background()
	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Transactions)
	assert.Nil(t, st.Earliest)

	a := seedAccount(t, s)
	insert(t, s,
		newTxn(a.ID, date(2025, 7, 10), "-1.00", "A", "fingerprint:0001"),
		newTxn(a.ID, date(2025, 7, 14), "-1.00", "B", "fingerprint:0002"),
	)
	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Accounts)
	assert.Equal(t, 2, st.Transactions)
	assert.Equal(t, date(2025, 7, 10), *st.Earliest)
	assert.Equal(t, date(2025, 7, 14), *st.Latest)
}
