package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/model"
)

var acct = uuid.MustParse("6f1c1f0e-4d0a-4b7e-9a44-5b0c7c3b9a01")

type fakeLookup struct {
	byKey map[string]model.Transaction
	calls [][]string
	err   error
}

func (f *fakeLookup) FindByDedupKeys(_ context.Context, accountID uuid.UUID, keys []string) (map[string]model.Transaction, error) {
	f.calls = append(f.calls, keys)
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]model.Transaction)
	for _, k := range keys {
		if tx, ok := f.byKey[k]; ok && tx.AccountID == accountID {
			out[k] = tx
		}
	}
	return out, nil
}

func txn(amount, desc, extID string) model.Transaction {
	tx := model.Transaction{
		AccountID:       acct,
		Amount:          decimal.RequireFromString(amount),
		Description:     desc,
		TransactionDate: time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC),
	}
	if extID != "" {
		tx.ExternalIDs = map[string]string{"simplefin": extID}
	}
	return tx
}

func TestNew(t *testing.T) {
	for _, name := range []Name{NameExternalID, NameFingerprint, NameComposite} {
		s, err := New(name, "simplefin")
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}
	_, err := New("bogus", "simplefin")
	assert.Error(t, err)
}

func TestExternalID_GenerateKey(t *testing.T) {
	s := &ExternalID{Source: "simplefin"}
	assert.Equal(t, "external_id:simplefin:TRN-1", s.GenerateKey(txn("-4.00", "coffee", "TRN-1")))
	assert.Equal(t, "", s.GenerateKey(txn("-4.00", "coffee", "")))
}

func TestExternalID_FindExisting(t *testing.T) {
	stored := txn("-4.00", "coffee", "TRN-1")
	stored.ID = uuid.New()
	lookup := &fakeLookup{byKey: map[string]model.Transaction{
		"external_id:simplefin:TRN-1": stored,
	}}
	s := &ExternalID{Source: "simplefin"}

	got, err := s.FindExisting(context.Background(), acct, []model.Transaction{
		txn("-4.50", "coffee", "TRN-1"),
		txn("-9.00", "lunch", "TRN-2"),
	}, lookup)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, stored.ID, got["external_id:simplefin:TRN-1"].ID)
	_, present := got["external_id:simplefin:TRN-2"]
	assert.False(t, present, "misses are absent, not nil entries")
	assert.Len(t, lookup.calls, 1, "one batched lookup")
}

func TestFingerprint_FindExisting(t *testing.T) {
	stored := txn("-4.00", "Blue Bottle Coffee", "")
	stored.ID = uuid.New()
	key := FingerprintKey(stored)
	lookup := &fakeLookup{byKey: map[string]model.Transaction{key: stored}}
	s := &Fingerprint{}

	candidate := txn("-4.00", "BLUE BOTTLE COFFEE!!", "")
	got, err := s.FindExisting(context.Background(), acct, []model.Transaction{candidate, candidate}, lookup)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, got[s.GenerateKey(candidate)].ID)
	require.Len(t, lookup.calls, 1)
	assert.Len(t, lookup.calls[0], 1, "duplicate keys collapse before lookup")
}

func TestComposite_FallsBackToFingerprint(t *testing.T) {
	csvRow := txn("-4.00", "Blue Bottle Coffee", "")
	csvRow.ID = uuid.New()
	lookup := &fakeLookup{byKey: map[string]model.Transaction{FingerprintKey(csvRow): csvRow}}
	s := &Composite{Source: "simplefin"}

	apiRow := txn("-4.00", "BLUE BOTTLE COFFEE", "TRN-9")
	got, err := s.FindExisting(context.Background(), acct, []model.Transaction{apiRow}, lookup)
	require.NoError(t, err)
	assert.Equal(t, csvRow.ID, got["external_id:simplefin:TRN-9"].ID)
	require.Len(t, lookup.calls, 1)
	assert.ElementsMatch(t, []string{"external_id:simplefin:TRN-9", FingerprintKey(apiRow)}, lookup.calls[0])
}

func TestComposite_PrefersExternalID(t *testing.T) {
	byID := txn("-4.00", "old description", "TRN-1")
	byID.ID = uuid.New()
	byPrint := txn("-4.00", "coffee", "")
	byPrint.ID = uuid.New()
	candidate := txn("-4.00", "coffee", "TRN-1")
	lookup := &fakeLookup{byKey: map[string]model.Transaction{
		"external_id:simplefin:TRN-1": byID,
		FingerprintKey(candidate):     byPrint,
	}}

	got, err := (&Composite{Source: "simplefin"}).FindExisting(context.Background(), acct, []model.Transaction{candidate}, lookup)
	require.NoError(t, err)
	assert.Equal(t, byID.ID, got["external_id:simplefin:TRN-1"].ID)
}

func TestComposite_RejectsFingerprintOwnedByOtherID(t *testing.T) {
	first := txn("-4.00", "coffee", "TRN-1")
	first.ID = uuid.New()
	second := txn("-4.00", "coffee", "TRN-2")
	lookup := &fakeLookup{byKey: map[string]model.Transaction{FingerprintKey(first): first}}

	got, err := (&Composite{Source: "simplefin"}).FindExisting(context.Background(), acct, []model.Transaction{second}, lookup)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindExisting_LookupError(t *testing.T) {
	lookup := &fakeLookup{err: errors.New("database is locked")}
	_, err := (&Fingerprint{}).FindExisting(context.Background(), acct, []model.Transaction{txn("-1", "x", "")}, lookup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
}

func TestFindExisting_NoCandidates(t *testing.T) {
	lookup := &fakeLookup{}
	got, err := (&ExternalID{Source: "simplefin"}).FindExisting(context.Background(), acct, nil, lookup)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, lookup.calls)
}

func TestKeys(t *testing.T) {
	tx := txn("-4.00", "coffee", "TRN-1")
	keys := Keys("simplefin", tx)
	require.Len(t, keys, 2)
	assert.Equal(t, "external_id:simplefin:TRN-1", keys[0])
	assert.Equal(t, FingerprintKey(tx), keys[1])

	assert.Equal(t, []string{FingerprintKey(tx)}, Keys("csv", tx))
}
