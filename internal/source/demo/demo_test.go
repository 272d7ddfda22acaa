package demo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverTransactionsIsDeterministic(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

	a, err := s.DiscoverTransactions(ctx, []string{Checking}, start, end, nil)
	require.NoError(t, err)
	b, err := s.DiscoverTransactions(ctx, []string{Checking}, start, end, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	require.NotEmpty(t, a.Transactions)

	seen := map[string]bool{}
	for _, tx := range a.Transactions {
		assert.False(t, seen[tx.ExternalID], "duplicate id %s", tx.ExternalID)
		seen[tx.ExternalID] = true
		assert.Equal(t, Checking, tx.AccountExternalID)
		assert.False(t, tx.TransactionDate.Before(start))
		assert.False(t, tx.TransactionDate.After(end))
	}
	assert.True(t, seen["demo-checking-20250615-payroll"])
}

func TestDiscoverTransactionsSavingsAndUnknown(t *testing.T) {
	s := New(nil)
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC)

	batch, err := s.DiscoverTransactions(context.Background(), []string{Savings, "nope"}, start, end, nil)
	require.NoError(t, err)
	assert.Len(t, batch.Transactions, 2)
	assert.Len(t, batch.Warnings, 1)
}

func TestDiscoverBalances(t *testing.T) {
	at := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	s := New(func() time.Time { return at })

	batch, err := s.DiscoverBalances(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, batch.Balances, 2)
	assert.Equal(t, Checking, batch.Balances[0].AccountExternalID)
	assert.Equal(t, "4210.55", batch.Balances[0].Balance.StringFixed(2))
	assert.Equal(t, at, batch.Balances[0].AsOf)
}
