package accounts

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/model"
	"github.com/ledgerline/ledgerline/internal/source/demo"
	"github.com/ledgerline/ledgerline/internal/store/memory"
)

var now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newService(t *testing.T) *Service {
	t.Helper()
	return NewService(memory.New(), func() time.Time { return now })
}

func TestSaveDefaults(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	a, err := svc.Save(ctx, model.Account{Name: "  Checking ", Currency: "usd"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, "Checking", a.Name)
	assert.Equal(t, model.AccountTypeChecking, a.Type)
	assert.Equal(t, "USD", a.Currency)
	assert.Equal(t, now, a.CreatedAt)

	_, err = svc.Save(ctx, model.Account{Name: " "})
	assert.Error(t, err)
	_, err = svc.Save(ctx, model.Account{Name: "X", Type: "asset"})
	assert.Error(t, err)
}

func TestSaveRejectsSharedExternalID(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	a, err := svc.Save(ctx, model.Account{Name: "A", ExternalIDs: map[string]string{"simplefin": "ACT-1"}})
	require.NoError(t, err)
	_, err = svc.Save(ctx, model.Account{Name: "B", ExternalIDs: map[string]string{"simplefin": "ACT-1"}})
	assert.ErrorContains(t, err, "already belongs to A")

	// Re-saving the owner is fine.
	a.Institution = "Chase"
	_, err = svc.Save(ctx, a)
	require.NoError(t, err)

	all, err := svc.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Chase", all[0].Institution)
}

func TestLookups(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	for _, a := range DemoAccounts("demo") {
		_, err := svc.Save(ctx, a)
		require.NoError(t, err)
	}
	_, err := svc.Save(ctx, model.Account{Name: "Cash", Type: model.AccountTypeOther})
	require.NoError(t, err)

	checking, err := svc.ByExternalID(ctx, "demo", demo.Checking)
	require.NoError(t, err)
	assert.Equal(t, "Demo Checking", checking.Name)

	_, err = svc.ByExternalID(ctx, "demo", "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)

	linked, err := svc.ByIntegration(ctx, "demo")
	require.NoError(t, err)
	assert.Len(t, linked, 2)

	got, err := svc.Resolve(ctx, "demo checking")
	require.NoError(t, err)
	assert.Equal(t, checking.ID, got.ID)

	got, err = svc.Resolve(ctx, checking.ID.String())
	require.NoError(t, err)
	assert.Equal(t, checking.ID, got.ID)

	got, err = svc.Resolve(ctx, checking.ID.String()[:8])
	require.NoError(t, err)
	assert.Equal(t, checking.ID, got.ID)

	_, err = svc.Resolve(ctx, "savings account")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestLoadAndExport(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	existing, err := svc.Save(ctx, model.Account{Name: "Checking"})
	require.NoError(t, err)

	in := strings.Join(header, ",") + "\n" +
		",checking,Chase,checking,USD,simplefin=ACT-1\n" +
		",Visa,Chase,credit,USD,simplefin=ACT-2\n"
	saved, err := svc.Load(ctx, strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, existing.ID, saved[0].ID, "matched by name")
	assert.Equal(t, "Chase", saved[0].Institution)

	all, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	var buf bytes.Buffer
	require.NoError(t, svc.Export(ctx, &buf))
	back, err := ReadAccounts(&buf)
	require.NoError(t, err)
	assert.Len(t, back, 2)

	// Loading the export again changes nothing.
	var again bytes.Buffer
	require.NoError(t, svc.Export(ctx, &again))
	saved, err = svc.Load(ctx, &again)
	require.NoError(t, err)
	assert.Len(t, saved, 2)
	all, err = svc.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
