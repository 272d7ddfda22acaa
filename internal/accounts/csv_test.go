package accounts

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/model"
)

func TestRoundTrip(t *testing.T) {
	accounts := []model.Account{
		{
			ID:          uuid.MustParse("3f9c2a1b-0d4e-4f00-8a11-22b3c4d5e6f7"),
			Name:        "Everyday Checking",
			Institution: "Chase",
			Type:        model.AccountTypeChecking,
			Currency:    "USD",
			ExternalIDs: map[string]string{"simplefin": "ACT-1", "csv": "chase-1234"},
		},
		{Name: "Visa", Type: model.AccountTypeCredit, Currency: "USD"},
	}

	var buf bytes.Buffer
	err := WriteAccounts(&buf, accounts)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "csv=chase-1234;simplefin=ACT-1")

	got, err := ReadAccounts(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, accounts[0], got[0])
	assert.Equal(t, uuid.Nil, got[1].ID)
	assert.Equal(t, "Visa", got[1].Name)
	assert.Nil(t, got[1].ExternalIDs)
}

func TestReadAccountsErrors(t *testing.T) {
	tests := []struct {
		name string
		row  string
	}{
		{"bad id", "nope,Checking,,checking,USD,"},
		{"bad pair", ",Checking,,checking,USD,simplefin"},
		{"empty id value", ",Checking,,checking,USD,simplefin="},
		{"short row", ",Checking,checking"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := strings.Join(header, ",") + "\n" + tt.row + "\n"
			_, err := ReadAccounts(strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}

func TestReadAccountsEmpty(t *testing.T) {
	got, err := ReadAccounts(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}
