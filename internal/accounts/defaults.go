package accounts

import (
	"github.com/ledgerline/ledgerline/internal/model"
	"github.com/ledgerline/ledgerline/internal/source/demo"
)

// DemoAccounts returns the accounts the demo data source reports on, linked
// to the integration with the given name.
func DemoAccounts(integration string) []model.Account {
	return []model.Account{
		{
			Name:        "Demo Checking",
			Institution: "Demo Bank",
			Type:        model.AccountTypeChecking,
			Currency:    DefaultCurrency,
			ExternalIDs: map[string]string{integration: demo.Checking},
		},
		{
			Name:        "Demo Savings",
			Institution: "Demo Bank",
			Type:        model.AccountTypeSavings,
			Currency:    DefaultCurrency,
			ExternalIDs: map[string]string{integration: demo.Savings},
		},
	}
}
