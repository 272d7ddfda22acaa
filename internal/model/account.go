package model

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// AccountType classifies accounts for reporting.
type AccountType string

const (
	AccountTypeChecking   AccountType = "checking"
	AccountTypeSavings    AccountType = "savings"
	AccountTypeCredit     AccountType = "credit"
	AccountTypeInvestment AccountType = "investment"
	AccountTypeLoan       AccountType = "loan"
	AccountTypeOther      AccountType = "other"
)

// Account is a bank or card account owned by the user.
type Account struct {
	ID          uuid.UUID
	Name        string
	Institution string
	Currency    string
	Type        AccountType
	ExternalIDs map[string]string // integration name -> provider account ID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ExternalID returns the provider account ID for an integration, or "".
func (a Account) ExternalID(integration string) string { return a.ExternalIDs[integration] }

// Clone returns a deep copy.
func (a Account) Clone() Account {
	out := a
	if a.ExternalIDs != nil {
		out.ExternalIDs = maps.Clone(a.ExternalIDs)
	}
	return out
}
