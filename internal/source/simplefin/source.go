package simplefin

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/ledgerline/ledgerline/internal/model"
)

// Account describes a remote account, for linking local accounts.
type Account struct {
	ID          string
	Name        string
	Currency    string
	Institution string
	Balance     string
}

// Accounts lists the accounts the access URL can see.
func (c *Client) Accounts(ctx context.Context, accessURL string) ([]Account, error) {
	set, err := c.accounts(ctx, accessURL, query{balancesOnly: true})
	if err != nil {
		return nil, err
	}
	out := make([]Account, 0, len(set.Accounts))
	for _, a := range set.Accounts {
		out = append(out, Account{
			ID:          a.ID,
			Name:        a.Name,
			Currency:    currency(a.Currency),
			Institution: a.Org.Name,
			Balance:     a.Balance.StringFixed(2),
		})
	}
	return out, nil
}

// DiscoverTransactions fetches transactions dated within [start, end].
func (c *Client) DiscoverTransactions(ctx context.Context, ids []string, start, end time.Time, settings map[string]string) (model.TransactionBatch, error) {
	rawURL := settings[SettingAccessURL]
	// SimpleFIN treats end-date as exclusive.
	endExclusive := model.Day(end).AddDate(0, 0, 1)
	startDay := model.Day(start)
	set, err := c.accounts(ctx, rawURL, query{start: &startDay, end: &endExclusive, accounts: ids})
	if err != nil {
		return model.TransactionBatch{}, err
	}
	c.cache.SetDefault(cacheKey(rawURL, ids), set)

	batch := model.TransactionBatch{Warnings: set.Errors}
	for _, a := range set.Accounts {
		if len(ids) > 0 && !slices.Contains(ids, a.ID) {
			continue
		}
		for _, t := range a.Transactions {
			raw, err := toRaw(a.ID, t)
			if err != nil {
				return model.TransactionBatch{}, err
			}
			if raw.TransactionDate.Before(startDay) || raw.TransactionDate.After(model.Day(end)) {
				continue
			}
			batch.Transactions = append(batch.Transactions, raw)
		}
	}
	return batch, nil
}

// DiscoverBalances reads balances, reusing the response of a transaction
// fetch made moments before for the same accounts.
func (c *Client) DiscoverBalances(ctx context.Context, ids []string, settings map[string]string) (model.BalanceBatch, error) {
	rawURL := settings[SettingAccessURL]
	var set *accountSet
	if cached, ok := c.cache.Get(cacheKey(rawURL, ids)); ok {
		set = cached.(*accountSet)
	} else {
		fetched, err := c.accounts(ctx, rawURL, query{accounts: ids, balancesOnly: true})
		if err != nil {
			return model.BalanceBatch{}, err
		}
		set = fetched
	}

	batch := model.BalanceBatch{Warnings: set.Errors}
	for _, a := range set.Accounts {
		if len(ids) > 0 && !slices.Contains(ids, a.ID) {
			continue
		}
		var asOf time.Time
		if a.BalanceDate > 0 {
			asOf = time.Unix(a.BalanceDate, 0).UTC()
		}
		batch.Balances = append(batch.Balances, model.RawBalance{
			AccountExternalID: a.ID,
			Balance:           a.Balance,
			AsOf:              asOf,
		})
	}
	return batch, nil
}

func toRaw(accountID string, t transaction) (model.RawTransaction, error) {
	if t.ID == "" {
		return model.RawTransaction{}, fmt.Errorf("SimpleFIN transaction without id in account %s", accountID)
	}
	when := t.TransactedAt
	if when == 0 {
		when = t.Posted
	}
	if when == 0 {
		return model.RawTransaction{}, fmt.Errorf("SimpleFIN transaction %s has no date", t.ID)
	}
	raw := model.RawTransaction{
		ExternalID:        t.ID,
		AccountExternalID: accountID,
		Amount:            t.Amount.Round(2),
		Description:       description(t),
		TransactionDate:   model.Day(time.Unix(when, 0).UTC()),
	}
	if t.Posted > 0 && !t.Pending {
		posted := model.Day(time.Unix(t.Posted, 0).UTC())
		raw.PostedDate = &posted
	}
	if t.Extra.Category != "" {
		raw.Tags = []string{t.Extra.Category}
	}
	return raw, nil
}

func description(t transaction) string {
	switch {
	case t.Description != "":
		return t.Description
	case t.Payee != "":
		return t.Payee
	default:
		return t.Memo
	}
}

func currency(c string) string {
	if c == "" {
		return "USD"
	}
	return c
}
