// Package demo is a data source that invents stable, repeatable activity so
// the tool can be tried without a bank connection.
package demo

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/model"
)

// Account external IDs the demo source knows.
const (
	Checking = "demo-checking"
	Savings  = "demo-savings"
)

type merchant struct {
	name   string
	amount string
	tag    string
}

var merchants = []merchant{
	{"BLUE BOTTLE COFFEE", "-5.75", "coffee"},
	{"WHOLE FOODS MARKET #10234", "-84.12", "groceries"},
	{"SHELL OIL 5744", "-41.30", "fuel"},
	{"NETFLIX.COM", "-15.49", "subscriptions"},
	{"CHIPOTLE 1123", "-13.85", "dining"},
	{"AMAZON MKTPLACE PMTS", "-27.99", "shopping"},
	{"CITY WATER UTILITY", "-62.00", "utilities"},
}

var balances = map[string]string{
	Checking: "4210.55",
	Savings:  "15000.00",
}

// Source generates the same transactions for the same dates every time.
type Source struct {
	now func() time.Time
}

// New creates a demo source. A nil clock means time.Now.
func New(now func() time.Time) *Source {
	if now == nil {
		now = time.Now
	}
	return &Source{now: now}
}

func (s *Source) DiscoverTransactions(ctx context.Context, ids []string, start, end time.Time, _ map[string]string) (model.TransactionBatch, error) {
	var batch model.TransactionBatch
	for _, id := range accountIDs(ids) {
		if _, ok := balances[id]; !ok {
			batch.Warnings = append(batch.Warnings, fmt.Sprintf("demo account %s does not exist", id))
			continue
		}
		for d := model.Day(start); !d.After(model.Day(end)); d = d.AddDate(0, 0, 1) {
			if err := ctx.Err(); err != nil {
				return model.TransactionBatch{}, err
			}
			batch.Transactions = append(batch.Transactions, day(id, d)...)
		}
	}
	return batch, nil
}

func (s *Source) DiscoverBalances(_ context.Context, ids []string, _ map[string]string) (model.BalanceBatch, error) {
	var batch model.BalanceBatch
	for _, id := range accountIDs(ids) {
		bal, ok := balances[id]
		if !ok {
			continue
		}
		batch.Balances = append(batch.Balances, model.RawBalance{
			AccountExternalID: id,
			Balance:           decimal.RequireFromString(bal),
			AsOf:              s.now().UTC(),
		})
	}
	return batch, nil
}

func accountIDs(ids []string) []string {
	if len(ids) == 0 {
		return []string{Checking, Savings}
	}
	return ids
}

// day returns the activity for one account on one date.
func day(account string, d time.Time) []model.RawTransaction {
	if account == Savings {
		if d.Day() != 1 {
			return nil
		}
		return []model.RawTransaction{{
			ExternalID:        fmt.Sprintf("%s-%s-interest", account, d.Format("20060102")),
			AccountExternalID: account,
			Amount:            decimal.RequireFromString("12.50"),
			Description:       "INTEREST PAYMENT",
			TransactionDate:   d,
			PostedDate:        &d,
			Tags:              []string{"interest"},
		}}
	}

	h := fnv.New32a()
	h.Write([]byte(account + d.Format(model.DateFormat)))
	seed := h.Sum32()

	var out []model.RawTransaction
	for n := 0; n < int(seed%3); n++ {
		m := merchants[(int(seed>>4)+n*3)%len(merchants)]
		out = append(out, model.RawTransaction{
			ExternalID:        fmt.Sprintf("%s-%s-%d", account, d.Format("20060102"), n),
			AccountExternalID: account,
			Amount:            decimal.RequireFromString(m.amount),
			Description:       m.name,
			TransactionDate:   d,
			PostedDate:        &d,
			Tags:              []string{m.tag},
		})
	}
	if d.Day() == 15 {
		out = append(out, model.RawTransaction{
			ExternalID:        fmt.Sprintf("%s-%s-payroll", account, d.Format("20060102")),
			AccountExternalID: account,
			Amount:            decimal.RequireFromString("3250.00"),
			Description:       "ACME CORP PAYROLL",
			TransactionDate:   d,
			PostedDate:        &d,
			Tags:              []string{"income"},
		})
	}
	return out
}
