package csvsource

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/model"
)

// ChaseParser parses Chase checking CSV exports.
type ChaseParser struct{}

const (
	chaseDateFormat = "01/02/2006"
	chaseNumFields  = 7
	chaseColDate    = 1
	chaseColDesc    = 2
	chaseColAmount  = 3
)

func (p *ChaseParser) Format() string { return "chase" }

// Parse reads every row; a malformed row fails the whole file.
func (p *ChaseParser) Parse(r io.Reader, _ map[string]string) (model.TransactionBatch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = chaseNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return model.TransactionBatch{}, fmt.Errorf("reading chase CSV: %w", err)
	}
	if len(records) <= 1 {
		return model.TransactionBatch{}, nil
	}

	var batch model.TransactionBatch
	for i, rec := range records[1:] {
		txn, err := parseChaseRow(rec)
		if err != nil {
			return model.TransactionBatch{}, fmt.Errorf("row %d: %w", i+2, err)
		}
		batch.Transactions = append(batch.Transactions, txn)
	}
	return batch, nil
}

func parseChaseRow(rec []string) (model.RawTransaction, error) {
	date, err := time.Parse(chaseDateFormat, rec[chaseColDate])
	if err != nil {
		return model.RawTransaction{}, fmt.Errorf("parsing date %q: %w", rec[chaseColDate], err)
	}
	amount, err := decimal.NewFromString(rec[chaseColAmount])
	if err != nil {
		return model.RawTransaction{}, fmt.Errorf("parsing amount %q: %w", rec[chaseColAmount], err)
	}
	// Chase only exports posted activity; the posting date is the only date.
	return model.RawTransaction{
		Amount:          amount,
		Description:     rec[chaseColDesc],
		TransactionDate: date,
		PostedDate:      &date,
	}, nil
}
