package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/model"
)

const (
	numFields       = 6
	colID           = 0
	colName         = 1
	colInstitution  = 2
	colType         = 3
	colCurrency     = 4
	colExternalIDs  = 5
	externalIDSep   = ";"
	externalIDPairs = "="
)

var header = []string{"account_id", "name", "institution", "type", "currency", "external_ids"}

// ReadAccounts reads an accounts CSV. A blank account_id means the row is
// a new account.
func ReadAccounts(r io.Reader) ([]model.Account, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var accounts []model.Account
	for i, rec := range records[1:] {
		acct, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// WriteAccounts writes an accounts CSV.
func WriteAccounts(w io.Writer, accounts []model.Account) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, acct := range accounts {
		if err := cw.Write(MarshalAccount(acct)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// MarshalAccount converts an Account to a CSV row. External IDs are written
// as "integration=id" pairs joined by ";", sorted by integration.
func MarshalAccount(acct model.Account) []string {
	row := make([]string, numFields)
	if acct.ID != uuid.Nil {
		row[colID] = acct.ID.String()
	}
	row[colName] = acct.Name
	row[colInstitution] = acct.Institution
	row[colType] = string(acct.Type)
	row[colCurrency] = acct.Currency

	names := make([]string, 0, len(acct.ExternalIDs))
	for k := range acct.ExternalIDs {
		names = append(names, k)
	}
	slices.Sort(names)
	pairs := make([]string, 0, len(names))
	for _, k := range names {
		pairs = append(pairs, k+externalIDPairs+acct.ExternalIDs[k])
	}
	row[colExternalIDs] = strings.Join(pairs, externalIDSep)
	return row
}

// UnmarshalAccount converts a CSV row to an Account.
func UnmarshalAccount(record []string) (model.Account, error) {
	if len(record) != numFields {
		return model.Account{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	var acct model.Account
	if s := strings.TrimSpace(record[colID]); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return model.Account{}, fmt.Errorf("parsing account_id %q: %w", s, err)
		}
		acct.ID = id
	}
	acct.Name = strings.TrimSpace(record[colName])
	acct.Institution = strings.TrimSpace(record[colInstitution])
	acct.Type = model.AccountType(strings.TrimSpace(record[colType]))
	acct.Currency = strings.TrimSpace(record[colCurrency])

	if s := strings.TrimSpace(record[colExternalIDs]); s != "" {
		acct.ExternalIDs = make(map[string]string)
		for _, pair := range strings.Split(s, externalIDSep) {
			k, v, ok := strings.Cut(pair, externalIDPairs)
			k, v = strings.TrimSpace(k), strings.TrimSpace(v)
			if !ok || k == "" || v == "" {
				return model.Account{}, fmt.Errorf("parsing external_ids: bad pair %q", pair)
			}
			acct.ExternalIDs[k] = v
		}
	}
	return acct, nil
}
