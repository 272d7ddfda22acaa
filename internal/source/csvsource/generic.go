package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/model"
)

// Settings read by GenericParser. Column settings name header cells.
const (
	SettingDateColumn        = "date_column"
	SettingPostedDateColumn  = "posted_date_column"
	SettingDescriptionColumn = "description_column"
	SettingAmountColumn      = "amount_column"
	SettingDebitColumn       = "debit_column"
	SettingCreditColumn      = "credit_column"
	SettingDateFormat        = "date_format"
	SettingFlipSigns         = "flip_signs"
	SettingDebitNegative     = "debit_negative"
)

// autoDateFormats are tried in order when no date_format is set.
var autoDateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"2006/01/02",
	"02.01.2006",
	"Jan 2, 2006",
}

// GenericParser reads any headered CSV given a column mapping. Rows that
// cannot be parsed are skipped and reported as warnings.
type GenericParser struct{}

func (p *GenericParser) Format() string { return "generic" }

type columnMap struct {
	date, posted, desc, amount, debit, credit int
}

func (p *GenericParser) Parse(r io.Reader, settings map[string]string) (model.TransactionBatch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return model.TransactionBatch{}, nil
	}
	if err != nil {
		return model.TransactionBatch{}, fmt.Errorf("reading CSV header: %w", err)
	}
	cols, err := mapColumns(header, settings)
	if err != nil {
		return model.TransactionBatch{}, err
	}
	flip, err := boolSetting(settings, SettingFlipSigns)
	if err != nil {
		return model.TransactionBatch{}, err
	}
	debitNegative, err := boolSetting(settings, SettingDebitNegative)
	if err != nil {
		return model.TransactionBatch{}, err
	}
	format := settings[SettingDateFormat]

	var batch model.TransactionBatch
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return model.TransactionBatch{}, fmt.Errorf("reading CSV row %d: %w", line, err)
		}
		txn, err := parseGenericRow(rec, cols, format, debitNegative)
		if err != nil {
			batch.Warnings = append(batch.Warnings, fmt.Sprintf("row %d skipped: %v", line, err))
			continue
		}
		if flip {
			txn.Amount = txn.Amount.Neg()
		}
		batch.Transactions = append(batch.Transactions, txn)
	}
	return batch, nil
}

func mapColumns(header []string, settings map[string]string) (columnMap, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	find := func(key string, required bool) (int, error) {
		name := strings.TrimSpace(settings[key])
		if name == "" {
			if required {
				return -1, fmt.Errorf("setting %s is required", key)
			}
			return -1, nil
		}
		i, ok := index[strings.ToLower(name)]
		if !ok {
			return -1, fmt.Errorf("column %q (%s) not in header", name, key)
		}
		return i, nil
	}

	var (
		cols columnMap
		err  error
	)
	if cols.date, err = find(SettingDateColumn, true); err != nil {
		return cols, err
	}
	if cols.posted, err = find(SettingPostedDateColumn, false); err != nil {
		return cols, err
	}
	if cols.desc, err = find(SettingDescriptionColumn, false); err != nil {
		return cols, err
	}
	if cols.amount, err = find(SettingAmountColumn, false); err != nil {
		return cols, err
	}
	if cols.debit, err = find(SettingDebitColumn, false); err != nil {
		return cols, err
	}
	if cols.credit, err = find(SettingCreditColumn, false); err != nil {
		return cols, err
	}
	if cols.amount < 0 && cols.debit < 0 && cols.credit < 0 {
		return cols, fmt.Errorf("an amount column or debit/credit columns are required")
	}
	return cols, nil
}

func parseGenericRow(rec []string, cols columnMap, format string, debitNegative bool) (model.RawTransaction, error) {
	cell := func(i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	date, err := parseDate(cell(cols.date), format)
	if err != nil {
		return model.RawTransaction{}, err
	}
	txn := model.RawTransaction{
		TransactionDate: date,
		Description:     strings.Join(strings.Fields(cell(cols.desc)), " "),
	}
	if s := cell(cols.posted); s != "" {
		if posted, err := parseDate(s, format); err == nil {
			txn.PostedDate = &posted
		}
	}

	if cols.amount >= 0 {
		if txn.Amount, err = parseAmount(cell(cols.amount)); err != nil {
			return model.RawTransaction{}, err
		}
		return txn, nil
	}

	debit, credit := cell(cols.debit), cell(cols.credit)
	switch {
	case debit != "" && credit != "":
		d, err := parseAmount(debit)
		if err != nil {
			return model.RawTransaction{}, err
		}
		c, err := parseAmount(credit)
		if err != nil {
			return model.RawTransaction{}, err
		}
		txn.Amount = c
		if d.Abs().GreaterThan(c.Abs()) {
			txn.Amount = d
		}
	case debit != "":
		if txn.Amount, err = parseAmount(debit); err != nil {
			return model.RawTransaction{}, err
		}
		if debitNegative && txn.Amount.IsPositive() {
			txn.Amount = txn.Amount.Neg()
		}
	case credit != "":
		if txn.Amount, err = parseAmount(credit); err != nil {
			return model.RawTransaction{}, err
		}
	default:
		return model.RawTransaction{}, fmt.Errorf("debit and credit are both empty")
	}
	return txn, nil
}

func parseDate(s, format string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing date")
	}
	if format != "" {
		t, err := time.Parse(format, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
		}
		return t, nil
	}
	for _, f := range autoDateFormats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing date %q: no known format matches", s)
}

// parseAmount accepts currency symbols, thousands separators and
// accounting-style parentheses for negatives.
func parseAmount(s string) (decimal.Decimal, error) {
	clean := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(s))
	negative := strings.HasPrefix(clean, "(") && strings.HasSuffix(clean, ")")
	clean = strings.TrimSuffix(strings.TrimPrefix(clean, "("), ")")
	if clean == "" {
		return decimal.Decimal{}, fmt.Errorf("missing amount")
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

func boolSetting(settings map[string]string, key string) (bool, error) {
	v := strings.TrimSpace(settings[key])
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("setting %s: %w", key, err)
	}
	return b, nil
}
