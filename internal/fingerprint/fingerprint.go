// Package fingerprint derives content-based dedup keys for transactions whose
// source does not assign stable identifiers.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/model"
)

// Prefix namespaces fingerprint keys apart from external-ID keys.
const Prefix = "fingerprint:"

// hashLen is the number of hex characters kept from the digest.
const hashLen = 16

// sep cannot occur in any normalized field.
const sep = "\x00"

var (
	nullWord    = regexp.MustCompile(`\bnull\b`)
	cardMask    = regexp.MustCompile(`x{10,}[0-9]{4}`)
	acctNumbers = regexp.MustCompile(`[x0-9]{7,12}`)
	nonAlnum    = regexp.MustCompile(`[^a-z0-9]`)
)

// Generate returns "fingerprint:<16 hex>" for the normalized
// (account, date, amount, description) tuple. An empty account or
// description is hashed as an empty component, not skipped.
func Generate(account string, date time.Time, amount decimal.Decimal, description string) string {
	parts := []string{
		strings.ReplaceAll(account, sep, ""),
		NormalizeDate(date),
		NormalizeAmount(amount),
		NormalizeDescription(description),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, sep)))
	return Prefix + hex.EncodeToString(sum[:])[:hashLen]
}

// NormalizeDate keeps only the calendar date of t as written.
func NormalizeDate(t time.Time) string {
	return model.Day(t).Format(model.DateFormat)
}

// NormalizeAmount renders a signed amount with exactly two decimals.
// Negative zero renders as "0.00".
func NormalizeAmount(d decimal.Decimal) string {
	r := d.Round(2)
	if r.IsZero() {
		return "0.00"
	}
	return r.StringFixed(2)
}

// NormalizeDescription lower-cases, drops export noise (literal "null",
// card masks, long account numbers reduced to their last four digits) and
// removes everything that is not a-z or 0-9.
func NormalizeDescription(s string) string {
	s = strings.ToLower(s)
	s = nullWord.ReplaceAllString(s, "")
	s = cardMask.ReplaceAllString(s, "")
	s = acctNumbers.ReplaceAllStringFunc(s, lastFourDigits)
	return nonAlnum.ReplaceAllString(s, "")
}

// lastFourDigits turns "xxxxxx7070" or "7208987070" into "7070".
func lastFourDigits(run string) string {
	digits := make([]byte, 0, len(run))
	for i := 0; i < len(run); i++ {
		if run[i] >= '0' && run[i] <= '9' {
			digits = append(digits, run[i])
		}
	}
	if len(digits) < 4 {
		return run
	}
	return string(digits[len(digits)-4:])
}
