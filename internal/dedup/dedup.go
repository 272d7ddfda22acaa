// Package dedup classifies discovered transactions as new or already stored.
//
// Three strategies share one contract. ExternalID trusts the source's own
// stable identifier, Fingerprint hashes normalized content, and Composite
// tries the external ID first and falls back to the fingerprint so that a
// transaction imported from a CSV file is recognized when an aggregator later
// reports the same purchase.
package dedup

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/fingerprint"
	"github.com/ledgerline/ledgerline/internal/model"
)

// Lookup finds stored transactions by dedup key. Keys that match nothing are
// absent from the result.
type Lookup interface {
	FindByDedupKeys(ctx context.Context, accountID uuid.UUID, keys []string) (map[string]model.Transaction, error)
}

// Strategy generates dedup keys and batch-resolves them against a Lookup.
type Strategy interface {
	Name() Name
	// GenerateKey returns the primary key for tx, or "" if the strategy
	// cannot key it.
	GenerateKey(tx model.Transaction) string
	// FindExisting maps each candidate's primary key to the stored
	// transaction it resolves to. It never writes.
	FindExisting(ctx context.Context, accountID uuid.UUID, candidates []model.Transaction, lookup Lookup) (map[string]model.Transaction, error)
}

// Name identifies a strategy in configuration.
type Name string

const (
	NameExternalID  Name = "external_id"
	NameFingerprint Name = "fingerprint"
	NameComposite   Name = "composite"
)

// New returns the strategy called name. source is the integration whose
// external IDs the strategy reads.
func New(name Name, source string) (Strategy, error) {
	switch name {
	case NameExternalID:
		return &ExternalID{Source: source}, nil
	case NameFingerprint:
		return &Fingerprint{}, nil
	case NameComposite:
		return &Composite{Source: source}, nil
	default:
		return nil, fmt.Errorf("unknown dedup strategy %q", name)
	}
}

// ExternalIDKey formats "external_id:<source>:<id>".
func ExternalIDKey(source, id string) string {
	return "external_id:" + source + ":" + id
}

// FingerprintKey fingerprints tx within its account.
func FingerprintKey(tx model.Transaction) string {
	return fingerprint.Generate(tx.AccountID.String(), tx.TransactionDate, tx.Amount, tx.Description)
}

// Keys returns every key tx can be found under: its external-ID key for
// source (if it has one) and its fingerprint.
func Keys(source string, tx model.Transaction) []string {
	var keys []string
	if id := tx.ExternalID(source); id != "" {
		keys = append(keys, ExternalIDKey(source, id))
	}
	return append(keys, FingerprintKey(tx))
}

// find runs a single batched lookup over the unique non-empty keys.
func find(ctx context.Context, lookup Lookup, accountID uuid.UUID, keys []string) (map[string]model.Transaction, error) {
	seen := make(map[string]bool, len(keys))
	unique := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		unique = append(unique, k)
	}
	if len(unique) == 0 {
		return map[string]model.Transaction{}, nil
	}
	found, err := lookup.FindByDedupKeys(ctx, accountID, unique)
	if err != nil {
		return nil, fmt.Errorf("looking up %d dedup keys: %w", len(unique), err)
	}
	return found, nil
}
