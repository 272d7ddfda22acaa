package dedup

import (
	"context"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/model"
)

// ExternalID keys transactions by the source-assigned identifier. Use it only
// for sources whose IDs are stable across fetches.
type ExternalID struct {
	Source string
}

func (s *ExternalID) Name() Name { return NameExternalID }

func (s *ExternalID) GenerateKey(tx model.Transaction) string {
	id := tx.ExternalID(s.Source)
	if id == "" {
		return ""
	}
	return ExternalIDKey(s.Source, id)
}

func (s *ExternalID) FindExisting(ctx context.Context, accountID uuid.UUID, candidates []model.Transaction, lookup Lookup) (map[string]model.Transaction, error) {
	return findPrimary(ctx, s, accountID, candidates, lookup)
}

// Fingerprint keys transactions by normalized content.
type Fingerprint struct{}

func (s *Fingerprint) Name() Name { return NameFingerprint }

func (s *Fingerprint) GenerateKey(tx model.Transaction) string { return FingerprintKey(tx) }

func (s *Fingerprint) FindExisting(ctx context.Context, accountID uuid.UUID, candidates []model.Transaction, lookup Lookup) (map[string]model.Transaction, error) {
	return findPrimary(ctx, s, accountID, candidates, lookup)
}

// Composite prefers the external-ID key and falls back to the fingerprint.
type Composite struct {
	Source string
}

func (s *Composite) Name() Name { return NameComposite }

func (s *Composite) GenerateKey(tx model.Transaction) string {
	if id := tx.ExternalID(s.Source); id != "" {
		return ExternalIDKey(s.Source, id)
	}
	return FingerprintKey(tx)
}

// FindExisting issues one lookup covering both key kinds for every
// candidate. A fingerprint match is rejected when the stored row already
// carries a different ID from the same source: two identical purchases on the
// same day from an ID-bearing source are distinct transactions.
func (s *Composite) FindExisting(ctx context.Context, accountID uuid.UUID, candidates []model.Transaction, lookup Lookup) (map[string]model.Transaction, error) {
	keys := make([]string, 0, 2*len(candidates))
	for _, c := range candidates {
		if id := c.ExternalID(s.Source); id != "" {
			keys = append(keys, ExternalIDKey(s.Source, id))
		}
		keys = append(keys, FingerprintKey(c))
	}
	found, err := find(ctx, lookup, accountID, keys)
	if err != nil {
		return nil, err
	}

	out := make(map[string]model.Transaction)
	for _, c := range candidates {
		primary := s.GenerateKey(c)
		id := c.ExternalID(s.Source)
		if id != "" {
			if tx, ok := found[primary]; ok {
				out[primary] = tx
				continue
			}
		}
		tx, ok := found[FingerprintKey(c)]
		if !ok {
			continue
		}
		if stored := tx.ExternalID(s.Source); id != "" && stored != "" && stored != id {
			continue
		}
		out[primary] = tx
	}
	return out, nil
}

func findPrimary(ctx context.Context, s Strategy, accountID uuid.UUID, candidates []model.Transaction, lookup Lookup) (map[string]model.Transaction, error) {
	keys := make([]string, 0, len(candidates))
	for _, c := range candidates {
		keys = append(keys, s.GenerateKey(c))
	}
	found, err := find(ctx, lookup, accountID, keys)
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.Transaction, len(found))
	for _, k := range keys {
		if tx, ok := found[k]; ok {
			out[k] = tx
		}
	}
	return out, nil
}
