package syncer

import (
	"maps"
	"slices"
	"time"

	"github.com/ledgerline/ledgerline/internal/model"
)

// carryForward lays incoming source data over the stored record. Identity,
// creation time, the soft-delete marker and the split parent come from
// stored. Amount, description and dates come from incoming. Tags are
// unioned and external IDs merged, incoming winning per source.
func carryForward(stored, incoming model.Transaction, now time.Time) model.Transaction {
	out := stored.Clone()
	out.Amount = incoming.Amount
	out.Description = incoming.Description
	out.TransactionDate = incoming.TransactionDate
	if incoming.PostedDate != nil {
		p := *incoming.PostedDate
		out.PostedDate = &p
	}
	out.Tags = model.UnionTags(stored.Tags, incoming.Tags)
	if len(incoming.ExternalIDs) > 0 {
		if out.ExternalIDs == nil {
			out.ExternalIDs = make(map[string]string, len(incoming.ExternalIDs))
		}
		maps.Copy(out.ExternalIDs, incoming.ExternalIDs)
	}
	if out.DedupKey == "" {
		out.DedupKey = incoming.DedupKey
	}
	out.UpdatedAt = now
	return out
}

// samePersisted reports whether writing b over a would change anything
// other than the update timestamp.
func samePersisted(a, b model.Transaction) bool {
	return a.ID == b.ID &&
		a.AccountID == b.AccountID &&
		a.Amount.Equal(b.Amount) &&
		a.Description == b.Description &&
		a.TransactionDate.Equal(b.TransactionDate) &&
		equalTimePtr(a.PostedDate, b.PostedDate) &&
		slices.Equal(a.Tags, b.Tags) &&
		maps.Equal(a.ExternalIDs, b.ExternalIDs) &&
		a.DedupKey == b.DedupKey
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
