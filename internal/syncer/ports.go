package syncer

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/dedup"
	"github.com/ledgerline/ledgerline/internal/model"
)

// Source is implemented by each integration. Sources never compute dedup
// keys; they report what the provider said.
type Source interface {
	// DiscoverTransactions returns transactions dated within [start, end]
	// for the given provider account IDs.
	DiscoverTransactions(ctx context.Context, accountExternalIDs []string, start, end time.Time, settings map[string]string) (model.TransactionBatch, error)
	// DiscoverBalances returns the current balance of each account.
	DiscoverBalances(ctx context.Context, accountExternalIDs []string, settings map[string]string) (model.BalanceBatch, error)
}

// Integration binds a Source to the dedup strategy its data needs.
type Integration struct {
	Name     string
	Source   Source
	Strategy dedup.Strategy
	Settings map[string]string
	// BalancesOnly lists provider account IDs whose transactions are not
	// requested.
	BalancesOnly []string
}

func (i Integration) balancesOnly(externalID string) bool {
	return externalID != "" && slices.Contains(i.BalancesOnly, externalID)
}

// Hook runs after a sync commits, with the newly inserted transactions. It
// returns tags to union into each transaction.
type Hook interface {
	SuggestTags(ctx context.Context, inserted []model.Transaction) (map[uuid.UUID][]string, error)
}

// Recorder receives every finished sync, successful or not.
type Recorder interface {
	Record(result *SyncResult) error
}
