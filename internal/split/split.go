// Package split divides one transaction into parts. The original is
// soft-deleted and kept as the parent of the new rows, so a later sync that
// re-discovers it updates the hidden parent instead of re-creating it.
package split

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/logger"
	"github.com/ledgerline/ledgerline/internal/model"
	"github.com/ledgerline/ledgerline/internal/store"
)

// Part is one share of a split.
type Part struct {
	Amount      decimal.Decimal
	Description string
	Tags        []string
}

// Service performs splits against a store.
type Service struct {
	store store.Store
	now   func() time.Time
	newID func() uuid.UUID
}

// NewService creates a split service. Nil clock and ID functions default to
// time.Now and uuid.New.
func NewService(s store.Store, now func() time.Time, newID func() uuid.UUID) *Service {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = uuid.New
	}
	return &Service{store: s, now: now, newID: newID}
}

// Split replaces parentID with parts. The parts must add up to the parent's
// amount exactly.
func (s *Service) Split(ctx context.Context, parentID uuid.UUID, parts []Part) ([]model.Transaction, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: split needs at least one part", model.ErrInvariant)
	}

	var children []model.Transaction
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		parent, err := tx.GetTransaction(ctx, parentID)
		if err != nil {
			return err
		}
		if parent.IsDeleted() {
			return fmt.Errorf("%w: transaction %s is already deleted or split", model.ErrInvariant, parentID)
		}
		if parent.IsSplitChild() {
			return fmt.Errorf("%w: transaction %s is itself part of a split", model.ErrInvariant, parentID)
		}

		sum := decimal.Zero
		for _, p := range parts {
			sum = sum.Add(p.Amount)
		}
		if !sum.Equal(parent.Amount) {
			return fmt.Errorf("%w: parts add up to %s, transaction amount is %s",
				model.ErrInvariant, sum.StringFixed(2), parent.Amount.StringFixed(2))
		}

		now := s.now().UTC()
		children = make([]model.Transaction, 0, len(parts))
		for _, p := range parts {
			desc := strings.TrimSpace(p.Description)
			if desc == "" {
				desc = parent.Description
			}
			tags := model.NormalizeTags(p.Tags)
			if tags == nil {
				tags = model.NormalizeTags(parent.Tags)
			}
			pid := parent.ID
			children = append(children, model.Transaction{
				ID:                  s.newID(),
				AccountID:           parent.AccountID,
				Amount:              p.Amount,
				Description:         desc,
				TransactionDate:     parent.TransactionDate,
				PostedDate:          model.DayPtr(parent.PostedDate),
				Tags:                tags,
				ParentTransactionID: &pid,
				CreatedAt:           now,
				UpdatedAt:           now,
			})
		}
		return tx.SplitTransaction(ctx, parent.ID, children, now)
	})
	if err != nil {
		return nil, fmt.Errorf("splitting %s: %w", parentID, err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("transaction", parentID.String()).
		Int("parts", len(children)).
		Msg("transaction split")
	return children, nil
}

// ParsePart reads "<amount>:<description>[:tag,tag]".
func ParsePart(s string) (Part, error) {
	fields := strings.SplitN(s, ":", 3)
	amount, err := decimal.NewFromString(strings.TrimSpace(fields[0]))
	if err != nil {
		return Part{}, fmt.Errorf("parsing split amount %q: %w", fields[0], err)
	}
	p := Part{Amount: amount}
	if len(fields) > 1 {
		p.Description = strings.TrimSpace(fields[1])
	}
	if len(fields) > 2 {
		p.Tags = model.NormalizeTags(strings.Split(fields[2], ","))
	}
	return p, nil
}
