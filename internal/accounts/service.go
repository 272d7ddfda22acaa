// Package accounts manages the accounts that syncs write into.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/id"
	"github.com/ledgerline/ledgerline/internal/model"
	"github.com/ledgerline/ledgerline/internal/store"
)

// DefaultCurrency is used when an account names none.
const DefaultCurrency = "USD"

// ErrAmbiguous is returned when an ID prefix matches more than one record.
var ErrAmbiguous = errors.New("ambiguous reference")

var validTypes = map[model.AccountType]bool{
	model.AccountTypeChecking:   true,
	model.AccountTypeSavings:    true,
	model.AccountTypeCredit:     true,
	model.AccountTypeInvestment: true,
	model.AccountTypeLoan:       true,
	model.AccountTypeOther:      true,
}

// Service provides account lookup and creation over a store.
type Service struct {
	store store.Store
	now   func() time.Time
}

// NewService creates a Service. A nil clock defaults to time.Now.
func NewService(s store.Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: s, now: now}
}

// All returns all accounts ordered by name.
func (s *Service) All(ctx context.Context) ([]model.Account, error) {
	return s.store.ListAccounts(ctx)
}

// Save creates or updates acct. A nil ID creates a new account. External
// IDs must be unique per integration across accounts.
func (s *Service) Save(ctx context.Context, acct model.Account) (model.Account, error) {
	acct = acct.Clone()
	acct.Name = strings.TrimSpace(acct.Name)
	if acct.Name == "" {
		return model.Account{}, fmt.Errorf("account name is required")
	}
	if acct.Type == "" {
		acct.Type = model.AccountTypeChecking
	}
	if !validTypes[acct.Type] {
		return model.Account{}, fmt.Errorf("account %s: unknown type %q", acct.Name, acct.Type)
	}
	if acct.Currency == "" {
		acct.Currency = DefaultCurrency
	}
	acct.Currency = strings.ToUpper(acct.Currency)

	err := s.store.Atomic(ctx, func(tx store.Store) error {
		all, err := tx.ListAccounts(ctx)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if acct.ID == uuid.Nil {
			acct.ID = id.New()
			acct.CreatedAt = now
		} else {
			existing, err := tx.GetAccount(ctx, acct.ID)
			switch {
			case err == nil:
				acct.CreatedAt = existing.CreatedAt
			case errors.Is(err, model.ErrNotFound):
				acct.CreatedAt = now
			default:
				return err
			}
		}
		acct.UpdatedAt = now

		for _, other := range all {
			if other.ID == acct.ID {
				continue
			}
			for integration, ext := range acct.ExternalIDs {
				if other.ExternalID(integration) == ext {
					return fmt.Errorf("account %s: %s id %q already belongs to %s",
						acct.Name, integration, ext, other.Name)
				}
			}
		}
		return tx.UpsertAccount(ctx, acct)
	})
	if err != nil {
		return model.Account{}, err
	}
	return acct, nil
}

// Load reads an accounts CSV and saves each row. Rows without an ID are
// matched to an existing account by name before being created.
func (s *Service) Load(ctx context.Context, r io.Reader) ([]model.Account, error) {
	rows, err := ReadAccounts(r)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]model.Account, len(existing))
	for _, a := range existing {
		byName[strings.ToLower(a.Name)] = a
	}

	var saved []model.Account
	for _, row := range rows {
		if row.ID == uuid.Nil {
			if cur, ok := byName[strings.ToLower(row.Name)]; ok {
				row.ID = cur.ID
			}
		}
		a, err := s.Save(ctx, row)
		if err != nil {
			return saved, err
		}
		byName[strings.ToLower(a.Name)] = a
		saved = append(saved, a)
	}
	return saved, nil
}

// Export writes every account as CSV.
func (s *Service) Export(ctx context.Context, w io.Writer) error {
	all, err := s.store.ListAccounts(ctx)
	if err != nil {
		return err
	}
	return WriteAccounts(w, all)
}

// ByExternalID returns the account linked to extID for integration.
func (s *Service) ByExternalID(ctx context.Context, integration, extID string) (model.Account, error) {
	all, err := s.store.ListAccounts(ctx)
	if err != nil {
		return model.Account{}, err
	}
	for _, a := range all {
		if a.ExternalID(integration) == extID {
			return a, nil
		}
	}
	return model.Account{}, fmt.Errorf("no account with %s id %q: %w", integration, extID, model.ErrNotFound)
}

// ByIntegration returns the accounts that carry an external ID for
// integration.
func (s *Service) ByIntegration(ctx context.Context, integration string) ([]model.Account, error) {
	all, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	var result []model.Account
	for _, a := range all {
		if a.ExternalID(integration) != "" {
			result = append(result, a)
		}
	}
	return result, nil
}

// Resolve finds an account by full ID, ID prefix, or case-insensitive name.
func (s *Service) Resolve(ctx context.Context, ref string) (model.Account, error) {
	ref = strings.TrimSpace(ref)
	if u, err := uuid.Parse(ref); err == nil {
		return s.store.GetAccount(ctx, u)
	}
	all, err := s.store.ListAccounts(ctx)
	if err != nil {
		return model.Account{}, err
	}
	var matches []model.Account
	for _, a := range all {
		if strings.EqualFold(a.Name, ref) {
			return a, nil
		}
		if id.IsPrefix(ref) && id.MatchPrefix(a.ID, ref) {
			matches = append(matches, a)
		}
	}
	switch len(matches) {
	case 0:
		return model.Account{}, fmt.Errorf("account %q: %w", ref, model.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return model.Account{}, fmt.Errorf("account %q matches %d accounts: %w", ref, len(matches), ErrAmbiguous)
	}
}
