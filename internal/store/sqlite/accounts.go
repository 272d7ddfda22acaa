package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/model"
)

const accountColumns = `id, name, institution, currency, type, external_ids, created_at, updated_at`

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (model.Account, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id.String())
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, fmt.Errorf("account %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("reading account %s: %w", id, err)
	}
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("listing accounts: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) UpsertAccount(ctx context.Context, a model.Account) error {
	ids, err := encodeIDs(a.ExternalIDs)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			institution = excluded.institution,
			currency = excluded.currency,
			type = excluded.type,
			external_ids = excluded.external_ids,
			updated_at = excluded.updated_at`,
		a.ID.String(), a.Name, a.Institution, a.Currency, string(a.Type), ids,
		formatTimestamp(a.CreatedAt), formatTimestamp(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving account %s: %w", a.Name, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(r rowScanner) (model.Account, error) {
	var (
		a                model.Account
		id, typ, ids     string
		created, updated string
	)
	if err := r.Scan(&id, &a.Name, &a.Institution, &a.Currency, &typ, &ids, &created, &updated); err != nil {
		return model.Account{}, err
	}
	var err error
	if a.ID, err = uuid.Parse(id); err != nil {
		return model.Account{}, fmt.Errorf("parsing account id %q: %w", id, err)
	}
	a.Type = model.AccountType(typ)
	if a.ExternalIDs, err = decodeIDs(ids); err != nil {
		return model.Account{}, err
	}
	if a.CreatedAt, err = parseTimestamp(created); err != nil {
		return model.Account{}, err
	}
	if a.UpdatedAt, err = parseTimestamp(updated); err != nil {
		return model.Account{}, err
	}
	return a, nil
}
