// Package store persists wallets and the custodial ledgers in PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtlprog/coincore/internal/backend"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// PgWalletStore implements backend.WalletStore with PostgreSQL.
type PgWalletStore struct {
	pool *pgxpool.Pool
}

// NewPgWalletStore creates a new PostgreSQL wallet store.
func NewPgWalletStore(pool *pgxpool.Pool) *PgWalletStore {
	return &PgWalletStore{pool: pool}
}

func (s *PgWalletStore) ListWallets(ctx context.Context) ([]backend.WalletRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, currency, label, address, xpub, is_default, archived, created_at
		 FROM wallets
		 ORDER BY currency, is_default DESC, created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing wallets: %w", err)
	}
	defer rows.Close()

	var wallets []backend.WalletRecord
	for rows.Next() {
		var w backend.WalletRecord
		if err := rows.Scan(&w.ID, &w.Currency, &w.Label, &w.Address, &w.XPub, &w.IsDefault, &w.Archived, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning wallet: %w", err)
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

func (s *PgWalletStore) UpdateLabel(ctx context.Context, id, label string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE wallets SET label = $2 WHERE id = $1`, id, label)
	if err != nil {
		return fmt.Errorf("updating label of %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: wallet %s", ErrNotFound, id)
	}
	return nil
}

func (s *PgWalletStore) SetArchived(ctx context.Context, id string, archived bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE wallets SET archived = $2 WHERE id = $1`, id, archived)
	if err != nil {
		return fmt.Errorf("archiving %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: wallet %s", ErrNotFound, id)
	}
	return nil
}
