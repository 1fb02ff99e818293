package external

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNoQuote is returned when no price is known for an asset.
var ErrNoQuote = errors.New("no quote")

// Quote is the last known price of an asset in a fiat currency.
type Quote struct {
	Code      string          `json:"code"`
	Fiat      string          `json:"fiat"`
	Price     decimal.Decimal `json:"price"`
	Change24h decimal.Decimal `json:"change24h"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// QuoteRepository defines persistent storage for quotes.
type QuoteRepository interface {
	SaveQuote(ctx context.Context, q Quote) error
	GetQuote(ctx context.Context, code, fiat string) (Quote, error)
	GetAllQuotes(ctx context.Context, fiat string) ([]Quote, error)
}

// PgQuoteRepository implements QuoteRepository with PostgreSQL.
type PgQuoteRepository struct {
	pool *pgxpool.Pool
}

// NewPgQuoteRepository creates a new PostgreSQL quote repository.
func NewPgQuoteRepository(pool *pgxpool.Pool) *PgQuoteRepository {
	return &PgQuoteRepository{pool: pool}
}

func (r *PgQuoteRepository) SaveQuote(ctx context.Context, q Quote) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO rate_quotes (code, fiat, price, change_24h, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (code, fiat) DO UPDATE SET price = $3, change_24h = $4, updated_at = $5`,
		q.Code, q.Fiat, q.Price, q.Change24h, q.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving quote for %s/%s: %w", q.Code, q.Fiat, err)
	}
	return nil
}

func (r *PgQuoteRepository) GetQuote(ctx context.Context, code, fiat string) (Quote, error) {
	var q Quote
	err := r.pool.QueryRow(ctx,
		`SELECT code, fiat, price, change_24h, updated_at FROM rate_quotes WHERE code = $1 AND fiat = $2`,
		code, fiat).Scan(&q.Code, &q.Fiat, &q.Price, &q.Change24h, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Quote{}, fmt.Errorf("%w for %s/%s", ErrNoQuote, code, fiat)
	}
	if err != nil {
		return Quote{}, fmt.Errorf("getting quote for %s/%s: %w", code, fiat, err)
	}
	return q, nil
}

func (r *PgQuoteRepository) GetAllQuotes(ctx context.Context, fiat string) ([]Quote, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT code, fiat, price, change_24h, updated_at FROM rate_quotes WHERE fiat = $1 ORDER BY code`,
		fiat)
	if err != nil {
		return nil, fmt.Errorf("getting all quotes: %w", err)
	}
	defer rows.Close()

	var quotes []Quote
	for rows.Next() {
		var q Quote
		if err := rows.Scan(&q.Code, &q.Fiat, &q.Price, &q.Change24h, &q.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning quote: %w", err)
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}
