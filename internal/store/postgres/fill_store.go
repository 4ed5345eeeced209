package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avetrov/gridbot/internal/domain"
)

// FillStore implements domain.FillStore using PostgreSQL.
type FillStore struct {
	pool *pgxpool.Pool
}

var _ domain.FillStore = (*FillStore)(nil)

// NewFillStore creates a FillStore backed by the given connection pool.
func NewFillStore(pool *pgxpool.Pool) *FillStore {
	return &FillStore{pool: pool}
}

// Record inserts one fill into the journal.
func (s *FillStore) Record(ctx context.Context, f domain.Fill) error {
	const query = `
		INSERT INTO fills (
			order_id, account_id, symbol, side, purpose,
			quantity, price, level_price, filled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		f.OrderID, f.AccountID, f.Symbol,
		string(f.Side), string(f.Purpose),
		f.Quantity, f.Price, f.LevelPrice, f.FilledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record fill %s: %w", f.OrderID, err)
	}
	return nil
}

// ListBefore returns all fills recorded strictly before the cutoff, oldest
// first.
func (s *FillStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Fill, error) {
	const query = `
		SELECT order_id, account_id, symbol, side, purpose,
		       quantity, price, level_price, filled_at
		FROM fills
		WHERE filled_at < $1
		ORDER BY filled_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills: %w", err)
	}
	defer rows.Close()

	var fills []domain.Fill
	for rows.Next() {
		var f domain.Fill
		var side, purpose string
		if err := rows.Scan(
			&f.OrderID, &f.AccountID, &f.Symbol, &side, &purpose,
			&f.Quantity, &f.Price, &f.LevelPrice, &f.FilledAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan fill: %w", err)
		}
		f.Side = domain.OrderSide(side)
		f.Purpose = domain.OrderPurpose(purpose)
		fills = append(fills, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate fills: %w", err)
	}
	return fills, nil
}

// DeleteBefore removes all fills recorded strictly before the cutoff and
// returns the number deleted.
func (s *FillStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM fills WHERE filled_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete fills: %w", err)
	}
	return tag.RowsAffected(), nil
}
