package domain

import (
	"context"
	"time"
)

// FillStore journals handled fills for audit. Implementations must be safe
// for use from the single engine loop; write failures are logged by the
// caller and never propagate into trading decisions.
type FillStore interface {
	// Record persists one fill.
	Record(ctx context.Context, f Fill) error
	// ListBefore returns all fills recorded strictly before the cutoff,
	// oldest first. Used by the archiver.
	ListBefore(ctx context.Context, before time.Time) ([]Fill, error)
	// DeleteBefore removes all fills recorded strictly before the cutoff
	// and returns the number deleted. Called only after a successful
	// archive upload.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// PriceCache stores the latest observed ticker price per symbol so the
// status API can serve prices without touching the exchange.
type PriceCache interface {
	SetPrice(ctx context.Context, symbol string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, symbol string) (float64, time.Time, error)
}
