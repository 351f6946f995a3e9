package repository

import (
	"context"

	"order-ledger/internal/domain"
)

// OrderRepository is the durable keyed collection behind the ledger.
// Lookup methods return (nil, nil) when the id is unknown.
type OrderRepository interface {
	Save(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uint64) (*domain.Order, error)
	// UpdatePaid replaces the paid flag as a single atomic field write.
	UpdatePaid(ctx context.Context, id uint64, paid bool) (*domain.Order, error)
	// FindAll returns every record ordered created_at DESC, id DESC.
	FindAll(ctx context.Context) ([]domain.Order, error)
}
