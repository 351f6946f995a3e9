// Package memory holds a process-local OrderRepository used wherever the
// ledger runs without MySQL, primarily tests. Records are copied on every
// read so callers never share mutable state with the repository.
package memory

import (
	"context"
	"sort"
	"sync"

	"order-ledger/internal/domain"
	"order-ledger/internal/repository"
)

type orderRepo struct {
	mu     sync.RWMutex
	nextID uint64
	orders map[uint64]*domain.Order
}

func NewOrderRepository() repository.OrderRepository {
	return &orderRepo{
		nextID: 1,
		orders: make(map[uint64]*domain.Order),
	}
}

func (r *orderRepo) Save(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order.ID = r.nextID
	r.nextID++

	stored := clone(order)
	r.orders[order.ID] = stored
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, id uint64) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	return clone(o), nil
}

func (r *orderRepo) UpdatePaid(ctx context.Context, id uint64, paid bool) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	o.Paid = paid
	return clone(o), nil
}

func (r *orderRepo) FindAll(ctx context.Context) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, *clone(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func clone(o *domain.Order) *domain.Order {
	c := *o
	c.Sizes = make(domain.SizeCounts, len(o.Sizes))
	for s, q := range o.Sizes {
		c.Sizes[s] = q
	}
	return &c
}
