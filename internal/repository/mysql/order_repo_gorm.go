package mysql

import (
	"context"
	"errors"
	"fmt"

	"order-ledger/internal/domain"
	"order-ledger/internal/repository"

	"gorm.io/gorm"
)

type orderRepo struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) repository.OrderRepository {
	return &orderRepo{db: db}
}

func (r *orderRepo) Save(ctx context.Context, order *domain.Order) error {
	result := r.db.WithContext(ctx).Create(order)
	if result.Error != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, result.Error)
	}
	if order.ID == 0 {
		return fmt.Errorf("%w: insert did not assign an id", domain.ErrStoreUnavailable)
	}
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, id uint64) (*domain.Order, error) {
	var o domain.Order
	if err := r.db.WithContext(ctx).First(&o, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return &o, nil
}

func (r *orderRepo) UpdatePaid(ctx context.Context, id uint64, paid bool) (*domain.Order, error) {
	var o domain.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&o, id).Error; err != nil {
			return err
		}
		// Single-column write; MySQL may report zero affected rows when the
		// value is unchanged, so existence is established by the lookup above.
		if err := tx.Model(&domain.Order{}).Where("id = ?", id).Update("paid", paid).Error; err != nil {
			return err
		}
		o.Paid = paid
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return &o, nil
}

func (r *orderRepo) FindAll(ctx context.Context) ([]domain.Order, error) {
	var out []domain.Order
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return out, nil
}
