package services

import (
	"context"
	"log"
	"strings"

	"order-ledger/internal/domain"
	"order-ledger/internal/feed"
	"order-ledger/internal/infra/identity"
	rabbit "order-ledger/internal/infra/rabbitmq"
	"order-ledger/internal/ledger"
)

type OrderService struct {
	store     *ledger.Store
	resolver  identity.ResolverInterface
	publisher rabbit.PublisherInterface
	unitPrice int64
}

func NewOrderService(store *ledger.Store, res identity.ResolverInterface, pub rabbit.PublisherInterface, unitPrice int64) *OrderService {
	return &OrderService{
		store:     store,
		resolver:  res,
		publisher: pub,
		unitPrice: unitPrice,
	}
}

// SubmitOrder validates a draft and commits it as a new order record.
// Checks run in field order, name first then quantities, so the caller
// always learns the first failing field. Nothing is stored on failure.
func (u *OrderService) SubmitOrder(ctx context.Context, sessionToken string, draft domain.Draft) (*domain.Order, error) {
	ref, err := u.resolver.Resolve(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(draft.Name) == "" {
		return nil, &domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if draft.Sizes.Normalized().Total() == 0 {
		return nil, &domain.ValidationError{Field: "sizes", Reason: "at least one item is required"}
	}

	order, err := u.store.Create(ctx, draft, ref)
	if err != nil {
		return nil, err
	}

	go u.publishOrderCreatedEvent(context.Background(), order)

	return order, nil
}

// TogglePaid commits the negation of the paid value the caller last saw.
// Two callers racing on the same stale value both write the same flipped
// state, so the record ends single-flipped rather than flipped back.
// Callers must re-fetch to learn the committed value.
func (u *OrderService) TogglePaid(ctx context.Context, id uint64, seenPaid bool) (*domain.Order, error) {
	order, err := u.store.SetPaid(ctx, id, !seenPaid)
	if err != nil {
		return nil, err
	}

	go u.publishOrderPaidEvent(context.Background(), order)

	return order, nil
}

// Snapshot returns the current ledger contents, newest first.
func (u *OrderService) Snapshot(ctx context.Context) ([]domain.Order, error) {
	return u.store.Snapshot(ctx)
}

// Board returns a consistent snapshot together with the aggregate the
// dashboards render.
func (u *OrderService) Board(ctx context.Context) ([]domain.Order, domain.Totals, error) {
	records, err := u.store.Snapshot(ctx)
	if err != nil {
		return nil, domain.Totals{}, err
	}
	return records, domain.Aggregate(records, u.unitPrice), nil
}

// Subscribe hands out a live subscription plus the snapshot it starts from.
func (u *OrderService) Subscribe(ctx context.Context) (*feed.Subscription, []domain.Order, error) {
	return u.store.Subscribe(ctx)
}

func (u *OrderService) UnitPrice() int64 {
	return u.unitPrice
}

func (u *OrderService) publishOrderCreatedEvent(ctx context.Context, order *domain.Order) {
	evt := domain.OrderCreatedEvent{
		OrderID:      order.ID,
		Name:         order.Name,
		Sizes:        order.Sizes,
		TotalItems:   order.TotalItems,
		SubmitterRef: order.SubmitterRef,
		CreatedAt:    order.CreatedAt,
	}

	if err := u.publisher.Publish(ctx, "order.created", evt); err != nil {
		log.Printf("failed to publish order.created for %d: %v", order.ID, err)
	}
}

func (u *OrderService) publishOrderPaidEvent(ctx context.Context, order *domain.Order) {
	evt := domain.OrderPaidEvent{
		OrderID: order.ID,
		Paid:    order.Paid,
	}

	if err := u.publisher.Publish(ctx, "order.paid", evt); err != nil {
		log.Printf("failed to publish order.paid for %d: %v", order.ID, err)
	}
}
