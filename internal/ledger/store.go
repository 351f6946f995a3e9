// Package ledger owns the authoritative order collection. All mutation
// goes through the Store, which commits to the repository first and only
// then publishes to the change feed. Inserts serialize among themselves
// so createdAt can never run against insertion order; paid flips
// serialize per record id only, so toggles on different records proceed
// independently. The feed's own lock totally orders delivery.
package ledger

import (
	"context"
	"strings"
	"sync"
	"time"

	"order-ledger/internal/clock"
	"order-ledger/internal/domain"
	"order-ledger/internal/feed"
	"order-ledger/internal/repository"
)

type Store struct {
	repo  repository.OrderRepository
	feed  *feed.Feed
	clock clock.Clock

	// createMu orders inserts: createdAt assignment, the durable write,
	// and the creation event stay in one critical section so timestamps,
	// ids, and feed order all agree on insertion order. Toggles and
	// snapshot reads never take it.
	createMu    sync.Mutex
	lastCreated time.Time

	// toggles serializes paid flips per record id.
	toggles *idLocks
}

func NewStore(repo repository.OrderRepository, f *feed.Feed, clk clock.Clock) *Store {
	return &Store{repo: repo, feed: f, clock: clk, toggles: newIDLocks()}
}

// Create assigns id and createdAt, freezes totalItems, durably commits
// the record, and notifies the feed. The draft is expected to be already
// validated; Create re-checks the ledger invariants as a last line.
func (s *Store) Create(ctx context.Context, draft domain.Draft, submitterRef string) (*domain.Order, error) {
	name := strings.TrimSpace(draft.Name)
	if name == "" {
		return nil, &domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	sizes := draft.Sizes.Normalized()
	total := sizes.Total()
	if total == 0 {
		return nil, &domain.ValidationError{Field: "sizes", Reason: "at least one item is required"}
	}

	order := &domain.Order{
		Name:         name,
		Sizes:        sizes,
		BrandRequest: strings.TrimSpace(draft.BrandRequest),
		Notes:        strings.TrimSpace(draft.Notes),
		TotalItems:   total,
		Paid:         false,
		SubmitterRef: submitterRef,
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	// createdAt must never run backwards relative to insertion order,
	// even when the wall clock does.
	now := s.clock.Now()
	if now.Before(s.lastCreated) {
		now = s.lastCreated
	}
	order.CreatedAt = now

	if err := s.repo.Save(ctx, order); err != nil {
		return nil, err
	}
	s.lastCreated = now

	s.feed.Publish(feed.EventCreated, *order)
	return order, nil
}

// SetPaid atomically replaces the paid flag of an existing record and
// notifies the feed. Returns ErrOrderNotFound for unknown ids. Flips on
// the same id serialize; flips on different ids run concurrently.
func (s *Store) SetPaid(ctx context.Context, id uint64, paid bool) (*domain.Order, error) {
	s.toggles.lock(id)
	defer s.toggles.unlock(id)

	o, err := s.repo.UpdatePaid(ctx, id, paid)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.ErrOrderNotFound
	}

	s.feed.Publish(feed.EventPaid, *o)
	return o, nil
}

// Snapshot returns a point-in-time view ordered newest first, ties broken
// by insertion order.
func (s *Store) Snapshot(ctx context.Context) ([]domain.Order, error) {
	return s.repo.FindAll(ctx)
}

// Subscribe registers the feed subscription first and snapshots after,
// so no commit can fall between the two and writers are never stalled by
// a connecting viewer. A commit that lands in both the snapshot and the
// subscription buffer is redelivered, which is harmless: events carry
// the full record and apply as upserts.
func (s *Store) Subscribe(ctx context.Context) (*feed.Subscription, []domain.Order, error) {
	sub := s.feed.Subscribe()
	snap, err := s.repo.FindAll(ctx)
	if err != nil {
		sub.Close()
		return nil, nil, err
	}
	return sub, snap, nil
}
