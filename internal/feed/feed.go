// Package feed implements the in-process change feed: every committed
// ledger change is fanned out to all active subscribers in commit order.
// Publishing never blocks; a subscriber that falls behind has a single
// resync event queued into a reserved slot the moment it overflows, and
// is expected to re-read the full snapshot when it gets to it.
package feed

import (
	"sync"

	"order-ledger/internal/domain"
)

type EventType string

const (
	EventCreated EventType = "order.created"
	EventPaid    EventType = "order.paid"
	// EventResync tells a lagged subscriber its delta stream has a gap
	// and it must re-read the full snapshot before trusting deltas again.
	EventResync EventType = "resync"
)

type Event struct {
	Seq   uint64       `json:"seq"`
	Type  EventType    `json:"type"`
	Order domain.Order `json:"order"`
}

// subscriberBuffer bounds how many undelivered events a viewer may queue
// before it is switched to resync delivery.
const subscriberBuffer = 16

type subscriber struct {
	ch     chan Event
	lagged bool
}

type Feed struct {
	depth  int
	mu     sync.Mutex
	seq    uint64
	nextID uint64
	subs   map[uint64]*subscriber
}

func New() *Feed {
	return NewBuffered(subscriberBuffer)
}

// NewBuffered sizes each subscriber's delivery queue. Every queue carries
// one extra reserved slot so the resync marker can always be buffered at
// the instant of overflow.
func NewBuffered(depth int) *Feed {
	return &Feed{depth: depth, subs: make(map[uint64]*subscriber)}
}

// Subscribe registers a new viewer. The caller owns the returned
// subscription and must Close it when done.
func (f *Feed) Subscribe() *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	sub := &subscriber{ch: make(chan Event, f.depth+1)}
	f.subs[id] = sub
	return &Subscription{feed: f, id: id, ch: sub.ch}
}

// Publish assigns the next sequence number and hands the event to every
// subscriber without ever blocking the caller. A full buffer marks the
// subscriber lagged and queues the resync marker into the reserved slot
// right away, so draining a full buffer always surfaces the gap even if
// the feed then goes quiescent. Deltas resume once the backlog clears;
// a delta redelivered around the resync is harmless because events carry
// the full record.
func (f *Feed) Publish(t EventType, order domain.Order) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	ev := Event{Seq: f.seq, Type: t, Order: order}

	for _, sub := range f.subs {
		// Only Publish sends on the channel and the consumer only
		// drains, so a length check under f.mu safely gates the
		// non-reserved slots.
		if len(sub.ch) < f.depth {
			sub.ch <- ev
			sub.lagged = false
			continue
		}
		if !sub.lagged {
			sub.lagged = true
			sub.ch <- Event{Seq: f.seq, Type: EventResync}
		}
	}
	return f.seq
}

// Seq reports the sequence number of the last published event.
func (f *Feed) Seq() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq
}

type Subscription struct {
	feed *Feed
	id   uint64
	ch   chan Event

	closeOnce sync.Once
}

// Events yields committed changes in publish order. The channel is
// closed by Close; events already buffered before Close may still be read.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close unregisters the subscription. Safe to call at any time, from any
// goroutine, including while a publish is in flight; no events are
// delivered after the registration is removed.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs, s.id)
		s.feed.mu.Unlock()
		close(s.ch)
	})
}
