// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity is the per-subscription buffer used when BusConfig leaves
// Capacity unset.
const DefaultCapacity = 64

// =============================================================================
// OVERFLOW POLICY
// =============================================================================

// OverflowPolicy decides what happens when a subscription's buffer is full.
type OverflowPolicy int

const (
	DropOldest OverflowPolicy = iota
	DropNewest
	Block
)

func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "drop-oldest"
	case DropNewest:
		return "drop-newest"
	case Block:
		return "block"
	default:
		return fmt.Sprintf("OverflowPolicy(%d)", int(p))
	}
}

// ParseOverflowPolicy parses the names produced by OverflowPolicy.String.
// An empty string selects DropOldest.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop-oldest":
		return DropOldest, nil
	case "drop-newest":
		return DropNewest, nil
	case "block":
		return Block, nil
	default:
		return DropOldest, fmt.Errorf("unknown overflow policy %q (want drop-oldest, drop-newest or block)", s)
	}
}

// =============================================================================
// BUS
// =============================================================================

// BusConfig configures a Bus.
type BusConfig struct {
	Capacity int
	Policy   OverflowPolicy
	Logger   *slog.Logger
}

// Bus fans engine events out to every live subscription.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool

	// pubMu serializes publishers so each subscription sees one global order.
	pubMu sync.Mutex

	capacity int
	policy   OverflowPolicy
	logger   *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// NewBus creates a bus. A nil logger falls back to slog.Default().
func NewBus(cfg BusConfig) *Bus {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:     make(map[string]*Subscription),
		capacity: cfg.Capacity,
		policy:   cfg.Policy,
		logger:   logger.With("component", "bus"),
		done:     make(chan struct{}),
	}
}

// Subscribe registers a new subscription. It receives only events published
// after Subscribe returns and is closed automatically when ctx is done.
// Subscribing to a closed bus yields an already-closed subscription.
func (b *Bus) Subscribe(ctx context.Context) *Subscription {
	sub := &Subscription{
		id:   uuid.New().String(),
		ch:   make(chan Event, b.capacity),
		bus:  b,
		done: make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.closeDone()
		close(sub.ch)
		return sub
	}
	b.subs[sub.id] = sub
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", sub.id)

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	return sub
}

// Publish delivers ev to every live subscription. The At field is stamped
// if zero. Publishing on a closed bus is a no-op.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	// The read lock is held across sends so no channel is closed under us.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		b.deliver(sub, ev)
	}
}

func (b *Bus) deliver(sub *Subscription, ev Event) {
	select {
	case sub.ch <- ev:
		return
	default:
	}

	switch b.policy {
	case DropNewest:
		sub.dropped.Add(1)
		b.logger.Debug("dropped newest event for slow subscriber",
			"sub_id", sub.id, "kind", ev.Kind)

	case Block:
		select {
		case sub.ch <- ev:
		case <-sub.done:
		case <-b.done:
		}

	default:
		for {
			select {
			case old := <-sub.ch:
				sub.dropped.Add(1)
				b.logger.Debug("dropped oldest event for slow subscriber",
					"sub_id", sub.id, "kind", old.Kind)
			default:
			}
			select {
			case sub.ch <- ev:
				return
			default:
			}
		}
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscription. Later publishes are dropped and later
// subscriptions are born closed. Close is idempotent.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		close(b.done)

		b.mu.Lock()
		defer b.mu.Unlock()
		b.closed = true
		for id, sub := range b.subs {
			sub.closeDone()
			close(sub.ch)
			delete(b.subs, id)
		}
		b.logger.Debug("bus closed")
	})
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.subs[sub.id]; ok && cur == sub {
		delete(b.subs, sub.id)
		close(sub.ch)
		b.logger.Debug("subscriber removed", "sub_id", sub.id, "dropped", sub.dropped.Load())
	}
}

// =============================================================================
// SUBSCRIPTION
// =============================================================================

// Subscription is one consumer's view of the bus.
type Subscription struct {
	id      string
	ch      chan Event
	bus     *Bus
	dropped atomic.Uint64

	done     chan struct{}
	doneOnce sync.Once
}

// ID returns the subscription identifier.
func (s *Subscription) ID() string { return s.id }

// Events returns the delivery channel. It is closed when the subscription
// or the bus is closed.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Dropped returns how many events were discarded for this subscription.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Close unsubscribes. It is idempotent and safe to call concurrently with
// Publish.
func (s *Subscription) Close() {
	s.closeDone()
	s.bus.remove(s)
}

func (s *Subscription) closeDone() {
	s.doneOnce.Do(func() { close(s.done) })
}
