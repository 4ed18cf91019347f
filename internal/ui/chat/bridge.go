// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/vinayakkamatcodes/nanoMind/internal/store"
)

// =============================================================================
// SNAPSHOT BRIDGE
// =============================================================================

// Bridge forwards store snapshots to a Bubble Tea program without blocking
// the store's observers. Only the newest snapshot is kept; bursts of
// mutations during streaming collapse into one repaint per frame.
type Bridge struct {
	limiter *rate.Limiter

	mu     sync.Mutex
	latest store.Snapshot
	wake   chan struct{}

	unsubscribe func()
}

// NewBridge subscribes to st. maxFPS caps deliveries per second; zero or
// less means uncapped. The current snapshot is queued for delivery
// immediately so the first frame never waits for a mutation.
func NewBridge(st *store.Store, maxFPS int) *Bridge {
	limit := rate.Inf
	if maxFPS > 0 {
		limit = rate.Limit(maxFPS)
	}

	b := &Bridge{
		limiter: rate.NewLimiter(limit, 1),
		latest:  st.Snapshot(),
		wake:    make(chan struct{}, 1),
	}
	b.wake <- struct{}{}
	b.unsubscribe = st.Subscribe(b.observe)
	return b
}

// observe runs on the mutating goroutine and must return promptly.
func (b *Bridge) observe(snap store.Snapshot) {
	b.mu.Lock()
	if snap.Version >= b.latest.Version {
		b.latest = snap
	}
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Latest returns the newest snapshot seen.
func (b *Bridge) Latest() store.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest
}

// Run delivers snapshots through send until ctx is done. send is usually
// (*tea.Program).Send and may block.
func (b *Bridge) Run(ctx context.Context, send func(tea.Msg)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.wake:
		}

		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}
		send(SnapshotMsg{Snapshot: b.Latest()})
	}
}

// Close stops observing the store. Run keeps working until its context ends.
func (b *Bridge) Close() {
	b.unsubscribe()
}
