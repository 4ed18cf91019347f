// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func drain(sub *Subscription) []Event {
	var out []Event
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestBus_BroadcastsToEverySubscriber(t *testing.T) {
	b := NewBus(BusConfig{})
	defer b.Close()

	s1 := b.Subscribe(t.Context())
	s2 := b.Subscribe(t.Context())

	b.Publish(Ongoing("Hel"))

	for _, s := range []*Subscription{s1, s2} {
		ev := recv(t, s)
		assert.Equal(t, KindOngoing, ev.Kind)
		assert.Equal(t, "Hel", ev.Word)
		assert.False(t, ev.At.IsZero(), "At should be stamped")
	}
}

func TestBus_NoReplayForLateSubscribers(t *testing.T) {
	b := NewBus(BusConfig{})
	defer b.Close()

	b.Publish(Done())
	sub := b.Subscribe(t.Context())
	b.Publish(Ongoing("x"))

	ev := recv(t, sub)
	assert.Equal(t, KindOngoing, ev.Kind)
	assert.Empty(t, drain(sub))
}

func TestBus_PreservesOrder(t *testing.T) {
	b := NewBus(BusConfig{Capacity: 16})
	defer b.Close()
	sub := b.Subscribe(t.Context())

	words := []string{"a", "b", "c", "d"}
	for _, w := range words {
		b.Publish(Ongoing(w))
	}
	b.Publish(Done())

	for _, w := range words {
		assert.Equal(t, w, recv(t, sub).Word)
	}
	assert.Equal(t, KindDone, recv(t, sub).Kind)
}

func TestBus_DropOldest(t *testing.T) {
	b := NewBus(BusConfig{Capacity: 2, Policy: DropOldest})
	defer b.Close()
	sub := b.Subscribe(t.Context())

	b.Publish(Ongoing("1"))
	b.Publish(Ongoing("2"))
	b.Publish(Ongoing("3"))
	b.Publish(Done())

	got := drain(sub)
	require.Len(t, got, 2)
	assert.Equal(t, "3", got[0].Word)
	assert.Equal(t, KindDone, got[1].Kind, "terminal event survives overflow")
	assert.Equal(t, uint64(2), sub.Dropped())
}

func TestBus_DropNewest(t *testing.T) {
	b := NewBus(BusConfig{Capacity: 2, Policy: DropNewest})
	defer b.Close()
	sub := b.Subscribe(t.Context())

	b.Publish(Ongoing("1"))
	b.Publish(Ongoing("2"))
	b.Publish(Ongoing("3"))

	got := drain(sub)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].Word)
	assert.Equal(t, "2", got[1].Word)
	assert.Equal(t, uint64(1), sub.Dropped())
}

func TestBus_BlockWaitsForReader(t *testing.T) {
	b := NewBus(BusConfig{Capacity: 1, Policy: Block})
	defer b.Close()
	sub := b.Subscribe(t.Context())

	published := make(chan struct{})
	go func() {
		b.Publish(Ongoing("1"))
		b.Publish(Ongoing("2"))
		close(published)
	}()

	select {
	case <-published:
		t.Fatal("second publish should block while the buffer is full")
	case <-time.After(50 * time.Millisecond):
	}

	assert.Equal(t, "1", recv(t, sub).Word)
	assert.Equal(t, "2", recv(t, sub).Word)
	<-published
	assert.Zero(t, sub.Dropped())
}

func TestBus_BlockReleasedBySubscriptionClose(t *testing.T) {
	b := NewBus(BusConfig{Capacity: 1, Policy: Block})
	defer b.Close()
	sub := b.Subscribe(t.Context())
	b.Publish(Ongoing("1"))

	published := make(chan struct{})
	go func() {
		b.Publish(Ongoing("2"))
		close(published)
	}()

	time.Sleep(20 * time.Millisecond)
	sub.Close()

	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("publisher stayed blocked after the subscriber left")
	}
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	b := NewBus(BusConfig{})
	defer b.Close()
	sub := b.Subscribe(t.Context())

	sub.Close()
	sub.Close()

	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.Equal(t, 0, b.SubscriberCount())

	b.Publish(Done())
}

func TestSubscription_ClosedOnContextCancel(t *testing.T) {
	b := NewBus(BusConfig{})
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub := b.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after cancel")
	}
	assert.Eventually(t, func() bool { return b.SubscriberCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestBus_Close(t *testing.T) {
	b := NewBus(BusConfig{})
	sub := b.Subscribe(t.Context())

	b.Close()
	b.Close()

	_, ok := <-sub.Events()
	assert.False(t, ok)

	b.Publish(Ongoing("ignored"))
	late := b.Subscribe(t.Context())
	_, ok = <-late.Events()
	assert.False(t, ok)
	late.Close()
}

func TestBus_ConcurrentPublishAndUnsubscribe(t *testing.T) {
	b := NewBus(BusConfig{Capacity: 4})
	defer b.Close()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 200; n++ {
				b.Publish(Ongoing("t"))
			}
		}()
	}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := b.Subscribe(context.Background())
			drain(sub)
			sub.Close()
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, b.SubscriberCount())
}

func TestParseOverflowPolicy(t *testing.T) {
	tests := []struct {
		in   string
		want OverflowPolicy
	}{
		{"", DropOldest},
		{"drop-oldest", DropOldest},
		{"Drop-Newest", DropNewest},
		{" block ", Block},
	}
	for _, tc := range tests {
		got, err := ParseOverflowPolicy(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
		assert.Equal(t, got, must(ParseOverflowPolicy(got.String())))
	}

	_, err := ParseOverflowPolicy("lossless")
	assert.Error(t, err)
}

func must(p OverflowPolicy, err error) OverflowPolicy {
	if err != nil {
		panic(err)
	}
	return p
}

func TestEventHelpers(t *testing.T) {
	ev := Ongoing("x").Tagged(7)
	assert.Equal(t, uint64(7), ev.Session)
	assert.False(t, ev.Terminal())
	assert.True(t, Done().Terminal())
	assert.True(t, Failed("boom").Terminal())
	assert.Equal(t, "loaded", Loaded("/m").Kind.String())

	ctx := WithSession(context.Background(), 3)
	assert.Equal(t, uint64(3), SessionFrom(ctx))
	assert.Zero(t, SessionFrom(context.Background()))
}

func TestErrorKinds(t *testing.T) {
	loadErr := &Error{Kind: LoadError, Message: "no such file", Cause: context.Canceled}
	assert.True(t, IsLoadError(loadErr))
	assert.False(t, IsGenerationError(loadErr))
	assert.ErrorIs(t, loadErr, context.Canceled)
	assert.Equal(t, "no such file: context canceled", loadErr.Error())
}
