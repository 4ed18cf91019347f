// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinayakkamatcodes/nanoMind/internal/model"
)

func TestNew_StartsReady(t *testing.T) {
	st := New()
	snap := st.Snapshot()

	assert.Empty(t, snap.Messages)
	assert.Equal(t, model.StatusReady, snap.Status)
	assert.False(t, snap.Busy)
}

func TestAppendAndReplaceText(t *testing.T) {
	st := New()
	st.AppendMessage(model.NewUserMessage("Hi"))
	placeholder := model.NewAssistantPlaceholder()
	i := st.AppendMessage(placeholder)
	require.Equal(t, 1, i)

	require.NoError(t, st.ReplaceText(i, "Hel"))
	require.NoError(t, st.ReplaceText(i, "Hello"))

	snap := st.Snapshot()
	require.Len(t, snap.Messages, 2)
	last := snap.Messages[1]
	assert.Equal(t, "Hello", last.Text)
	assert.False(t, last.IsUser)
	assert.Equal(t, placeholder.ID, last.ID)
	assert.True(t, last.CreatedAt.Equal(placeholder.CreatedAt))
}

func TestReplaceText_OutOfRange(t *testing.T) {
	st := New()
	st.AppendMessage(model.NewUserMessage("Hi"))
	before := st.Snapshot()

	for _, idx := range []int{-1, 1, 5} {
		err := st.ReplaceText(idx, "x")
		assert.ErrorIs(t, err, ErrIndexOutOfRange, "index %d", idx)
	}

	after := st.Snapshot()
	assert.Equal(t, before.Messages, after.Messages)
	assert.Equal(t, before.Version, after.Version, "failed replace must not count as a mutation")
}

func TestDropLast(t *testing.T) {
	st := New()
	assert.False(t, st.DropLast(), "empty conversation")

	st.AppendMessage(model.NewUserMessage("a"))
	st.AppendMessage(model.NewAssistantPlaceholder())
	assert.True(t, st.DropLast())

	snap := st.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.True(t, snap.Messages[0].IsUser)
}

func TestSetStatusAndBusy(t *testing.T) {
	st := New()
	st.SetStatus(model.StatusGenerating)
	st.SetBusy(true)

	assert.Equal(t, model.StatusGenerating, st.Status())
	assert.True(t, st.Busy())
}

func TestClear_KeepsStatusAndBusy(t *testing.T) {
	st := New()
	st.AppendMessage(model.NewUserMessage("a"))
	st.SetStatus(model.StatusModelReady)
	st.SetBusy(true)

	st.Clear()

	snap := st.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.Equal(t, model.StatusModelReady, snap.Status)
	assert.True(t, snap.Busy)
}

func TestSnapshot_IsCopy(t *testing.T) {
	st := New()
	i := st.AppendMessage(model.NewAssistantPlaceholder())
	snap := st.Snapshot()

	require.NoError(t, st.ReplaceText(i, "changed"))
	snap.Messages[0].Text = "tampered"

	assert.Equal(t, "changed", st.Snapshot().Messages[0].Text)
}

func TestSubscribe_CalledOnEveryMutation(t *testing.T) {
	st := New()
	var got []Snapshot
	cancel := st.Subscribe(func(s Snapshot) { got = append(got, s) })

	i := st.AppendMessage(model.NewAssistantPlaceholder())
	_ = st.ReplaceText(i, "x")
	st.SetStatus("s")
	st.SetBusy(true)
	st.DropLast()
	st.Clear()

	require.Len(t, got, 6)
	for n := 1; n < len(got); n++ {
		assert.Equal(t, got[n-1].Version+1, got[n].Version)
	}
	assert.Equal(t, "x", got[1].Messages[0].Text)
	assert.Equal(t, "s", got[2].Status)

	cancel()
	cancel()
	st.SetStatus("after cancel")
	assert.Len(t, got, 6)
}

func TestSubscribe_SeesCommittedState(t *testing.T) {
	st := New()
	st.Subscribe(func(s Snapshot) {
		// Reads from an observer must not deadlock and must agree with
		// the delivered snapshot.
		assert.Equal(t, s.Status, st.Status())
	})
	st.SetStatus(model.StatusLoading)
}

func TestRestore(t *testing.T) {
	st := New()
	st.AppendMessage(model.NewUserMessage("old"))

	msgs := []model.Message{model.NewUserMessage("q"), model.NewAssistantPlaceholder().WithText("a")}
	st.Restore(msgs)
	msgs[0].Text = "mutated"

	snap := st.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "q", snap.Messages[0].Text)
}

func TestConcurrentMutations(t *testing.T) {
	st := New()
	i := st.AppendMessage(model.NewAssistantPlaceholder())

	var delivered int
	var mu sync.Mutex
	st.Subscribe(func(Snapshot) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				_ = st.ReplaceText(i, "tok")
				st.SetStatus(model.StatusGenerating)
				_ = st.Snapshot()
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 8*50*2, delivered)
	assert.Equal(t, uint64(1+8*50*2), st.Snapshot().Version)
}
