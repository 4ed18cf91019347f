// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinayakkamatcodes/nanoMind/internal/generation"
	"github.com/vinayakkamatcodes/nanoMind/internal/model"
	"github.com/vinayakkamatcodes/nanoMind/internal/store"
	"github.com/vinayakkamatcodes/nanoMind/internal/ui/styles"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fakeController struct {
	mu       sync.Mutex
	prompts  []string
	clears   int
	submitFn func(string) error
	clearErr error
}

func (f *fakeController) Submit(_ context.Context, prompt string) error {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	fn := f.submitFn
	f.mu.Unlock()
	if fn != nil {
		return fn(prompt)
	}
	return nil
}

func (f *fakeController) ClearConversation() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	return f.clearErr
}

func newTestModel(t *testing.T, ctrl Controller) Model {
	t.Helper()
	m := New(t.Context(), styles.NewTheme(), ctrl, Options{
		ModelLabel: "nanomind",
		Initial:    store.New().Snapshot(),
	})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return updated.(Model)
}

func enter() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyEnter} }

func snapshot(busy bool, status string, msgs ...model.Message) SnapshotMsg {
	return SnapshotMsg{Snapshot: store.Snapshot{Messages: msgs, Status: status, Busy: busy, Version: uint64(len(msgs) + 1)}}
}

// =============================================================================
// SUBMISSION
// =============================================================================

func TestSubmit_SendsPromptAndClearsInput(t *testing.T) {
	ctrl := &fakeController{}
	m := newTestModel(t, ctrl)
	m.input.SetValue("Hi")

	updated, cmd := m.Update(enter())
	m = updated.(Model)
	require.NotNil(t, cmd)
	assert.Empty(t, m.input.Value())

	msg := cmd()
	res, ok := msg.(submitResultMsg)
	require.True(t, ok)
	assert.NoError(t, res.err)
	assert.Equal(t, []string{"Hi"}, ctrl.prompts)
}

func TestSubmit_BlankIgnored(t *testing.T) {
	ctrl := &fakeController{}
	m := newTestModel(t, ctrl)
	m.input.SetValue("   ")

	_, cmd := m.Update(enter())
	assert.Nil(t, cmd)
	assert.Empty(t, ctrl.prompts)
}

func TestSubmit_DisabledWhileBusy(t *testing.T) {
	ctrl := &fakeController{}
	m := newTestModel(t, ctrl)

	updated, _ := m.Update(snapshot(true, model.StatusGenerating,
		model.NewUserMessage("first"), model.NewAssistantPlaceholder()))
	m = updated.(Model)
	m.input.SetValue("second")

	updated, cmd := m.Update(enter())
	m = updated.(Model)
	assert.Nil(t, cmd)
	assert.Equal(t, "second", m.input.Value(), "input is kept while sending is disabled")
	assert.Empty(t, ctrl.prompts)
}

func TestSubmit_BusyRejectionRestoresInput(t *testing.T) {
	ctrl := &fakeController{submitFn: func(string) error { return generation.ErrBusy }}
	m := newTestModel(t, ctrl)
	m.input.SetValue("again")

	updated, cmd := m.Update(enter())
	m = updated.(Model)
	require.NotNil(t, cmd)

	updated, _ = m.Update(cmd())
	m = updated.(Model)
	assert.Equal(t, "again", m.input.Value())
}

func TestSlashCommands(t *testing.T) {
	t.Run("clear", func(t *testing.T) {
		ctrl := &fakeController{}
		m := newTestModel(t, ctrl)
		m.input.SetValue("/clear")

		_, cmd := m.Update(enter())
		require.NotNil(t, cmd)
		_, ok := cmd().(clearResultMsg)
		assert.True(t, ok)
		assert.Equal(t, 1, ctrl.clears)
		assert.Empty(t, ctrl.prompts)
	})

	t.Run("clear while busy shows notice", func(t *testing.T) {
		ctrl := &fakeController{clearErr: generation.ErrBusy}
		m := newTestModel(t, ctrl)
		m.input.SetValue("/clear")

		updated, cmd := m.Update(enter())
		m = updated.(Model)
		updated, _ = m.Update(cmd())
		m = updated.(Model)
		assert.Contains(t, m.View(), "Cannot clear while generating")
	})

	t.Run("quit", func(t *testing.T) {
		m := newTestModel(t, &fakeController{})
		m.input.SetValue("/quit")

		_, cmd := m.Update(enter())
		require.NotNil(t, cmd)
		_, ok := cmd().(tea.QuitMsg)
		assert.True(t, ok)
	})
}

func TestQuitKey(t *testing.T) {
	m := newTestModel(t, &fakeController{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}

// =============================================================================
// RENDERING
// =============================================================================

func TestView_RendersStatusAndMessages(t *testing.T) {
	m := newTestModel(t, &fakeController{})
	updated, _ := m.Update(snapshot(false, "Inference Time: 12 ms",
		model.NewUserMessage("Hi"), model.NewAssistantPlaceholder().WithText("Hello")))
	m = updated.(Model)

	view := m.View()
	assert.Contains(t, view, "NanoMind")
	assert.Contains(t, view, "Inference Time: 12 ms")
	assert.Contains(t, view, "Hi")
	assert.Contains(t, view, "Hello")
	assert.Contains(t, view, sendLabel)
}

func TestView_EmptyConversationHint(t *testing.T) {
	m := newTestModel(t, &fakeController{})
	assert.Contains(t, m.View(), "Ask NanoMind anything")
}

func TestView_LongStatusIsTruncated(t *testing.T) {
	m := newTestModel(t, &fakeController{})
	long := model.StatusError(strings.Repeat("x", 300))
	updated, _ := m.Update(snapshot(false, long))
	m = updated.(Model)

	header := m.renderHeader()
	for _, line := range strings.Split(header, "\n") {
		assert.LessOrEqual(t, len([]rune(line)), 80+20, "header line should not wrap the status")
	}
	assert.Contains(t, header, "...")
}

func TestView_BeforeResize(t *testing.T) {
	m := New(t.Context(), styles.NewTheme(), &fakeController{}, Options{})
	assert.Equal(t, "Loading...", m.View())
}

func TestSnapshot_AutoScrollsOnNewMessage(t *testing.T) {
	m := newTestModel(t, &fakeController{})

	var msgs []model.Message
	for i := 0; i < 40; i++ {
		msgs = append(msgs, model.NewUserMessage("line"))
		updated, _ := m.Update(snapshot(false, model.StatusReady, msgs...))
		m = updated.(Model)
	}
	assert.True(t, m.viewport.AtBottom())

	m.viewport.GotoTop()
	msgs = append(msgs, model.NewAssistantPlaceholder().WithText("newest"))
	updated, _ := m.Update(snapshot(false, model.StatusReady, msgs...))
	m = updated.(Model)
	assert.True(t, m.viewport.AtBottom(), "a new message scrolls to the bottom")
}

func TestSnapshot_KeepsScrollWhenOnlyTextChanges(t *testing.T) {
	m := newTestModel(t, &fakeController{})

	var msgs []model.Message
	for i := 0; i < 40; i++ {
		msgs = append(msgs, model.NewUserMessage("line"))
	}
	msgs = append(msgs, model.NewAssistantPlaceholder().WithText("a"))
	updated, _ := m.Update(snapshot(true, model.StatusGenerating, msgs...))
	m = updated.(Model)

	m.viewport.GotoTop()
	msgs[len(msgs)-1] = msgs[len(msgs)-1].WithText("ab")
	updated, _ = m.Update(snapshot(true, model.StatusGenerating, msgs...))
	m = updated.(Model)
	assert.True(t, m.viewport.AtTop(), "scrolled-away view stays put while text streams")
}
