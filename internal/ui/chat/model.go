// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vinayakkamatcodes/nanoMind/internal/generation"
	"github.com/vinayakkamatcodes/nanoMind/internal/store"
	"github.com/vinayakkamatcodes/nanoMind/internal/ui/styles"
)

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller receives the user's actions. *generation.Coordinator
// satisfies it.
type Controller interface {
	Submit(ctx context.Context, prompt string) error
	ClearConversation() error
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Options configures a chat Model.
type Options struct {
	// ModelLabel is shown next to the brand in the header.
	ModelLabel string
	// Initial is rendered until the first SnapshotMsg arrives.
	Initial store.Snapshot
	Logger  *slog.Logger
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	ctx    context.Context
	ctrl   Controller
	theme  *styles.Theme
	logger *slog.Logger

	snap       store.Snapshot
	modelLabel string

	// Dimensions
	width  int
	height int

	// UI Components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	keyMap   KeyMap

	// notice is a transient line under the input, cleared on the next send.
	notice string
}

// New creates a chat model. ctx bounds every request made to ctrl.
func New(ctx context.Context, theme *styles.Theme, ctrl Controller, opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask NanoMind..."
	ti.CharLimit = 4096
	ti.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.Spinner

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := Model{
		ctx:        ctx,
		ctrl:       ctrl,
		theme:      theme,
		logger:     logger.With("component", "tui"),
		snap:       opts.Initial,
		modelLabel: opts.ModelLabel,
		viewport:   vp,
		input:      ti,
		spinner:    sp,
		keyMap:     DefaultKeyMap(),
	}
	m.updateViewport(true)
	return m
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts the cursor blink and the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case SnapshotMsg:
		return m.handleSnapshot(msg.Snapshot), nil

	case submitResultMsg:
		if msg.err != nil {
			m.logger.Debug("submission rejected", "error", msg.err)
			if errors.Is(msg.err, generation.ErrBusy) {
				// Keep the text so it can be sent once the reply finishes.
				m.input.SetValue(msg.prompt)
				m.input.CursorEnd()
			}
		}
		return m, nil

	case clearResultMsg:
		if msg.err != nil {
			m.notice = "Cannot clear while generating"
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.snap.Busy {
			m.updateViewport(false)
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the chat screen.
func (m Model) View() string {
	return m.renderChat()
}

// Snapshot returns the snapshot currently on screen.
func (m Model) Snapshot() store.Snapshot {
	return m.snap
}

// =============================================================================
// MESSAGE HANDLERS
// =============================================================================

// Layout: header (3 lines with border) + viewport + input area (2) + help (1).
const (
	headerHeight    = 3
	inputAreaHeight = 2
	helpHeight      = 1
)

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	vpHeight := m.height - headerHeight - inputAreaHeight - helpHeight
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = max(m.width, 1)
	m.viewport.Height = vpHeight

	// Room for the padded prompt plus the send indicator.
	m.input.Width = max(m.width-4-len(m.input.Prompt)-sendLabelWidth, 10)

	m.updateViewport(m.viewport.AtBottom())
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keyMap.Submit):
		return m.submit()

	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keyMap.Top):
		m.viewport.GotoTop()
		return m, nil

	case key.Matches(msg, m.keyMap.Bottom):
		m.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input, or runs it as a slash command. Sending is
// disabled while the store reports busy.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	switch text {
	case "/quit", "/exit":
		return m, tea.Quit
	case "/clear":
		m.input.Reset()
		m.notice = ""
		ctrl := m.ctrl
		return m, func() tea.Msg {
			return clearResultMsg{err: ctrl.ClearConversation()}
		}
	}

	if m.snap.Busy {
		return m, nil
	}

	prompt := m.input.Value()
	m.input.Reset()
	m.notice = ""

	ctx, ctrl := m.ctx, m.ctrl
	return m, func() tea.Msg {
		return submitResultMsg{prompt: prompt, err: ctrl.Submit(ctx, prompt)}
	}
}

// handleSnapshot swaps in a new snapshot. The view follows the newest
// message whenever one is added, and keeps following streamed text while
// the user has not scrolled away from the bottom.
func (m Model) handleSnapshot(snap store.Snapshot) Model {
	follow := len(snap.Messages) != len(m.snap.Messages) || m.viewport.AtBottom()
	m.snap = snap
	m.updateViewport(follow)
	return m
}

func (m *Model) updateViewport(gotoBottom bool) {
	m.viewport.SetContent(m.renderMessages())
	if gotoBottom {
		m.viewport.GotoBottom()
	}
}
