// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vinayakkamatcodes/nanoMind/internal/model"
	"github.com/vinayakkamatcodes/nanoMind/internal/util"
)

const (
	sendLabel      = "[Send]"
	sendLabelWidth = len(sendLabel) + 1
)

// =============================================================================
// MAIN RENDER
// =============================================================================

// renderChat renders the complete chat view.
func (m Model) renderChat() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderInput(),
		m.renderHelp(),
	)
}

// renderHeader shows the brand, the model label and the status line. The
// status is truncated to whatever width is left.
func (m Model) renderHeader() string {
	brand := m.theme.HeaderBrand.Render("NanoMind")
	if m.modelLabel != "" {
		brand += m.theme.StatusHintMuted.Render(" · " + m.modelLabel)
	}

	inner := m.width - 4
	room := inner - lipgloss.Width(brand) - 3
	status := m.snap.Status
	if room > 0 {
		status = util.TruncateWidth(util.SingleLine(status), room)
	} else {
		status = ""
	}

	gap := inner - lipgloss.Width(brand) - util.StringWidth(status)
	if gap < 1 {
		gap = 1
	}
	line := brand + strings.Repeat(" ", gap) + m.theme.StatusStyle(m.snap.Status).Render(status)

	return m.theme.Header.Width(max(m.width-2, 1)).Render(line)
}

// =============================================================================
// MESSAGES
// =============================================================================

func (m Model) renderMessages() string {
	if len(m.snap.Messages) == 0 {
		return m.theme.Empty.Render("Ask NanoMind anything. /clear starts over, /quit exits.")
	}

	width := m.viewport.Width
	var sb strings.Builder
	for i, msg := range m.snap.Messages {
		if i > 0 {
			sb.WriteString("\n")
		}
		isLast := i == len(m.snap.Messages)-1
		sb.WriteString(m.renderMessage(msg, isLast, width))
	}
	return sb.String()
}

func (m Model) renderMessage(msg model.Message, isLast bool, width int) string {
	bubbleWidth := width * 3 / 4
	if bubbleWidth < 20 {
		bubbleWidth = max(width-2, 1)
	}

	text := msg.Text
	if msg.IsEmpty() && !msg.IsUser {
		// The placeholder of the running generation.
		if isLast && m.snap.Busy {
			text = m.spinner.View() + " thinking"
		} else {
			text = "..."
		}
	}

	author := m.theme.Author.Render(msg.Author())
	if msg.IsUser {
		bubble := m.theme.UserBubble.Width(bubbleWidth).Render(text)
		return lipgloss.PlaceHorizontal(width, lipgloss.Right,
			lipgloss.JoinVertical(lipgloss.Right, author, bubble))
	}
	bubble := m.theme.AssistantBubble.Width(bubbleWidth).Render(text)
	return lipgloss.JoinVertical(lipgloss.Left, author, bubble)
}

// =============================================================================
// INPUT AREA
// =============================================================================

func (m Model) renderInput() string {
	send := m.theme.SendEnabled.Render(sendLabel)
	if m.snap.Busy {
		send = m.theme.SendDisabled.Render(sendLabel)
	}

	line := m.input.View() + " " + send
	return m.theme.InputContainer.Width(max(m.width, 1)).Render(line)
}

func (m Model) renderHelp() string {
	if m.notice != "" {
		return m.theme.StatusError.Render(m.notice)
	}
	return m.theme.StatusHintMuted.Render(util.TruncateWidth(m.keyMap.ShortHelp(), max(m.width, 1)))
}
