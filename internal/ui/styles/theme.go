// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/vinayakkamatcodes/nanoMind/internal/model"
)

// Theme holds all the styled components for the chat screen.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Header      lipgloss.Style
	HeaderBrand lipgloss.Style

	StatusIdle      lipgloss.Style
	StatusBusy      lipgloss.Style
	StatusSuccess   lipgloss.Style
	StatusError     lipgloss.Style
	StatusHintMuted lipgloss.Style

	// ==========================================================================
	// MESSAGE STYLES
	// ==========================================================================

	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	Author          lipgloss.Style
	Empty           lipgloss.Style

	// ==========================================================================
	// INPUT AREA STYLES
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	SendEnabled    lipgloss.Style
	SendDisabled   lipgloss.Style
	Spinner        lipgloss.Style
}

// NewTheme creates a theme for the current terminal.
func NewTheme() *Theme {
	colorProfile := termenv.ColorProfile()

	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	// Header
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(0, 1)

	t.HeaderBrand = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.StatusIdle = lipgloss.NewStyle().Foreground(TextSecondary)
	t.StatusBusy = lipgloss.NewStyle().Foreground(Amber).Bold(true)
	t.StatusSuccess = lipgloss.NewStyle().Foreground(Emerald).Bold(true)
	t.StatusError = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.StatusHintMuted = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)

	// Messages
	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 1).
		MarginLeft(4)

	t.AssistantBubble = lipgloss.NewStyle().
		Foreground(AssistantBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(AssistantBubbleBorder).
		Padding(0, 1).
		MarginRight(4)

	t.Author = lipgloss.NewStyle().
		Foreground(TextMuted).
		Bold(true)

	t.Empty = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true).
		Padding(1, 2)

	// Input area
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.SendEnabled = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)

	t.SendDisabled = lipgloss.NewStyle().
		Foreground(TextMuted).
		Strikethrough(true)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)
}

// StatusStyle picks the header style for a status line.
func (t *Theme) StatusStyle(status string) lipgloss.Style {
	switch {
	case model.IsErrorStatus(status):
		return t.StatusError
	case status == model.StatusLoading || status == model.StatusGenerating:
		return t.StatusBusy
	case status == model.StatusModelReady || strings.HasPrefix(status, "Inference Time:"):
		return t.StatusSuccess
	default:
		return t.StatusIdle
	}
}
