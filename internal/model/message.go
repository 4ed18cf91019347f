// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/vinayakkamatcodes/nanoMind/internal/util"
)

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single entry in the conversation.
//
// Text grows while an assistant reply streams in. IsUser and CreatedAt never
// change after construction. The store addresses messages by position; ID is
// only a stable key for rendering and persistence.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	IsUser    bool      `json:"is_user"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserMessage creates a message authored by the user.
func NewUserMessage(text string) Message {
	return Message{
		ID:        newID(),
		Text:      text,
		IsUser:    true,
		CreatedAt: time.Now(),
	}
}

// NewAssistantPlaceholder creates the empty assistant message that is filled
// in while a reply streams.
func NewAssistantPlaceholder() Message {
	return Message{
		ID:        newID(),
		CreatedAt: time.Now(),
	}
}

// WithText returns a copy of the message carrying text.
func (m Message) WithText(text string) Message {
	m.Text = text
	return m
}

// Author returns a human-readable name for the sender.
func (m Message) Author() string {
	if m.IsUser {
		return "You"
	}
	return "NanoMind"
}

// IsEmpty reports whether the message has no text yet.
func (m Message) IsEmpty() bool {
	return m.Text == ""
}

// Preview returns the text truncated to maxWidth terminal cells.
func (m Message) Preview(maxWidth int) string {
	return util.TruncateWidth(m.Text, maxWidth)
}

// =============================================================================
// STATISTICS TYPE
// =============================================================================

// Statistics holds timing information for one generation session.
type Statistics struct {
	StartTime      time.Time
	FirstTokenTime time.Time
	EndTime        time.Time

	// TokenEvents counts delivered token-delta events. Under a lossy bus this
	// can be lower than what the engine produced.
	TokenEvents int

	TTFT          time.Duration
	TotalDuration time.Duration
}

// NewStatistics creates a Statistics starting at start.
func NewStatistics(start time.Time) *Statistics {
	return &Statistics{StartTime: start}
}

// RecordToken counts one token event and stamps the first-token time.
func (s *Statistics) RecordToken(at time.Time) {
	s.TokenEvents++
	if s.FirstTokenTime.IsZero() {
		s.FirstTokenTime = at
		s.TTFT = at.Sub(s.StartTime)
	}
}

// Finalize stamps the end time and computes the total duration.
func (s *Statistics) Finalize(at time.Time) {
	s.EndTime = at
	s.TotalDuration = at.Sub(s.StartTime)
}

// newID creates a unique message ID.
func newID() string {
	return "msg_" + uuid.NewString()
}
