// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"testing"
	"time"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("Hello")

	if !msg.IsUser {
		t.Error("IsUser = false, want true")
	}
	if msg.Text != "Hello" {
		t.Errorf("Text = %q, want 'Hello'", msg.Text)
	}
	if !strings.HasPrefix(msg.ID, "msg_") {
		t.Errorf("ID should start with 'msg_', got %q", msg.ID)
	}
	if msg.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestNewAssistantPlaceholder(t *testing.T) {
	msg := NewAssistantPlaceholder()

	if msg.IsUser {
		t.Error("placeholder should not be a user message")
	}
	if !msg.IsEmpty() {
		t.Errorf("placeholder should be empty, got %q", msg.Text)
	}
	if msg.Author() != "NanoMind" {
		t.Errorf("Author() = %q, want 'NanoMind'", msg.Author())
	}
}

func TestMessage_WithTextKeepsIdentity(t *testing.T) {
	msg := NewAssistantPlaceholder()
	updated := msg.WithText("Hi there")

	if updated.ID != msg.ID || !updated.CreatedAt.Equal(msg.CreatedAt) || updated.IsUser != msg.IsUser {
		t.Error("WithText must not change ID, CreatedAt or IsUser")
	}
	if updated.Text != "Hi there" {
		t.Errorf("Text = %q", updated.Text)
	}
	if msg.Text != "" {
		t.Error("WithText must not mutate the receiver")
	}
}

func TestMessage_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewUserMessage("x").ID
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

// =============================================================================
// STATUS TESTS
// =============================================================================

func TestStatusHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"error", StatusError("oom"), "Error: oom"},
		{"load error", StatusLoadError("no such file"), "Error Loading Model: no such file"},
		{"inference time", StatusInferenceTime(412 * time.Millisecond), "Inference Time: 412 ms"},
		{"sub-millisecond", StatusInferenceTime(300 * time.Microsecond), "Inference Time: 0 ms"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %q, want %q", tc.got, tc.want)
			}
		})
	}
}

func TestIsErrorStatus(t *testing.T) {
	if !IsErrorStatus(StatusError("x")) || !IsErrorStatus(StatusLoadError("x")) {
		t.Error("error statuses should be detected")
	}
	for _, s := range []string{StatusReady, StatusLoading, StatusModelReady, StatusGenerating, StatusInferenceTime(time.Second)} {
		if IsErrorStatus(s) {
			t.Errorf("IsErrorStatus(%q) = true", s)
		}
	}
}

// =============================================================================
// STATISTICS TESTS
// =============================================================================

func TestStatistics(t *testing.T) {
	start := time.Unix(1000, 0)
	stats := NewStatistics(start)

	stats.RecordToken(start.Add(150 * time.Millisecond))
	stats.RecordToken(start.Add(200 * time.Millisecond))
	stats.Finalize(start.Add(time.Second))

	if stats.TokenEvents != 2 {
		t.Errorf("TokenEvents = %d, want 2", stats.TokenEvents)
	}
	if stats.TTFT != 150*time.Millisecond {
		t.Errorf("TTFT = %v, want 150ms", stats.TTFT)
	}
	if stats.TotalDuration != time.Second {
		t.Errorf("TotalDuration = %v, want 1s", stats.TotalDuration)
	}
}
