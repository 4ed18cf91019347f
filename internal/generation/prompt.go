// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generation

import "strings"

// DefaultSystemPrompt is the assistant persona used when none is configured.
const DefaultSystemPrompt = "You are NanoMind, a helpful, intelligent, and efficient AI assistant. " +
	"You provide clear, concise, and accurate answers to any questions. " +
	"You are knowledgeable across a wide range of topics including science, technology, history, arts, and general knowledge. " +
	"Always be helpful, respectful, and provide well-structured responses."

// ChatML markers. The engine receives the rendered prompt verbatim.
const (
	imStart = "<|im_start|>"
	imEnd   = "<|im_end|>"
)

// RenderPrompt wraps the user text in the ChatML template the model was
// tuned on. Neither input is trimmed or escaped.
func RenderPrompt(system, user string) string {
	var b strings.Builder
	b.Grow(len(system) + len(user) + 64)
	b.WriteString(imStart + "system\n")
	b.WriteString(system)
	b.WriteString(imEnd + "\n" + imStart + "user\n")
	b.WriteString(user)
	b.WriteString(imEnd + "\n" + imStart + "assistant\n")
	return b.String()
}
