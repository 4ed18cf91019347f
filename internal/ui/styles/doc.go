// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the nanomind TUI.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection. Theme bundles the styles the chat screen draws with and maps
status lines to a color:

	theme := styles.NewTheme()
	header := theme.StatusStyle(snap.Status).Render(snap.Status)

Error and success statuses also carry an ASCII indicator for terminals
and readers that cannot rely on color.
*/
package styles
