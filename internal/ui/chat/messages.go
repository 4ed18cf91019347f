// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "github.com/vinayakkamatcodes/nanoMind/internal/store"

// =============================================================================
// STORE MESSAGES
// =============================================================================

// SnapshotMsg carries a new view of the conversation store.
type SnapshotMsg struct {
	Snapshot store.Snapshot
}

// =============================================================================
// ACTION RESULTS
// =============================================================================

// submitResultMsg reports the outcome of a Submit call.
type submitResultMsg struct {
	prompt string
	err    error
}

// clearResultMsg reports the outcome of a clear request.
type clearResultMsg struct {
	err error
}
