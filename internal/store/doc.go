// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store holds the observable conversation state: the ordered list of
// messages, the status line and the busy flag.
//
// All mutations are serialized by a single mutex. Observers are invoked
// synchronously after every mutation, outside the lock, with a snapshot of
// the new state. Observers must not block or mutate the store; a UI that
// needs to repaint should record the snapshot and hand it off to its own
// goroutine.
//
// # Usage
//
//	st := store.New()
//	cancel := st.Subscribe(func(s store.Snapshot) { render(s) })
//	defer cancel()
//
//	i := st.AppendMessage(model.NewAssistantPlaceholder())
//	_ = st.ReplaceText(i, "Hello")
package store
