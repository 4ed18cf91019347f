// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the value types shared by the store, the
// generation coordinator and the UI.
//
// # Key Types
//
//   - Message: one chat entry (text, author, creation time, stable ID)
//   - Status: the single status line shown to the user
//   - Statistics: timing collected for one generation session
//
// # Usage
//
//	msg := model.NewUserMessage("Hello!")
//	placeholder := model.NewAssistantPlaceholder()
//	status := model.StatusInferenceTime(412 * time.Millisecond)
//	fmt.Println(status) // "Inference Time: 412 ms"
package model
