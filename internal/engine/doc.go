// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine defines the contract between the generation coordinator and
// an inference engine, along with the event bus the engine publishes on.
//
// An Engine never returns generated text directly. Load and Predict start
// work and return; progress arrives as Events on a shared Bus:
//
//	Loaded{Path}    the model finished loading
//	Ongoing{Word}   one token delta
//	Done            the reply is complete
//	Error{Message}  loading or generation failed
//
// The Bus is broadcast: every live Subscription sees every event published
// after it subscribed. Events published by Predict carry the session
// sequence found in the request context (see WithSession), so consumers can
// discard stragglers from an earlier session. Events from Load are untagged.
//
// # Overflow
//
// Each subscription has a bounded buffer. When it fills, the Bus applies its
// OverflowPolicy: DropOldest (default) discards the oldest queued event,
// DropNewest discards the incoming one, Block waits for the subscriber.
// Dropped deltas never corrupt the visible reply; they only shorten it.
package engine
