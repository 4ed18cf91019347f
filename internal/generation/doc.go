// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package generation drives the inference engine on behalf of the UI.
//
// A Coordinator owns at most one generation session at a time. Submit
// appends the user message and an empty assistant placeholder to the store,
// subscribes to the engine bus, and only then issues Predict so the first
// token cannot be missed. Each Ongoing event extends the placeholder; Done
// or Error closes the session and frees the coordinator for the next prompt.
//
// # State Machine
//
//	Idle ──Submit──► AwaitingFirstToken ──Ongoing──► Streaming
//	  ▲                     │                           │
//	  └──── Terminating ◄───┴──────Done / Error─────────┘
//
// Engine failures never escape as errors; they surface as status text in
// the store. Submit only returns errors for rejected submissions.
package generation
