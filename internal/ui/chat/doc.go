// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the chat view for the nanomind TUI.

The view never owns conversation state. It renders the latest
store.Snapshot it was handed and forwards user actions to a Controller,
normally a *generation.Coordinator.

# Key Components

## Model (model.go)

The Bubble Tea model: header with the status line, a viewport over the
messages, and a text input with a send indicator that is disabled while a
generation is running.

## Bridge (bridge.go)

Store observers run synchronously and must not block, while
tea.Program.Send does. Bridge sits in between: its observer only records
the newest snapshot, and a forwarder goroutine delivers it to the program
at a capped frame rate. Intermediate snapshots may be skipped; the last one
never is.

## Commands

  - /clear - Clear the conversation (ignored while generating)
  - /quit  - Exit
*/
package chat
