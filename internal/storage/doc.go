// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage keeps a transcript of finished exchanges in SQLite.
//
// Recording is optional and never affects generation: the coordinator hands
// each finished exchange to Transcripts.RecordExchange and only logs a
// failure.
//
// # Usage
//
//	t, err := storage.Open("~/.nanomind/transcripts.db")
//	defer t.Close()
//	entries, err := t.Recent(ctx, 20)
//
// # Storage Location
//
// The database lives at ~/.nanomind/transcripts.db unless configured
// otherwise. Each Open starts a new conversation id so entries from one run
// can be grouped.
package storage
