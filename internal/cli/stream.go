// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vinayakkamatcodes/nanoMind/internal/generation"
	"github.com/vinayakkamatcodes/nanoMind/internal/model"
	"github.com/vinayakkamatcodes/nanoMind/internal/store"
	"github.com/vinayakkamatcodes/nanoMind/internal/ui/chat"
)

// errReplyFailed is returned by sendAndStream when the engine reported an
// error; the status line already carries the detail.
var errReplyFailed = errors.New("reply failed")

// waitForModel blocks until the model load settles: the status leaves
// "Loading Model..." or ctx ends.
func waitForModel(ctx context.Context, st *store.Store) (string, error) {
	bridge := chat.NewBridge(st, 0)
	defer bridge.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var status string
	err := bridge.Run(runCtx, func(msg tea.Msg) {
		snap := msg.(chat.SnapshotMsg).Snapshot
		if snap.Status != model.StatusLoading {
			status = snap.Status
			cancel()
		}
	})
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return "", err
	}
	if model.IsErrorStatus(status) {
		return status, errors.New(status)
	}
	return status, nil
}

// sendAndStream submits prompt and copies the reply to out as it streams.
// It returns the final snapshot once the session is over.
func sendAndStream(ctx context.Context, coord *generation.Coordinator, prompt string, out io.Writer, maxFPS int) (store.Snapshot, error) {
	st := coord.Store()

	// Created before Submit so no mutation falls between subscribe and the
	// first delivery.
	bridge := chat.NewBridge(st, maxFPS)
	defer bridge.Close()

	base := st.Len()
	if err := coord.Submit(ctx, prompt); err != nil {
		return st.Snapshot(), err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		final   store.Snapshot
		printed int
		werr    error
	)
	err := bridge.Run(runCtx, func(msg tea.Msg) {
		snap := msg.(chat.SnapshotMsg).Snapshot
		if len(snap.Messages) > base+1 {
			text := snap.Messages[base+1].Text
			if len(text) > printed && werr == nil {
				_, werr = io.WriteString(out, text[printed:])
				printed = len(text)
			}
		}
		if !snap.Busy {
			final = snap
			cancel()
		}
	})
	if ctx.Err() != nil {
		return st.Snapshot(), ctx.Err()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return st.Snapshot(), err
	}
	if werr != nil {
		return final, fmt.Errorf("write reply: %w", werr)
	}
	if model.IsErrorStatus(final.Status) {
		return final, errReplyFailed
	}
	return final, nil
}
