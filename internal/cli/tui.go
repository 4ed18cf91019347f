// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/vinayakkamatcodes/nanoMind/internal/ui/chat"
	"github.com/vinayakkamatcodes/nanoMind/internal/ui/styles"
)

func newTUICmd(opts *options) *cobra.Command {
	var resume bool

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the full-screen chat (default when attached to a terminal)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), opts, resume)
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "reopen the most recent stored conversation")
	return cmd
}

// runTUI runs the Bubble Tea chat until the user quits. Logs always go to
// the log file so they never draw over the screen.
func runTUI(ctx context.Context, opts *options, resume bool) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	logPath := cfg.LogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := tea.LogToFile(logPath, "nanomind")
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	a, err := newApp(cfg, opts.dryRun, logFile)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if resume {
		if _, err := a.resume(ctx); err != nil {
			a.logger.Warn("resume failed", "error", err)
		}
	}

	bridge := chat.NewBridge(a.store, cfg.UI.MaxFPS)
	defer bridge.Close()

	m := chat.New(ctx, styles.NewTheme(), a.coord, chat.Options{
		ModelLabel: a.modelLabel,
		Initial:    bridge.Latest(),
		Logger:     a.logger,
	})

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	go func() {
		_ = bridge.Run(ctx, p.Send)
	}()

	// The load runs beside the UI; its progress shows in the header.
	go func() {
		if err := a.loadModel(ctx); err != nil {
			a.logger.Warn("model load did not start", "error", err)
		}
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
