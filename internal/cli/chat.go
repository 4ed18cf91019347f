// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/vinayakkamatcodes/nanoMind/internal/generation"
)

const chatPrompt = "you> "

func newChatCmd(opts *options) *cobra.Command {
	var resume bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat in line mode, without the full-screen UI",
		Long: "Chat in line mode. Type a message and press Enter; the reply streams\n" +
			"below it. Commands: /clear, /status, /quit.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout(), resume)
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "reopen the most recent stored conversation")
	return cmd
}

// lineReader yields one line of user input per call and io.EOF at the end.
type lineReader interface {
	ReadLine() (string, error)
	Close() error
}

// linerReader edits lines on a terminal with history.
type linerReader struct {
	state *liner.State
}

func (r *linerReader) ReadLine() (string, error) {
	line, err := r.state.Prompt(chatPrompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	if err == nil && strings.TrimSpace(line) != "" {
		r.state.AppendHistory(line)
	}
	return line, err
}

func (r *linerReader) Close() error { return r.state.Close() }

// scanReader reads piped input.
type scanReader struct {
	scanner *bufio.Scanner
}

func (r *scanReader) ReadLine() (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *scanReader) Close() error { return nil }

func newLineReader(in io.Reader) lineReader {
	if f, ok := in.(*os.File); ok && f == os.Stdin && IsTTY() {
		state := liner.NewLiner()
		state.SetCtrlCAborts(true)
		return &linerReader{state: state}
	}
	return &scanReader{scanner: bufio.NewScanner(in)}
}

func runChat(ctx context.Context, opts *options, in io.Reader, out io.Writer, resume bool) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, opts.dryRun, opts.logWriter())
	if err != nil {
		return err
	}
	defer a.Close()

	if resume {
		n, err := a.resume(ctx)
		if err != nil {
			return fmt.Errorf("resume: %w", err)
		}
		for _, msg := range a.store.Messages() {
			fmt.Fprintf(out, "%s %s\n", DimStyle.Render(msg.Author()+">"), msg.Text)
		}
		fmt.Fprintln(out, DimStyle.Render(fmt.Sprintf("(%d earlier exchanges restored)", n)))
	}

	fmt.Fprintln(out, TitleStyle.Render("NanoMind")+" "+DimStyle.Render(a.modelLabel))
	if err := a.loadModel(ctx); err == nil {
		if _, err := waitForModel(ctx, a.store); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}
	// A failed load is shown but does not end the session; the user may
	// still type /quit, and the status explains what went wrong.
	fmt.Fprintln(out, RenderStatusLine(a.store.Status()))

	reader := newLineReader(in)
	defer reader.Close()

	return chatLoop(ctx, a, reader, out)
}

func chatLoop(ctx context.Context, a *app, reader lineReader, out io.Writer) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line, err := reader.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		switch strings.TrimSpace(line) {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/status":
			fmt.Fprintln(out, RenderStatusLine(a.store.Status()))
			continue
		case "/clear":
			if err := a.coord.ClearConversation(); err != nil {
				fmt.Fprintln(out, WarningStyle.Render("cannot clear: "+err.Error()))
			} else {
				fmt.Fprintln(out, DimStyle.Render("conversation cleared"))
			}
			continue
		}

		fmt.Fprint(out, PromptStyle.Render("nanomind> "))
		final, err := sendAndStream(ctx, a.coord, line, out, a.cfg.UI.MaxFPS)
		fmt.Fprintln(out)
		switch {
		case errors.Is(err, generation.ErrBlankPrompt), errors.Is(err, generation.ErrBusy):
			// Rejected submissions are silent.
		case errors.Is(err, errReplyFailed), err == nil:
			fmt.Fprintln(out, RenderStatusLine(final.Status))
		default:
			return err
		}
	}
}
