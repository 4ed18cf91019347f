// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

func newAskCmd(opts *options) *cobra.Command {
	var (
		showStatus bool
		markdown   bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question and print the streamed reply",
		Long: "Ask one question and print the reply as it streams.\n\n" +
			"The question is taken from the arguments, or from stdin when no\n" +
			"arguments are given.",
		Example: "  nanomind ask \"What is a GGUF file?\"\n" +
			"  echo \"Summarize TCP slow start\" | nanomind ask",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			if prompt == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				prompt = string(data)
			}
			return runAsk(cmd.Context(), opts, prompt, cmd.OutOrStdout(), cmd.ErrOrStderr(), askFlags{
				status:   showStatus,
				markdown: markdown,
			})
		},
	}
	cmd.Flags().BoolVar(&showStatus, "status", false, "print the final status line to stderr")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "render the finished reply as markdown instead of streaming it")
	return cmd
}

type askFlags struct {
	status   bool
	markdown bool
}

func runAsk(ctx context.Context, opts *options, prompt string, out, errOut io.Writer, flags askFlags) error {
	if strings.TrimSpace(prompt) == "" {
		return errors.New("no question given")
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, opts.dryRun, opts.logWriter())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.loadModel(ctx); err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	if _, err := waitForModel(ctx, a.store); err != nil {
		return fmt.Errorf("load model: %w", err)
	}

	if !flags.markdown {
		final, err := sendAndStream(ctx, a.coord, prompt, out, 0)
		fmt.Fprintln(out)
		if flags.status || err != nil {
			fmt.Fprintln(errOut, RenderStatusLine(final.Status))
		}
		return err
	}

	var reply strings.Builder
	final, err := sendAndStream(ctx, a.coord, prompt, &reply, 0)
	if reply.Len() > 0 {
		fmt.Fprint(out, renderMarkdown(reply.String(), GetTerminalWidth()))
	}
	if flags.status || err != nil {
		fmt.Fprintln(errOut, RenderStatusLine(final.Status))
	}
	return err
}

// renderMarkdown renders a finished reply for the terminal, falling back to
// the raw text when the renderer cannot be built.
func renderMarkdown(content string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content + "\n"
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content + "\n"
	}
	return rendered
}
