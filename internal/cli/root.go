// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Execute runs the nanomind command line.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

// Main runs the command line and returns the process exit code.
func Main(ctx context.Context) int {
	err := Execute(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errReplyFailed):
		// The status line has been printed already.
		return 1
	case errors.Is(err, context.Canceled):
		return 130
	}
	fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: "+err.Error()))
	return 1
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "nanomind",
		Short: "Chat with an on-device language model",
		Long: "nanomind streams replies from a local model served by Ollama.\n\n" +
			"Run without a command for the full-screen chat, or use 'ask' and 'chat'\n" +
			"for scripting and plain terminals. The model defaults to\n" +
			"~/Downloads/nanomind_model.gguf.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if interactive() {
				return runTUI(cmd.Context(), opts, false)
			}
			return runChat(cmd.Context(), opts, os.Stdin, cmd.OutOrStdout(), false)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ~/.nanomind/config.toml)")
	flags.StringVarP(&opts.modelPath, "model", "m", "", "model .gguf file or Ollama tag")
	flags.StringVar(&opts.ollamaURL, "ollama-url", "", "Ollama server URL")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&opts.overflow, "overflow", "", "event buffer overflow: drop-oldest, drop-newest, block")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "use a scripted engine instead of Ollama")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr instead of the log file (line modes only)")

	rootCmd.AddCommand(
		newTUICmd(opts),
		newChatCmd(opts),
		newAskCmd(opts),
		newConfigCmd(opts),
		newHistoryCmd(opts),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) error {
	_, err := fmt.Fprintf(w, "nanomind %s (commit %s, built %s, %s/%s)\n",
		Version, GitCommit, BuildDate, runtime.GOOS, runtime.GOARCH)
	return err
}

// logWriter picks where a line-mode command logs: stderr with --verbose,
// the configured log file otherwise.
func (o *options) logWriter() io.Writer {
	if o.verbose {
		return os.Stderr
	}
	return nil
}
