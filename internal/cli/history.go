// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vinayakkamatcodes/nanoMind/internal/storage"
	"github.com/vinayakkamatcodes/nanoMind/internal/util"
)

const historyPreviewWidth = 60

func newHistoryCmd(opts *options) *cobra.Command {
	var (
		limit  int
		search string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent exchanges from the transcript database",
		Long: "List recent exchanges, newest first. Exchanges are stored only when\n" +
			"storage.transcript_enabled is true.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			path := cfg.TranscriptPath()
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(cmd.OutOrStdout(), DimStyle.Render("No transcripts yet ("+path+")."))
				return nil
			}

			t, err := storage.Open(path)
			if err != nil {
				return err
			}
			defer t.Close()

			var entries []storage.Entry
			if search != "" {
				entries, err = t.Search(cmd.Context(), search, limit)
			} else {
				entries, err = t.Recent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}

			if asJSON {
				return writeHistoryJSON(cmd.OutOrStdout(), entries)
			}
			writeHistory(cmd.OutOrStdout(), entries, time.Now())
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of exchanges")
	cmd.Flags().StringVarP(&search, "search", "s", "", "only exchanges containing this text")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func writeHistory(w io.Writer, entries []storage.Entry, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No matching exchanges."))
		return
	}
	fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("Recent exchanges (%d)", len(entries))))
	fmt.Fprintln(w, RenderSeparator())
	for _, e := range entries {
		when := humanize.RelTime(e.StartedAt, now, "ago", "from now")
		fmt.Fprintf(w, "%s %s\n", RenderLabel(when), ValueStyle.Render(util.TruncateWidth(util.SingleLine(e.Prompt), historyPreviewWidth)))
		if e.Failed() {
			fmt.Fprintf(w, "%s %s\n", RenderLabel(""), ErrorStyle.Render("Error: "+e.Error))
			continue
		}
		fmt.Fprintf(w, "%s %s\n", RenderLabel(""), DimStyle.Render(util.TruncateWidth(util.SingleLine(e.Response), historyPreviewWidth)))
		fmt.Fprintf(w, "%s %s\n", RenderLabel(""),
			DimStyle.Render(fmt.Sprintf("%d ms, first token %d ms, %d tokens",
				e.Duration.Milliseconds(), e.TTFT.Milliseconds(), e.TokenEvents)))
	}
}

// historyJSON is the --json shape of one entry.
type historyJSON struct {
	Conversation string    `json:"conversation"`
	Prompt       string    `json:"prompt"`
	Response     string    `json:"response,omitempty"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	DurationMS   int64     `json:"duration_ms"`
	TTFTMS       int64     `json:"ttft_ms"`
	TokenEvents  int       `json:"token_events"`
}

func writeHistoryJSON(w io.Writer, entries []storage.Entry) error {
	out := make([]historyJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyJSON{
			Conversation: e.Conversation,
			Prompt:       e.Prompt,
			Response:     e.Response,
			Error:        e.Error,
			StartedAt:    e.StartedAt,
			DurationMS:   e.Duration.Milliseconds(),
			TTFTMS:       e.TTFT.Milliseconds(),
			TokenEvents:  e.TokenEvents,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
