// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/vinayakkamatcodes/nanoMind/internal/model"
)

// Schema creates the transcript table.
const Schema = `
CREATE TABLE IF NOT EXISTS exchanges (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation   TEXT    NOT NULL,
	session        INTEGER NOT NULL,
	prompt         TEXT    NOT NULL,
	response       TEXT    NOT NULL,
	error          TEXT    NOT NULL DEFAULT '',
	started_at     INTEGER NOT NULL,
	duration_ms    INTEGER NOT NULL,
	ttft_ms        INTEGER NOT NULL,
	token_events   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_exchanges_started ON exchanges(started_at);
CREATE INDEX IF NOT EXISTS idx_exchanges_conversation ON exchanges(conversation);
`

// =============================================================================
// ENTRY
// =============================================================================

// Entry is one stored exchange.
type Entry struct {
	ID           int64
	Conversation string
	Session      uint64
	Prompt       string
	Response     string
	Error        string
	StartedAt    time.Time
	Duration     time.Duration
	TTFT         time.Duration
	TokenEvents  int
}

// Failed reports whether the exchange ended with an engine error.
func (e Entry) Failed() bool { return e.Error != "" }

// Messages rebuilds the conversation entries for this exchange. A failed
// exchange has no assistant message.
func (e Entry) Messages() []model.Message {
	user := model.NewUserMessage(e.Prompt)
	user.CreatedAt = e.StartedAt
	if e.Failed() {
		return []model.Message{user}
	}
	reply := model.NewAssistantPlaceholder().WithText(e.Response)
	reply.CreatedAt = e.StartedAt.Add(e.TTFT)
	return []model.Message{user, reply}
}

// =============================================================================
// TRANSCRIPTS
// =============================================================================

// Transcripts is a SQLite-backed exchange log. It is safe for concurrent use.
type Transcripts struct {
	db   *sql.DB
	path string

	mu           sync.Mutex
	conversation string
}

// Open opens or creates the database at path, creating parent directories.
func Open(path string) (*Transcripts, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("create transcript dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open transcript db: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps :memory:
	// databases alive across calls.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Transcripts{
		db:           db,
		path:         path,
		conversation: uuid.NewString(),
	}, nil
}

// Path returns the database location.
func (t *Transcripts) Path() string { return t.path }

// Conversation returns the id entries recorded through t are grouped under.
func (t *Transcripts) Conversation() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conversation
}

// Continue groups later entries under an existing conversation, so a
// reopened conversation keeps growing instead of starting a new one.
func (t *Transcripts) Continue(conversation string) {
	t.mu.Lock()
	t.conversation = conversation
	t.mu.Unlock()
}

// RecordExchange stores ex under the current conversation.
func (t *Transcripts) RecordExchange(ctx context.Context, ex model.Exchange) error {
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO exchanges
			(conversation, session, prompt, response, error, started_at, duration_ms, ttft_ms, token_events)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Conversation(),
		int64(ex.Session),
		ex.Prompt,
		ex.Response,
		ex.Error,
		ex.StartedAt.UnixMilli(),
		ex.Stats.TotalDuration.Milliseconds(),
		ex.Stats.TTFT.Milliseconds(),
		ex.Stats.TokenEvents,
	)
	if err != nil {
		return fmt.Errorf("record exchange: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (t *Transcripts) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return t.query(ctx, `ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
}

// Search returns up to limit entries whose prompt or response contains
// text, newest first. SQLite's LIKE folds ASCII letters only, so other
// letters must match case exactly.
func (t *Transcripts) Search(ctx context.Context, text string, limit int) ([]Entry, error) {
	pattern := "%" + escapeLike(text) + "%"
	return t.query(ctx, `
		WHERE prompt LIKE ? ESCAPE '\' OR response LIKE ? ESCAPE '\'
		ORDER BY started_at DESC, id DESC LIMIT ?`, pattern, pattern, limit)
}

// ConversationEntries returns the entries of one conversation, oldest first.
func (t *Transcripts) ConversationEntries(ctx context.Context, conversation string) ([]Entry, error) {
	return t.query(ctx, `WHERE conversation = ? ORDER BY started_at ASC, id ASC`, conversation)
}

// Count returns the number of stored entries.
func (t *Transcripts) Count(ctx context.Context) (int, error) {
	var n int
	if err := t.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exchanges`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count exchanges: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (t *Transcripts) Close() error {
	return t.db.Close()
}

func (t *Transcripts) query(ctx context.Context, tail string, args ...any) ([]Entry, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT id, conversation, session, prompt, response, error, started_at, duration_ms, ttft_ms, token_events
		FROM exchanges `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                             Entry
			session, started, dur, ttftMs int64
		)
		if err := rows.Scan(&e.ID, &e.Conversation, &session, &e.Prompt, &e.Response, &e.Error,
			&started, &dur, &ttftMs, &e.TokenEvents); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		e.Session = uint64(session)
		e.StartedAt = time.UnixMilli(started)
		e.Duration = time.Duration(dur) * time.Millisecond
		e.TTFT = time.Duration(ttftMs) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
