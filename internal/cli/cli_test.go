// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinayakkamatcodes/nanoMind/internal/model"
	"github.com/vinayakkamatcodes/nanoMind/internal/storage"
)

const dryRunText = "(dry run) No engine is attached; this reply is scripted."

// testEnv is a config file whose log and transcript live in a temp dir.
type testEnv struct {
	dir        string
	configPath string
	dbPath     string
}

func newTestEnv(t *testing.T, transcripts bool) testEnv {
	t.Helper()
	for _, k := range []string{
		"NANOMIND_MODEL_PATH", "NANOMIND_MODEL_NAME", "NANOMIND_CONTEXT_LENGTH",
		"NANOMIND_OLLAMA_URL", "NANOMIND_OVERFLOW", "NANOMIND_TRANSCRIPTS",
		"NANOMIND_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}

	dir := t.TempDir()
	env := testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.toml"),
		dbPath:     filepath.Join(dir, "transcripts.db"),
	}
	body := fmt.Sprintf(`
[model]
path = 'nanomind:test'

[storage]
transcript_enabled = %t
transcript_path = '%s'

[log]
level = 'debug'
path = '%s'
`, transcripts, env.dbPath, filepath.Join(dir, "nanomind.log"))
	require.NoError(t, os.WriteFile(env.configPath, []byte(body), 0600))
	return env
}

// run executes the root command with args and returns stdout and stderr.
func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

// =============================================================================
// VERSION
// =============================================================================

func TestVersionCmd(t *testing.T) {
	out, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "nanomind "+Version))
}

// =============================================================================
// ASK
// =============================================================================

func TestAsk_DryRunStreamsReply(t *testing.T) {
	env := newTestEnv(t, false)

	out, errOut, err := run(t, "", "--config", env.configPath, "--dry-run", "ask", "--status", "Hi")
	require.NoError(t, err)
	assert.Equal(t, dryRunText+"\n", out)
	assert.Regexp(t, `Inference Time: \d+ ms`, errOut)
}

func TestAsk_Markdown(t *testing.T) {
	env := newTestEnv(t, false)

	out, _, err := run(t, "", "--config", env.configPath, "--dry-run", "ask", "--markdown", "Hi")
	require.NoError(t, err)
	assert.Contains(t, out, "scripted.")
}

func TestAsk_ReadsQuestionFromStdin(t *testing.T) {
	env := newTestEnv(t, false)

	out, _, err := run(t, "What is GGUF?\n", "--config", env.configPath, "--dry-run", "ask")
	require.NoError(t, err)
	assert.Contains(t, out, dryRunText)
}

func TestAsk_BlankQuestion(t *testing.T) {
	env := newTestEnv(t, false)

	_, _, err := run(t, "  \n", "--config", env.configPath, "--dry-run", "ask")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no question")
}

func TestAsk_InvalidFlagValue(t *testing.T) {
	env := newTestEnv(t, false)

	_, _, err := run(t, "", "--config", env.configPath, "--dry-run", "--overflow", "lossless", "ask", "Hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.overflow")
}

func TestAsk_MissingModelFile(t *testing.T) {
	env := newTestEnv(t, false)
	missing := filepath.Join(env.dir, "absent.gguf")

	_, _, err := run(t, "", "--config", env.configPath, "--model", missing, "ask", "Hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model file not found")
}

func TestAsk_RecordsTranscript(t *testing.T) {
	env := newTestEnv(t, true)

	_, _, err := run(t, "", "--config", env.configPath, "--dry-run", "ask", "Hello there")
	require.NoError(t, err)

	out, _, err := run(t, "", "--config", env.configPath, "history", "--json")
	require.NoError(t, err)

	var entries []historyJSON
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Hello there", entries[0].Prompt)
	assert.Equal(t, dryRunText, entries[0].Response)
	assert.Empty(t, entries[0].Error)
	assert.Equal(t, len(dryRunReply), entries[0].TokenEvents)
}

// =============================================================================
// CHAT
// =============================================================================

func TestChat_LineModeSession(t *testing.T) {
	env := newTestEnv(t, false)

	input := "Hello\n\n/status\n/clear\n/quit\nnever sent\n"
	out, _, err := run(t, input, "--config", env.configPath, "--dry-run", "chat")
	require.NoError(t, err)

	assert.Contains(t, out, model.StatusModelReady)
	assert.Contains(t, out, "nanomind>")
	assert.Contains(t, out, dryRunText)
	assert.Regexp(t, `Inference Time: \d+ ms`, out)
	assert.Contains(t, out, "conversation cleared")
	assert.Equal(t, 1, strings.Count(out, dryRunText), "input after /quit must not be sent")
}

func TestChat_EOFEndsSession(t *testing.T) {
	env := newTestEnv(t, false)

	_, _, err := run(t, "", "--config", env.configPath, "--dry-run", "chat")
	assert.NoError(t, err)
}

func TestChat_ResumeRestoresConversation(t *testing.T) {
	env := newTestEnv(t, true)

	_, _, err := run(t, "", "--config", env.configPath, "--dry-run", "ask", "first question")
	require.NoError(t, err)

	out, _, err := run(t, "/quit\n", "--config", env.configPath, "--dry-run", "chat", "--resume")
	require.NoError(t, err)
	assert.Contains(t, out, "You> first question")
	assert.Contains(t, out, "(1 earlier exchanges restored)")
}

func TestChat_ResumeKeepsEarlierHistory(t *testing.T) {
	env := newTestEnv(t, true)

	_, _, err := run(t, "", "--config", env.configPath, "--dry-run", "ask", "first question")
	require.NoError(t, err)

	_, _, err = run(t, "second question\n/quit\n", "--config", env.configPath, "--dry-run", "chat", "--resume")
	require.NoError(t, err)

	out, _, err := run(t, "/quit\n", "--config", env.configPath, "--dry-run", "chat", "--resume")
	require.NoError(t, err)
	assert.Contains(t, out, "You> first question")
	assert.Contains(t, out, "You> second question")
	assert.Contains(t, out, "(2 earlier exchanges restored)")
}

func TestChat_ResumeNeedsTranscripts(t *testing.T) {
	env := newTestEnv(t, false)

	_, _, err := run(t, "", "--config", env.configPath, "--dry-run", "chat", "--resume")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transcripts are disabled")
}

// =============================================================================
// CONFIG
// =============================================================================

func TestConfig_SetThenGet(t *testing.T) {
	env := newTestEnv(t, false)

	out, _, err := run(t, "", "--config", env.configPath, "config", "set", "model.context_length", "4096")
	require.NoError(t, err)
	assert.Contains(t, out, "model.context_length = 4096")

	out, _, err = run(t, "", "--config", env.configPath, "config", "get", "model.context_length")
	require.NoError(t, err)
	assert.Equal(t, "4096\n", out)

	out, _, err = run(t, "", "--config", env.configPath, "config", "get", "model.path")
	require.NoError(t, err)
	assert.Equal(t, "nanomind:test\n", out, "set must keep the other values in the file")
}

func TestConfig_SetRejectsInvalidValue(t *testing.T) {
	env := newTestEnv(t, false)

	_, _, err := run(t, "", "--config", env.configPath, "config", "set", "engine.overflow", "lossless")
	require.Error(t, err)

	out, _, err := run(t, "", "--config", env.configPath, "config", "get", "engine.overflow")
	require.NoError(t, err)
	assert.Equal(t, "drop-oldest\n", out)
}

func TestConfig_SetCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")

	_, _, err := run(t, "", "--config", path, "config", "set", "ui.max_fps", "60")
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestConfig_PathAndKeys(t *testing.T) {
	env := newTestEnv(t, false)

	out, _, err := run(t, "", "--config", env.configPath, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, env.configPath+"\n", out)

	out, _, err = run(t, "", "config", "keys")
	require.NoError(t, err)
	assert.Contains(t, out, "engine.overflow")
	assert.Contains(t, out, "model.system_prompt")
}

func TestConfig_UnknownKey(t *testing.T) {
	env := newTestEnv(t, false)

	_, _, err := run(t, "", "--config", env.configPath, "config", "get", "model.temperature")
	assert.Error(t, err)
}

// =============================================================================
// HISTORY
// =============================================================================

func TestHistory_NoDatabase(t *testing.T) {
	env := newTestEnv(t, true)

	out, _, err := run(t, "", "--config", env.configPath, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No transcripts yet")
}

func TestWriteHistory(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []storage.Entry{
		{
			Prompt:      "Explain\nchannels",
			Response:    "Channels connect goroutines.",
			StartedAt:   now.Add(-2 * time.Minute),
			Duration:    1500 * time.Millisecond,
			TTFT:        200 * time.Millisecond,
			TokenEvents: 5,
		},
		{
			Prompt:    "X",
			Error:     "oom",
			StartedAt: now.Add(-time.Hour),
		},
	}

	var buf bytes.Buffer
	writeHistory(&buf, entries, now)
	out := buf.String()

	assert.Contains(t, out, "Recent exchanges (2)")
	assert.Contains(t, out, "Explain channels")
	assert.Contains(t, out, "1500 ms, first token 200 ms, 5 tokens")
	assert.Contains(t, out, "Error: oom")
	assert.Contains(t, out, "2 minutes ago")
}

func TestWriteHistory_Empty(t *testing.T) {
	var buf bytes.Buffer
	writeHistory(&buf, nil, time.Now())
	assert.Contains(t, buf.String(), "No matching exchanges")
}

// =============================================================================
// STATUS RENDERING
// =============================================================================

func TestRenderStatusLine(t *testing.T) {
	for _, status := range []string{
		model.StatusError("oom"),
		model.StatusInferenceTime(12 * time.Millisecond),
		model.StatusGenerating,
	} {
		assert.Contains(t, RenderStatusLine(status), status)
	}
}
