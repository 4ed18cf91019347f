// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/vinayakkamatcodes/nanoMind/internal/artifact"
	"github.com/vinayakkamatcodes/nanoMind/internal/config"
	"github.com/vinayakkamatcodes/nanoMind/internal/engine"
	"github.com/vinayakkamatcodes/nanoMind/internal/engine/enginetest"
	"github.com/vinayakkamatcodes/nanoMind/internal/generation"
	"github.com/vinayakkamatcodes/nanoMind/internal/model"
	"github.com/vinayakkamatcodes/nanoMind/internal/ollama"
	"github.com/vinayakkamatcodes/nanoMind/internal/storage"
	"github.com/vinayakkamatcodes/nanoMind/internal/store"
)

// dryRunReply is streamed by the scripted engine under --dry-run.
var dryRunReply = []string{"(dry run) ", "No ", "engine ", "is ", "attached; ", "this ", "reply ", "is ", "scripted."}

// =============================================================================
// GLOBAL OPTIONS
// =============================================================================

// options holds the persistent flags shared by every command.
type options struct {
	configPath string
	modelPath  string
	ollamaURL  string
	logLevel   string
	overflow   string
	dryRun     bool
	verbose    bool
}

// loadConfig reads the config file named by --config, or the default one,
// then applies flag overrides.
func (o *options) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFromPath(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if o.modelPath != "" {
		cfg.Model.Path = o.modelPath
	}
	if o.ollamaURL != "" {
		cfg.Engine.OllamaURL = o.ollamaURL
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.overflow != "" {
		cfg.Engine.Overflow = o.overflow
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

// configFile returns the path config commands read and write.
func (o *options) configFile() (string, error) {
	if o.configPath != "" {
		return o.configPath, nil
	}
	return config.ConfigPath()
}

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// app is one fully wired chat session: store, coordinator and engine.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	bus         *engine.Bus
	engine      engine.Engine
	store       *store.Store
	coord       *generation.Coordinator
	transcripts *storage.Transcripts

	modelLabel string
	closers    []io.Closer
}

// newApp wires the components for cfg. Logs go to logOut when non-nil,
// otherwise to the configured log file.
func newApp(cfg *config.Config, dryRun bool, logOut io.Writer) (*app, error) {
	a := &app{cfg: cfg}

	if logOut == nil {
		f, err := openLogFile(cfg.LogPath())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, f)
		logOut = f
	}
	a.logger = slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: cfg.LogLevel()}))

	a.bus = engine.NewBus(engine.BusConfig{
		Capacity: cfg.Engine.EventBuffer,
		Policy:   cfg.OverflowPolicy(),
		Logger:   a.logger,
	})

	if dryRun {
		scripted := enginetest.New(a.bus)
		scripted.Reply = dryRunReply
		scripted.Delay = 40 * time.Millisecond
		a.engine = scripted
		a.modelLabel = "dry-run"
	} else {
		client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: cfg.Engine.OllamaURL})
		a.engine = ollama.NewEngine(client, a.bus, ollama.EngineConfig{
			ModelName: cfg.Model.Name,
			Logger:    a.logger,
		})
		a.modelLabel = filepath.Base(cfg.Model.Path)
	}

	var recorder generation.Recorder
	if cfg.Storage.TranscriptEnabled {
		t, err := storage.Open(cfg.TranscriptPath())
		if err != nil {
			a.logger.Warn("transcripts disabled", "path", cfg.TranscriptPath(), "error", err)
		} else {
			a.transcripts = t
			a.closers = append(a.closers, t)
			recorder = t
		}
	}

	a.store = store.New()
	a.coord = generation.New(a.store, a.engine, a.bus, generation.Config{
		SystemPrompt:  cfg.Model.SystemPrompt,
		ContextLength: cfg.Model.ContextLength,
		Logger:        a.logger,
		Recorder:      recorder,
	})

	a.logger.Info("nanomind starting",
		"version", Version,
		"model", cfg.Model.Path,
		"dry_run", dryRun,
		"overflow", cfg.OverflowPolicy().String(),
		"event_buffer", cfg.Engine.EventBuffer)
	return a, nil
}

// loadModel resolves the configured model location and hands it to the
// coordinator. Status reflects the outcome; the error is returned so
// headless commands can fail fast.
func (a *app) loadModel(ctx context.Context) error {
	location := a.cfg.Model.Path

	if _, dry := a.engine.(*enginetest.Engine); dry {
		return a.coord.LoadModel(ctx, location)
	}

	var (
		art artifact.Artifact
		err error
	)
	if a.cfg.Model.WaitForFile {
		a.logger.Info("waiting for model file", "path", location)
		art, err = artifact.WaitFor(ctx, location, artifact.DefaultSettle)
	} else {
		art, err = artifact.Resolve(location)
	}
	if err != nil {
		return a.failLoad(err)
	}
	if art.IsFile {
		if !art.Exists {
			return a.failLoad(fmt.Errorf("%w: %s", artifact.ErrNotFound, art.Path))
		}
		a.logger.Info("model file found", "path", art.Path, "size", art.HumanSize())
	}
	if err := a.coord.LoadModel(ctx, art.Path); err != nil {
		switch {
		case ollama.IsNotRunning(err):
			a.logger.Warn("ollama is not running; start it with 'ollama serve'", "url", a.cfg.Engine.OllamaURL)
		case ollama.IsTimeout(err):
			a.logger.Warn("ollama did not answer in time", "url", a.cfg.Engine.OllamaURL)
		}
		return err
	}
	return nil
}

// failLoad surfaces a resolution failure the same way a synchronous engine
// load failure is surfaced.
func (a *app) failLoad(err error) error {
	a.logger.Error("model not available", "error", err)
	a.coord.ReportLoadFailure(err)
	return err
}

// resume restores the most recent stored conversation into the store.
func (a *app) resume(ctx context.Context) (int, error) {
	if a.transcripts == nil {
		return 0, errors.New("transcripts are disabled (storage.transcript_enabled = false)")
	}
	recent, err := a.transcripts.Recent(ctx, 1)
	if err != nil || len(recent) == 0 {
		return 0, err
	}
	entries, err := a.transcripts.ConversationEntries(ctx, recent[0].Conversation)
	if err != nil {
		return 0, err
	}
	var msgs []model.Message
	for _, e := range entries {
		msgs = append(msgs, e.Messages()...)
	}
	if err := a.coord.RestoreConversation(msgs); err != nil {
		return 0, err
	}
	a.transcripts.Continue(recent[0].Conversation)
	return len(entries), nil
}

// Close shuts the coordinator down, then the bus and any open files.
func (a *app) Close() error {
	var errs []error
	if err := a.coord.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close engine: %w", err))
	}
	a.bus.Close()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
