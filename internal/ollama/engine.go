// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vinayakkamatcodes/nanoMind/internal/engine"
)

// DefaultModelName is the tag a local GGUF file is registered under.
const DefaultModelName = "nanomind"

// unloadTimeout bounds the keep_alive=0 request sent on Release.
const unloadTimeout = 5 * time.Second

// EngineConfig configures an Engine.
type EngineConfig struct {
	// ModelName is the tag used when a GGUF file is imported.
	ModelName string

	Logger *slog.Logger
}

// Engine is an engine.Engine backed by a local Ollama server.
//
// A path ending in .gguf is imported as a new model; any other path is
// taken to be the tag of a model the server already has.
type Engine struct {
	client *Client
	bus    *engine.Bus
	name   string
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	model         string
	numCtx        int
	contextID     int
	cancelPredict context.CancelFunc
	released      bool
}

// NewEngine creates an engine publishing on bus.
func NewEngine(client *Client, bus *engine.Bus, cfg EngineConfig) *Engine {
	if cfg.ModelName == "" {
		cfg.ModelName = DefaultModelName
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		client: client,
		bus:    bus,
		name:   cfg.ModelName,
		logger: logger.With("component", "ollama"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Model returns the tag of the loaded model, or "" before a load finishes.
func (e *Engine) Model() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model
}

// =============================================================================
// LOAD
// =============================================================================

// Load checks that the server is reachable and that a GGUF path exists, then
// imports and warms the model in the background. Success publishes Loaded
// and calls onReady; failure publishes Failed.
func (e *Engine) Load(ctx context.Context, path string, contextLength int, onReady func(contextID int)) error {
	e.mu.Lock()
	released := e.released
	e.mu.Unlock()
	if released {
		return engine.ErrReleased
	}

	if strings.TrimSpace(path) == "" {
		return &engine.Error{Kind: engine.LoadError, Message: "model path is empty"}
	}
	if isGGUF(path) {
		info, err := os.Stat(path)
		if err != nil {
			return &engine.Error{Kind: engine.LoadError, Message: "model file not found", Cause: err}
		}
		if !info.Mode().IsRegular() {
			return &engine.Error{Kind: engine.LoadError, Message: "model path is not a regular file: " + path}
		}
	}
	if err := e.client.CheckRunning(ctx); err != nil {
		return &engine.Error{Kind: engine.LoadError, Message: "cannot reach Ollama at " + e.client.BaseURL(), Cause: err}
	}

	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return engine.ErrReleased
	}
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()

		tag, err := e.load(e.ctx, path, contextLength)
		if err != nil {
			e.logger.Error("model load failed", "path", path, "error", err)
			e.bus.Publish(engine.Failed(err.Error()))
			return
		}

		e.mu.Lock()
		e.model = tag
		e.numCtx = contextLength
		e.contextID++
		id := e.contextID
		e.mu.Unlock()

		e.logger.Info("model loaded", "model", tag, "num_ctx", contextLength)
		e.bus.Publish(engine.Loaded(path))
		if onReady != nil {
			onReady(id)
		}
	}()
	return nil
}

func (e *Engine) load(ctx context.Context, path string, contextLength int) (string, error) {
	tag := path
	if isGGUF(path) {
		var err error
		if tag, err = e.importGGUF(ctx, path); err != nil {
			return "", err
		}
	} else if _, err := e.client.ShowModel(ctx, tag); err != nil {
		return "", err
	}

	started := time.Now()
	if _, err := e.client.Generate(ctx, GenerateRequest{
		Model:   tag,
		Options: &Options{NumCtx: contextLength},
	}); err != nil {
		return "", fmt.Errorf("warm model %s: %w", tag, err)
	}
	e.logger.Debug("model warmed", "model", tag, "elapsed", time.Since(started))
	return tag, nil
}

// importGGUF uploads the file as a blob unless the server already has it,
// then creates a model from it.
func (e *Engine) importGGUF(ctx context.Context, path string) (string, error) {
	digest, size, err := fileDigest(path)
	if err != nil {
		return "", fmt.Errorf("hash model file: %w", err)
	}

	exists, err := e.client.HasBlob(ctx, digest)
	if err != nil {
		return "", err
	}
	if !exists {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("open model file: %w", err)
		}
		defer f.Close()

		e.logger.Info("uploading model blob", "path", path, "digest", digest, "bytes", size)
		if err := e.client.PushBlob(ctx, digest, f, size); err != nil {
			return "", err
		}
	}

	files := map[string]string{filepath.Base(path): digest}
	if err := e.client.CreateModel(ctx, e.name, files); err != nil {
		return "", err
	}
	return e.name, nil
}

// =============================================================================
// PREDICT
// =============================================================================

// Predict streams a reply for prompt, which is sent raw. Events are tagged
// with the session found in ctx. A previous prediction still running is
// cancelled first.
func (e *Engine) Predict(ctx context.Context, prompt string) error {
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return engine.ErrReleased
	}
	if e.model == "" {
		e.mu.Unlock()
		return engine.ErrNotLoaded
	}
	if e.cancelPredict != nil {
		e.cancelPredict()
	}
	model, numCtx := e.model, e.numCtx

	// Either the caller or Abort/Release can stop the stream.
	pctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(e.ctx, cancel)
	e.cancelPredict = cancel
	e.wg.Add(1)
	e.mu.Unlock()

	session := engine.SessionFrom(ctx)
	req := GenerateRequest{
		Model:   model,
		Prompt:  prompt,
		Raw:     true,
		Options: &Options{NumCtx: numCtx},
	}

	go func() {
		defer e.wg.Done()
		defer stop()
		defer cancel()

		var chunks int
		err := e.client.GenerateStream(pctx, req, func(chunk StreamChunk) {
			if chunk.Content != "" {
				chunks++
				e.bus.Publish(engine.Ongoing(chunk.Content).Tagged(session))
			}
			if chunk.Done {
				e.logger.Debug("generation done",
					"session", session,
					"reason", chunk.DoneReason,
					"completion_tokens", chunk.CompletionTokens,
					"tokens_per_second", chunk.TokensPerSecond())
			}
		})

		switch {
		case err == nil:
			e.bus.Publish(engine.Done().Tagged(session))
		case pctx.Err() != nil:
			e.logger.Debug("generation aborted", "session", session, "chunks", chunks)
		default:
			e.logger.Error("generation failed", "session", session, "error", err)
			e.bus.Publish(engine.Failed(err.Error()).Tagged(session))
		}
	}()
	return nil
}

// Abort cancels an in-flight prediction.
func (e *Engine) Abort() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancelPredict != nil {
		e.cancelPredict()
		e.cancelPredict = nil
	}
}

// Release stops all background work and unloads the model from the server.
func (e *Engine) Release() error {
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return nil
	}
	e.released = true
	model := e.model
	e.model = ""
	e.mu.Unlock()

	e.Abort()
	e.cancel()
	e.wg.Wait()

	if model == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), unloadTimeout)
	defer cancel()
	if err := e.client.Unload(ctx, model); err != nil {
		return fmt.Errorf("unload %s: %w", model, err)
	}
	e.logger.Info("model unloaded", "model", model)
	return nil
}

func isGGUF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".gguf")
}

// fileDigest returns the "sha256:<hex>" digest and size of the file at path.
func fileDigest(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), n, nil
}

var _ engine.Engine = (*Engine)(nil)
