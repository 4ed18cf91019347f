// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package enginetest provides a scripted engine.Engine for tests and for the
// CLI's dry-run mode.
package enginetest

import (
	"context"
	"sync"
	"time"

	"github.com/vinayakkamatcodes/nanoMind/internal/engine"
)

// Engine is an in-memory engine.Engine.
//
// With no Reply configured, Predict only records the prompt and the test
// drives the stream by hand with Emit. With Reply set, Predict streams the
// words on its own and finishes with Done, or with FailWith if set.
type Engine struct {
	bus *engine.Bus

	// LoadErr and PredictErr are returned synchronously when non-nil.
	LoadErr    error
	PredictErr error

	// LoadFailWith makes Load publish Failed instead of Loaded.
	LoadFailWith string

	Reply    []string
	FailWith string
	Delay    time.Duration

	// Untagged disables session tagging of predict events.
	Untagged bool

	mu          sync.Mutex
	prompts     []string
	loads       []string
	contextLens []int
	aborts      int
	releases    int
	lastSession uint64
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// New creates a scripted engine publishing on bus.
func New(bus *engine.Bus) *Engine {
	return &Engine{bus: bus}
}

// Load records the call and publishes Loaded then calls onReady, both
// before returning.
func (e *Engine) Load(ctx context.Context, path string, contextLength int, onReady func(int)) error {
	e.mu.Lock()
	e.loads = append(e.loads, path)
	e.contextLens = append(e.contextLens, contextLength)
	loadErr, failWith := e.LoadErr, e.LoadFailWith
	n := len(e.loads)
	e.mu.Unlock()

	if loadErr != nil {
		return loadErr
	}
	if failWith != "" {
		e.bus.Publish(engine.Failed(failWith))
		return nil
	}
	e.bus.Publish(engine.Loaded(path))
	if onReady != nil {
		onReady(n)
	}
	return nil
}

// Predict records prompt and, if Reply is set, streams it.
func (e *Engine) Predict(ctx context.Context, prompt string) error {
	e.mu.Lock()
	e.prompts = append(e.prompts, prompt)
	e.lastSession = engine.SessionFrom(ctx)
	if e.PredictErr != nil {
		err := e.PredictErr
		e.mu.Unlock()
		return err
	}
	if e.Reply == nil && e.FailWith == "" {
		e.mu.Unlock()
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	words := append([]string(nil), e.Reply...)
	failWith, delay := e.FailWith, e.Delay
	session := e.tagFor(engine.SessionFrom(ctx))
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		defer cancel()
		for _, w := range words {
			if delay > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(delay):
				}
			}
			if ctx.Err() != nil {
				return
			}
			e.bus.Publish(engine.Ongoing(w).Tagged(session))
		}
		if ctx.Err() != nil {
			return
		}
		if failWith != "" {
			e.bus.Publish(engine.Failed(failWith).Tagged(session))
			return
		}
		e.bus.Publish(engine.Done().Tagged(session))
	}()
	return nil
}

// Abort cancels a scripted reply in flight.
func (e *Engine) Abort() {
	e.mu.Lock()
	e.aborts++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.mu.Unlock()
}

// Release aborts and waits for the scripted reply goroutine.
func (e *Engine) Release() error {
	e.Abort()
	e.wg.Wait()
	e.mu.Lock()
	e.releases++
	e.mu.Unlock()
	return nil
}

// Emit publishes ev as-is.
func (e *Engine) Emit(ev engine.Event) {
	e.bus.Publish(ev)
}

// EmitCurrent publishes ev tagged with the session of the last Predict call.
func (e *Engine) EmitCurrent(ev engine.Event) {
	e.mu.Lock()
	session := e.tagFor(e.lastSession)
	e.mu.Unlock()
	e.bus.Publish(ev.Tagged(session))
}

func (e *Engine) tagFor(session uint64) uint64 {
	if e.Untagged {
		return 0
	}
	return session
}

// Prompts returns every prompt passed to Predict.
func (e *Engine) Prompts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.prompts...)
}

// Loads returns every path passed to Load.
func (e *Engine) Loads() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.loads...)
}

// ContextLengths returns the context lengths passed to Load.
func (e *Engine) ContextLengths() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.contextLens...)
}

// Aborts returns how many times Abort was called.
func (e *Engine) Aborts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.aborts
}

// Releases returns how many times Release was called.
func (e *Engine) Releases() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.releases
}

var _ engine.Engine = (*Engine)(nil)
