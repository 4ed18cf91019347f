// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"errors"
	"fmt"
)

// Engine loads a model and streams predictions as Events on a Bus.
//
// Load and Predict return once the work is started; a nil error does not
// mean the work succeeded. Failures after that point arrive as Failed events.
type Engine interface {
	// Load starts loading the model at path. onReady is called with the
	// engine's context identifier after the Loaded event has been published.
	Load(ctx context.Context, path string, contextLength int, onReady func(contextID int)) error

	// Predict starts generating a reply for a fully templated prompt.
	// Cancelling ctx stops generation.
	Predict(ctx context.Context, prompt string) error

	// Abort stops any in-flight generation. It is safe to call when idle.
	Abort()

	// Release aborts and frees the model. The engine is unusable afterwards.
	Release() error
}

// Sentinel errors returned by engines.
var (
	ErrNotLoaded = errors.New("no model loaded")
	ErrReleased  = errors.New("engine released")
)

// ErrorKind distinguishes load failures from generation failures.
type ErrorKind int

const (
	LoadError ErrorKind = iota + 1
	GenerationError
)

func (k ErrorKind) String() string {
	switch k {
	case LoadError:
		return "load"
	case GenerationError:
		return "generation"
	default:
		return "unknown"
	}
}

// Error is a failure reported synchronously by an engine.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsLoadError reports whether err is a load failure.
func IsLoadError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == LoadError
}

// IsGenerationError reports whether err is a generation failure.
func IsGenerationError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == GenerationError
}
