// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"time"
)

// EventKind identifies the variant of an Event.
type EventKind int

const (
	KindLoaded EventKind = iota + 1
	KindOngoing
	KindDone
	KindError
)

// String returns the kind name.
func (k EventKind) String() string {
	switch k {
	case KindLoaded:
		return "loaded"
	case KindOngoing:
		return "ongoing"
	case KindDone:
		return "done"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one notification from the engine. Only the field matching Kind
// is meaningful.
type Event struct {
	Kind    EventKind
	Path    string // KindLoaded
	Word    string // KindOngoing
	Message string // KindError

	// Session is the sequence of the generation session that produced the
	// event, or 0 if untagged.
	Session uint64

	// At is stamped by the Bus when zero.
	At time.Time
}

// Loaded reports that the model at path is ready.
func Loaded(path string) Event { return Event{Kind: KindLoaded, Path: path} }

// Ongoing carries a single token delta.
func Ongoing(word string) Event { return Event{Kind: KindOngoing, Word: word} }

// Done marks the end of a reply.
func Done() Event { return Event{Kind: KindDone} }

// Failed reports a load or generation failure.
func Failed(message string) Event { return Event{Kind: KindError, Message: message} }

// Tagged returns a copy of e attributed to session.
func (e Event) Tagged(session uint64) Event {
	e.Session = session
	return e
}

// Terminal reports whether e ends a generation session.
func (e Event) Terminal() bool {
	return e.Kind == KindDone || e.Kind == KindError
}

// =============================================================================
// SESSION CONTEXT
// =============================================================================

type sessionKey struct{}

// WithSession returns a context carrying the generation session sequence.
// Engines tag the events of a Predict call with it.
func WithSession(ctx context.Context, seq uint64) context.Context {
	return context.WithValue(ctx, sessionKey{}, seq)
}

// SessionFrom returns the session sequence stored in ctx, or 0.
func SessionFrom(ctx context.Context) uint64 {
	seq, _ := ctx.Value(sessionKey{}).(uint64)
	return seq
}
