// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vinayakkamatcodes/nanoMind/internal/model"
)

// ErrIndexOutOfRange is returned by ReplaceText when the position does not
// name an existing message.
var ErrIndexOutOfRange = errors.New("message index out of range")

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is an immutable copy of the store state.
type Snapshot struct {
	Messages []model.Message
	Status   string
	Busy     bool

	// Version increases by one on every mutation.
	Version uint64
}

// Last returns the final message, or false if the conversation is empty.
func (s Snapshot) Last() (model.Message, bool) {
	if len(s.Messages) == 0 {
		return model.Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Observer receives a snapshot after every mutation.
type Observer func(Snapshot)

// =============================================================================
// STORE
// =============================================================================

// Store is the single owner of the conversation, status and busy flag.
// It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	messages []model.Message
	status   string
	busy     bool
	version  uint64

	obsMu     sync.RWMutex
	observers map[int]Observer
	nextObs   int

	// notifyMu keeps observer deliveries in mutation order.
	notifyMu sync.Mutex
}

// New creates an empty store with status "Ready".
func New() *Store {
	return &Store{
		status:    model.StatusReady,
		observers: make(map[int]Observer),
	}
}

// Subscribe registers fn and returns a function that removes it.
// fn is not called with the current state; use Snapshot for that.
func (s *Store) Subscribe(fn Observer) (unsubscribe func()) {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			delete(s.observers, id)
			s.obsMu.Unlock()
		})
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Messages returns a copy of the conversation.
func (s *Store) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]model.Message, len(s.messages))
	copy(msgs, s.messages)
	return msgs
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Status returns the current status line.
func (s *Store) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Busy reports whether a generation session is in progress.
func (s *Store) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// AppendMessage adds msg to the end of the conversation and returns its
// position.
func (s *Store) AppendMessage(msg model.Message) int {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	index := len(s.messages) - 1
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
	return index
}

// ReplaceText swaps the text of the message at index, keeping its author,
// ID and creation time.
func (s *Store) ReplaceText(index int, text string) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if index < 0 || index >= len(s.messages) {
		n := len(s.messages)
		s.mu.Unlock()
		return fmt.Errorf("replace text at %d (len %d): %w", index, n, ErrIndexOutOfRange)
	}
	s.messages[index] = s.messages[index].WithText(text)
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// DropLast removes the final message. It is a no-op on an empty
// conversation and reports whether anything was removed.
func (s *Store) DropLast() bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if len(s.messages) == 0 {
		s.mu.Unlock()
		return false
	}
	s.messages[len(s.messages)-1] = model.Message{}
	s.messages = s.messages[:len(s.messages)-1]
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// SetStatus replaces the status line.
func (s *Store) SetStatus(status string) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.status = status
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// SetBusy sets the busy flag.
func (s *Store) SetBusy(busy bool) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.busy = busy
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Clear empties the conversation. Status and busy are left alone.
func (s *Store) Clear() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.messages = nil
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Restore replaces the conversation with msgs, used when reopening a saved
// transcript.
func (s *Store) Restore(msgs []model.Message) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.messages = append([]model.Message(nil), msgs...)
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
}

func (s *Store) commitLocked() Snapshot {
	s.version++
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	msgs := make([]model.Message, len(s.messages))
	copy(msgs, s.messages)
	return Snapshot{
		Messages: msgs,
		Status:   s.status,
		Busy:     s.busy,
		Version:  s.version,
	}
}

func (s *Store) notify(snap Snapshot) {
	s.obsMu.RLock()
	observers := make([]Observer, 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.obsMu.RUnlock()

	for _, fn := range observers {
		fn(snap)
	}
}
