// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package artifact locates the model file on disk.
//
// A location is either a filesystem path (anything ending in .gguf, or
// starting with /, ~ or .) or an engine model tag such as "llama3:8b".
// Tags are passed through untouched.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"

	"github.com/vinayakkamatcodes/nanoMind/internal/util"
)

// DefaultFileName is the model file looked for in the Downloads folder.
const DefaultFileName = "nanomind_model.gguf"

// DefaultSettle is how long a file must stay unchanged before WaitFor
// considers a download finished.
const DefaultSettle = 500 * time.Millisecond

// ErrNotFound is returned when a file location does not exist.
var ErrNotFound = errors.New("model file not found")

// Artifact describes a resolved model location.
type Artifact struct {
	// Location is the value as configured; Path is the expanded form.
	Location string
	Path     string

	// IsFile is false for model tags.
	IsFile bool
	Exists bool
	Size   int64
}

// HumanSize returns the file size in human units, e.g. "1.1 GB".
func (a Artifact) HumanSize() string {
	if !a.IsFile || !a.Exists {
		return "-"
	}
	return humanize.Bytes(uint64(a.Size))
}

func (a Artifact) String() string {
	switch {
	case !a.IsFile:
		return "model " + a.Path
	case !a.Exists:
		return a.Path + " (missing)"
	default:
		return fmt.Sprintf("%s (%s)", a.Path, a.HumanSize())
	}
}

// DefaultPath returns ~/Downloads/nanomind_model.gguf.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("Downloads", DefaultFileName)
	}
	return filepath.Join(home, "Downloads", DefaultFileName)
}

// IsFileLocation reports whether location names a file rather than a tag.
func IsFileLocation(location string) bool {
	if strings.EqualFold(filepath.Ext(location), ".gguf") {
		return true
	}
	return filepath.IsAbs(location) ||
		strings.HasPrefix(location, "~") ||
		strings.HasPrefix(location, ".")
}

// Resolve expands location and, for files, stats it. An empty location
// resolves to DefaultPath. A missing file is not an error; check Exists.
func Resolve(location string) (Artifact, error) {
	if strings.TrimSpace(location) == "" {
		location = DefaultPath()
	}
	a := Artifact{Location: location, Path: location}
	if !IsFileLocation(location) {
		return a, nil
	}

	a.IsFile = true
	a.Path = filepath.Clean(util.ExpandHome(location))

	info, err := os.Stat(a.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return a, nil
	case err != nil:
		return a, fmt.Errorf("stat model file: %w", err)
	case info.IsDir():
		return a, fmt.Errorf("model path %s is a directory", a.Path)
	}
	a.Exists = true
	a.Size = info.Size()
	return a, nil
}

// Require resolves location and fails with ErrNotFound if it names a file
// that does not exist.
func Require(location string) (Artifact, error) {
	a, err := Resolve(location)
	if err != nil {
		return a, err
	}
	if a.IsFile && !a.Exists {
		return a, fmt.Errorf("%w: %s", ErrNotFound, a.Path)
	}
	return a, nil
}

// =============================================================================
// WAITING FOR A DOWNLOAD
// =============================================================================

// WaitFor blocks until the file at location exists and has not changed for
// settle, or ctx is done. Tags resolve immediately. The parent directory
// must already exist.
func WaitFor(ctx context.Context, location string, settle time.Duration) (Artifact, error) {
	a, err := Resolve(location)
	if err != nil || !a.IsFile || a.Exists {
		return a, err
	}
	if settle <= 0 {
		settle = DefaultSettle
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return a, fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(a.Path)
	if err := watcher.Add(dir); err != nil {
		return a, fmt.Errorf("watch %s: %w", dir, err)
	}

	// The file may have appeared between Resolve and Add.
	timer := time.NewTimer(settle)
	defer timer.Stop()
	if _, err := os.Stat(a.Path); err != nil {
		timer.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return a, ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return a, errors.New("watcher closed")
			}
			if filepath.Clean(event.Name) != a.Path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Chmod) != 0 {
				resetTimer(timer, settle)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return a, errors.New("watcher closed")
			}
			return a, fmt.Errorf("watch %s: %w", dir, err)

		case <-timer.C:
			resolved, err := Resolve(location)
			if err != nil {
				return resolved, err
			}
			if resolved.Exists {
				return resolved, nil
			}
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
