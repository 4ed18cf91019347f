// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across nanomind.
//
//   - TruncateWidth, StringWidth: display-width aware string handling
//   - SingleLine: collapse text for one-line previews
//   - AtomicWriteFile: crash-safe file writing with fsync
//   - ExpandHome: resolve a leading ~ in configured paths
//
// # Usage
//
//	header := util.TruncateWidth(status, width-2)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
