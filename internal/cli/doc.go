// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the nanomind command line.
//
// Commands:
//
//	nanomind            full-screen chat on a terminal, line mode otherwise
//	nanomind tui        full-screen chat
//	nanomind chat       line-mode chat with history editing
//	nanomind ask        one question, reply streamed to stdout
//	nanomind config     show, get and set configuration values
//	nanomind history    list stored exchanges
//	nanomind version    print version information
//
// Every chat command wires the same pieces: a store, a generation
// coordinator, an event bus and an engine (Ollama, or a scripted engine
// with --dry-run).
package cli
