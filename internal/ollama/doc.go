// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama runs inference on a local Ollama server.
//
// Client is a thin HTTP client for the endpoints nanomind needs: health
// check, /api/show, blob upload, /api/create and /api/generate (plain and
// NDJSON streaming). Engine adapts the client to engine.Engine and publishes
// its progress on an engine.Bus.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - ClientError: typed failure with IsNotRunning/IsModelNotFound helpers
//   - StreamReader: line-by-line reader for generate streams
//   - Engine: engine.Engine over a Client
//
// # Usage
//
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: url})
//	eng := ollama.NewEngine(client, bus, ollama.EngineConfig{ModelName: "nanomind"})
//	err := eng.Load(ctx, "/home/me/Downloads/nanomind_model.gguf", 2048, onReady)
//
// Prompts are sent with raw set, so the server does not apply the model's
// own template on top of the one already rendered by the caller.
package ollama
