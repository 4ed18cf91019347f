// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for nanomind.
//
// Configuration is TOML, with sensible defaults, environment variable
// overrides and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ModelConfig: model location, tag, context length and persona
//   - EngineConfig: Ollama address and event bus sizing
//   - StorageConfig: transcript database
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (NANOMIND_*)
//   - ~/.nanomind/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	bus := engine.NewBus(engine.BusConfig{
//	    Capacity: cfg.Engine.EventBuffer,
//	    Policy:   cfg.OverflowPolicy(),
//	})
package config
