// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/vinayakkamatcodes/nanoMind/internal/engine"
	"github.com/vinayakkamatcodes/nanoMind/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete nanomind configuration.
type Config struct {
	Model   ModelConfig   `toml:"model"`
	Engine  EngineConfig  `toml:"engine"`
	Storage StorageConfig `toml:"storage"`
	Log     LogConfig     `toml:"log"`
	UI      UIConfig      `toml:"ui"`
}

// ModelConfig selects the model and how prompts are built for it.
type ModelConfig struct {
	// Path is a .gguf file or an Ollama model tag.
	Path string `toml:"path"`
	// Name is the tag a .gguf file is registered under.
	Name          string `toml:"name"`
	ContextLength int    `toml:"context_length"`
	// SystemPrompt replaces the built-in persona when set.
	SystemPrompt string `toml:"system_prompt"`
	// WaitForFile blocks startup until Path appears on disk.
	WaitForFile bool `toml:"wait_for_file"`
}

// EngineConfig configures the inference engine and its event bus.
type EngineConfig struct {
	OllamaURL   string `toml:"ollama_url"`
	EventBuffer int    `toml:"event_buffer"`
	// Overflow is one of drop-oldest, drop-newest, block.
	Overflow string `toml:"overflow"`
}

// StorageConfig controls the transcript database.
type StorageConfig struct {
	TranscriptEnabled bool   `toml:"transcript_enabled"`
	TranscriptPath    string `toml:"transcript_path"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
	Path  string `toml:"path"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	// MaxFPS caps how often streamed text is repainted.
	MaxFPS int `toml:"max_fps"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default values.
const (
	DefaultModelPath      = "~/Downloads/nanomind_model.gguf"
	DefaultModelName      = "nanomind"
	DefaultContextLength  = 2048
	DefaultOllamaURL      = "http://127.0.0.1:11434"
	DefaultEventBuffer    = engine.DefaultCapacity
	DefaultOverflow       = "drop-oldest"
	DefaultTranscriptPath = "~/.nanomind/transcripts.db"
	DefaultLogLevel       = "info"
	DefaultLogPath        = "~/.nanomind/nanomind.log"
	DefaultMaxFPS         = 30
)

// Default returns a configuration with every field set to its default.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Path:          DefaultModelPath,
			Name:          DefaultModelName,
			ContextLength: DefaultContextLength,
		},
		Engine: EngineConfig{
			OllamaURL:   DefaultOllamaURL,
			EventBuffer: DefaultEventBuffer,
			Overflow:    DefaultOverflow,
		},
		Storage: StorageConfig{
			TranscriptPath: DefaultTranscriptPath,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
			Path:  DefaultLogPath,
		},
		UI: UIConfig{
			MaxFPS: DefaultMaxFPS,
		},
	}
}

// SetDefaults fills zero values with defaults. Booleans are left alone.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Model.Path == "" {
		c.Model.Path = d.Model.Path
	}
	if c.Model.Name == "" {
		c.Model.Name = d.Model.Name
	}
	if c.Model.ContextLength == 0 {
		c.Model.ContextLength = d.Model.ContextLength
	}
	if c.Engine.OllamaURL == "" {
		c.Engine.OllamaURL = d.Engine.OllamaURL
	}
	if c.Engine.EventBuffer == 0 {
		c.Engine.EventBuffer = d.Engine.EventBuffer
	}
	if c.Engine.Overflow == "" {
		c.Engine.Overflow = d.Engine.Overflow
	}
	if c.Storage.TranscriptPath == "" {
		c.Storage.TranscriptPath = d.Storage.TranscriptPath
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Path == "" {
		c.Log.Path = d.Log.Path
	}
	if c.UI.MaxFPS == 0 {
		c.UI.MaxFPS = d.UI.MaxFPS
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the nanomind configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".nanomind"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads ~/.nanomind/config.toml if present, then applies environment
// overrides, defaults and validation. A missing file yields the defaults.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		cfg := Default()
		return finish(cfg)
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file. Unlike Load,
// a missing file is an error.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return finish(cfg)
}

// LoadTOML decodes the file at path into cfg. Unknown keys are rejected so
// typos surface instead of silently falling back to defaults.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes cfg to path atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# nanomind configuration file\n")
	buf.WriteString("# Generated by nanomind - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every field and returns all problems at once as
// ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if strings.TrimSpace(c.Model.Name) == "" {
		errs = append(errs, ValidationError{Field: "model.name", Message: "must not be empty"})
	}
	if c.Model.ContextLength < 128 || c.Model.ContextLength > 131072 {
		errs = append(errs, ValidationError{
			Field:   "model.context_length",
			Message: fmt.Sprintf("%d out of range, must be between 128 and 131072", c.Model.ContextLength),
		})
	}

	if u, err := url.Parse(c.Engine.OllamaURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "engine.ollama_url",
			Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host[:port]", c.Engine.OllamaURL),
		})
	}
	if c.Engine.EventBuffer < 1 || c.Engine.EventBuffer > 65536 {
		errs = append(errs, ValidationError{
			Field:   "engine.event_buffer",
			Message: fmt.Sprintf("%d out of range, must be between 1 and 65536", c.Engine.EventBuffer),
		})
	}
	if _, err := engine.ParseOverflowPolicy(c.Engine.Overflow); err != nil {
		errs = append(errs, ValidationError{Field: "engine.overflow", Message: err.Error()})
	}

	if c.Storage.TranscriptEnabled && strings.TrimSpace(c.Storage.TranscriptPath) == "" {
		errs = append(errs, ValidationError{Field: "storage.transcript_path", Message: "required when transcripts are enabled"})
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, ValidationError{Field: "log.level", Message: err.Error()})
	}

	if c.UI.MaxFPS < 1 || c.UI.MaxFPS > 120 {
		errs = append(errs, ValidationError{
			Field:   "ui.max_fps",
			Message: fmt.Sprintf("%d out of range, must be between 1 and 120", c.UI.MaxFPS),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// OverflowPolicy returns the parsed engine.overflow value.
func (c *Config) OverflowPolicy() engine.OverflowPolicy {
	p, _ := engine.ParseOverflowPolicy(c.Engine.Overflow)
	return p
}

// LogLevel returns the parsed log.level value.
func (c *Config) LogLevel() slog.Level {
	l, _ := parseLevel(c.Log.Level)
	return l
}

// TranscriptPath returns storage.transcript_path with ~ expanded.
func (c *Config) TranscriptPath() string {
	return util.ExpandHome(c.Storage.TranscriptPath)
}

// LogPath returns log.path with ~ expanded.
func (c *Config) LogPath() string {
	return util.ExpandHome(c.Log.Path)
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid level '%s', must be one of: debug, info, warn, error", s)
	}
	return l, nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported variables:
//   - NANOMIND_MODEL_PATH: overrides model.path
//   - NANOMIND_MODEL_NAME: overrides model.name
//   - NANOMIND_CONTEXT_LENGTH: overrides model.context_length
//   - NANOMIND_OLLAMA_URL: overrides engine.ollama_url
//   - NANOMIND_OVERFLOW: overrides engine.overflow
//   - NANOMIND_TRANSCRIPTS: overrides storage.transcript_enabled
//   - NANOMIND_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("NANOMIND_MODEL_PATH"); v != "" {
		c.Model.Path = v
	}
	if v := os.Getenv("NANOMIND_MODEL_NAME"); v != "" {
		c.Model.Name = v
	}
	if v := os.Getenv("NANOMIND_CONTEXT_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Model.ContextLength = n
		}
	}
	if v := os.Getenv("NANOMIND_OLLAMA_URL"); v != "" {
		c.Engine.OllamaURL = v
	}
	if v := os.Getenv("NANOMIND_OVERFLOW"); v != "" {
		c.Engine.Overflow = v
	}
	if v := os.Getenv("NANOMIND_TRANSCRIPTS"); v != "" {
		c.Storage.TranscriptEnabled = v == "1" || strings.ToLower(v) == "true"
	}
	if v := os.Getenv("NANOMIND_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "model.path").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(key, ".")
	if key == "" || len(parts) != 2 {
		return reflect.Value{}, fmt.Errorf("invalid key %q, want section.field", key)
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				return fmt.Errorf("invalid boolean value: %v", err)
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// AllKeys returns every configuration key in dot notation, sorted.
func AllKeys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, section.Tag.Get("toml")+"."+section.Type.Field(j).Tag.Get("toml"))
		}
	}
	sort.Strings(keys)
	return keys
}

// String renders the configuration as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return buf.String()
}
