// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import "time"

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Options contains model parameters for inference.
type Options struct {
	Temperature   float64  `json:"temperature,omitempty"`
	TopK          int      `json:"top_k,omitempty"`
	TopP          float64  `json:"top_p,omitempty"`
	RepeatPenalty float64  `json:"repeat_penalty,omitempty"`
	NumCtx        int      `json:"num_ctx,omitempty"`     // Context window size
	NumPredict    int      `json:"num_predict,omitempty"` // Max tokens to generate (-1 = infinite)
	Seed          int      `json:"seed,omitempty"`
	Stop          []string `json:"stop,omitempty"`
}

// GenerateRequest is the request body for /api/generate.
//
// An empty Prompt only loads the model. KeepAlive of 0 unloads it.
type GenerateRequest struct {
	Model     string   `json:"model"`
	Prompt    string   `json:"prompt,omitempty"`
	Stream    bool     `json:"stream"`
	Raw       bool     `json:"raw,omitempty"` // Send Prompt without applying the model template
	Options   *Options `json:"options,omitempty"`
	KeepAlive *int     `json:"keep_alive,omitempty"`
}

// ShowModelRequest is the request body for /api/show.
type ShowModelRequest struct {
	Model string `json:"model"`
}

// CreateModelRequest is the request body for /api/create when building a
// model from an uploaded GGUF blob.
type CreateModelRequest struct {
	Model  string            `json:"model"`
	Files  map[string]string `json:"files"` // file name -> "sha256:<hex>"
	Stream bool              `json:"stream"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// GenerateResponse is one NDJSON line from /api/generate, or the whole body
// of a non-streaming call.
type GenerateResponse struct {
	Model              string    `json:"model"`
	CreatedAt          time.Time `json:"created_at"`
	Response           string    `json:"response"`
	Done               bool      `json:"done"`
	DoneReason         string    `json:"done_reason,omitempty"`
	Error              string    `json:"error,omitempty"`
	TotalDuration      int64     `json:"total_duration,omitempty"`
	LoadDuration       int64     `json:"load_duration,omitempty"`
	PromptEvalCount    int       `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration int64     `json:"prompt_eval_duration,omitempty"`
	EvalCount          int       `json:"eval_count,omitempty"`
	EvalDuration       int64     `json:"eval_duration,omitempty"`
}

// ModelDetails contains detailed model information.
type ModelDetails struct {
	Format            string `json:"format"`
	Family            string `json:"family"`
	ParameterSize     string `json:"parameter_size"`
	QuantizationLevel string `json:"quantization_level"`
}

// ShowModelResponse is the response from /api/show.
type ShowModelResponse struct {
	Template string       `json:"template"`
	Details  ModelDetails `json:"details"`
}

// CreateModelResponse is the final status line from /api/create.
type CreateModelResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// StreamChunk represents a single chunk in a streaming generate response.
type StreamChunk struct {
	Content    string
	Done       bool
	DoneReason string
	Model      string

	// Statistics (only set when Done is true)
	TotalDuration    time.Duration
	LoadDuration     time.Duration
	EvalDuration     time.Duration
	PromptTokens     int
	CompletionTokens int
}

// OllamaError represents an error response from Ollama.
type OllamaError struct {
	Error string `json:"error"`
}

// =============================================================================
// HELPER METHODS
// =============================================================================

// TokensPerSecond calculates generation speed for a finished chunk.
func (c *StreamChunk) TokensPerSecond() float64 {
	if c.EvalDuration == 0 {
		return 0
	}
	return float64(c.CompletionTokens) / c.EvalDuration.Seconds()
}
