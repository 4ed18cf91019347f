// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"
)

// =============================================================================
// STREAM READER
// =============================================================================

// StreamCallback is called for each chunk received during streaming.
type StreamCallback func(chunk StreamChunk)

// StreamReader handles line-by-line JSON parsing of /api/generate streams.
type StreamReader struct {
	reader      *bufio.Reader
	accumulator strings.Builder
	tokenCount  int
	model       string
}

// NewStreamReader creates a new stream reader from an io.Reader.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{reader: bufio.NewReader(r)}
}

// Process reads the stream and calls the callback for each chunk.
// Blocks until the stream is complete or the context is cancelled.
// A stream that ends without a done chunk is reported as ErrStreamTruncated.
func (s *StreamReader) Process(ctx context.Context, callback StreamCallback) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, err := s.readChunk()
		if err != nil {
			if err == io.EOF {
				return ErrStreamTruncated
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if chunk == nil {
			continue
		}

		callback(*chunk)
		if chunk.Done {
			return nil
		}
	}
}

// readChunk reads and parses a single line from the stream. It returns a
// nil chunk for blank or malformed lines.
func (s *StreamReader) readChunk() (*StreamChunk, error) {
	line, err := s.reader.ReadBytes('\n')
	if err != nil {
		if len(line) == 0 {
			return nil, err
		}
		// Process the last unterminated line; EOF is seen on the next call.
	}

	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, nil
	}

	var response GenerateResponse
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, nil
	}

	if response.Error != "" {
		return nil, &ClientError{Type: ErrTypeGeneration, Message: response.Error}
	}

	if response.Model != "" {
		s.model = response.Model
	}

	content := response.Response
	if content != "" {
		s.accumulator.WriteString(content)
		s.tokenCount++
	}

	chunk := &StreamChunk{
		Content:    content,
		Done:       response.Done,
		DoneReason: response.DoneReason,
		Model:      s.model,
	}
	if response.Done {
		chunk.TotalDuration = time.Duration(response.TotalDuration)
		chunk.LoadDuration = time.Duration(response.LoadDuration)
		chunk.EvalDuration = time.Duration(response.EvalDuration)
		chunk.PromptTokens = response.PromptEvalCount
		chunk.CompletionTokens = response.EvalCount
	}

	return chunk, nil
}

// GetAccumulated returns all accumulated content.
func (s *StreamReader) GetAccumulated() string {
	return s.accumulator.String()
}

// GetTokenCount returns the number of non-empty chunks received.
func (s *StreamReader) GetTokenCount() int {
	return s.tokenCount
}

// GetModel returns the model name from the stream.
func (s *StreamReader) GetModel() string {
	return s.model
}
