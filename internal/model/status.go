// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strconv"
	"strings"
	"time"
)

// Status literals shown in the header. Error and timing statuses are built
// with the helpers below.
const (
	StatusReady       = "Ready"
	StatusLoading     = "Loading Model..."
	StatusModelReady  = "Model Ready ✓"
	StatusGenerating  = "Generating..."
	errorPrefix       = "Error: "
	loadErrorPrefix   = "Error Loading Model: "
	inferencePrefix   = "Inference Time: "
	inferenceUnitHint = " ms"
)

// StatusError renders an engine error for the status line.
func StatusError(detail string) string {
	return errorPrefix + detail
}

// StatusLoadError renders a failure to start loading the model.
func StatusLoadError(detail string) string {
	return loadErrorPrefix + detail
}

// StatusInferenceTime renders the elapsed time of a finished generation in
// whole milliseconds.
func StatusInferenceTime(elapsed time.Duration) string {
	return inferencePrefix + strconv.FormatInt(elapsed.Milliseconds(), 10) + inferenceUnitHint
}

// IsErrorStatus reports whether status describes a failure.
func IsErrorStatus(status string) bool {
	return strings.HasPrefix(status, errorPrefix) || strings.HasPrefix(status, loadErrorPrefix)
}
