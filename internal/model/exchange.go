// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// Exchange is one finished prompt/response pair, as handed to a transcript
// recorder once a generation session ends.
type Exchange struct {
	Session   uint64
	Prompt    string
	Response  string
	Error     string
	StartedAt time.Time
	Stats     Statistics
}

// Failed reports whether the session ended with an engine error.
func (e Exchange) Failed() bool {
	return e.Error != ""
}
