// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"strings"
	"time"

	"github.com/jeranaias/searchchat/internal/model"
	"github.com/jeranaias/searchchat/internal/util"
)

const (
	titleLen   = 50
	previewLen = 80

	// DefaultTitle names a transcript with no user messages.
	DefaultTitle = "New conversation"
)

// =============================================================================
// TRANSCRIPT TYPES
// =============================================================================

// Transcript is a persisted chat.
type Transcript struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Checkpoint string          `json:"checkpoint_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Messages   []model.Message `json:"messages"`
}

// TranscriptMeta contains metadata for listing transcripts.
type TranscriptMeta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview"`
}

// NewTranscript builds an unsaved transcript from a message snapshot.
// Loading flags are cleared; a saved reply is never in flight.
func NewTranscript(msgs []model.Message, checkpoint string) *Transcript {
	out := make([]model.Message, len(msgs))
	for i, m := range msgs {
		m = m.Clone()
		m.IsLoading = false
		out[i] = m
	}
	return &Transcript{
		Checkpoint: checkpoint,
		Messages:   out,
	}
}

// Meta returns the listing metadata for the transcript.
func (t *Transcript) Meta() TranscriptMeta {
	return TranscriptMeta{
		ID:           t.ID,
		Title:        t.Title,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		MessageCount: len(t.Messages),
		Preview:      t.Preview(),
	}
}

// Preview returns the first user message, truncated to one line.
func (t *Transcript) Preview() string {
	if m, ok := t.firstUser(); ok {
		return m.Preview(previewLen)
	}
	return ""
}

// generateTitle derives a title from the first user message.
func (t *Transcript) generateTitle() string {
	if m, ok := t.firstUser(); ok {
		return m.Preview(titleLen)
	}
	return DefaultTitle
}

func (t *Transcript) firstUser() (model.Message, bool) {
	for _, m := range t.Messages {
		if m.IsUser && util.SingleLine(m.Content) != "" {
			return m, true
		}
	}
	return model.Message{}, false
}

// body is the searchable text of all messages.
func (t *Transcript) body() string {
	parts := make([]string, 0, len(t.Messages))
	for _, m := range t.Messages {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n")
}
