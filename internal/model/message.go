// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "github.com/jeranaias/searchchat/internal/util"

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// SEARCH STAGES
// =============================================================================

// Stage is a named phase of search-augmented generation shown to the user.
type Stage string

const (
	StageSearching Stage = "searching"
	StageReading   Stage = "reading"
	StageWriting   Stage = "writing"
	StageError     Stage = "error"
)

// Label returns the indicator text for the stage.
func (s Stage) Label() string {
	switch s {
	case StageSearching:
		return "Searching the web"
	case StageReading:
		return "Reading sources"
	case StageWriting:
		return "Writing answer"
	case StageError:
		return "Search error"
	default:
		return string(s)
	}
}

// SearchInfo describes the web-search activity attached to an assistant reply.
// Stages are append-only for the lifetime of one reply.
type SearchInfo struct {
	Stages []Stage  `json:"stages"`
	Query  string   `json:"query"`
	URLs   []string `json:"urls"`
	Error  string   `json:"error,omitempty"`
}

// NewSearchInfo returns an empty SearchInfo with non-nil slices.
func NewSearchInfo() *SearchInfo {
	return &SearchInfo{
		Stages: []Stage{},
		URLs:   []string{},
	}
}

// Clone returns a deep copy. A nil receiver clones to nil.
func (s *SearchInfo) Clone() *SearchInfo {
	if s == nil {
		return nil
	}
	out := &SearchInfo{
		Query:  s.Query,
		Error:  s.Error,
		Stages: make([]Stage, len(s.Stages)),
		URLs:   make([]string, len(s.URLs)),
	}
	copy(out.Stages, s.Stages)
	copy(out.URLs, s.URLs)
	return out
}

// WithStage returns a copy with stage appended. The receiver is not modified,
// and a nil receiver yields a SearchInfo holding only the new stage.
func (s *SearchInfo) WithStage(stage Stage) *SearchInfo {
	out := s.Clone()
	if out == nil {
		out = NewSearchInfo()
	}
	out.Stages = append(out.Stages, stage)
	return out
}

// CurrentStage returns the most recent stage, or "" when none were recorded.
func (s *SearchInfo) CurrentStage() Stage {
	if s == nil || len(s.Stages) == 0 {
		return ""
	}
	return s.Stages[len(s.Stages)-1]
}

// HasStage reports whether stage was ever recorded.
func (s *SearchInfo) HasStage(stage Stage) bool {
	if s == nil {
		return false
	}
	for _, st := range s.Stages {
		if st == stage {
			return true
		}
	}
	return false
}

// IsEmpty reports whether no search activity has been recorded.
func (s *SearchInfo) IsEmpty() bool {
	return s == nil || (len(s.Stages) == 0 && s.Query == "" && len(s.URLs) == 0 && s.Error == "")
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// TypeMessage is the only message type tag currently produced.
const TypeMessage = "message"

// Greeting is the assistant message a fresh store starts with.
const Greeting = "Hi there, how can I help you?"

// Message represents a single message in the chat.
// Messages are values; the Store hands out copies.
type Message struct {
	ID         int         `json:"id"`
	Content    string      `json:"content"`
	IsUser     bool        `json:"isUser"`
	Type       string      `json:"type"`
	IsLoading  bool        `json:"isLoading,omitempty"`
	SearchInfo *SearchInfo `json:"searchInfo,omitempty"`
}

// NewUserMessage creates a user message.
func NewUserMessage(id int, content string) Message {
	return Message{
		ID:      id,
		Content: content,
		IsUser:  true,
		Type:    TypeMessage,
	}
}

// NewAssistantMessage creates a finished assistant message.
func NewAssistantMessage(id int, content string) Message {
	return Message{
		ID:      id,
		Content: content,
		Type:    TypeMessage,
	}
}

// NewPlaceholder creates the loading assistant message for an in-flight reply.
func NewPlaceholder(id int) Message {
	return Message{
		ID:         id,
		Type:       TypeMessage,
		IsLoading:  true,
		SearchInfo: NewSearchInfo(),
	}
}

// Role returns the sender role.
func (m Message) Role() Role {
	if m.IsUser {
		return RoleUser
	}
	return RoleAssistant
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	m.SearchInfo = m.SearchInfo.Clone()
	return m
}

// Preview returns a single-line preview of the message content, truncated
// to maxLen runes.
func (m Message) Preview(maxLen int) string {
	return util.TruncateRunes(util.SingleLine(m.Content), maxLen)
}

// IsEmpty returns true if the message has no content.
func (m Message) IsEmpty() bool {
	return len(m.Content) == 0
}
