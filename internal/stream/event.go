// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/searchchat/internal/util"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

// EventType is the "type" discriminator of a stream payload.
type EventType string

const (
	EventCheckpoint    EventType = "checkpoint"
	EventContent       EventType = "content"
	EventSearchStart   EventType = "search_start"
	EventSearchResults EventType = "search_results"
	EventSearchError   EventType = "search_error"
	EventEnd           EventType = "end"
)

// Known reports whether t is one of the defined event types.
func (t EventType) Known() bool {
	switch t {
	case EventCheckpoint, EventContent, EventSearchStart,
		EventSearchResults, EventSearchError, EventEnd:
		return true
	}
	return false
}

// EndEventName is the SSE event name the server uses to signal the end of a
// stream at the transport level.
const EndEventName = "end"

// Event is one decoded JSON payload from a data field.
// URLs is kept raw because servers send it either as an array or as a string
// holding a serialized array; see DecodeURLs.
type Event struct {
	Type         EventType       `json:"type"`
	CheckpointID string          `json:"checkpoint_id,omitempty"`
	Content      string          `json:"content,omitempty"`
	Query        string          `json:"query,omitempty"`
	URLs         json.RawMessage `json:"urls,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrMissingType is returned for payloads without a "type" field.
var ErrMissingType = errors.New("event has no type")

// DecodeError describes a payload that could not be decoded.
type DecodeError struct {
	Payload string
	Err     error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode event %q: %v", util.TruncateRunes(e.Payload, 80), e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// =============================================================================
// DECODING
// =============================================================================

// DecodeEvent parses a data payload into an Event.
//
// Some servers serialize payloads by escaping single quotes as \' which is not
// valid JSON. A payload that fails to parse is retried once with those
// sequences unescaped before giving up.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	err := json.Unmarshal(data, &ev)
	if err != nil && bytes.Contains(data, []byte(`\'`)) {
		fixed := bytes.ReplaceAll(data, []byte(`\'`), []byte(`'`))
		ev = Event{}
		err = json.Unmarshal(fixed, &ev)
	}
	if err != nil {
		return Event{}, &DecodeError{Payload: string(data), Err: err}
	}
	if ev.Type == "" {
		return Event{}, &DecodeError{Payload: string(data), Err: ErrMissingType}
	}
	return ev, nil
}

// DecodeURLs normalizes the urls field of a search_results event.
// It accepts a JSON array of strings or a JSON string whose contents are a
// serialized array. An absent or null field yields an empty list.
func DecodeURLs(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []string{}, nil
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("urls string: %w", err)
		}
		inner = strings.TrimSpace(inner)
		if inner == "" {
			return []string{}, nil
		}
		raw = json.RawMessage(inner)
	}

	var urls []string
	if err := json.Unmarshal(raw, &urls); err != nil {
		return nil, fmt.Errorf("urls array: %w", err)
	}
	if urls == nil {
		urls = []string{}
	}
	return urls, nil
}

// =============================================================================
// ENCODING
// =============================================================================

// Encode serializes an event for a data field.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// CheckpointEvent returns a checkpoint event.
func CheckpointEvent(id string) Event {
	return Event{Type: EventCheckpoint, CheckpointID: id}
}

// ContentEvent returns a content fragment event.
func ContentEvent(content string) Event {
	return Event{Type: EventContent, Content: content}
}

// SearchStartEvent returns a search_start event.
func SearchStartEvent(query string) Event {
	return Event{Type: EventSearchStart, Query: query}
}

// SearchResultsEvent returns a search_results event with urls as a JSON array.
func SearchResultsEvent(urls []string) Event {
	if urls == nil {
		urls = []string{}
	}
	raw, _ := json.Marshal(urls)
	return Event{Type: EventSearchResults, URLs: raw}
}

// SearchErrorEvent returns a search_error event.
func SearchErrorEvent(msg string) Event {
	return Event{Type: EventSearchError, Error: msg}
}

// EndEvent returns the payload-level end event.
func EndEvent() Event {
	return Event{Type: EventEnd}
}
