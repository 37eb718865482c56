// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
	"time"
)

// =============================================================================
// SSE CONSTANTS
// =============================================================================

// MaxEventSize is the maximum accumulated data size of a single event (1MB).
const MaxEventSize = 1024 * 1024

// DefaultEventName is the event name of frames without an event field.
const DefaultEventName = "message"

// ErrEventTooLarge is returned when an event exceeds MaxEventSize.
var ErrEventTooLarge = errors.New("sse event exceeds maximum size")

// =============================================================================
// SSE FRAME
// =============================================================================

// Frame is one dispatched Server-Sent Event.
type Frame struct {
	// Event is the event name, DefaultEventName when the server sent none.
	Event string
	// Data is the data field lines joined by newlines.
	Data []byte
	// ID is the last event ID in effect when the frame was dispatched.
	ID string
}

// =============================================================================
// SSE READER
// =============================================================================

// SSEReader parses Server-Sent Events from a stream.
type SSEReader struct {
	reader      *bufio.Reader
	lastEventID string
	retry       time.Duration
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{
		reader: bufio.NewReader(r),
	}
}

// LastEventID returns the most recent id field seen on the stream.
func (s *SSEReader) LastEventID() string {
	return s.lastEventID
}

// Retry returns the reconnection delay requested by the server, or zero.
func (s *SSEReader) Retry() time.Duration {
	return s.retry
}

// Next reads the next event from the stream.
// Returns io.EOF when the stream ends with no pending event.
func (s *SSEReader) Next() (Frame, error) {
	var (
		eventName string
		data      []byte
		hasData   bool
	)

	dispatch := func() Frame {
		name := eventName
		if name == "" {
			name = DefaultEventName
		}
		return Frame{Event: name, Data: data, ID: s.lastEventID}
	}

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil && !(err == io.EOF && len(line) > 0) {
			if err == io.EOF && hasData {
				// Dispatch pending data before EOF
				return dispatch(), nil
			}
			return Frame{}, err
		}

		line = bytes.TrimRight(line, "\r\n")

		// Empty line signals end of event
		if len(line) == 0 {
			if hasData {
				return dispatch(), nil
			}
			eventName = ""
			continue
		}

		// Comment
		if line[0] == ':' {
			continue
		}

		field, value := line, []byte(nil)
		if i := bytes.IndexByte(line, ':'); i >= 0 {
			field = line[:i]
			value = line[i+1:]
			if len(value) > 0 && value[0] == ' ' {
				value = value[1:]
			}
		}

		switch string(field) {
		case "event":
			eventName = string(value)
		case "data":
			if hasData {
				data = append(data, '\n')
			}
			data = append(data, value...)
			hasData = true
			if len(data) > MaxEventSize {
				return Frame{}, ErrEventTooLarge
			}
		case "id":
			if bytes.IndexByte(value, 0) < 0 {
				s.lastEventID = string(value)
			}
		case "retry":
			if ms, perr := strconv.Atoi(string(value)); perr == nil && ms >= 0 {
				s.retry = time.Duration(ms) * time.Millisecond
			}
		}
		// Ignore unknown fields
	}
}
