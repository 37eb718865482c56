// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"fmt"
	"io"
	"net/http"

	"github.com/jeranaias/searchchat/internal/stream"
)

// eventWriter frames events as SSE and flushes after each one.
type eventWriter struct {
	w       io.Writer
	flusher http.Flusher
	sent    int
}

// Send writes ev as an unnamed (default "message") event.
func (e *eventWriter) Send(ev stream.Event) error {
	return e.write("", ev)
}

// SendNamed writes ev under the given event name.
func (e *eventWriter) SendNamed(name string, ev stream.Event) error {
	return e.write(name, ev)
}

func (e *eventWriter) write(name string, ev stream.Event) error {
	data, err := ev.Encode()
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	if name != "" {
		if _, err := fmt.Fprintf(e.w, "event: %s\n", name); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", data); err != nil {
		return err
	}
	e.flusher.Flush()
	e.sent++
	return nil
}
