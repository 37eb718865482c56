// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream implements the event-stream transport used by chat turns.
//
// It covers the wire side of a turn: building the stream endpoint, parsing
// Server-Sent Events frames, decoding the typed JSON payloads carried in their
// data fields, and keeping a long-lived connection open with the reconnect
// rules of a browser EventSource.
//
// # Key Types
//
//   - Client: dials event streams and reconnects after transient failures
//   - Conn: a live stream with a ready state (connecting, open, closed)
//   - Handler: receives open, message, error and end notifications
//   - SSEReader: frame parser for text/event-stream bodies
//   - Event: one decoded payload (checkpoint, content, search_*, end)
//   - Prober: best-effort reachability check using HEAD requests
//
// # Usage
//
//	url, err := stream.Endpoint("http://localhost:8000", "hello", "")
//	conn, err := stream.NewClient().Dial(ctx, url, handler)
//	defer conn.Close()
//
// Handler callbacks are invoked from the connection's reader goroutine.
// Callers that need serial state updates should hand them to their own
// executor.
package stream
