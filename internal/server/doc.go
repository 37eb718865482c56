// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the demo chat backend used by `searchchat serve`.
//
// It speaks the same event protocol as the production backend, but replies
// are scripted: no language model or search API is called.
//
// # Endpoints
//
//   - GET       /chat_stream/{message}?checkpoint_id=... - SSE reply stream
//   - GET, HEAD /health-check                            - Health check
//
// A request without checkpoint_id starts a new thread and streams a
// checkpoint event first. A message starting with "search " or ending in
// "?" streams search_start and search_results (or search_error) before the
// reply. Every stream finishes with an end payload and a named end event.
//
// # Middleware
//
//   - Panic recovery
//   - Request logging (zap)
//   - CORS, allowing any origin
//   - Per-IP rate limiting (golang.org/x/time/rate)
//
// # Usage
//
//	srv := server.New(server.Options{Addr: "127.0.0.1:8000", Logger: logger})
//	go srv.ListenAndServe()
//	defer srv.Shutdown(ctx)
package server
