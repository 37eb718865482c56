// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session drives one streaming chat turn at a time.
//
// A Controller turns a submitted question into a user message, a loading
// assistant placeholder and an event stream. Events are folded into the
// placeholder as they arrive; timeouts, transport errors and cancellation all
// end the turn with user-visible text instead of a Go error.
//
// # Key Types
//
//   - Controller: the per-conversation turn state machine
//   - Conversation: the message store plus the checkpoint tracker
//   - Checkpoint: the last server-issued conversation identifier
//   - Loop: a serial executor; every callback that touches state runs on it
//   - Clock: timer source, replaceable in tests
//
// # Usage
//
//	loop := session.NewLoop()
//	go loop.Run(ctx)
//	ctrl := session.NewController(session.NewConversation(), session.Options{
//	    BaseURL:  "http://localhost:8000",
//	    Dialer:   stream.NewClient(),
//	    Executor: loop,
//	    Observer: func(s session.Snapshot) { render(s.Messages) },
//	})
//	ctrl.Submit("What's the weather?")
//
// # Concurrency
//
// Transport goroutines and timers never mutate state. They post closures to
// the Executor, which runs them one at a time in the order they were posted.
// Observers are called on the executor and must not block.
package session
