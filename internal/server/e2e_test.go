// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/jeranaias/searchchat/internal/model"
	"github.com/jeranaias/searchchat/internal/server"
	"github.com/jeranaias/searchchat/internal/session"
	"github.com/jeranaias/searchchat/internal/stream"
)

// waitTerminal returns the first finished snapshot holding n messages.
func waitTerminal(t *testing.T, snaps <-chan session.Snapshot, n int) session.Snapshot {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-snaps:
			if s.State.Terminal() && len(s.Messages) == n {
				return s
			}
		case <-deadline:
			t.Fatal("turn did not complete")
		}
	}
}

// TestEndToEnd drives two turns of a conversation from the session
// controller through the real stream client into the demo backend.
func TestEndToEnd(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv := server.New(server.Options{Logger: zaptest.NewLogger(t)})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	snaps := make(chan session.Snapshot, 256)
	client := stream.NewClient(
		stream.WithHTTPClient(&http.Client{Transport: &http.Transport{DisableKeepAlives: true}}),
		stream.WithLogger(zaptest.NewLogger(t)),
	)
	ctrl := session.NewController(session.NewConversation(), session.Options{
		BaseURL: ts.URL,
		Dialer:  client,
		Logger:  zaptest.NewLogger(t),
		Observer: func(s session.Snapshot) {
			select {
			case snaps <- s:
			default:
			}
		},
	})
	defer ctrl.Shutdown()

	ctrl.Submit("what is the weather in Paris?")
	first := waitTerminal(t, snaps, 3)

	require.Equal(t, session.TurnCompleted, first.State)
	require.NotEmpty(t, first.Checkpoint)
	assert.Equal(t, 1, srv.Threads().Len())

	ai := first.Messages[2]
	assert.False(t, ai.IsLoading)
	assert.Contains(t, ai.Content, "read 3 sources")
	assert.Equal(t, []model.Stage{model.StageSearching, model.StageReading, model.StageWriting}, ai.SearchInfo.Stages)
	assert.Equal(t, "what is the weather in Paris", ai.SearchInfo.Query)
	assert.Equal(t, server.Sources("what is the weather in Paris"), ai.SearchInfo.URLs)

	ctrl.Submit("thanks a lot")
	second := waitTerminal(t, snaps, 5)

	require.Equal(t, session.TurnCompleted, second.State)
	assert.Equal(t, first.Checkpoint, second.Checkpoint)
	assert.Contains(t, second.Messages[4].Content, "message 2")
	assert.Len(t, srv.Threads().History(first.Checkpoint), 2)
}
