// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/searchchat/internal/model"
	"github.com/jeranaias/searchchat/internal/stream"
)

// =============================================================================
// SUBMIT TESTS
// =============================================================================

func TestSubmit_AppendsUserAndPlaceholder(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("Hello")

	msgs := h.messages()
	require.Len(t, msgs, 3)

	user := msgs[1]
	assert.Equal(t, 2, user.ID)
	assert.Equal(t, "Hello", user.Content)
	assert.True(t, user.IsUser)

	ai := msgs[2]
	assert.Equal(t, 3, ai.ID)
	assert.True(t, ai.IsLoading)
	assert.Empty(t, ai.Content)
	require.NotNil(t, ai.SearchInfo)
	assert.Empty(t, ai.SearchInfo.Stages)

	require.Len(t, h.dialer.conns, 1)
	assert.Equal(t, testBase+"/chat_stream/Hello", h.dialer.conns[0].url)
	assert.Equal(t, TurnStreaming, h.ctrl.State())
	assert.Equal(t, 1, model.LoadingCount(msgs))
}

func TestSubmit_BlankIsNoop(t *testing.T) {
	h := newHarness(t)

	for _, in := range []string{"", "   ", "\t\n"} {
		h.ctrl.Submit(in)
	}

	assert.Len(t, h.messages(), 1)
	assert.Empty(t, h.dialer.conns)
	assert.Empty(t, h.snapshots)
	assert.Equal(t, TurnIdle, h.ctrl.State())
}

func TestSubmit_EscapesInputAndSendsCheckpoint(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("hi")
	conn := h.dialer.last(t)
	conn.open()
	conn.send(t, stream.CheckpointEvent("abc-123"))
	conn.send(t, stream.EndEvent())

	id, ok := h.conv.Checkpoint.Get()
	require.True(t, ok)
	assert.Equal(t, "abc-123", id)

	h.ctrl.Submit("what's up?")
	assert.Equal(t, testBase+"/chat_stream/what%27s%20up%3F?checkpoint_id=abc-123", h.dialer.last(t).url)
	assert.Equal(t, "abc-123", h.lastSnapshot(t).Checkpoint)
}

func TestSubmit_CheckpointReplacedEachTime(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("one")
	conn := h.dialer.last(t)
	conn.send(t, stream.CheckpointEvent("first"))
	conn.send(t, stream.CheckpointEvent("second"))

	id, _ := h.conv.Checkpoint.Get()
	assert.Equal(t, "second", id)
}

func TestSubmit_MissingBaseURL(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.BaseURL = "" })

	h.ctrl.Submit("Hello")

	ai := h.message(t, 3)
	assert.Equal(t, MsgNotConfigured, ai.Content)
	assert.False(t, ai.IsLoading)
	assert.Empty(t, h.dialer.conns)
	assert.Equal(t, TurnErrored, h.ctrl.State())
}

func TestSubmit_DialFailure(t *testing.T) {
	h := newHarness(t)
	h.dialer.err = errors.New("boom")

	h.ctrl.Submit("Hello")

	msgs := h.messages()
	require.Len(t, msgs, 4)
	assert.False(t, msgs[2].IsLoading)
	assert.Equal(t, 4, msgs[3].ID)
	assert.Equal(t, MsgSetupFailed, msgs[3].Content)
	assert.False(t, msgs[3].IsUser)
	assert.Equal(t, TurnErrored, h.ctrl.State())
	assert.Equal(t, 0, h.clock.Pending())

	// Ids keep counting from the maximum
	h.dialer.err = nil
	h.ctrl.Submit("Again")
	assert.Equal(t, 5, h.message(t, 5).ID)
	assert.True(t, h.message(t, 6).IsLoading)
}

// =============================================================================
// EVENT FOLDING TESTS
// =============================================================================

func TestContent_Concatenates(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("Hello")
	conn := h.dialer.last(t)
	conn.open()
	conn.send(t, stream.ContentEvent("Hi"))
	conn.send(t, stream.ContentEvent(" there"))

	ai := h.message(t, 3)
	assert.Equal(t, "Hi there", ai.Content)
	assert.False(t, ai.IsLoading)
}

func TestContent_ConcatenationProperty(t *testing.T) {
	chunks := [][]string{
		{"a"},
		{"", "x", ""},
		{"Héllo", " wörld", " 🌍"},
		{"line\n", "break\n", "\n"},
		{strings.Repeat("z", 4096), "tail"},
	}

	for i, parts := range chunks {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			h := newHarness(t)
			h.ctrl.Submit("q")
			conn := h.dialer.last(t)
			for _, p := range parts {
				conn.send(t, stream.ContentEvent(p))
			}
			conn.send(t, stream.EndEvent())

			assert.Equal(t, strings.Join(parts, ""), h.message(t, 3).Content)
		})
	}
}

func TestSearch_StagesAndURLs(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("weather")
	conn := h.dialer.last(t)
	conn.open()
	conn.send(t, stream.SearchStartEvent("weather"))
	conn.send(t, stream.Event{Type: stream.EventSearchResults, URLs: rawURLs(`"[\"a.com\"]"`)})
	conn.send(t, stream.EndEvent())

	ai := h.message(t, 3)
	require.NotNil(t, ai.SearchInfo)
	assert.Equal(t, []model.Stage{model.StageSearching, model.StageReading, model.StageWriting}, ai.SearchInfo.Stages)
	assert.Equal(t, []string{"a.com"}, ai.SearchInfo.URLs)
	assert.Equal(t, "weather", ai.SearchInfo.Query)
	assert.False(t, ai.IsLoading)
	assert.Equal(t, TurnCompleted, h.ctrl.State())
	assert.Equal(t, stream.Closed, conn.ReadyState())
}

func TestSearch_ResultsAsArray(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("q")
	conn := h.dialer.last(t)
	conn.send(t, stream.SearchStartEvent("q"))
	conn.send(t, stream.SearchResultsEvent([]string{"a.com", "b.org"}))

	ai := h.message(t, 3)
	assert.Equal(t, []string{"a.com", "b.org"}, ai.SearchInfo.URLs)
	assert.Equal(t, model.StageReading, ai.SearchInfo.CurrentStage())
}

func TestSearch_UnparsableURLsLeaveStateUntouched(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("weather")
	conn := h.dialer.last(t)
	conn.send(t, stream.SearchStartEvent("weather"))
	before := h.message(t, 3)

	conn.send(t, stream.Event{Type: stream.EventSearchResults, URLs: rawURLs(`"not json"`)})

	after := h.message(t, 3)
	assert.Equal(t, before, after)
	assert.Equal(t, TurnStreaming, h.ctrl.State())

	// The stream keeps going after the bad event
	conn.send(t, stream.SearchResultsEvent([]string{"ok.com"}))
	assert.Equal(t, []string{"ok.com"}, h.message(t, 3).SearchInfo.URLs)
}

func TestSearch_Error(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("q")
	conn := h.dialer.last(t)
	conn.send(t, stream.SearchStartEvent("q"))
	conn.send(t, stream.SearchResultsEvent([]string{"a.com"}))
	conn.send(t, stream.SearchErrorEvent("rate limited"))

	si := h.message(t, 3).SearchInfo
	assert.Equal(t, []model.Stage{model.StageSearching, model.StageReading, model.StageError}, si.Stages)
	assert.Equal(t, "rate limited", si.Error)
	assert.Equal(t, "q", si.Query)
	assert.Empty(t, si.URLs)
}

func TestSearch_ResultsClearEarlierError(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("q")
	conn := h.dialer.last(t)
	conn.send(t, stream.SearchStartEvent("q"))
	conn.send(t, stream.SearchErrorEvent("rate limited"))
	conn.send(t, stream.SearchResultsEvent([]string{"a.com"}))

	si := h.message(t, 3).SearchInfo
	assert.Empty(t, si.Error)
	assert.Equal(t, []string{"a.com"}, si.URLs)
	assert.Equal(t, model.StageReading, si.CurrentStage())
}

func TestSearch_SecondStartAppendsStage(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("q")
	conn := h.dialer.last(t)
	conn.send(t, stream.SearchStartEvent("first"))
	conn.send(t, stream.SearchResultsEvent([]string{"a.com"}))
	conn.send(t, stream.SearchStartEvent("second"))

	si := h.message(t, 3).SearchInfo
	assert.Equal(t, []model.Stage{model.StageSearching, model.StageReading, model.StageSearching}, si.Stages)
	assert.Equal(t, "second", si.Query)
	assert.Empty(t, si.URLs)
}

func TestSearch_ResultsWithoutStart(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("q")
	conn := h.dialer.last(t)
	conn.send(t, stream.SearchResultsEvent([]string{"a.com"}))

	si := h.message(t, 3).SearchInfo
	assert.Equal(t, []model.Stage{model.StageReading}, si.Stages)
	assert.Equal(t, "", si.Query)
}

func TestSearch_StagesOnlyGrow(t *testing.T) {
	sequences := [][]stream.Event{
		{stream.SearchStartEvent("a"), stream.SearchResultsEvent(nil), stream.EndEvent()},
		{stream.SearchStartEvent("a"), stream.SearchErrorEvent("x"), stream.SearchStartEvent("b"), stream.EndEvent()},
		{stream.SearchErrorEvent("x"), stream.SearchResultsEvent([]string{"u"}), stream.ContentEvent("c"), stream.EndEvent()},
		{stream.ContentEvent("c"), stream.SearchStartEvent("a"), stream.ContentEvent("d"), stream.SearchResultsEvent(nil)},
	}

	for i, seq := range sequences {
		t.Run(fmt.Sprintf("seq_%d", i), func(t *testing.T) {
			h := newHarness(t)
			h.ctrl.Submit("q")
			conn := h.dialer.last(t)

			var prev []model.Stage
			for _, ev := range seq {
				conn.send(t, ev)
				cur := h.message(t, 3).SearchInfo.Stages
				require.GreaterOrEqual(t, len(cur), len(prev))
				for j := range prev {
					assert.Equal(t, prev[j], cur[j], "stage %d changed", j)
				}
				prev = cur
			}
		})
	}
}

func TestSearch_ContentPreservedAcrossSearchEvents(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("q")
	conn := h.dialer.last(t)
	conn.send(t, stream.ContentEvent("Let me look. "))
	conn.send(t, stream.SearchStartEvent("q"))

	ai := h.message(t, 3)
	assert.Equal(t, "Let me look. ", ai.Content)
	assert.Equal(t, []model.Stage{model.StageSearching}, ai.SearchInfo.Stages)
}

func TestEvents_MalformedAndUnknownSkipped(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("q")
	conn := h.dialer.last(t)
	conn.sendRaw(`{not json`)
	conn.sendRaw(`{"content":"no type"}`)
	conn.sendRaw(`{"type":"mystery","content":"?"}`)
	conn.send(t, stream.ContentEvent("ok"))
	conn.sendRaw(`{"type":"content","content":" it\'s fine"}`)

	ai := h.message(t, 3)
	assert.Equal(t, "ok it's fine", ai.Content)
	assert.Equal(t, TurnStreaming, h.ctrl.State())
	assert.Equal(t, 0, conn.closes)
}

func TestEnd_WithoutSearchKeepsSearchInfo(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("q")
	conn := h.dialer.last(t)
	conn.send(t, stream.ContentEvent("answer"))
	conn.send(t, stream.EndEvent())

	ai := h.message(t, 3)
	assert.Equal(t, "answer", ai.Content)
	assert.Empty(t, ai.SearchInfo.Stages)
	assert.Equal(t, TurnCompleted, h.lastSnapshot(t).State)
	assert.Equal(t, 1, conn.closes)
}

// =============================================================================
// TIMEOUT TESTS
// =============================================================================

func TestTimeout_NoEvent(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("Hello")
	conn := h.dialer.last(t)

	h.clock.Advance(29 * time.Second)
	assert.True(t, h.message(t, 3).IsLoading)

	h.clock.Advance(time.Second)
	ai := h.message(t, 3)
	assert.Equal(t, MsgTimeout, ai.Content)
	assert.False(t, ai.IsLoading)
	assert.Equal(t, stream.Closed, conn.ReadyState())
	assert.Equal(t, TurnTimedOut, h.ctrl.State())
	assert.Equal(t, 0, h.clock.Pending())
}

func TestTimeout_CancelledByEvent(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("Hello")
	conn := h.dialer.last(t)
	conn.send(t, stream.CheckpointEvent("cp"))

	h.clock.Advance(time.Minute)
	ai := h.message(t, 3)
	assert.NotEqual(t, MsgTimeout, ai.Content)
	assert.True(t, ai.IsLoading)
	assert.Equal(t, 0, conn.closes)
}

func TestTimeout_CancelledByOpen(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("Hello")
	h.dialer.last(t).open()

	h.clock.Advance(time.Minute)
	assert.Empty(t, h.message(t, 3).Content)
	assert.Equal(t, 0, h.clock.Pending())
}

func TestTimeout_CustomInterval(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.ConnectTimeout = 2 * time.Second })

	h.ctrl.Submit("Hello")
	h.clock.Advance(2 * time.Second)

	assert.Equal(t, MsgTimeout, h.message(t, 3).Content)
}

// =============================================================================
// ERROR HANDLING TESTS
// =============================================================================

func TestError_ConnectingGraceExpires(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("Hello")
	conn := h.dialer.last(t)
	conn.fail(stream.Connecting)

	assert.True(t, h.message(t, 3).IsLoading, "no failure during the grace window")
	assert.Equal(t, 0, conn.closes)

	h.clock.Advance(5 * time.Second)

	ai := h.message(t, 3)
	assert.Equal(t, MsgUnreachable, ai.Content)
	assert.False(t, ai.IsLoading)
	assert.Equal(t, 1, conn.closes)
	assert.Equal(t, TurnErrored, h.ctrl.State())
	assert.Equal(t, 0, h.clock.Pending())
}

func TestError_ConnectingGraceScheduledOnce(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("Hello")
	conn := h.dialer.last(t)
	conn.fail(stream.Connecting)
	conn.fail(stream.Connecting)
	conn.fail(stream.Connecting)

	// Connect timeout plus a single grace timer
	assert.Equal(t, 2, h.clock.Pending())
}

func TestError_ConnectingRecoversWithinGrace(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("Hello")
	conn := h.dialer.last(t)
	conn.fail(stream.Connecting)
	conn.open()

	h.clock.Advance(5 * time.Second)
	assert.Empty(t, h.message(t, 3).Content)
	assert.Equal(t, TurnStreaming, h.ctrl.State())

	conn.send(t, stream.ContentEvent("made it"))
	conn.send(t, stream.EndEvent())
	assert.Equal(t, "made it", h.message(t, 3).Content)
}

func TestError_ByReadyState(t *testing.T) {
	tests := []struct {
		name  string
		state stream.ReadyState
		want  string
	}{
		{"open", stream.Open, MsgInterrupted},
		{"closed", stream.Closed, MsgClosed},
		{"unknown", stream.ReadyState(7), "Connection error (state: 7). Please try again."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.ctrl.Submit("Hello")
			conn := h.dialer.last(t)
			conn.open()
			conn.fail(tc.state)

			ai := h.message(t, 3)
			assert.Equal(t, tc.want, ai.Content)
			assert.False(t, ai.IsLoading)
			assert.GreaterOrEqual(t, conn.closes, 1)
			assert.Equal(t, TurnErrored, h.ctrl.State())
			assert.Equal(t, 0, h.clock.Pending())
		})
	}
}

func TestError_AfterContentPreservesPartial(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("Hello")
	conn := h.dialer.last(t)
	conn.open()
	conn.send(t, stream.ContentEvent("partial answer"))
	conn.fail(stream.Open)

	ai := h.message(t, 3)
	assert.Equal(t, "partial answer", ai.Content)
	assert.False(t, ai.IsLoading)
	assert.Equal(t, 1, conn.closes)
	assert.Equal(t, 0, h.clock.Pending())
}

func TestError_AfterContentWhileConnecting(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("Hello")
	conn := h.dialer.last(t)
	conn.open()
	conn.send(t, stream.ContentEvent("partial"))
	conn.fail(stream.Connecting)

	ai := h.message(t, 3)
	assert.Equal(t, "partial", ai.Content)
	assert.False(t, ai.IsLoading)
	assert.Equal(t, 1, conn.closes)
	assert.Equal(t, TurnErrored, h.ctrl.State())
	assert.Equal(t, 0, h.clock.Pending(), "no grace window once the stream opened")
}

func TestError_LostAfterOpenIsInterrupted(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("Hello")
	conn := h.dialer.last(t)
	conn.open()
	// The transport is already back to Connecting when it reports the loss
	conn.fail(stream.Connecting)

	ai := h.message(t, 3)
	assert.Equal(t, MsgInterrupted, ai.Content)
	assert.False(t, ai.IsLoading)
	assert.Equal(t, 1, conn.closes)
	assert.Equal(t, TurnErrored, h.ctrl.State())
	assert.Equal(t, 0, h.clock.Pending())
}

func TestError_ProbesHealthCheck(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("Hello")
	h.dialer.last(t).fail(stream.Closed)

	assert.Eventually(t, func() bool {
		seen := h.prober.seen()
		return len(seen) == 2
	}, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{testBase, testBase + "/health-check"}, h.prober.seen())
}

// =============================================================================
// END AND CLOSE TESTS
// =============================================================================

func TestTransportEnd_ClearsLoadingAndCloses(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("Hello")
	conn := h.dialer.last(t)
	conn.open()
	conn.end()

	ai := h.message(t, 3)
	assert.False(t, ai.IsLoading)
	assert.Equal(t, 1, conn.closes)
	assert.Equal(t, TurnCompleted, h.ctrl.State())
	assert.Equal(t, 0, h.clock.Pending())
}

func TestClose_Idempotent(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("Hello")
	conn := h.dialer.last(t)
	conn.send(t, stream.ContentEvent("done"))
	conn.send(t, stream.EndEvent())

	before := h.messages()
	snaps := len(h.snapshots)

	conn.end()
	conn.fail(stream.Closed)
	h.clock.Advance(time.Minute)

	assert.Equal(t, before, h.messages())
	assert.Equal(t, snaps, len(h.snapshots))
	assert.Equal(t, 1, conn.closes)
}

// =============================================================================
// MULTI-TURN TESTS
// =============================================================================

func TestSecondSubmit_FreshIDs(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("Hello")
	conn := h.dialer.last(t)
	conn.send(t, stream.ContentEvent("Hi"))
	conn.send(t, stream.EndEvent())
	require.False(t, h.message(t, 3).IsLoading)

	h.ctrl.Submit("Again")

	msgs := h.messages()
	require.Len(t, msgs, 5)
	assert.Equal(t, 4, msgs[3].ID)
	assert.Equal(t, "Again", msgs[3].Content)
	assert.Equal(t, 5, msgs[4].ID)
	assert.True(t, msgs[4].IsLoading)
	assert.Len(t, h.dialer.conns, 2)
}

func TestSecondSubmit_CancelsPriorTurn(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("first")
	old := h.dialer.last(t)
	old.send(t, stream.ContentEvent("partial"))

	h.ctrl.Submit("second")
	assert.Equal(t, 1, old.closes)
	assert.False(t, h.message(t, 3).IsLoading)
	assert.Equal(t, 1, model.LoadingCount(h.messages()))

	// Late callbacks from the old stream are ignored
	old.send(t, stream.ContentEvent(" late"))
	old.fail(stream.Open)
	assert.Equal(t, "partial", h.message(t, 3).Content)
	assert.True(t, h.message(t, 5).IsLoading)

	cur := h.dialer.last(t)
	cur.send(t, stream.ContentEvent("fresh"))
	cur.send(t, stream.EndEvent())
	assert.Equal(t, "fresh", h.message(t, 5).Content)
	assert.Equal(t, 2, h.lastSnapshot(t).Turn)
}

func TestCancel_StopsTurn(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("Hello")
	conn := h.dialer.last(t)
	h.ctrl.Cancel()

	assert.False(t, h.message(t, 3).IsLoading)
	assert.Equal(t, TurnCancelled, h.ctrl.State())
	assert.Equal(t, 1, conn.closes)
	assert.Equal(t, 0, h.clock.Pending())

	// Nothing in flight: no-op
	snaps := len(h.snapshots)
	h.ctrl.Cancel()
	assert.Equal(t, snaps, len(h.snapshots))
}

func TestReset_StartsFreshConversation(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("Hello")
	conn := h.dialer.last(t)
	conn.send(t, stream.CheckpointEvent("cp"))
	h.ctrl.Reset()

	msgs := h.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.Greeting, msgs[0].Content)
	_, ok := h.conv.Checkpoint.Get()
	assert.False(t, ok)
	assert.Equal(t, 1, conn.closes)
	assert.Equal(t, TurnIdle, h.ctrl.State())
}

func TestObserver_SeesTerminalState(t *testing.T) {
	h := newHarness(t)

	h.ctrl.Submit("Hello")
	first := h.snapshots[0]
	assert.Equal(t, TurnStreaming, first.State)
	assert.Equal(t, 1, first.Turn)
	assert.Len(t, first.Messages, 3)

	conn := h.dialer.last(t)
	conn.send(t, stream.ContentEvent("x"))
	conn.send(t, stream.EndEvent())

	last := h.lastSnapshot(t)
	assert.True(t, last.State.Terminal())
	assert.Equal(t, "x", last.Messages[2].Content)
}

func TestTurnState_String(t *testing.T) {
	assert.Equal(t, "idle", TurnIdle.String())
	assert.Equal(t, "timed_out", TurnTimedOut.String())
	assert.False(t, TurnStreaming.Terminal())
	assert.True(t, TurnCancelled.Terminal())
}
