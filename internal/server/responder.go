// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jeranaias/searchchat/internal/stream"
	"github.com/jeranaias/searchchat/internal/util"
)

// =============================================================================
// RESPONDER INTERFACE
// =============================================================================

// Emitter writes one event to the client.
type Emitter func(stream.Event) error

// Request is one user message together with the thread it continues.
type Request struct {
	Message string
	History []Turn
}

// Responder produces the events of one reply and returns the reply text.
type Responder interface {
	Respond(ctx context.Context, req Request, emit Emitter) (string, error)
}

// =============================================================================
// SCRIPTED RESPONDER
// =============================================================================

const searchPrefix = "search "

// ErrSearchUnavailable is the message sent for a simulated search failure.
const ErrSearchUnavailable = "search provider unavailable"

// ScriptedResponder streams a canned reply word by word.
//
// Messages starting with "search " or ending in "?" run a simulated web
// search first; a query that is empty or mentions "fail" produces a
// search_error instead of results.
type ScriptedResponder struct {
	// WordDelay is the pause between content events.
	WordDelay time.Duration
}

// NewScriptedResponder creates a responder with the given word delay.
func NewScriptedResponder(wordDelay time.Duration) *ScriptedResponder {
	return &ScriptedResponder{WordDelay: wordDelay}
}

// Respond implements Responder.
func (r *ScriptedResponder) Respond(ctx context.Context, req Request, emit Emitter) (string, error) {
	var reply string

	if query, ok := SearchQuery(req.Message); ok {
		if err := emit(stream.SearchStartEvent(query)); err != nil {
			return "", err
		}
		if query == "" || strings.Contains(strings.ToLower(query), "fail") {
			if err := emit(stream.SearchErrorEvent(ErrSearchUnavailable)); err != nil {
				return "", err
			}
			reply = "I could not search the web for that, so this answer comes from memory only."
		} else {
			urls := Sources(query)
			if err := emit(stream.SearchResultsEvent(urls)); err != nil {
				return "", err
			}
			reply = fmt.Sprintf("I searched for \"%s\" and read %d sources. Here is a short summary of what they say.", query, len(urls))
		}
	} else {
		reply = compose(req)
	}

	for i, word := range strings.SplitAfter(reply, " ") {
		if i > 0 {
			if err := sleepContext(ctx, r.WordDelay); err != nil {
				return "", err
			}
		}
		if err := emit(stream.ContentEvent(word)); err != nil {
			return "", err
		}
	}
	return reply, nil
}

// compose builds the reply for a message that needs no search.
func compose(req Request) string {
	said := util.TruncateRunes(util.SingleLine(req.Message), 120)
	if len(req.History) == 0 {
		return fmt.Sprintf("Hello! You said \"%s\". This demo backend streams a scripted reply one word at a time.", said)
	}
	first := util.TruncateRunes(util.SingleLine(req.History[0].User), 60)
	return fmt.Sprintf("This is message %d in our conversation. You started with \"%s\" and now said \"%s\".",
		len(req.History)+1, first, said)
}

// SearchQuery reports whether message triggers a search and returns the
// query it searches for.
func SearchQuery(message string) (string, bool) {
	msg := strings.TrimSpace(message)
	if len(msg) >= len(searchPrefix) && strings.EqualFold(msg[:len(searchPrefix)], searchPrefix) {
		return strings.TrimSpace(msg[len(searchPrefix):]), true
	}
	if strings.HasSuffix(msg, "?") {
		return strings.TrimSpace(strings.TrimRight(msg, "?")), true
	}
	return "", false
}

// Sources returns the simulated result URLs for query.
func Sources(query string) []string {
	q := url.QueryEscape(query)
	return []string{
		"https://duckduckgo.com/?q=" + q,
		"https://en.wikipedia.org/w/index.php?search=" + q,
		"https://www.bing.com/search?q=" + q,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
