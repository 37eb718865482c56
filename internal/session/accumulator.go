// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/searchchat/internal/model"
	"github.com/jeranaias/searchchat/internal/stream"
)

// errUnknownEvent marks payloads whose type this client does not handle.
var errUnknownEvent = errors.New("unknown event type")

// effect is the outcome of folding one event.
type effect struct {
	// update rewrites the turn's assistant message; nil leaves it alone.
	update func(model.Message) model.Message
	// checkpoint, when non-nil, replaces the conversation checkpoint.
	checkpoint *string
	// done ends the turn.
	done bool
}

// accumulator is the per-turn view of the streamed reply.
type accumulator struct {
	content    strings.Builder
	search     *model.SearchInfo
	hasContent bool
}

// fold applies ev to the accumulator and returns the matching message
// effect. On error the accumulator is unchanged.
func (a *accumulator) fold(ev stream.Event) (effect, error) {
	switch ev.Type {
	case stream.EventCheckpoint:
		id := ev.CheckpointID
		return effect{checkpoint: &id}, nil

	case stream.EventContent:
		a.content.WriteString(ev.Content)
		a.hasContent = true
		content := a.content.String()
		return effect{update: func(m model.Message) model.Message {
			m.Content = content
			m.IsLoading = false
			return m
		}}, nil

	case stream.EventSearchStart:
		next := a.search.WithStage(model.StageSearching)
		next.Query = ev.Query
		next.URLs = []string{}
		next.Error = ""
		a.search = next
		return a.searchEffect(), nil

	case stream.EventSearchResults:
		urls, err := stream.DecodeURLs(ev.URLs)
		if err != nil {
			return effect{}, fmt.Errorf("search results: %w", err)
		}
		next := a.search.WithStage(model.StageReading)
		next.URLs = urls
		next.Error = ""
		a.search = next
		return a.searchEffect(), nil

	case stream.EventSearchError:
		next := a.search.WithStage(model.StageError)
		next.Error = ev.Error
		next.URLs = []string{}
		a.search = next
		return a.searchEffect(), nil

	case stream.EventEnd:
		if a.search != nil {
			a.search = a.search.WithStage(model.StageWriting)
		}
		search := a.search.Clone()
		return effect{
			update: func(m model.Message) model.Message {
				if search != nil {
					m.SearchInfo = search.Clone()
				}
				m.IsLoading = false
				return m
			},
			done: true,
		}, nil

	default:
		return effect{}, fmt.Errorf("%w: %q", errUnknownEvent, ev.Type)
	}
}

// searchEffect publishes the current search data with the content so far.
func (a *accumulator) searchEffect() effect {
	search := a.search.Clone()
	content := a.content.String()
	return effect{update: func(m model.Message) model.Message {
		m.SearchInfo = search.Clone()
		m.Content = content
		m.IsLoading = false
		return m
	}}
}
