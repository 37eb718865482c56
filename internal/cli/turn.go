// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeranaias/searchchat/internal/model"
	"github.com/jeranaias/searchchat/internal/session"
	"github.com/jeranaias/searchchat/internal/ui/components"
	"github.com/jeranaias/searchchat/internal/util"
)

// =============================================================================
// SNAPSHOT FEED
// =============================================================================

// feedBuffer is how many snapshots may queue before the controller waits.
const feedBuffer = 256

// cancelWait bounds the wait for a cancelled turn to report back.
const cancelWait = 5 * time.Second

// feed hands controller snapshots to a line-oriented command.
type feed struct {
	ch   chan session.Snapshot
	done chan struct{}
}

func newFeed() *feed {
	return &feed{
		ch:   make(chan session.Snapshot, feedBuffer),
		done: make(chan struct{}),
	}
}

// observe is the controller observer. It never blocks after close.
func (f *feed) observe(s session.Snapshot) {
	select {
	case f.ch <- s:
	case <-f.done:
	}
}

// close releases a controller blocked in observe.
func (f *feed) close() {
	close(f.done)
}

// drain discards queued snapshots.
func (f *feed) drain() {
	for {
		select {
		case <-f.ch:
		default:
			return
		}
	}
}

// waitTurn passes every snapshot of turn to each and returns the first
// terminal one. Snapshots of earlier turns are skipped. When ctx ends the
// turn is cancelled through cancel and the cancelled snapshot is awaited.
func (f *feed) waitTurn(ctx context.Context, turn int, cancel func(), each func(session.Snapshot)) (session.Snapshot, error) {
	var (
		last     session.Snapshot
		ctxDone  = ctx.Done()
		deadline <-chan time.Time
	)
	for {
		select {
		case s := <-f.ch:
			if s.Turn < turn {
				continue
			}
			last = s
			if each != nil {
				each(s)
			}
			if s.Turn == turn && s.State.Terminal() {
				return s, nil
			}
		case <-ctxDone:
			ctxDone = nil
			cancel()
			deadline = time.After(cancelWait)
		case <-deadline:
			return last, fmt.Errorf("turn %d did not stop after cancel", turn)
		}
	}
}

// =============================================================================
// TURN MESSAGES
// =============================================================================

// turnReplies returns the assistant reply to the latest user message and any
// assistant messages that followed it.
func turnReplies(msgs []model.Message) (reply *model.Message, extra []model.Message) {
	last := -1
	for i, m := range msgs {
		if m.IsUser {
			last = i
		}
	}
	if last < 0 || last+1 >= len(msgs) {
		return nil, nil
	}
	r := msgs[last+1]
	return &r, msgs[last+2:]
}

// =============================================================================
// STREAM PRINTER
// =============================================================================

// streamPrinter writes a turn to a plain writer as snapshots arrive.
type streamPrinter struct {
	w io.Writer

	// content streams reply text as it grows; otherwise only stages are
	// written and the caller renders the final reply.
	content bool

	printed string
	stages  int
}

func newStreamPrinter(w io.Writer, content bool) *streamPrinter {
	return &streamPrinter{w: w, content: content}
}

// update writes whatever s adds to the turn.
func (p *streamPrinter) update(s session.Snapshot) {
	reply, _ := turnReplies(s.Messages)
	if reply == nil {
		return
	}
	p.writeStages(reply.SearchInfo)
	if !p.content {
		return
	}

	switch {
	case reply.Content == p.printed:
	case strings.HasPrefix(reply.Content, p.printed):
		fmt.Fprint(p.w, reply.Content[len(p.printed):])
	default:
		if p.printed != "" {
			fmt.Fprintln(p.w)
		}
		fmt.Fprint(p.w, reply.Content)
	}
	p.printed = reply.Content
}

// finish completes the turn output, adding trailing notices and sources.
func (p *streamPrinter) finish(s session.Snapshot, showSources bool) {
	p.update(s)
	reply, extra := turnReplies(s.Messages)
	if p.content && p.printed != "" {
		fmt.Fprintln(p.w)
	}
	for _, m := range extra {
		fmt.Fprintln(p.w, m.Content)
	}
	if reply != nil && showSources {
		p.writeSources(reply.SearchInfo)
	}
}

func (p *streamPrinter) writeStages(info *model.SearchInfo) {
	if info == nil {
		return
	}
	for ; p.stages < len(info.Stages); p.stages++ {
		st := info.Stages[p.stages]
		switch {
		case st == model.StageSearching && info.Query != "":
			fmt.Fprintf(p.w, "[%s: %s]\n", st.Label(), info.Query)
		case st == model.StageError && info.Error != "":
			fmt.Fprintf(p.w, "[%s: %s]\n", st.Label(), info.Error)
		default:
			fmt.Fprintf(p.w, "[%s]\n", st.Label())
		}
	}
}

func (p *streamPrinter) writeSources(info *model.SearchInfo) {
	if info == nil || len(info.URLs) == 0 {
		return
	}
	fmt.Fprintf(p.w, "Sources (%d):\n", len(info.URLs))
	for i, u := range info.URLs {
		if i == components.MaxSourcesShown {
			fmt.Fprintf(p.w, "  ... and %d more\n", len(info.URLs)-i)
			break
		}
		fmt.Fprintf(p.w, "  %d. %s\n", i+1, util.TruncateRunes(u, 100))
	}
}
