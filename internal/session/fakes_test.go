// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/searchchat/internal/model"
	"github.com/jeranaias/searchchat/internal/stream"
)

// =============================================================================
// INLINE EXECUTOR
// =============================================================================

// inline runs posted functions immediately on the caller's goroutine.
type inline struct{}

func (inline) Post(fn func()) { fn() }

// =============================================================================
// FAKE CLOCK
// =============================================================================

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and runs every timer that came due, in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.fn()
	}
}

// Pending returns the number of timers that are armed.
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// =============================================================================
// FAKE TRANSPORT
// =============================================================================

type fakeConn struct {
	url     string
	h       stream.Handler
	state   stream.ReadyState
	closes  int
	done    chan struct{}
	onClose sync.Once
}

func (c *fakeConn) ReadyState() stream.ReadyState { return c.state }
func (c *fakeConn) URL() string                   { return c.url }
func (c *fakeConn) Done() <-chan struct{}         { return c.done }

func (c *fakeConn) Close() error {
	c.closes++
	c.state = stream.Closed
	c.onClose.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) open() {
	c.state = stream.Open
	c.h.OnOpen()
}

func (c *fakeConn) send(t *testing.T, ev stream.Event) {
	t.Helper()
	data, err := ev.Encode()
	require.NoError(t, err)
	c.h.OnMessage(stream.Frame{Event: stream.DefaultEventName, Data: data})
}

func (c *fakeConn) sendRaw(data string) {
	c.h.OnMessage(stream.Frame{Event: stream.DefaultEventName, Data: []byte(data)})
}

func (c *fakeConn) fail(state stream.ReadyState) {
	c.state = state
	c.h.OnError(errors.New("transport failure"))
}

func (c *fakeConn) end() {
	c.h.OnEnd()
}

type fakeDialer struct {
	conns []*fakeConn
	err   error
}

func (d *fakeDialer) Dial(_ context.Context, url string, h stream.Handler) (stream.Conn, error) {
	if d.err != nil {
		return nil, d.err
	}
	c := &fakeConn{url: url, h: h, state: stream.Connecting, done: make(chan struct{})}
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) last(t *testing.T) *fakeConn {
	t.Helper()
	require.NotEmpty(t, d.conns, "no connection was dialed")
	return d.conns[len(d.conns)-1]
}

type fakeProber struct {
	mu   sync.Mutex
	urls []string
}

func (p *fakeProber) Probe(_ context.Context, url string) stream.ProbeResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.urls = append(p.urls, url)
	return stream.ProbeResult{URL: url, Reachable: true}
}

func (p *fakeProber) seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.urls...)
}

// =============================================================================
// HARNESS
// =============================================================================

const testBase = "http://localhost:8000"

type harness struct {
	ctrl      *Controller
	conv      *Conversation
	clock     *fakeClock
	dialer    *fakeDialer
	prober    *fakeProber
	snapshots []Snapshot
}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		conv:   NewConversation(),
		clock:  newFakeClock(),
		dialer: &fakeDialer{},
		prober: &fakeProber{},
	}
	opts := Options{
		BaseURL:  testBase,
		Dialer:   h.dialer,
		Prober:   h.prober,
		Executor: inline{},
		Clock:    h.clock,
		Observer: func(s Snapshot) { h.snapshots = append(h.snapshots, s) },
	}
	for _, m := range mutate {
		m(&opts)
	}
	h.ctrl = NewController(h.conv, opts)
	return h
}

func (h *harness) messages() []model.Message {
	return h.conv.Store.Snapshot()
}

func (h *harness) message(t *testing.T, id int) model.Message {
	t.Helper()
	m, ok := h.conv.Store.Get(id)
	require.True(t, ok, "message %d not found", id)
	return m
}

func (h *harness) lastSnapshot(t *testing.T) Snapshot {
	t.Helper()
	require.NotEmpty(t, h.snapshots)
	return h.snapshots[len(h.snapshots)-1]
}

func rawURLs(s string) json.RawMessage {
	return json.RawMessage(s)
}
