// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/searchchat/internal/model"
	"github.com/jeranaias/searchchat/internal/stream"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultConnectTimeout is how long a turn waits for its first event.
	DefaultConnectTimeout = 30 * time.Second

	// DefaultConnectGrace is the extra window given to a stream that reports
	// an error while still connecting.
	DefaultConnectGrace = 5 * time.Second

	// shutdownWait bounds how long Shutdown waits for the executor.
	shutdownWait = 2 * time.Second
)

// User-visible texts written into the assistant message when a turn fails.
const (
	MsgTimeout       = "Connection timeout. Please try again."
	MsgUnreachable   = "Unable to connect to server. Please check your connection and try again."
	MsgInterrupted   = "Connection interrupted. Please try again."
	MsgClosed        = "Connection closed. Please check your server and try again."
	MsgStateError    = "Connection error (state: %d). Please try again."
	MsgSetupFailed   = "Sorry, there was an error connecting to the server."
	MsgNotConfigured = "Configuration error: API URL not configured."
)

// =============================================================================
// TURN STATE
// =============================================================================

// TurnState is the lifecycle state of the most recent turn.
type TurnState int

const (
	TurnIdle TurnState = iota
	TurnStreaming
	TurnCompleted
	TurnTimedOut
	TurnErrored
	TurnCancelled
)

// String returns the state name.
func (s TurnState) String() string {
	switch s {
	case TurnIdle:
		return "idle"
	case TurnStreaming:
		return "streaming"
	case TurnCompleted:
		return "completed"
	case TurnTimedOut:
		return "timed_out"
	case TurnErrored:
		return "errored"
	case TurnCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("TurnState(%d)", int(s))
	}
}

// Terminal reports whether the turn has ended.
func (s TurnState) Terminal() bool {
	return s >= TurnCompleted
}

// Snapshot is what observers receive after every state change.
type Snapshot struct {
	Messages   []model.Message
	Turn       int
	State      TurnState
	Checkpoint string
}

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Dialer opens event streams. *stream.Client implements it.
type Dialer interface {
	Dial(ctx context.Context, url string, h stream.Handler) (stream.Conn, error)
}

// Prober checks server reachability. *stream.Prober implements it.
type Prober interface {
	Probe(ctx context.Context, url string) stream.ProbeResult
}

// Options configures a Controller.
type Options struct {
	// BaseURL is the backend address. Empty yields a configuration error
	// message on every submit.
	BaseURL string

	ConnectTimeout time.Duration
	ConnectGrace   time.Duration

	// Dialer is required.
	Dialer Dialer
	// Prober is optional; nil disables reachability logging.
	Prober Prober
	// Executor runs every state change. Nil starts a private Loop.
	Executor Executor
	// Clock defaults to SystemClock.
	Clock Clock
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// Observer is called on the executor after every change.
	Observer func(Snapshot)
}

// =============================================================================
// CONTROLLER
// =============================================================================

// turn is the state of one submitted question.
type turn struct {
	seq     int
	aiID    int
	conn    stream.Conn
	acc     accumulator
	timeout Timer
	grace   Timer
	closed  bool
	// opened is set once the stream delivered a response or an event.
	opened bool
	logger *zap.Logger
}

// Controller runs chat turns against a streaming backend.
type Controller struct {
	conv   *Conversation
	opts   Options
	exec   Executor
	clock  Clock
	logger *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	ownLoop *Loop

	// Executor-owned
	current *turn
	seq     int

	statusMu sync.RWMutex
	state    TurnState
}

// NewController creates a controller for conv.
func NewController(conv *Conversation, opts Options) *Controller {
	if conv == nil {
		conv = NewConversation()
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.ConnectGrace <= 0 {
		opts.ConnectGrace = DefaultConnectGrace
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		conv:   conv,
		opts:   opts,
		exec:   opts.Executor,
		clock:  opts.Clock,
		logger: opts.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
	if c.exec == nil {
		c.ownLoop = NewLoop()
		go c.ownLoop.Run(ctx)
		c.exec = c.ownLoop
	}
	return c
}

// Conversation returns the conversation this controller writes to.
func (c *Controller) Conversation() *Conversation {
	return c.conv
}

// State returns the state of the most recent turn.
func (c *Controller) State() TurnState {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.state
}

// Submit starts a turn for input. Blank input is ignored. A turn still in
// flight is cancelled first.
func (c *Controller) Submit(input string) {
	c.exec.Post(func() { c.submit(input) })
}

// Cancel ends the in-flight turn, if any, keeping whatever was streamed.
func (c *Controller) Cancel() {
	c.exec.Post(func() {
		if c.current != nil {
			c.cancelCurrent()
			c.notify()
		}
	})
}

// Reset cancels any in-flight turn and starts a fresh conversation.
func (c *Controller) Reset() {
	c.exec.Post(func() {
		if c.current != nil {
			c.cancelCurrent()
		}
		c.conv.Store.Reset(model.NewAssistantMessage(1, model.Greeting))
		c.conv.Checkpoint.Clear()
		c.setState(TurnIdle)
		c.notify()
	})
}

// Shutdown cancels any in-flight turn and releases the controller. It must
// not be called from an Observer.
func (c *Controller) Shutdown() {
	done := make(chan struct{})
	c.exec.Post(func() {
		if c.current != nil {
			c.cancelCurrent()
			c.notify()
		}
		close(done)
	})
	select {
	case <-done:
	case <-time.After(shutdownWait):
		c.logger.Warn("executor did not drain before shutdown")
	}

	c.cancel()
	if c.ownLoop != nil {
		c.ownLoop.Close()
		<-c.ownLoop.Done()
	}
}

// =============================================================================
// TURN LIFECYCLE
// =============================================================================

func (c *Controller) submit(input string) {
	if strings.TrimSpace(input) == "" {
		return
	}
	if c.current != nil {
		c.cancelCurrent()
	}

	userID := model.NextID(c.conv.Store.Snapshot())
	aiID := userID + 1
	c.conv.Store.Update(func(msgs []model.Message) []model.Message {
		msgs = append(msgs, model.NewUserMessage(userID, input))
		return append(msgs, model.NewPlaceholder(aiID))
	})

	c.seq++
	t := &turn{seq: c.seq, aiID: aiID}
	t.logger = c.logger.With(zap.Int("turn", t.seq), zap.Int("message_id", aiID))
	c.current = t
	c.setState(TurnStreaming)

	if strings.TrimSpace(c.opts.BaseURL) == "" {
		t.logger.Error("api url not configured")
		c.fail(t, MsgNotConfigured, TurnErrored)
		c.notify()
		return
	}

	checkpoint, _ := c.conv.Checkpoint.Get()
	url, err := stream.Endpoint(c.opts.BaseURL, input, checkpoint)
	if err != nil {
		t.logger.Error("invalid api url", zap.String("base_url", c.opts.BaseURL), zap.Error(err))
		c.fail(t, MsgNotConfigured, TurnErrored)
		c.notify()
		return
	}
	t.logger = t.logger.With(zap.String("url", url))

	c.probe(c.opts.BaseURL)

	conn, err := c.opts.Dialer.Dial(c.ctx, url, &turnHandler{c: c, t: t})
	if err != nil {
		c.setupFailed(t, err)
		c.notify()
		return
	}
	t.conn = conn
	t.timeout = c.clock.AfterFunc(c.opts.ConnectTimeout, func() {
		c.exec.Post(func() { c.onTimeout(t) })
	})
	t.logger.Debug("turn started")
	c.notify()
}

// stale reports whether callbacks for t must be ignored.
func (c *Controller) stale(t *turn) bool {
	return c.current != t || t.closed
}

// finish tears the turn down. It is idempotent.
func (c *Controller) finish(t *turn, state TurnState) {
	if t.closed {
		return
	}
	t.closed = true
	stopTimer(&t.timeout)
	stopTimer(&t.grace)
	if t.conn != nil {
		if err := t.conn.Close(); err != nil {
			t.logger.Debug("close stream", zap.Error(err))
		}
	}
	if c.current == t {
		c.current = nil
	}
	c.setState(state)
	t.logger.Debug("turn finished", zap.Stringer("state", state))
}

func (c *Controller) cancelCurrent() {
	t := c.current
	c.conv.Store.Update(model.UpdateByID(t.aiID, func(m model.Message) model.Message {
		m.IsLoading = false
		return m
	}))
	c.finish(t, TurnCancelled)
}

// fail writes text into the assistant message unless content was already
// streamed, then ends the turn.
func (c *Controller) fail(t *turn, text string, state TurnState) {
	keep := t.acc.hasContent
	c.conv.Store.Update(model.UpdateByID(t.aiID, func(m model.Message) model.Message {
		if !keep {
			m.Content = text
		}
		m.IsLoading = false
		return m
	}))
	if keep {
		t.logger.Info("keeping partial reply after failure", zap.String("failure", text))
	}
	c.finish(t, state)
}

func (c *Controller) setupFailed(t *turn, err error) {
	t.logger.Error("failed to open stream", zap.Error(err))
	c.conv.Store.Update(func(msgs []model.Message) []model.Message {
		msgs = model.UpdateByID(t.aiID, func(m model.Message) model.Message {
			m.IsLoading = false
			return m
		})(msgs)
		return append(msgs, model.NewAssistantMessage(model.NextID(msgs), MsgSetupFailed))
	})
	c.finish(t, TurnErrored)
}

// =============================================================================
// TRANSPORT CALLBACKS
// =============================================================================

func (c *Controller) onOpen(t *turn) {
	if c.stale(t) {
		return
	}
	stopTimer(&t.timeout)
	t.opened = true
	t.logger.Debug("stream open")
}

func (c *Controller) onMessage(t *turn, frame stream.Frame) {
	if c.stale(t) {
		return
	}
	stopTimer(&t.timeout)
	t.opened = true

	ev, err := stream.DecodeEvent(frame.Data)
	if err != nil {
		t.logger.Warn("skipping malformed event", zap.Error(err))
		return
	}

	eff, err := t.acc.fold(ev)
	if err != nil {
		if errors.Is(err, errUnknownEvent) {
			t.logger.Debug("ignoring event", zap.String("type", string(ev.Type)))
		} else {
			t.logger.Warn("skipping event", zap.String("type", string(ev.Type)), zap.Error(err))
		}
		return
	}
	c.apply(t, eff)
}

func (c *Controller) apply(t *turn, eff effect) {
	if eff.checkpoint != nil {
		c.conv.Checkpoint.Set(*eff.checkpoint)
		t.logger.Debug("checkpoint updated", zap.String("checkpoint_id", *eff.checkpoint))
	}
	if eff.update != nil {
		c.conv.Store.Update(model.UpdateByID(t.aiID, eff.update))
	}
	if eff.done {
		c.finish(t, TurnCompleted)
	}
	c.notify()
}

func (c *Controller) onTimeout(t *turn) {
	if c.stale(t) || t.timeout == nil {
		return
	}
	t.timeout = nil
	t.logger.Warn("no event before connect timeout", zap.Duration("timeout", c.opts.ConnectTimeout))
	c.fail(t, MsgTimeout, TurnTimedOut)
	c.notify()
}

func (c *Controller) onError(t *turn, err error) {
	if c.stale(t) {
		return
	}
	state := stream.Connecting
	if t.conn != nil {
		state = t.conn.ReadyState()
	}
	t.logger.Warn("stream error", zap.Stringer("ready_state", state), zap.Error(err))
	if health, herr := stream.HealthURL(c.opts.BaseURL); herr == nil {
		c.probe(health)
	}

	// The transport reports a lost stream as Connecting because it is about
	// to retry. Retrying would replay the question, so a stream that already
	// opened counts as interrupted.
	if state == stream.Connecting && t.opened {
		state = stream.Open
	}

	switch state {
	case stream.Connecting:
		if t.grace == nil {
			t.grace = c.clock.AfterFunc(c.opts.ConnectGrace, func() {
				c.exec.Post(func() { c.onGraceExpired(t) })
			})
		}
		return
	case stream.Open:
		c.fail(t, MsgInterrupted, TurnErrored)
	case stream.Closed:
		c.fail(t, MsgClosed, TurnErrored)
	default:
		c.fail(t, fmt.Sprintf(MsgStateError, int(state)), TurnErrored)
	}
	c.notify()
}

func (c *Controller) onGraceExpired(t *turn) {
	if c.stale(t) || t.grace == nil {
		return
	}
	t.grace = nil
	state := stream.Connecting
	if t.conn != nil {
		state = t.conn.ReadyState()
	}
	if state != stream.Connecting {
		t.logger.Debug("stream recovered within grace window", zap.Stringer("ready_state", state))
		return
	}
	t.logger.Warn("stream still connecting after grace window")
	c.fail(t, MsgUnreachable, TurnErrored)
	c.notify()
}

func (c *Controller) onEnd(t *turn) {
	if c.stale(t) {
		return
	}
	t.logger.Debug("stream end signalled")
	c.conv.Store.Update(model.UpdateByID(t.aiID, func(m model.Message) model.Message {
		m.IsLoading = false
		return m
	}))
	c.finish(t, TurnCompleted)
	c.notify()
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *Controller) probe(url string) {
	if c.opts.Prober == nil {
		return
	}
	go c.opts.Prober.Probe(c.ctx, url)
}

func (c *Controller) setState(s TurnState) {
	c.statusMu.Lock()
	c.state = s
	c.statusMu.Unlock()
}

func (c *Controller) notify() {
	if c.opts.Observer == nil {
		return
	}
	msgs := c.conv.Store.Snapshot()
	if n := model.LoadingCount(msgs); n > 1 {
		c.logger.Warn("more than one reply loading", zap.Int("loading", n))
	}
	checkpoint, _ := c.conv.Checkpoint.Get()
	c.opts.Observer(Snapshot{
		Messages:   msgs,
		Turn:       c.seq,
		State:      c.State(),
		Checkpoint: checkpoint,
	})
}

func stopTimer(tp *Timer) {
	if *tp != nil {
		(*tp).Stop()
		*tp = nil
	}
}

// turnHandler forwards transport callbacks for one turn to the executor.
type turnHandler struct {
	c *Controller
	t *turn
}

func (h *turnHandler) OnOpen() {
	h.c.exec.Post(func() { h.c.onOpen(h.t) })
}

func (h *turnHandler) OnMessage(frame stream.Frame) {
	h.c.exec.Post(func() { h.c.onMessage(h.t, frame) })
}

func (h *turnHandler) OnError(err error) {
	h.c.exec.Post(func() { h.c.onError(h.t, err) })
}

func (h *turnHandler) OnEnd() {
	h.c.exec.Post(func() { h.c.onEnd(h.t) })
}
