// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// CLIENT CONSTANTS
// =============================================================================

// DefaultRetry is the reconnection delay used until the server sends retry:.
const DefaultRetry = 3 * time.Second

// ContentTypeEventStream is the media type every stream response must carry.
const ContentTypeEventStream = "text/event-stream"

// =============================================================================
// READY STATE
// =============================================================================

// ReadyState is the connection state of an event stream.
type ReadyState int32

const (
	Connecting ReadyState = 0
	Open       ReadyState = 1
	Closed     ReadyState = 2
)

// String returns the state name.
func (s ReadyState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrStreamEnded is reported when the server closes the response body.
	ErrStreamEnded = errors.New("event stream ended")

	// ErrContentType is reported when the response is not an event stream.
	ErrContentType = errors.New("unexpected content type")

	// ErrInvalidURL is returned by Dial for URLs that cannot be requested.
	ErrInvalidURL = errors.New("invalid stream url")
)

// StatusError is reported when the server answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Status     string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("stream request failed: %s", e.Status)
}

// =============================================================================
// HANDLER AND CONN
// =============================================================================

// Handler receives stream notifications. Methods are called from the
// connection's reader goroutine, one at a time, in receipt order.
type Handler interface {
	// OnOpen is called each time a response with a valid status arrives.
	OnOpen()
	// OnMessage is called for every frame with the default event name.
	OnMessage(frame Frame)
	// OnError is called when the connection fails or is lost. The ready
	// state is already Connecting (will retry) or Closed (gave up).
	OnError(err error)
	// OnEnd is called when the server sends the named end event.
	OnEnd()
}

// Conn is a live event stream.
type Conn interface {
	// ReadyState returns the current connection state.
	ReadyState() ReadyState
	// URL returns the stream URL.
	URL() string
	// Close stops the stream. It is safe to call more than once and from
	// inside Handler callbacks.
	Close() error
	// Done is closed once the reader goroutine has exited.
	Done() <-chan struct{}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client dials event streams.
type Client struct {
	httpClient *http.Client
	retry      time.Duration
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. It should not set a Timeout, since
// streams are long-lived and bounded by Close.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRetry sets the initial reconnection delay.
func WithRetry(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.retry = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a stream client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		// No timeout for streaming - controlled via Close
		httpClient: &http.Client{},
		retry:      DefaultRetry,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial starts an event stream and returns immediately in the Connecting
// state. Only an unusable URL is reported as an error; every network failure
// is delivered to h.OnError.
func (c *Client) Dial(ctx context.Context, rawURL string, h Handler) (Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}
	if h == nil {
		return nil, errors.New("stream handler is nil")
	}

	ctx, cancel := context.WithCancel(ctx)
	conn := &connection{
		url:     u.String(),
		client:  c.httpClient,
		retry:   c.retry,
		handler: h,
		logger:  c.logger.With(zap.String("url", u.String())),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	conn.state.Store(int32(Connecting))

	go conn.run()
	return conn, nil
}

// =============================================================================
// CONNECTION
// =============================================================================

type connection struct {
	url     string
	client  *http.Client
	handler Handler
	logger  *zap.Logger

	state atomic.Int32

	// Owned by the reader goroutine
	retry       time.Duration
	lastEventID string

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

func (c *connection) ReadyState() ReadyState {
	return ReadyState(c.state.Load())
}

func (c *connection) URL() string {
	return c.url
}

func (c *connection) Done() <-chan struct{} {
	return c.done
}

func (c *connection) Close() error {
	c.closeOnce.Do(func() {
		c.state.Store(int32(Closed))
		c.cancel()
		c.logger.Debug("stream closed")
	})
	return nil
}

// transition moves to next unless the connection is already closed.
func (c *connection) transition(next ReadyState) bool {
	for {
		cur := c.state.Load()
		if ReadyState(cur) == Closed {
			return false
		}
		if c.state.CompareAndSwap(cur, int32(next)) {
			if ReadyState(cur) != next {
				c.logger.Debug("ready state changed",
					zap.Stringer("from", ReadyState(cur)),
					zap.Stringer("ready_state", next))
			}
			return true
		}
	}
}

func (c *connection) closing() bool {
	return c.ctx.Err() != nil
}

func (c *connection) run() {
	defer close(c.done)
	defer c.cancel()

	for {
		fatal, err := c.connect()
		if c.closing() {
			return
		}

		if fatal {
			c.state.Store(int32(Closed))
			c.logger.Warn("stream failed", zap.Error(err))
			c.handler.OnError(err)
			return
		}

		if !c.transition(Connecting) {
			return
		}
		c.logger.Debug("stream lost, reconnecting",
			zap.Error(err), zap.Duration("retry", c.retry))
		c.handler.OnError(err)

		timer := time.NewTimer(c.retry)
		select {
		case <-timer.C:
		case <-c.ctx.Done():
			timer.Stop()
			return
		}
	}
}

// connect performs one request and reads frames until the body ends.
// fatal reports whether the failure must not be retried.
func (c *connection) connect() (fatal bool, err error) {
	req, err := http.NewRequestWithContext(c.ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return true, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", ContentTypeEventStream)
	req.Header.Set("Cache-Control", "no-cache")
	if c.lastEventID != "" {
		req.Header.Set("Last-Event-ID", c.lastEventID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return true, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	ct := resp.Header.Get("Content-Type")
	if mt, _, perr := mime.ParseMediaType(ct); perr != nil || mt != ContentTypeEventStream {
		return true, fmt.Errorf("%w: %q", ErrContentType, ct)
	}

	if !c.transition(Open) {
		return false, context.Canceled
	}
	c.handler.OnOpen()

	reader := NewSSEReader(resp.Body)
	for {
		frame, rerr := reader.Next()
		if r := reader.Retry(); r > 0 {
			c.retry = r
		}
		c.lastEventID = reader.LastEventID()

		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return false, ErrStreamEnded
			}
			return false, rerr
		}
		if c.closing() {
			return false, context.Canceled
		}

		switch frame.Event {
		case DefaultEventName:
			c.handler.OnMessage(frame)
		case EndEventName:
			c.handler.OnEnd()
		default:
			c.logger.Debug("ignoring named event", zap.String("event", frame.Event))
		}
	}
}
