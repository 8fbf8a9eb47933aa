// Package client is the relay's client session controller: it keeps at most
// one WebSocket open, joins on every (re)connect and retries after a fixed
// delay whenever the connection is lost.
package client

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/gopresence/internal/clock"
	"github.com/Tyrowin/gopresence/internal/presence"
)

// DefaultReconnectDelay is the fixed wait before each reconnect attempt.
// There is no backoff and no attempt limit.
const DefaultReconnectDelay = 5000 * time.Millisecond

var (
	ErrNotConnected = errors.New("not connected")
	ErrClosed       = errors.New("controller closed")
)

// Conn is the part of a WebSocket connection the controller uses.
type Conn interface {
	WriteJSON(v interface{}) error
	ReadJSON(v interface{}) error
	Close() error
}

// Dialer opens a connection to the relay.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebSocketDialer dials with gorilla/websocket and sends Origin when set.
type WebSocketDialer struct {
	Origin           string
	HandshakeTimeout time.Duration
}

func (d WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}
	if dialer.HandshakeTimeout <= 0 {
		dialer.HandshakeTimeout = 5 * time.Second
	}
	headers := http.Header{}
	if d.Origin != "" {
		headers.Set("Origin", d.Origin)
	}
	conn, resp, err := dialer.DialContext(ctx, url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Options configures a Controller. Zero values select the defaults.
type Options struct {
	URL            string
	Username       string
	Dialer         Dialer
	Clock          clock.Clock
	ReconnectDelay time.Duration
	TypingTimeout  time.Duration
	// OnFrame receives every frame read from the relay, on the reader goroutine.
	OnFrame func(ServerFrame)
	// OnTypingChange is called when the set of active typing indicators changes.
	OnTypingChange func()
}

// Controller owns the client's single transport.
type Controller struct {
	log        *slog.Logger
	url        string
	username   string
	dialer     Dialer
	clock      clock.Clock
	delay      time.Duration
	onFrame    func(ServerFrame)
	indicators *Indicators

	mu      sync.Mutex
	ctx     context.Context
	conn    Conn
	epoch   uint64
	pending clock.Timer
	closed  bool
}

func NewController(log *slog.Logger, opts Options) *Controller {
	if opts.Dialer == nil {
		opts.Dialer = WebSocketDialer{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.OnFrame == nil {
		opts.OnFrame = func(ServerFrame) {}
	}
	return &Controller{
		log:        log,
		url:        opts.URL,
		username:   opts.Username,
		dialer:     opts.Dialer,
		clock:      opts.Clock,
		delay:      opts.ReconnectDelay,
		onFrame:    opts.OnFrame,
		indicators: NewIndicators(opts.Clock, opts.TypingTimeout, opts.OnTypingChange),
		ctx:        context.Background(),
	}
}

// Start makes the first connection attempt. A failure is not returned: it
// schedules a reconnect like any later loss.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	c.Connect()
}

// Connect dials now. On success any scheduled attempt is cancelled; on
// failure a single attempt is scheduled after the reconnect delay.
func (c *Controller) Connect() {
	c.mu.Lock()
	if c.closed || c.conn != nil {
		c.mu.Unlock()
		return
	}
	ctx := c.ctx
	c.mu.Unlock()

	conn, err := c.dialer.Dial(ctx, c.url)
	if err != nil {
		c.log.Warn("Connection failed", "url", c.url, "error", err)
		c.scheduleReconnect()
		return
	}

	c.mu.Lock()
	if c.closed || c.conn != nil {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.conn = conn
	c.epoch++
	epoch := c.epoch
	c.mu.Unlock()

	c.log.Info("Connected", "url", c.url, "user", c.username)
	if err := c.Send(presence.Frame{Type: presence.KindJoin, Username: c.username}); err != nil {
		c.log.Warn("Join failed", "error", err)
	}
	go c.readLoop(conn, epoch)
}

func (c *Controller) readLoop(conn Conn, epoch uint64) {
	for {
		var frame ServerFrame
		if err := conn.ReadJSON(&frame); err != nil {
			c.log.Info("Disconnected", "error", err)
			c.lost(conn, epoch)
			return
		}
		if frame.Type == presence.KindTyping {
			if notice, err := frame.Typing(); err == nil {
				c.indicators.Observe(notice)
			}
		}
		c.onFrame(frame)
	}
}

// lost drops conn if it is still current and schedules a reconnect.
func (c *Controller) lost(conn Conn, epoch uint64) {
	c.mu.Lock()
	if c.closed || c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()

	_ = conn.Close()
	c.scheduleReconnect()
}

// scheduleReconnect replaces any pending attempt with a new one.
func (c *Controller) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if c.pending != nil {
		c.pending.Stop()
	}
	c.log.Info("Reconnecting", "in", c.delay)
	var timer clock.Timer
	timer = c.clock.AfterFunc(c.delay, func() {
		c.mu.Lock()
		if c.pending == timer {
			c.pending = nil
		}
		c.mu.Unlock()
		c.Connect()
	})
	c.pending = timer
}

// Send writes one frame on the current connection.
func (c *Controller) Send(frame presence.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteJSON(frame)
}

// Typing forwards one keystroke to the relay, which debounces it. An empty
// recipient means the public room.
func (c *Controller) Typing(recipient string) error {
	return c.Send(presence.Frame{Type: presence.KindTyping, User: c.username, Recipient: recipient})
}

// Connected reports whether a transport is currently open.
func (c *Controller) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Indicators returns the typing indicators fed by this connection.
func (c *Controller) Indicators() *Indicators {
	return c.indicators
}

// Close stops reconnecting and closes the open transport.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.closed = true
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}
