// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/gopresence/internal/presence"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

const rateLimitReply = "rate limit exceeded"

var (
	errClientClosed   = errors.New("client closed")
	errSendBufferFull = errors.New("send buffer full")
)

var _ presence.Transport = (*Client)(nil)

// Client is one WebSocket connection. It is the transport of the session the
// connection joins: the router writes to it through Send, and the read pump
// feeds the router in arrival order.
type Client struct {
	conn   *websocket.Conn
	hub    *Hub
	router *presence.Router
	peer   *presence.Conn
	addr   string
	log    *slog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool

	closeOnce sync.Once

	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig
}

// NewClient creates a Client for conn. The client's send channel is buffered
// to absorb bursts of fan-out.
func NewClient(conn *websocket.Conn, hub *Hub, router *presence.Router, addr string, cfg Config, log *slog.Logger) *Client {
	cfg = sanitizeConfig(cfg)
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	c := &Client{
		conn:           conn,
		hub:            hub,
		router:         router,
		addr:           addr,
		log:            log.With("addr", addr),
		send:           make(chan []byte, cfg.SendBufferSize),
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(cfg.RateLimit),
		rateLimit:      cfg.RateLimit,
	}
	c.peer = presence.NewConn(c, addr)
	return c
}

// Send queues one frame for the write pump. A client that cannot keep up is
// disconnected rather than allowed to stall the sender.
func (c *Client) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errClientClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		c.log.Warn("Send buffer full; closing connection")
		go func() { _ = c.Close() }()
		return errSendBufferFull
	}
}

// Close closes the underlying connection once. The read pump notices and
// runs the disconnect path.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.conn == nil {
			return
		}
		if closeErr := c.conn.Close(); closeErr != nil && !isExpectedCloseError(closeErr) {
			err = closeErr
		}
	})
	return err
}

// markClosed stops further sends and lets the write pump drain and exit.
func (c *Client) markClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	c.closed = true
	close(c.send)
	return true
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("Error setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn("Error setting read deadline in pong handler", "error", err)
		}
		return nil
	})
}

// logReadError classifies the error that ended the read loop.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("Frame exceeded maximum size", "limit", c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Info("Client disconnected", "reason", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Info("Client connection closed", "reason", err)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.log.Warn("Unexpected WebSocket error", "error", err)
	default:
		c.log.Warn("WebSocket read error", "error", err)
	}
}

// checkRateLimit reports whether the frame may be processed.
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.log.Warn("Rate limit exceeded; discarding frame",
			"burst", c.rateLimit.Burst, "interval", c.rateLimit.RefillInterval)
		return false
	}
	return true
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.router.Disconnect(ctx, c.peer)
		c.hub.Unregister(c)
		_ = c.Close()
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.checkRateLimit() {
			if sendErr := c.sendError(rateLimitReply); sendErr != nil {
				c.log.Debug("Unable to report rate limit", "error", sendErr)
			}
			continue
		}

		c.router.Handle(ctx, c.peer, raw)
	}
}

func (c *Client) sendError(text string) error {
	frame, err := presence.Envelope{Type: presence.KindError, Message: text}.Encode()
	if err != nil {
		return err
	}
	return c.Send(frame)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				c.writeCloseMessage()
				return
			}
			if !c.writeFrame(websocket.TextMessage, frame) {
				return
			}
		case <-ticker.C:
			if !c.writeFrame(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

// writeFrame writes one frame per WebSocket message.
func (c *Client) writeFrame(messageType int, payload []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("Error setting write deadline", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(messageType, payload); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error writing frame", "type", messageType, "error", err)
		}
		return false
	}
	return true
}

func (c *Client) writeCloseMessage() {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return
	}
	err := c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil && !isExpectedCloseError(err) {
		c.log.Debug("Error writing close message", "error", err)
	}
}
