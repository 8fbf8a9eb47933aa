package client

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gopresence/internal/clock"
	"github.com/Tyrowin/gopresence/internal/presence"
)

type fakeConn struct {
	mu       sync.Mutex
	written  []presence.Frame
	incoming chan []byte
	closed   chan struct{}
	once     sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{incoming: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		return errors.New("closed")
	default:
	}
	c.written = append(c.written, v.(presence.Frame))
	return nil
}

func (c *fakeConn) ReadJSON(v interface{}) error {
	select {
	case raw := <-c.incoming:
		return json.Unmarshal(raw, v)
	case <-c.closed:
		return errors.New("connection reset")
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) frames() []presence.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]presence.Frame(nil), c.written...)
}

type fakeDialer struct {
	mu       sync.Mutex
	failures int
	attempts int
	conns    []*fakeConn
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts++
	if d.failures > 0 {
		d.failures--
		return nil, errors.New("connection refused")
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) setFailures(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = n
}

func (d *fakeDialer) attemptCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[len(d.conns)-1]
}

func newTestController(t *testing.T, dialer *fakeDialer, onFrame func(ServerFrame)) (*Controller, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	controller := NewController(logs.GetLoggerFromLevel(slog.LevelDebug), Options{
		URL:      "ws://relay.test/ws",
		Username: "alice",
		Dialer:   dialer,
		Clock:    clk,
		OnFrame:  onFrame,
	})
	t.Cleanup(func() { _ = controller.Close() })
	return controller, clk
}

func TestController_JoinsOnConnect(t *testing.T) {
	req := require.New(t)
	dialer := &fakeDialer{}
	controller, clk := newTestController(t, dialer, nil)

	controller.Start(context.Background())

	req.True(controller.Connected())
	req.Zero(clk.Pending())
	req.Equal([]presence.Frame{{Type: presence.KindJoin, Username: "alice"}}, dialer.last().frames())

	req.NoError(controller.Send(presence.Frame{Type: presence.KindMessage, Text: "hello"}))
	req.NoError(controller.Typing("bob"))
	req.Equal([]presence.Frame{
		{Type: presence.KindJoin, Username: "alice"},
		{Type: presence.KindMessage, Text: "hello"},
		{Type: presence.KindTyping, User: "alice", Recipient: "bob"},
	}, dialer.last().frames())
}

func TestController_RetriesAfterFixedDelay(t *testing.T) {
	req := require.New(t)
	dialer := &fakeDialer{failures: 2}
	controller, clk := newTestController(t, dialer, nil)

	controller.Start(context.Background())
	req.False(controller.Connected())
	req.Equal(1, clk.Pending())
	req.ErrorIs(controller.Send(presence.Frame{Type: presence.KindMessage, Text: "x"}), ErrNotConnected)

	clk.Advance(DefaultReconnectDelay - time.Millisecond)
	req.Equal(1, dialer.attemptCount())

	clk.Advance(time.Millisecond)
	req.Equal(2, dialer.attemptCount())
	req.False(controller.Connected())
	req.Equal(1, clk.Pending())

	// No backoff: the third attempt also waits exactly the same delay.
	clk.Advance(DefaultReconnectDelay)
	req.Equal(3, dialer.attemptCount())
	req.True(controller.Connected())
	req.Zero(clk.Pending())
}

func TestController_ReconnectsAfterLoss(t *testing.T) {
	req := require.New(t)
	dialer := &fakeDialer{}
	controller, clk := newTestController(t, dialer, nil)

	controller.Start(context.Background())
	first := dialer.last()
	req.NoError(first.Close())

	req.Eventually(func() bool { return clk.Pending() == 1 }, time.Second, 5*time.Millisecond)
	req.False(controller.Connected())

	clk.Advance(DefaultReconnectDelay)
	req.True(controller.Connected())
	second := dialer.last()
	req.NotSame(first, second)
	req.Equal([]presence.Frame{{Type: presence.KindJoin, Username: "alice"}}, second.frames())
}

func TestController_ConnectCancelsPendingAttempt(t *testing.T) {
	req := require.New(t)
	dialer := &fakeDialer{failures: 1}
	controller, clk := newTestController(t, dialer, nil)

	controller.Start(context.Background())
	req.Equal(1, clk.Pending())

	controller.Connect()
	req.True(controller.Connected())
	req.Zero(clk.Pending())

	clk.Advance(DefaultReconnectDelay)
	req.Equal(2, dialer.attemptCount())
}

func TestController_CloseStopsReconnecting(t *testing.T) {
	req := require.New(t)
	dialer := &fakeDialer{}
	dialer.setFailures(1)
	controller, clk := newTestController(t, dialer, nil)

	controller.Start(context.Background())
	req.Equal(1, clk.Pending())

	req.NoError(controller.Close())
	req.Zero(clk.Pending())
	req.ErrorIs(controller.Send(presence.Frame{Type: presence.KindMessage, Text: "x"}), ErrClosed)

	clk.Advance(time.Minute)
	req.Equal(1, dialer.attemptCount())
}

func TestController_DeliversFramesAndTracksTyping(t *testing.T) {
	req := require.New(t)
	dialer := &fakeDialer{}

	var (
		mu       sync.Mutex
		received []string
	)
	controller, clk := newTestController(t, dialer, func(frame ServerFrame) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, frame.Type)
	})
	controller.Start(context.Background())

	conn := dialer.last()
	conn.incoming <- []byte(`{"type":"users","data":[{"username":"alice","status":"online"}]}`)
	conn.incoming <- []byte(`{"type":"typing","data":{"user":"bob"}}`)

	req.Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	}, time.Second, 5*time.Millisecond)
	req.Equal([]presence.TypingNotice{{User: "bob"}}, controller.Indicators().Active())

	clk.Advance(presence.DefaultTypingTimeout)
	req.Empty(controller.Indicators().Active())
}
