package boardfeed

import (
	"context"
	"errors"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-chess-sync/pkg/chessdto"
)

type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateReconnecting ConnState = "reconnecting"
	StateFailed       ConnState = "failed"
)

var ErrNotConnected = errors.New("board feed not connected")

type FrameCallback func(f chessdto.Frame)

type StateCallback func(s ConnState)

type frameEntry struct {
	id       int
	callback FrameCallback
}

type stateEntry struct {
	id       int
	callback StateCallback
}

// Client is a widget-side connection to a Hub that reconnects with backoff.
type Client struct {
	url string

	connM sync.RWMutex
	conn  *websocket.Conn
	state ConnState

	cbM      sync.RWMutex
	frameCbs []frameEntry
	stateCbs []stateEntry
	nextCb   int

	maxReconnectAttempts int
	pingInterval         time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

func NewClient(url string, maxReconnectAttempts int) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		url:                  url,
		state:                StateDisconnected,
		maxReconnectAttempts: maxReconnectAttempts,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
		rootCtx:              ctx,
		rootCancel:           cancel,
	}
}

func (c *Client) Connect(ctx context.Context) error {
	c.connM.RLock()
	st := c.state
	c.connM.RUnlock()
	if st == StateConnected || st == StateConnecting {
		return nil
	}
	c.setState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, c.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		c.setState(StateFailed)
		c.scheduleReconnect()
		return err
	}
	c.attach(conn)
	return nil
}

func (c *Client) attach(conn *websocket.Conn) {
	c.connM.Lock()
	c.conn = conn
	c.connM.Unlock()
	c.setState(StateConnected)

	c.wg.Add(2)
	go c.listen(conn)
	go c.pingLoop(conn)
}

// Send writes one frame to the hub.
func (c *Client) Send(ctx context.Context, f chessdto.Frame) error {
	c.connM.RLock()
	conn, st := c.conn, c.state
	c.connM.RUnlock()
	if conn == nil || st != StateConnected {
		return ErrNotConnected
	}
	return wsjson.Write(ctx, conn, f)
}

func (c *Client) Gesture(ctx context.Context, g chessdto.Gesture) error {
	return c.Send(ctx, chessdto.Frame{T: chessdto.FrameGesture, Gesture: &g})
}

func (c *Client) listen(conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		var f chessdto.Frame
		if err := wsjson.Read(c.rootCtx, conn, &f); err != nil {
			if c.isStopping() {
				return
			}
			c.dropConn(conn, websocket.StatusGoingAway, "reconnect")
			c.setState(StateDisconnected)
			c.scheduleReconnect()
			return
		}

		c.cbM.RLock()
		callbacks := make([]frameEntry, len(c.frameCbs))
		copy(callbacks, c.frameCbs)
		c.cbM.RUnlock()
		for _, entry := range callbacks {
			if entry.callback != nil {
				entry.callback(f)
			}
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	defer c.wg.Done()
	t := time.NewTicker(c.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-c.stopCh:
			return
		case <-c.rootCtx.Done():
			return
		case <-t.C:
			c.connM.RLock()
			current := c.conn
			c.connM.RUnlock()
			if current != conn {
				return
			}
			ctx, cancel := context.WithTimeout(c.rootCtx, 3*time.Second)
			err := conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				_ = conn.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (c *Client) scheduleReconnect() {
	if c.maxReconnectAttempts <= 0 || c.isStopping() {
		return
	}
	c.setState(StateReconnecting)

	go func() {
		for attempt := 1; attempt <= c.maxReconnectAttempts; attempt++ {
			select {
			case <-c.stopCh:
				return
			case <-time.After(backoffDuration(attempt)):
			}
			dialCtx, cancel := context.WithTimeout(c.rootCtx, 10*time.Second)
			conn, _, err := websocket.Dial(dialCtx, c.url, &websocket.DialOptions{
				CompressionMode: websocket.CompressionNoContextTakeover,
			})
			cancel()
			if err != nil {
				continue
			}
			c.attach(conn)
			return
		}
		c.setState(StateFailed)
	}()
}

func (c *Client) OnFrame(cb FrameCallback) int {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	c.nextCb++
	c.frameCbs = append(c.frameCbs, frameEntry{id: c.nextCb, callback: cb})
	return c.nextCb
}

func (c *Client) RemoveFrameCallback(id int) {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	for i, cb := range c.frameCbs {
		if cb.id == id {
			c.frameCbs = append(c.frameCbs[:i], c.frameCbs[i+1:]...)
			break
		}
	}
}

func (c *Client) OnStateChange(cb StateCallback) int {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	c.nextCb++
	c.stateCbs = append(c.stateCbs, stateEntry{id: c.nextCb, callback: cb})
	return c.nextCb
}

func (c *Client) setState(state ConnState) {
	c.connM.Lock()
	c.state = state
	c.connM.Unlock()

	c.cbM.RLock()
	callbacks := make([]stateEntry, len(c.stateCbs))
	copy(callbacks, c.stateCbs)
	c.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(state)
		}
	}
}

func (c *Client) Close(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.connM.RLock()
	conn := c.conn
	c.connM.RUnlock()
	if conn != nil {
		c.dropConn(conn, websocket.StatusNormalClosure, "close")
	}
	c.rootCancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (c *Client) dropConn(conn *websocket.Conn, code websocket.StatusCode, reason string) {
	c.connM.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.connM.Unlock()
	_ = conn.Close(code, reason)
}

func (c *Client) isStopping() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 200 * time.Millisecond
}
