package client

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/streamdeck-api/internal/protocol"
)

// Start launches the event loop. It does nothing if the loop is running.
// The loop also ends when ctx is cancelled.
func (c *Client) Start(ctx context.Context) {
	if !c.running.CompareAndSwap(false, true) {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.mu.Lock()
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go c.loop(loopCtx, done)
}

// Stop ends the event loop. No callback starts once Stop has returned,
// and a callback in progress is not interrupted. Stop may be called from
// a callback. Use Wait to block until the loop goroutine has exited.
func (c *Client) Stop() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the most recently started loop has exited.
func (c *Client) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

func (c *Client) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer c.setState(StateDisconnected)

	for c.active(ctx) {
		c.setState(StateConnecting)

		if !c.serverUp(ctx) {
			c.setState(StateDisconnected)
			if !c.sleep(ctx) {
				return
			}
			continue
		}

		conn, resp, err := c.opts.Dialer.DialContext(ctx, c.websocketURL(), nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			c.opts.Logger.Debug("websocket dial failed", "url", c.websocketURL(), "error", err)
			c.setState(StateDisconnected)
			if !c.sleep(ctx) {
				return
			}
			continue
		}

		c.setState(StateConnected)
		c.opts.Logger.Info("connected to stream deck", "host", c.opts.Host)
		if c.active(ctx) && c.opts.OnConnect != nil {
			c.opts.OnConnect()
		}

		c.session(ctx, conn)
		conn.Close()
		c.setState(StateDisconnected)
	}
}

// active reports whether the loop should keep going.
func (c *Client) active(ctx context.Context) bool {
	return c.running.Load() && ctx.Err() == nil
}

func (c *Client) serverUp(ctx context.Context) bool {
	reqCtx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()
	if _, err := c.Info(reqCtx); err != nil {
		c.opts.Logger.Debug("stream deck not reachable", "host", c.opts.Host, "error", err)
		return false
	}
	return true
}

// sleep waits RetryInterval. It returns false if the loop was stopped.
func (c *Client) sleep(ctx context.Context) bool {
	t := time.NewTimer(c.opts.RetryInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return c.running.Load()
	}
}

// session reads frames until an error, a read timeout or Stop.
func (c *Client) session(ctx context.Context, conn *websocket.Conn) {
	// Closing the connection unblocks ReadMessage when the loop is stopped.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for c.active(ctx) {
		//nolint:errcheck // a failed deadline surfaces as a read error
		conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.active(ctx) {
				c.opts.Logger.Warn("websocket session ended, reconnecting", "error", err)
			}
			return
		}
		c.dispatch(ctx, data)
	}
}

func (c *Client) dispatch(ctx context.Context, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		c.opts.Logger.Debug("dropping undecodable frame", "error", err)
		return
	}
	if !c.active(ctx) {
		return
	}

	if c.opts.OnMessage != nil {
		c.opts.OnMessage(msg)
	}

	switch args := msg.Args.(type) {
	case protocol.Status:
		if c.opts.OnStatusUpdate != nil && c.active(ctx) {
			c.opts.OnStatusUpdate(args.Info)
		}
	case protocol.ButtonRef:
		c.dispatchButton(ctx, msg.Event, args.UUID)
	case protocol.Empty:
		c.opts.Logger.Debug("server handshake received")
	}
}

func (c *Client) dispatchButton(ctx context.Context, event protocol.Event, uuid string) {
	if !c.active(ctx) {
		return
	}
	switch event {
	case protocol.EventKeyDown, protocol.EventKeyUp:
		pressed := event == protocol.EventKeyDown
		if c.opts.OnButtonChange != nil {
			c.opts.OnButtonChange(uuid, pressed)
		}
		if !c.active(ctx) {
			return
		}
		if pressed && c.opts.OnButtonPress != nil {
			c.opts.OnButtonPress(uuid)
		}
		if !pressed && c.opts.OnButtonRelease != nil {
			c.opts.OnButtonRelease(uuid)
		}
	case protocol.EventSingleTap, protocol.EventLongPress:
		if c.opts.OnButtonGesture != nil {
			c.opts.OnButtonGesture(event, uuid)
		}
	default:
		c.opts.Logger.Debug("ignoring event", "event", event)
	}
}
