// Package gateway keeps the websocket session with the chat platform. It turns
// inbound dispatch frames into envelopes and sends plain text to channels.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	errspkg "github.com/drblury/botcore/internal/runtime/errors"
	"github.com/drblury/botcore/internal/runtime/event"
	"github.com/drblury/botcore/internal/runtime/logging"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	maxFrameSize  = 1 << 20 // 1MB
	sendQueueSize = 256
)

// PublishFunc hands an inbound envelope to the rest of the runtime.
type PublishFunc func(ctx context.Context, env *event.Envelope) error

// Options configures a Client.
type Options struct {
	URL    string
	Dialer *websocket.Dialer
	Logger logging.ServiceLogger
	// HandshakeTimeout bounds the wait for the ready frame. Defaults to 10s.
	HandshakeTimeout time.Duration
}

// Client is a single gateway session. It is not reusable once Connect returns.
type Client struct {
	url              string
	dialer           *websocket.Dialer
	log              logging.ServiceLogger
	handshakeTimeout time.Duration

	mu       sync.RWMutex
	channels map[string]event.Channel
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	open     bool

	closeOnce sync.Once
}

// New builds a Client.
func New(opts Options) *Client {
	c := &Client{
		url:              opts.URL,
		dialer:           opts.Dialer,
		log:              opts.Logger,
		handshakeTimeout: opts.HandshakeTimeout,
		channels:         make(map[string]event.Channel),
		done:             make(chan struct{}),
	}
	if c.dialer == nil {
		c.dialer = websocket.DefaultDialer
	}
	if c.log == nil {
		c.log = logging.NopServiceLogger()
	}
	if c.handshakeTimeout <= 0 {
		c.handshakeTimeout = 10 * time.Second
	}
	c.log = c.log.With(logging.LogFields{"component": "gateway"})
	return c
}

// Connect logs in with token and pumps frames until ctx is cancelled or the
// connection drops. Dispatch frames are passed to publish in arrival order.
// It returns nil after a cancellation.
func (c *Client) Connect(ctx context.Context, token string, publish PublishFunc) error {
	if token == "" {
		return errspkg.ErrTokenRequired
	}
	if publish == nil {
		return errspkg.ErrHandlerRequired
	}

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial gateway %s: %w", c.url, err)
	}

	if err := c.handshake(conn, token); err != nil {
		_ = conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.send = make(chan []byte, sendQueueSize)
	c.open = true
	c.mu.Unlock()
	c.log.Info("Gateway session ready", logging.LogFields{"url": c.url, "channels": c.channelCount()})

	go c.writePump(conn)

	stop := context.AfterFunc(ctx, func() { c.shutdown() })
	defer stop()

	err = c.readPump(ctx, conn, publish)
	c.shutdown()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Client) handshake(conn *websocket.Conn, token string) error {
	identify, err := encodeFrame(OpIdentify, "", identifyPayload{Token: token})
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, identify); err != nil {
		return fmt.Errorf("send identify: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(c.handshakeTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("await ready: %w", err)
	}
	frame, err := decodeFrame(data)
	if err != nil {
		return err
	}

	switch frame.Op {
	case OpReady:
		var ready readyPayload
		if len(frame.D) > 0 {
			if err := decodePayload(frame, &ready); err != nil {
				return err
			}
		}
		c.mu.Lock()
		for _, ch := range ready.Channels {
			c.channels[ch.ID] = ch
		}
		c.mu.Unlock()
		return nil
	case OpInvalidSession:
		return errspkg.NewFatalError(errspkg.ErrInvalidSession)
	default:
		return fmt.Errorf("await ready: unexpected %q frame", frame.Op)
	}
}

func (c *Client) readPump(ctx context.Context, conn *websocket.Conn, publish PublishFunc) error {
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read gateway frame: %w", err)
		}

		frame, err := decodeFrame(data)
		if err != nil {
			c.log.Error("Dropping malformed frame", err, nil)
			continue
		}
		c.handleFrame(ctx, frame, publish)
	}
}

func (c *Client) handleFrame(ctx context.Context, frame Frame, publish PublishFunc) {
	switch frame.Op {
	case OpDispatch:
		env, err := c.envelopeFrom(frame)
		if err != nil {
			c.log.Error("Dropping malformed dispatch", err, logging.LogFields{"t": frame.T})
			return
		}
		if err := publish(ctx, env); err != nil {
			c.log.Error("Publishing event failed", err, logging.LogFields{"event_id": env.ID, "event_type": env.Type})
		}
	case OpChannelCreate, OpChannelUpdate:
		var ch event.Channel
		if err := decodePayload(frame, &ch); err != nil || ch.ID == "" {
			c.log.Error("Dropping malformed channel frame", err, logging.LogFields{"op": frame.Op})
			return
		}
		c.mu.Lock()
		c.channels[ch.ID] = ch
		c.mu.Unlock()
	case OpChannelDelete:
		var ch event.Channel
		if err := decodePayload(frame, &ch); err != nil {
			c.log.Error("Dropping malformed channel frame", err, logging.LogFields{"op": frame.Op})
			return
		}
		c.mu.Lock()
		delete(c.channels, ch.ID)
		c.mu.Unlock()
	default:
		c.log.Debug("Ignoring gateway frame", logging.LogFields{"op": frame.Op})
	}
}

func (c *Client) envelopeFrom(frame Frame) (*event.Envelope, error) {
	env := &event.Envelope{}
	if err := decodePayload(frame, env); err != nil {
		return nil, err
	}
	if env.Type == "" {
		env.Type = frame.T
	}
	if env.Type == "" {
		return nil, errors.New("dispatch frame has no event type")
	}
	env.Normalize()

	// Fill channel details the platform left out from the cache.
	if env.Channel != nil && env.Channel.ID != "" {
		if cached, ok := c.Channel(env.Channel.ID); ok {
			if env.Channel.Name == "" {
				env.Channel.Name = cached.Name
			}
			if env.Channel.Kind == "" {
				env.Channel.Kind = cached.Kind
			}
		}
	}
	return env, nil
}

func (c *Client) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Error("Gateway write failed", err, nil)
				c.shutdown()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}
		}
	}
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.open = false
		conn := c.conn
		c.mu.Unlock()
		close(c.done)
		if conn != nil {
			// Give the write pump a moment to send the close frame.
			time.AfterFunc(writeWait/10, func() { _ = conn.Close() })
		}
	})
}

// Channel returns the cached channel with id.
func (c *Client) Channel(id string) (event.Channel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.channels[id]
	return ch, ok
}

func (c *Client) channelCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.channels)
}

// SendText queues text for delivery to channelID. The channel must be known
// and text-capable.
func (c *Client) SendText(ctx context.Context, channelID, text string) error {
	c.mu.RLock()
	open := c.open
	send := c.send
	ch, found := c.channels[channelID]
	c.mu.RUnlock()

	if !open {
		return errspkg.ErrGatewayClosed
	}
	if !found {
		return fmt.Errorf("%w: %s", errspkg.ErrChannelNotFound, channelID)
	}
	if !ch.Kind.IsText() {
		return fmt.Errorf("%w: %s is %s", errspkg.ErrChannelNotText, channelID, ch.Kind)
	}

	data, err := encodeFrame(OpSend, "", sendPayload{ChannelID: channelID, Content: text})
	if err != nil {
		return err
	}

	select {
	case send <- data:
		return nil
	case <-c.done:
		return errspkg.ErrGatewayClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
