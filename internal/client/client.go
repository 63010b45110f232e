package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foxseedlab/kikitori/internal/protocol"
	"github.com/gorilla/websocket"
)

const (
	writeWait       = 10 * time.Second
	eventBufferSize = 16
	// A push that gets no reply in time is reported as failed so the
	// recorder's push queue keeps moving.
	defaultPushTimeout = 10 * time.Second
)

var ErrClosed = errors.New("backend connection closed")

// Client speaks the capture boundary protocol to a backend over one
// WebSocket connection. Calls may be issued concurrently.
type Client struct {
	ws          *websocket.Conn
	logger      *slog.Logger
	pushTimeout time.Duration

	writeMu sync.Mutex
	nextID  atomic.Uint64

	mu      sync.Mutex
	pending map[string]chan protocol.Message
	err     error

	events chan protocol.Message
	done   chan struct{}
}

func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		ws:          ws,
		logger:      logger.With("component", "backend_client"),
		pushTimeout: defaultPushTimeout,
		pending:     make(map[string]chan protocol.Message),
		events:      make(chan protocol.Message, eventBufferSize),
		done:        make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Events delivers completion events pushed by the backend. Events that
// arrive while the buffer is full are dropped.
func (c *Client) Events() <-chan protocol.Message {
	return c.events
}

func (c *Client) StartSession(ctx context.Context, id string) error {
	_, err := c.call(ctx, protocol.Request{Cmd: protocol.CmdStart, SessionID: id})
	return err
}

func (c *Client) PushChunk(ctx context.Context, id string, chunk []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.pushTimeout)
	defer cancel()
	_, err := c.call(ctx, protocol.Request{Cmd: protocol.CmdPush, SessionID: id, Data: chunk})
	return err
}

func (c *Client) EndSession(ctx context.Context, id string) (string, error) {
	return c.call(ctx, protocol.Request{Cmd: protocol.CmdEnd, SessionID: id})
}

func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	err := c.ws.Close()
	<-c.done
	return err
}

func (c *Client) call(ctx context.Context, req protocol.Request) (string, error) {
	req.ID = strconv.FormatUint(c.nextID.Add(1), 10)
	reply := make(chan protocol.Message, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return "", err
	}
	c.pending[req.ID] = reply
	c.mu.Unlock()
	defer c.forget(req.ID)

	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	c.writeMu.Lock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	err = c.ws.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		return "", fmt.Errorf("send %s: %w", req.Cmd, err)
	}

	select {
	case msg := <-reply:
		if !msg.OK {
			return "", protocol.ErrorFor(msg.Code, msg.Error)
		}
		return msg.Text, nil
	case <-c.done:
		return "", c.closeErr()
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

func (c *Client) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		return ErrClosed
	}
	return c.err
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.err = ErrClosed
			} else {
				c.err = fmt.Errorf("%w: %v", ErrClosed, err)
			}
			c.mu.Unlock()
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("ignoring malformed frame", "error", err)
			continue
		}
		switch msg.Type {
		case protocol.TypeResponse:
			c.mu.Lock()
			reply, ok := c.pending[msg.ID]
			c.mu.Unlock()
			if ok {
				reply <- msg
			} else {
				c.logger.Debug("response for unknown request", "id", msg.ID, "error", msg.Error)
			}
		case protocol.TypeEvent:
			select {
			case c.events <- msg:
			default:
				c.logger.Debug("event buffer full, dropping event", "session_id", msg.SessionID)
			}
		}
	}
}
