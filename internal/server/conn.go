package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/foxseedlab/kikitori/internal/protocol"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024 * 1024
	sendBufferSize = 256
)

type wsConn struct {
	ws       *websocket.Conn
	sessions SessionService
	logger   *slog.Logger

	send   chan protocol.Message
	mu     sync.RWMutex
	closed bool
}

func newWSConn(ws *websocket.Conn, sessions SessionService, logger *slog.Logger) *wsConn {
	return &wsConn{
		ws:       ws,
		sessions: sessions,
		logger:   logger.With("remote_addr", ws.RemoteAddr().String()),
		send:     make(chan protocol.Message, sendBufferSize),
	}
}

// Send queues msg for the write pump. Messages to a closed connection, or
// beyond a full buffer, are dropped.
func (c *wsConn) Send(msg protocol.Message) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		c.logger.Warn("send buffer full, dropping message", "type", msg.Type, "id", msg.ID)
	}
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
	return nil
}

// readPump handles requests in arrival order. start and push complete before
// the next frame is read; end runs concurrently so a long transcription does
// not stall the connection.
func (c *wsConn) readPump(ctx context.Context) {
	defer func() {
		_ = c.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket read error", "error", err)
			}
			return
		}

		var req protocol.Request
		if err := json.Unmarshal(message, &req); err != nil {
			c.Send(protocol.NewResponse("", "", fmt.Errorf("%w: %v", protocol.ErrBadRequest, err)))
			continue
		}
		c.handle(ctx, req)
	}
}

func (c *wsConn) handle(ctx context.Context, req protocol.Request) {
	switch req.Cmd {
	case protocol.CmdStart:
		c.Send(protocol.NewResponse(req.ID, "", c.sessions.StartSession(ctx, req.SessionID)))
	case protocol.CmdPush:
		c.Send(protocol.NewResponse(req.ID, "", c.sessions.PushChunk(ctx, req.SessionID, req.Data)))
	case protocol.CmdEnd:
		go func() {
			text, err := c.sessions.EndSession(ctx, req.SessionID)
			c.Send(protocol.NewResponse(req.ID, text, err))
		}()
	default:
		c.Send(protocol.NewResponse(req.ID, "", fmt.Errorf("%w: unknown command %q", protocol.ErrBadRequest, req.Cmd)))
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				c.logger.Error("failed to marshal message", "error", err)
				continue
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Error("websocket write error", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
