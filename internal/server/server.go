package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/foxseedlab/kikitori/internal/metrics"
	"github.com/foxseedlab/kikitori/internal/notify"
	"github.com/foxseedlab/kikitori/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SessionService is the session side of the capture boundary.
type SessionService interface {
	StartSession(ctx context.Context, id string) error
	PushChunk(ctx context.Context, id string, chunk []byte) error
	EndSession(ctx context.Context, id string) (string, error)
	ActiveSessions() int
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Server struct {
	echo     *echo.Echo
	sessions SessionService
	logger   *slog.Logger

	mu          sync.Mutex
	conns       map[*wsConn]struct{}
	unsubscribe func()
}

func NewServer(sessions SessionService, hub *notify.Hub, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:     e,
		sessions: sessions,
		logger:   logger.With("component", "ws_server"),
		conns:    make(map[*wsConn]struct{}),
	}
	e.GET("/ws", s.handleWebSocket)
	e.GET("/healthz", s.handleHealth)
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}
	if hub != nil {
		s.unsubscribe = hub.Subscribe("websocket", notify.ListenerFunc(s.broadcastCompletion))
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(addr string) error {
	s.logger.Info("listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "ok",
		"activeSessions": s.sessions.ActiveSessions(),
	})
}

func (s *Server) handleWebSocket(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return err
	}

	conn := newWSConn(ws, s.sessions, s.logger)
	s.register(conn)
	s.logger.Info("recorder connected", "remote_addr", ws.RemoteAddr().String())

	go conn.writePump()
	conn.readPump(context.WithoutCancel(c.Request().Context()))

	s.unregister(conn)
	s.logger.Info("recorder disconnected", "remote_addr", ws.RemoteAddr().String())
	return nil
}

func (s *Server) register(c *wsConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c] = struct{}{}
}

func (s *Server) unregister(c *wsConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}

func (s *Server) broadcastCompletion(_ context.Context, c notify.Completion) error {
	msg := protocol.NewCompletedEvent(c.SessionID, c.Text, c.Err)
	s.mu.Lock()
	conns := make([]*wsConn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()
	for _, conn := range conns {
		conn.Send(msg)
	}
	return nil
}
