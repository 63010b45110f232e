package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/kikitori/internal/metrics"
	"github.com/foxseedlab/kikitori/internal/notify"
	"github.com/foxseedlab/kikitori/internal/protocol"
	"github.com/foxseedlab/kikitori/internal/session"
	"github.com/gorilla/websocket"
)

type fakeSessions struct {
	mu      sync.Mutex
	active  map[string][]byte
	hub     *notify.Hub
	release chan struct{}
}

func newFakeSessions(hub *notify.Hub) *fakeSessions {
	return &fakeSessions{active: make(map[string][]byte), hub: hub}
}

func (f *fakeSessions) StartSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.active[id]; ok {
		return fmt.Errorf("%w: %s", session.ErrAlreadyActive, id)
	}
	f.active[id] = nil
	return nil
}

func (f *fakeSessions) PushChunk(_ context.Context, id string, chunk []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.active[id]
	if !ok {
		return fmt.Errorf("%w: %s", session.ErrNoSuchSession, id)
	}
	f.active[id] = append(b, chunk...)
	return nil
}

func (f *fakeSessions) EndSession(ctx context.Context, id string) (string, error) {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	b, ok := f.active[id]
	delete(f.active, id)
	f.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", session.ErrNoSuchSession, id)
	}
	text := fmt.Sprintf("%d bytes", len(b))
	if f.hub != nil {
		f.hub.Publish(ctx, notify.Completion{SessionID: id, State: "complete", Text: text})
	}
	return text, nil
}

func (f *fakeSessions) ActiveSessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.active)
}

type testPeer struct {
	t  *testing.T
	ws *websocket.Conn
}

func dialTestServer(t *testing.T, srv *Server) *testPeer {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return &testPeer{t: t, ws: ws}
}

func (p *testPeer) send(req protocol.Request) {
	p.t.Helper()
	if err := p.ws.WriteJSON(req); err != nil {
		p.t.Fatalf("write failed: %v", err)
	}
}

func (p *testPeer) next() protocol.Message {
	p.t.Helper()
	_ = p.ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg protocol.Message
	if err := p.ws.ReadJSON(&msg); err != nil {
		p.t.Fatalf("read failed: %v", err)
	}
	return msg
}

func TestWebSocketSessionLifecycle(t *testing.T) {
	hub := notify.NewHub(nil)
	srv := NewServer(newFakeSessions(hub), hub, metrics.NewMetrics(), nil)
	peer := dialTestServer(t, srv)

	peer.send(protocol.Request{ID: "1", Cmd: protocol.CmdStart, SessionID: "s1"})
	if msg := peer.next(); !msg.OK || msg.ID != "1" {
		t.Fatalf("unexpected start response %+v", msg)
	}
	peer.send(protocol.Request{ID: "2", Cmd: protocol.CmdPush, SessionID: "s1", Data: []byte("abc")})
	if msg := peer.next(); !msg.OK || msg.ID != "2" {
		t.Fatalf("unexpected push response %+v", msg)
	}
	peer.send(protocol.Request{ID: "3", Cmd: protocol.CmdEnd, SessionID: "s1"})

	var gotResponse, gotEvent bool
	for !(gotResponse && gotEvent) {
		msg := peer.next()
		switch msg.Type {
		case protocol.TypeResponse:
			if msg.ID != "3" || msg.Text != "3 bytes" {
				t.Fatalf("unexpected end response %+v", msg)
			}
			gotResponse = true
		case protocol.TypeEvent:
			if msg.Event != protocol.EventCompleted || msg.SessionID != "s1" {
				t.Fatalf("unexpected event %+v", msg)
			}
			gotEvent = true
		}
	}
}

func TestWebSocketErrorCodes(t *testing.T) {
	srv := NewServer(newFakeSessions(nil), nil, nil, nil)
	peer := dialTestServer(t, srv)

	peer.send(protocol.Request{ID: "1", Cmd: protocol.CmdPush, SessionID: "missing", Data: []byte("x")})
	if msg := peer.next(); msg.OK || msg.Code != protocol.CodeNoSuchSession {
		t.Fatalf("unexpected response %+v", msg)
	}

	peer.send(protocol.Request{ID: "2", Cmd: protocol.CmdStart, SessionID: "s1"})
	peer.next()
	peer.send(protocol.Request{ID: "3", Cmd: protocol.CmdStart, SessionID: "s1"})
	if msg := peer.next(); msg.OK || msg.Code != protocol.CodeAlreadyActive {
		t.Fatalf("unexpected response %+v", msg)
	}

	peer.send(protocol.Request{ID: "4", Cmd: "rewind"})
	if msg := peer.next(); msg.OK || msg.Code != protocol.CodeBadRequest || msg.ID != "4" {
		t.Fatalf("unexpected response %+v", msg)
	}

	if err := peer.ws.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if msg := peer.next(); msg.OK || msg.Code != protocol.CodeBadRequest {
		t.Fatalf("unexpected response %+v", msg)
	}
}

func TestWebSocketEndDoesNotBlockConnection(t *testing.T) {
	sessions := newFakeSessions(nil)
	sessions.release = make(chan struct{})
	srv := NewServer(sessions, nil, nil, nil)
	peer := dialTestServer(t, srv)

	peer.send(protocol.Request{ID: "1", Cmd: protocol.CmdStart, SessionID: "s1"})
	peer.next()
	peer.send(protocol.Request{ID: "2", Cmd: protocol.CmdEnd, SessionID: "s1"})
	peer.send(protocol.Request{ID: "3", Cmd: protocol.CmdStart, SessionID: "s2"})
	if msg := peer.next(); msg.ID != "3" || !msg.OK {
		t.Fatalf("start while end is pending should be served first, got %+v", msg)
	}
	close(sessions.release)
	if msg := peer.next(); msg.ID != "2" || !msg.OK {
		t.Fatalf("unexpected end response %+v", msg)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	sessions := newFakeSessions(nil)
	_ = sessions.StartSession(context.Background(), "s1")
	srv := NewServer(sessions, nil, metrics.NewMetrics(), nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
	var body struct {
		Status         string `json:"status"`
		ActiveSessions int    `json:"activeSessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode healthz: %v", err)
	}
	if body.Status != "ok" || body.ActiveSessions != 1 {
		t.Fatalf("unexpected health %+v", body)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "kikitori_sessions_started_total") {
		t.Fatalf("metrics endpoint did not expose collectors: %d", rec.Code)
	}
}
