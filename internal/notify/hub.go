package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultListenerTimeout = 30 * time.Second
	// deliveredCapacity bounds how many session runs are remembered for
	// at-most-once delivery.
	deliveredCapacity = 4096
)

// runKey identifies one run of a session. Ids may be reused once a session
// has ended, so the start time is part of the key.
type runKey struct {
	sessionID string
	startedAt int64
}

func keyOf(c Completion) runKey {
	return runKey{sessionID: c.SessionID, startedAt: c.StartedAt.UnixNano()}
}

type subscription struct {
	name     string
	listener Listener
}

// Hub fans a completion out to every subscribed listener, at most once per
// session run. Listeners run concurrently and never block Publish.
type Hub struct {
	logger  *slog.Logger
	timeout time.Duration
	onError func(name string, err error)

	mu        sync.Mutex
	nextID    int
	subs      map[int]subscription
	delivered map[runKey]struct{}
	order     []runKey
	inflight  sync.WaitGroup
}

type HubOption func(*Hub)

func WithListenerTimeout(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithErrorHandler registers a callback for listener failures, in addition
// to logging them.
func WithErrorHandler(fn func(name string, err error)) HubOption {
	return func(h *Hub) {
		h.onError = fn
	}
}

func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		logger:    logger.With("component", "notify_hub"),
		timeout:   defaultListenerTimeout,
		subs:      make(map[int]subscription),
		delivered: make(map[runKey]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe adds l and returns a function that removes it.
func (h *Hub) Subscribe(name string, l Listener) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.subs[id] = subscription{name: name, listener: l}

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Publish delivers c to all listeners. It reports false when a completion for
// the same session run, id and start time, was already published.
func (h *Hub) Publish(ctx context.Context, c Completion) bool {
	key := keyOf(c)
	h.mu.Lock()
	if _, seen := h.delivered[key]; seen {
		h.mu.Unlock()
		h.logger.Debug("completion already delivered", "session_id", c.SessionID, "started_at", c.StartedAt)
		return false
	}
	h.markDeliveredLocked(key)
	subs := make([]subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.inflight.Add(len(subs))
	h.mu.Unlock()

	base := context.WithoutCancel(ctx)
	for _, s := range subs {
		go h.deliver(base, s, c)
	}
	return true
}

func (h *Hub) deliver(base context.Context, s subscription, c Completion) {
	defer h.inflight.Done()
	ctx, cancel := context.WithTimeout(base, h.timeout)
	defer cancel()
	if err := s.listener.OnCompletion(ctx, c); err != nil {
		h.logger.Error("completion listener failed", "listener", s.name, "session_id", c.SessionID, "error", err)
		if h.onError != nil {
			h.onError(s.name, err)
		}
	}
}

func (h *Hub) markDeliveredLocked(key runKey) {
	h.delivered[key] = struct{}{}
	h.order = append(h.order, key)
	if len(h.order) > deliveredCapacity {
		oldest := h.order[0]
		h.order = h.order[1:]
		delete(h.delivered, oldest)
	}
}

// Wait blocks until every delivery started so far has returned.
func (h *Hub) Wait() {
	h.inflight.Wait()
}
