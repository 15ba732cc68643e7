package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	// subscriberBuffer is the per-subscriber event queue length. A client
	// that falls further behind than this is disconnected.
	subscriberBuffer = 32

	// writeWait bounds a single WebSocket write before the subscriber is
	// considered dead.
	writeWait = 5 * time.Second

	// levelInterval throttles per-engine level events to roughly 10 Hz.
	// Capture produces one sample per 30 ms frame, which is more than a
	// caption UI needs.
	levelInterval = 100 * time.Millisecond
)

// Event is a single message on the live-caption WebSocket. Type is one of
// "caption", "level" or "state"; the remaining fields are populated per type.
type Event struct {
	Type       string   `json:"type"`
	Engine     string   `json:"engine,omitempty"`
	Source     string   `json:"source,omitempty"`
	Translated string   `json:"translated,omitempty"`
	Level      *float64 `json:"level,omitempty"`
	State      string   `json:"state,omitempty"`
}

// subscriber is one connected WebSocket client. The write loop in
// [Hub.ServeHTTP] drains events; close tears the connection down from
// outside that loop.
type subscriber struct {
	events chan []byte
	close  func(code websocket.StatusCode, reason string)
}

// Hub fans translation status out to WebSocket subscribers. Publishing never
// blocks: a subscriber whose queue is full is disconnected rather than
// stalling the engines. The zero value is not usable; call [NewHub].
type Hub struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	closed      bool

	// lastLevel tracks the most recent forwarded level sample per engine.
	lastLevel map[string]time.Time
}

// NewHub creates an empty hub ready to accept subscribers.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[*subscriber]struct{}),
		lastLevel:   make(map[string]time.Time),
	}
}

// ServeHTTP upgrades the request to a WebSocket and streams events until the
// client disconnects, falls behind, or the hub closes. The connection is
// write-only; anything the client sends is discarded.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		slog.Debug("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.CloseNow()

	sub := &subscriber{
		events: make(chan []byte, subscriberBuffer),
		close: func(code websocket.StatusCode, reason string) {
			conn.Close(code, reason)
		},
	}
	if !h.add(sub) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.remove(sub)

	slog.Debug("caption subscriber connected", "remote", r.RemoteAddr)

	// CloseRead discards incoming frames and cancels the context when the
	// connection dies, including when sub.close fires.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case data := <-sub.events:
			if err := writeTimeout(ctx, conn, data); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// PublishCaption broadcasts a finished utterance pair.
func (h *Hub) PublishCaption(engine, source, translated string) {
	h.broadcast(Event{Type: "caption", Engine: engine, Source: source, Translated: translated})
}

// PublishLevel broadcasts a capture level sample in [0.0, 1.0]. Samples
// arrive once per frame; at most one per engine every [levelInterval] is
// forwarded.
func (h *Hub) PublishLevel(engine string, level float64) {
	h.mu.Lock()
	now := time.Now()
	if now.Sub(h.lastLevel[engine]) < levelInterval {
		h.mu.Unlock()
		return
	}
	h.lastLevel[engine] = now
	h.mu.Unlock()

	h.broadcast(Event{Type: "level", Engine: engine, Level: &level})
}

// PublishState broadcasts an engine lifecycle transition.
func (h *Hub) PublishState(engine, state string) {
	h.broadcast(Event{Type: "state", Engine: engine, State: state})
}

// Subscribers reports the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close disconnects every subscriber and rejects new connections. It is safe
// to call more than once.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := make([]*subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close(websocket.StatusGoingAway, "server shutting down")
	}
}

func (h *Hub) broadcast(evt Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.subscribers) == 0 {
		return
	}

	data, err := json.Marshal(evt)
	if err != nil {
		slog.Error("event marshal failed", "type", evt.Type, "error", err)
		return
	}

	for sub := range h.subscribers {
		select {
		case sub.events <- data:
		default:
			go sub.close(websocket.StatusPolicyViolation, "subscriber too slow to keep up")
		}
	}
}

func (h *Hub) add(sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subscribers[sub] = struct{}{}
	return true
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, sub)
}

// writeTimeout writes one text frame, giving up after [writeWait].
func writeTimeout(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
