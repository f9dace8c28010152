package webui

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/go-go-golems/partes/pkg/conversation"
)

const (
	frameHello = "hello"
	frameEvent = "event"
)

// Frame is what websocket clients receive: a hello with the session
// snapshot on attach, then one event frame per transcript event.
type Frame struct {
	Type     string                 `json:"type"`
	Snapshot *conversation.Snapshot `json:"snapshot,omitempty"`
	Event    *conversation.Event    `json:"event,omitempty"`
}

// Hub keeps one ConnectionPool per session and forwards transcript events
// to it.
type Hub struct {
	idleTimeout time.Duration

	mu    sync.Mutex
	pools map[string]*ConnectionPool
}

// NewHub creates a hub. Pools without clients are discarded after
// idleTimeout; zero keeps them.
func NewHub(idleTimeout time.Duration) *Hub {
	return &Hub{idleTimeout: idleTimeout, pools: map[string]*ConnectionPool{}}
}

func (h *Hub) Pool(sessionID string) *ConnectionPool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.poolLocked(sessionID)
}

// Attach adds conn to the session's pool. Lookup and add happen under the
// hub lock so an idle pool cannot be discarded in between.
func (h *Hub) Attach(sessionID string, conn wsConn) *ConnectionPool {
	h.mu.Lock()
	defer h.mu.Unlock()
	p := h.poolLocked(sessionID)
	p.Add(conn)
	return p
}

func (h *Hub) poolLocked(sessionID string) *ConnectionPool {
	if p, ok := h.pools[sessionID]; ok {
		return p
	}
	var p *ConnectionPool
	p = NewConnectionPool(sessionID, h.idleTimeout, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		// a client may have attached since the idle timer fired
		if h.pools[sessionID] == p && p.Count() == 0 {
			delete(h.pools, sessionID)
		}
	})
	h.pools[sessionID] = p
	return p
}

func (h *Hub) existing(sessionID string) (*ConnectionPool, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.pools[sessionID]
	return p, ok
}

// Forward broadcasts e to the clients of its session. It is registered as a
// transcript stream handler.
func (h *Hub) Forward(e conversation.Event) error {
	p, ok := h.existing(e.SessionID)
	if !ok {
		return nil
	}
	b, err := json.Marshal(Frame{Type: frameEvent, Event: &e})
	if err != nil {
		return errors.Wrap(err, "marshal event frame")
	}
	p.Broadcast(b)
	return nil
}

// CloseSession drops every client of a session.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	p, ok := h.pools[sessionID]
	delete(h.pools, sessionID)
	h.mu.Unlock()
	if ok {
		p.CloseAll()
	}
}

func (h *Hub) CloseAll() {
	h.mu.Lock()
	pools := h.pools
	h.pools = map[string]*ConnectionPool{}
	h.mu.Unlock()
	for _, p := range pools {
		p.CloseAll()
	}
}

func helloFrame(s conversation.Snapshot) ([]byte, error) {
	b, err := json.Marshal(Frame{Type: frameHello, Snapshot: &s})
	if err != nil {
		return nil, errors.Wrap(err, "marshal hello frame")
	}
	return b, nil
}
