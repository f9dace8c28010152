package webui

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// wsConn is the part of *websocket.Conn the pool writes to.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

const (
	defaultSendBuffer   = 64
	defaultWriteTimeout = 10 * time.Second
)

type poolClient struct {
	conn wsConn
	send chan []byte
	done chan struct{}
}

// ConnectionPool fans transcript frames out to the websocket clients of one
// session. Each client has its own send queue; a client whose queue is full
// or whose write fails is dropped.
type ConnectionPool struct {
	sessionID    string
	sendBuffer   int
	writeTimeout time.Duration

	mu          sync.Mutex
	clients     map[wsConn]*poolClient
	idleTimer   *time.Timer
	idleTimeout time.Duration
	onIdle      func()
}

func NewConnectionPool(sessionID string, idleTimeout time.Duration, onIdle func()) *ConnectionPool {
	return &ConnectionPool{
		sessionID:    sessionID,
		sendBuffer:   defaultSendBuffer,
		writeTimeout: defaultWriteTimeout,
		clients:      map[wsConn]*poolClient{},
		idleTimeout:  idleTimeout,
		onIdle:       onIdle,
	}
}

func (cp *ConnectionPool) Add(conn wsConn) {
	if conn == nil {
		return
	}
	c := &poolClient{
		conn: conn,
		send: make(chan []byte, cp.sendBuffer),
		done: make(chan struct{}),
	}
	cp.mu.Lock()
	cp.clients[conn] = c
	cp.stopIdleTimerLocked()
	cp.mu.Unlock()
	go cp.writeLoop(c)
}

func (cp *ConnectionPool) Remove(conn wsConn) {
	if conn == nil {
		return
	}
	cp.mu.Lock()
	c, ok := cp.clients[conn]
	if ok {
		cp.dropLocked(c)
	}
	cp.scheduleIdleTimerLocked()
	cp.mu.Unlock()
	if !ok {
		_ = conn.Close()
	}
}

func (cp *ConnectionPool) Broadcast(data []byte) {
	if len(data) == 0 {
		return
	}
	cp.mu.Lock()
	for _, c := range cp.clients {
		cp.enqueueLocked(c, data)
	}
	cp.scheduleIdleTimerLocked()
	cp.mu.Unlock()
}

func (cp *ConnectionPool) SendToOne(conn wsConn, data []byte) {
	if conn == nil || len(data) == 0 {
		return
	}
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if c, ok := cp.clients[conn]; ok {
		cp.enqueueLocked(c, data)
	}
}

func (cp *ConnectionPool) Count() int {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return len(cp.clients)
}

func (cp *ConnectionPool) IsEmpty() bool {
	return cp.Count() == 0
}

func (cp *ConnectionPool) CloseAll() {
	cp.mu.Lock()
	for _, c := range cp.clients {
		cp.dropLocked(c)
	}
	cp.stopIdleTimerLocked()
	cp.mu.Unlock()
}

func (cp *ConnectionPool) enqueueLocked(c *poolClient, data []byte) {
	select {
	case c.send <- data:
	default:
		log.Warn().Str("component", "webui").Str("session_id", cp.sessionID).Msg("ws send queue full, dropping connection")
		cp.dropLocked(c)
	}
}

func (cp *ConnectionPool) dropLocked(c *poolClient) {
	if _, ok := cp.clients[c.conn]; !ok {
		return
	}
	delete(cp.clients, c.conn)
	close(c.done)
	_ = c.conn.Close()
}

func (cp *ConnectionPool) writeLoop(c *poolClient) {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if cp.writeTimeout > 0 {
				_ = c.conn.SetWriteDeadline(time.Now().Add(cp.writeTimeout))
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("component", "webui").Str("session_id", cp.sessionID).Msg("ws write failed, dropping connection")
				cp.mu.Lock()
				cp.dropLocked(c)
				cp.scheduleIdleTimerLocked()
				cp.mu.Unlock()
				return
			}
		}
	}
}

func (cp *ConnectionPool) stopIdleTimerLocked() {
	if cp.idleTimer != nil {
		cp.idleTimer.Stop()
		cp.idleTimer = nil
	}
}

func (cp *ConnectionPool) scheduleIdleTimerLocked() {
	cp.stopIdleTimerLocked()
	if len(cp.clients) != 0 || cp.idleTimeout <= 0 || cp.onIdle == nil {
		return
	}
	cp.idleTimer = time.AfterFunc(cp.idleTimeout, cp.triggerIdle)
}

func (cp *ConnectionPool) triggerIdle() {
	var callback func()
	cp.mu.Lock()
	if len(cp.clients) == 0 {
		callback = cp.onIdle
	}
	cp.idleTimer = nil
	cp.mu.Unlock()
	if callback != nil {
		callback()
	}
}
