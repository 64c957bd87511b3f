package httpapi

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"handheld_rfid_go/internal/ui"
)

const (
	MsgSnapshot = "snapshot"

	clientBuffer = 64
	writeWait    = 5 * time.Second
)

// Message is one websocket frame. Type is "snapshot" or a ui.Event kind.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Broadcaster is a ui.Sink that relays every event to websocket clients.
// Handle never blocks: a client whose buffer is full is dropped.
type Broadcaster struct {
	snapshot   func() ui.Snapshot
	maxClients int

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewBroadcaster(snapshot func() ui.Snapshot, maxClients int) *Broadcaster {
	if maxClients <= 0 {
		maxClients = 16
	}
	return &Broadcaster{
		snapshot:   snapshot,
		maxClients: maxClients,
		clients:    make(map[*client]struct{}),
	}
}

// AddClient registers conn and queues the current screen snapshot for it.
// It returns nil when the client limit is reached.
func (b *Broadcaster) AddClient(conn *websocket.Conn) *client {
	var first []byte
	if b.snapshot != nil {
		if data, err := json.Marshal(Message{Type: MsgSnapshot, Payload: b.snapshot()}); err == nil {
			first = data
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.clients) >= b.maxClients {
		return nil
	}
	c := newClient(conn)
	b.clients[c] = struct{}{}
	if first != nil {
		c.send <- first
	}
	return c
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) Handle(ev ui.Event) {
	b.broadcast(Message{Type: ev.Kind(), Payload: ev})
}

func (b *Broadcaster) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Str("component", "httpapi").Err(err).Msg("broadcast marshal failed")
		return
	}

	// Sends happen under the read lock: RemoveClient and Close close c.send
	// only while holding the write lock.
	var slow []*client
	b.mu.RLock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		log.Warn().Str("component", "httpapi").Msg("ws client too slow, disconnecting")
		b.RemoveClient(c)
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close drops every client.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	for c := range b.clients {
		delete(b.clients, c)
		close(c.send)
	}
	b.mu.Unlock()
}

var _ ui.Sink = (*Broadcaster)(nil)
