package sse

import (
	"path/filepath"
	"sync"

	"github.com/kbukum/speakerhub/logger"
)

const clientBuffer = 64

// Publisher is what producers of events depend on.
type Publisher interface {
	Publish(pattern string, ev Event)
}

// Client is one connected stream.
type Client struct {
	id     string
	events chan Event
	once   sync.Once
}

// NewClient creates a client with a buffered event queue.
func NewClient(id string) *Client {
	return &Client{id: id, events: make(chan Event, clientBuffer)}
}

// ID returns the client's id.
func (c *Client) ID() string { return c.id }

// Events returns the client's event queue.
func (c *Client) Events() <-chan Event { return c.events }

// Send queues ev without blocking. It reports false when the client is too
// slow and the event was dropped.
func (c *Client) Send(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

func (c *Client) close() { c.once.Do(func() { close(c.events) }) }

type message struct {
	pattern string
	event   Event
}

// Hub owns the client set. All mutation happens on the Run goroutine.
type Hub struct {
	log        *logger.Logger
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
}

// NewHub creates a hub; call Run to start it.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:        log.WithComponent("sse"),
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 256),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("Client registered", map[string]interface{}{"client_id": c.id, "clients": n})

		case c := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[c.id]; ok && cur == c {
				delete(h.clients, c.id)
			}
			h.mu.Unlock()
			c.close()

		case m := <-h.broadcast:
			h.fanOut(m)
		}
	}
}

// Stop closes every client and ends Run. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register adds c. It reports false if the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes c and closes its queue.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish sends ev to every client whose id matches pattern. Events
// published after Stop are discarded.
func (h *Hub) Publish(pattern string, ev Event) {
	select {
	case h.broadcast <- message{pattern: pattern, event: ev}:
	case <-h.done:
	}
}

func (h *Hub) fanOut(m message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, c := range h.clients {
		matched, err := filepath.Match(m.pattern, id)
		if err != nil {
			h.log.Warn("Bad broadcast pattern", map[string]interface{}{"pattern": m.pattern, "error": err.Error()})
			return
		}
		if matched && !c.Send(m.event) {
			h.log.Warn("Client queue full, event dropped", map[string]interface{}{"client_id": id})
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.close()
		delete(h.clients, id)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var _ Publisher = (*Hub)(nil)
