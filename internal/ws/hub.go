package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"gowa-keeper/internal/notify"
)

// Client is one WebSocket connection to an observer.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// The write goroutine drains this channel into the connection.
	send chan notify.Notification

	// InstanceID filters delivery; empty means all instances.
	InstanceID string
}

// Hub keeps all active clients and fans instance notifications out to them.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client

	broadcast chan notify.Notification

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan notify.Notification, 256),
	}
}

// Attach subscribes the hub to every instance event on the notifier.
func (h *Hub) Attach(notifier *notify.Notifier) error {
	return notifier.SubscribeAll(h.Publish)
}

// Run must be started in its own goroutine before any client connects.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.InstanceID != "" && client.InstanceID != event.InstanceID {
					continue
				}
				select {
				case client.send <- event:
				default:
					// Full buffer means a stuck client; drop it.
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Publish queues a notification for every subscribed client.
func (h *Hub) Publish(event notify.Notification) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	h.broadcast <- event
}

// NewClient wraps a Gorilla connection. The caller starts the read and write
// pumps.
func NewClient(hub *Hub, conn *websocket.Conn, instanceID string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan notify.Notification, 256),
		InstanceID: instanceID,
	}
}

// WritePump sends queued events to the connection until the channel closes.
func (c *Client) WritePump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for event := range c.send {
		payload, err := json.Marshal(event)
		if err != nil {
			log.Printf("ws: failed to marshal event: %v", err)
			continue
		}

		_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("ws: failed to write message: %v", err)
			return
		}
	}
}

// ReadPump consumes (and discards) client frames so pings and close frames
// are processed.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(15 * time.Minute))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(15 * time.Minute))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
