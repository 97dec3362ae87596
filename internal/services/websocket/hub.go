package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"content-panel/internal/services/monitor"
)

// Hub streams engine snapshots to connected dashboard clients. Snapshots
// are pushed on a fixed interval; clients that stop reading are dropped.
type Hub struct {
	monitor    *monitor.Service
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mutex      sync.RWMutex
}

func NewHub(mon *monitor.Service) *Hub {
	return &Hub{
		monitor:    mon,
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

func (h *Hub) Run(ctx context.Context) {
	go h.broadcastSnapshots(ctx)

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			h.mutex.Unlock()

		case message := <-h.broadcast:
			// Dead clients are dropped inline; sending to h.unregister here
			// would deadlock against this same loop.
			h.mutex.Lock()
			for client := range h.clients {
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mutex.Unlock()
		}
	}
}

func (h *Hub) broadcastSnapshots(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		h.mutex.RLock()
		clientCount := len(h.clients)
		h.mutex.RUnlock()

		if clientCount == 0 {
			continue
		}

		snap, err := h.monitor.Snapshot()
		if err != nil {
			continue
		}

		data, err := json.Marshal(snap)
		if err != nil {
			continue
		}

		h.broadcast <- data
	}
}

// Handle keeps the connection registered until the peer goes away.
func (h *Hub) Handle(c *websocket.Conn) {
	h.register <- c
	defer func() { h.unregister <- c }()

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}
