package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"potholeserver/internal/logger"
	"potholeserver/internal/service/events"
)

const (
	broadcastBuffer = 32
	writeWait       = 5 * time.Second
)

// HubService keeps connected viewers and pushes detection events to them.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves register/unregister/broadcast until ctx is done, then closes all clients.
func (h *HubService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", count)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer disconnected. Total: %d", count)

		case message := <-h.broadcast:
			h.send(message)
		}
	}
}

// send writes message to every client, dropping the ones that fail.
func (h *HubService) send(message []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Error("Error sending message: %v", err)
			delete(h.clients, client)
			client.Close()
		}
	}
}

func (h *HubService) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
}

func (h *HubService) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues message for all viewers; it never blocks the caller.
func (h *HubService) Broadcast(message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	default:
		h.logger.Warning("Viewer broadcast queue full - dropping message")
		return false
	}
}

// Publish implements events.Publisher for live viewers.
func (h *HubService) Publish(_ context.Context, ev events.Event) error {
	payload, err := ev.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if !h.Broadcast(payload) {
		return fmt.Errorf("viewer queue full")
	}
	return nil
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
