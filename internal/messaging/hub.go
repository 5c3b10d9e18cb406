// internal/messaging/hub.go

package messaging

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// OfflineNotifier reaches members that have no open connection
type OfflineNotifier interface {
	NotifyOffline(ctx context.Context, userID int64, eventType string, payload interface{}) error
}

// Hub maintains active websocket connections and fans committed outcomes
// out to them
type Hub struct {
	// Registered clients, one connection per user
	clients    map[int64]*Client
	clientsMux sync.RWMutex

	broadcast  chan BroadcastMessage
	register   chan *Client
	unregister chan *Client

	offline OfflineNotifier

	// Context for graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// WaitGroup for pending offline deliveries
	wg sync.WaitGroup
}

type BroadcastMessage struct {
	UserIDs []int64
	Message WSMessage
}

func NewHub(offline OfflineNotifier) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		clients:    make(map[int64]*Client),
		broadcast:  make(chan BroadcastMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		offline:    offline,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	defer func() {
		h.cleanup()
		close(h.done)
	}()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case <-h.ctx.Done():
			return
		}
	}
}

// Publish queues an event for the given users. It blocks only while the
// broadcast queue is full.
func (h *Hub) Publish(ctx context.Context, userIDs []int64, eventType string, payload interface{}) {
	msg := BroadcastMessage{
		UserIDs: userIDs,
		Message: WSMessage{
			Type:      eventType,
			Data:      mustMarshalJSON(payload),
			Timestamp: time.Now().UTC(),
		},
	}
	select {
	case h.broadcast <- msg:
	case <-ctx.Done():
		log.Printf("Dropped %s event: %v", eventType, ctx.Err())
	case <-h.ctx.Done():
	}
}

// Register hands a connected client to the hub
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) registerClient(client *Client) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	// Replace an older connection of the same user
	if old, exists := h.clients[client.userID]; exists && old != client {
		old.Close()
	}
	h.clients[client.userID] = client
	connectedClients.Set(float64(len(h.clients)))

	log.Printf("User %d connected. Total clients: %d", client.userID, len(h.clients))
}

func (h *Hub) unregisterClient(client *Client) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	client.Close()
	if current, exists := h.clients[client.userID]; exists && current == client {
		delete(h.clients, client.userID)
		connectedClients.Set(float64(len(h.clients)))
		log.Printf("User %d disconnected. Total clients: %d", client.userID, len(h.clients))
	}
}

func (h *Hub) broadcastMessage(msg BroadcastMessage) {
	data, err := json.Marshal(msg.Message)
	if err != nil {
		log.Printf("Error marshalling message: %v", err)
		return
	}

	var slow []*Client
	h.clientsMux.RLock()
	for _, userID := range msg.UserIDs {
		client, exists := h.clients[userID]
		if !exists {
			h.notifyOffline(userID, msg.Message)
			continue
		}
		if !client.enqueue(data) {
			slow = append(slow, client)
		}
	}
	h.clientsMux.RUnlock()

	// Clients that cannot keep up are dropped
	for _, client := range slow {
		h.unregisterClient(client)
	}
	deliveredEvents.WithLabelValues(msg.Message.Type).Add(float64(len(msg.UserIDs) - len(slow)))
}

// SendToUser delivers a message to one user without the offline fallback
func (h *Hub) SendToUser(userID int64, message WSMessage) bool {
	data, err := json.Marshal(message)
	if err != nil {
		return false
	}

	h.clientsMux.RLock()
	client, exists := h.clients[userID]
	ok := exists && client.enqueue(data)
	h.clientsMux.RUnlock()
	return ok
}

func (h *Hub) notifyOffline(userID int64, message WSMessage) {
	if h.offline == nil {
		return
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(h.ctx, 10*time.Second)
		defer cancel()
		if err := h.offline.NotifyOffline(ctx, userID, message.Type, message.Data); err != nil {
			log.Printf("Offline notification to user %d failed: %v", userID, err)
		}
	}()
}

func (h *Hub) IsUserOnline(userID int64) bool {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()

	_, exists := h.clients[userID]
	return exists
}

func (h *Hub) GetActiveConnections() int {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	return len(h.clients)
}

func (h *Hub) cleanup() {
	h.clientsMux.Lock()
	for _, client := range h.clients {
		client.Close()
	}
	h.clients = make(map[int64]*Client)
	connectedClients.Set(0)
	h.clientsMux.Unlock()

	h.wg.Wait()
}

// Shutdown stops Run and waits for pending offline deliveries
func (h *Hub) Shutdown() {
	h.cancel()
	<-h.done
}
