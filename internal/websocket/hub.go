package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/shortreel/api/internal/model"
)

// Client represents a WebSocket client
type Client struct {
	DraftID string
	Conn    *websocket.Conn
	Send    chan []byte
}

// Hub maintains active WebSocket connections, grouped by the draft they
// watch. The dispatcher and workers publish reconciled render state and
// one-off notices through it.
type Hub struct {
	// Clients grouped by draft ID
	clients map[string]map[*Client]bool

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Broadcast messages to draft subscribers
	broadcast chan *BroadcastMessage

	mu sync.RWMutex
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	DraftID string
	Message []byte
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.DraftID] == nil {
				h.clients[client.DraftID] = make(map[*Client]bool)
			}
			h.clients[client.DraftID][client] = true
			h.mu.Unlock()
			log.Printf("Client registered for draft %s", client.DraftID)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.DraftID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.DraftID)
					}
				}
			}
			h.mu.Unlock()
			log.Printf("Client unregistered from draft %s", client.DraftID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[msg.DraftID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.Message:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastRender pushes a reconciled render-state snapshot to all
// subscribers of a draft.
func (h *Hub) BroadcastRender(draftID string, state model.RenderState) {
	msg := model.WSRenderMessage{
		Type:    model.WSMessageTypeRender,
		DraftID: draftID,
		Render:  state,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal render message: %v", err)
		return
	}

	h.broadcast <- &BroadcastMessage{
		DraftID: draftID,
		Message: data,
	}
}

// BroadcastNotice sends a one-off user-facing notification to all
// subscribers of a draft.
func (h *Hub) BroadcastNotice(draftID, level, code, message string) {
	msg := model.WSNoticeMessage{
		Type:    model.WSMessageTypeNotice,
		DraftID: draftID,
		Level:   level,
		Code:    code,
		Message: message,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal notice message: %v", err)
		return
	}

	h.broadcast <- &BroadcastMessage{
		DraftID: draftID,
		Message: data,
	}
}

// HandleConnection handles a WebSocket connection
func (h *Hub) HandleConnection(c *websocket.Conn, draftID string) {
	client := &Client{
		DraftID: draftID,
		Conn:    c,
		Send:    make(chan []byte, 256),
	}

	h.Register(client)
	defer h.Unregister(client)

	// Start writer goroutine
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				// Send ping for keep-alive
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		// Handle client messages (ping/pong)
		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			pong := model.WSMessage{Type: model.WSMessageTypePong}
			data, _ := json.Marshal(pong)
			client.Send <- data
		}
	}
}
