package hub

import (
	"encoding/json"
	"sync"

	"github.com/weiawesome/chat-backend/pkg/log"
)

// Hub owns the process-wide registry of live connections and their
// conversation-room subscriptions. All map access is synchronized; the
// broadcast channel preserves enqueue order, so messages enqueued in
// commit order reach each room in commit order.
type Hub struct {
	clients    map[string]*Client           // clientID -> client
	rooms      map[int64]map[string]*Client // conversationID -> clientID -> client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *roomMessage
	mu         sync.RWMutex
}

type roomMessage struct {
	ConversationID int64
	Payload        []byte
}

// NewHub creates an empty hub. Run must be started in its own goroutine
// before clients are registered.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[int64]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomMessage, 256),
	}
}

// Run processes register, unregister, and broadcast events until the
// process exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			log.L().Debug().Str(log.FieldClientID, client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				for convID, members := range h.rooms {
					delete(members, client.ID)
					if len(members) == 0 {
						delete(h.rooms, convID)
					}
				}
				delete(h.clients, client.ID)
				close(client.Send)
			}
			h.mu.Unlock()
			log.L().Debug().Str(log.FieldClientID, client.ID).Msg("client unregistered")

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.rooms[msg.ConversationID] {
				select {
				case client.Send <- msg.Payload:
				default:
					// Slow consumer; drop the connection rather than
					// block the whole room.
					go h.Unregister(client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a connection and all of its room subscriptions.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// JoinRoom subscribes a connection to a conversation's room. Callers
// must have authorized the (user, conversation) pair first.
func (h *Hub) JoinRoom(client *Client, conversationID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[conversationID]; !ok {
		h.rooms[conversationID] = make(map[string]*Client)
	}
	h.rooms[conversationID][client.ID] = client
	log.L().Debug().Str(log.FieldClientID, client.ID).Int64(log.FieldConversationID, conversationID).Msg("client joined room")
}

// LeaveRoom unsubscribes a connection from a conversation's room. It is
// best-effort and never fails visibly.
func (h *Hub) LeaveRoom(client *Client, conversationID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[conversationID]; ok {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.rooms, conversationID)
		}
	}
}

// BroadcastToRoom delivers an event to every connection currently
// subscribed to the conversation's room, the sender's included.
func (h *Hub) BroadcastToRoom(conversationID int64, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.broadcast <- &roomMessage{
		ConversationID: conversationID,
		Payload:        payload,
	}
	return nil
}

// RoomClientCount returns the number of live connections subscribed to
// a conversation's room.
func (h *Hub) RoomClientCount(conversationID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

// InRoom reports whether a connection is subscribed to a room.
func (h *Hub) InRoom(client *Client, conversationID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[conversationID][client.ID]
	return ok
}
