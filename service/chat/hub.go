package chat

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mentorlink/MentorLink-server/cmd/models"
	"gorm.io/gorm"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 4096
)

// WireMessage is the frame exchanged over the socket.
type WireMessage struct {
	Type       string `json:"type"` // "message", "typing", "read"
	ReceiverID uint   `json:"receiver_id"`
	SenderID   uint   `json:"sender_id,omitempty"`
	Content    string `json:"content,omitempty"`
	MessageID  uint   `json:"message_id,omitempty"`
	SentAt     string `json:"sent_at,omitempty"`
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID uint
}

// Hub keeps one connection set per user and fans messages out to whoever
// is online. Offline recipients still get the database row.
type Hub struct {
	db         *gorm.DB
	mu         sync.RWMutex
	clients    map[uint]map[*Client]bool
	register   chan *Client
	unregister chan *Client
}

func NewHub(db *gorm.DB) *Hub {
	return &Hub{
		db:         db,
		clients:    make(map[uint]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.userID] == nil {
				h.clients[client.userID] = make(map[*Client]bool)
			}
			h.clients[client.userID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.clients[client.userID]; ok {
				if _, ok := conns[client]; ok {
					delete(conns, client)
					close(client.send)
					if len(conns) == 0 {
						delete(h.clients, client.userID)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// deliver pushes payload to every open connection of userID. Returns false
// when the user has no connections. The read lock is held across the whole
// iteration: unregister closes send channels under the write lock, so a
// client disconnecting mid-delivery cannot yank the map or the channel out
// from under us.
func (h *Hub) deliver(userID uint, payload []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := h.clients[userID]
	if len(conns) == 0 {
		return false
	}
	for client := range conns {
		select {
		case client.send <- payload:
		default:
			// Slow consumer; drop the frame rather than block the hub.
		}
	}
	return true
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read error: %v", err)
			}
			return
		}

		var frame WireMessage
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		frame.SenderID = c.userID

		switch frame.Type {
		case "message":
			c.handleChatMessage(frame)
		case "typing":
			// Typing indicators are ephemeral; forward without persisting.
			if payload, err := json.Marshal(frame); err == nil {
				c.hub.deliver(frame.ReceiverID, payload)
			}
		}
	}
}

func (c *Client) handleChatMessage(frame WireMessage) {
	if frame.ReceiverID == 0 || frame.Content == "" {
		return
	}

	message := models.Message{
		SenderID:   c.userID,
		ReceiverID: frame.ReceiverID,
		Content:    frame.Content,
	}
	if err := c.hub.db.Create(&message).Error; err != nil {
		log.Printf("Error saving chat message: %v", err)
		return
	}

	frame.MessageID = message.ID
	frame.SentAt = message.CreatedAt.Format(time.RFC3339)

	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}

	c.hub.deliver(frame.ReceiverID, payload)
	// Echo back so other devices of the sender stay in sync.
	c.hub.deliver(c.userID, payload)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
