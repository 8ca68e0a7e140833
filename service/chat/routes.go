package chat

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/mentorlink/MentorLink-server/cmd/models"
	"github.com/mentorlink/MentorLink-server/cmd/utils"
	"gorm.io/gorm"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Handler struct {
	db  *gorm.DB
	hub *Hub
}

func NewHandler(db *gorm.DB, hub *Hub) *Handler {
	return &Handler{db: db, hub: hub}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws/chat", utils.AuthMiddleware(h.HandleWebSocket)).Methods("GET")
	router.HandleFunc("/chats/{userId}", utils.AuthMiddleware(h.GetConversation)).Methods("GET")
	router.HandleFunc("/chats", utils.AuthMiddleware(h.GetConversations)).Methods("GET")
	router.HandleFunc("/chats/{userId}/read", utils.AuthMiddleware(h.MarkConversationRead)).Methods("POST")
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	client := &Client{
		hub:    h.hub,
		conn:   conn,
		send:   make(chan []byte, 64),
		userID: userID,
	}
	h.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// GetConversation returns the message history between the caller and another
// user, newest page first.
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	otherID, err := strconv.ParseUint(vars["userId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 50

	query := h.db.Model(&models.Message{}).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			callerID, otherID, otherID, callerID)

	var total int64
	query.Count(&total)

	var messages []models.Message
	if err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&messages).Error; err != nil {
		http.Error(w, "Error retrieving messages", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"messages":    messages,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// GetConversations lists the people the caller has chatted with, with the
// latest message and unread count per counterpart.
func (h *Handler) GetConversations(w http.ResponseWriter, r *http.Request) {
	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var messages []models.Message
	if err := h.db.Where("sender_id = ? OR receiver_id = ?", callerID, callerID).
		Order("created_at DESC").
		Find(&messages).Error; err != nil {
		http.Error(w, "Error retrieving conversations", http.StatusInternalServerError)
		return
	}

	type conversation struct {
		UserID      uint           `json:"user_id"`
		User        *models.User   `json:"user,omitempty"`
		LastMessage models.Message `json:"last_message"`
		UnreadCount int64          `json:"unread_count"`
	}

	seen := make(map[uint]bool)
	var conversations []conversation
	for _, msg := range messages {
		otherID := msg.SenderID
		if otherID == callerID {
			otherID = msg.ReceiverID
		}
		if seen[otherID] {
			continue
		}
		seen[otherID] = true

		var unread int64
		h.db.Model(&models.Message{}).
			Where("sender_id = ? AND receiver_id = ? AND read_at IS NULL", otherID, callerID).
			Count(&unread)

		var other models.User
		var otherPtr *models.User
		if err := h.db.First(&other, otherID).Error; err == nil {
			otherPtr = &other
		}

		conversations = append(conversations, conversation{
			UserID:      otherID,
			User:        otherPtr,
			LastMessage: msg,
			UnreadCount: unread,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(conversations)
}

func (h *Handler) MarkConversationRead(w http.ResponseWriter, r *http.Request) {
	callerID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	otherID, err := strconv.ParseUint(vars["userId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	now := time.Now()
	result := h.db.Model(&models.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND read_at IS NULL", otherID, callerID).
		Update("read_at", now)
	if result.Error != nil {
		http.Error(w, "Error marking messages as read", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":      "Messages marked as read",
		"updated_rows": result.RowsAffected,
	})
}
